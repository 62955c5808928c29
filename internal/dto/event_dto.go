package dto

import "time"

// Realtime event names.
const (
	EventRequestCreated  = "request_created"
	EventRequestAccepted = "request_accepted"
	EventStatusUpdated   = "status_updated"
	EventNewMessage      = "new_message"
	EventRequestRated    = "request_rated"
	EventJoined          = "joined"
	EventLeft            = "left"
	EventError           = "error"
)

// Realtime client actions.
const (
	ActionJoinRequest  = "join_request"
	ActionLeaveRequest = "leave_request"
)

// RealtimeEvent is the frame written to websocket clients.
type RealtimeEvent struct {
	Event  string      `json:"event"`
	Data   interface{} `json:"data"`
	SentAt time.Time   `json:"sent_at"`
}

// RealtimeCommand is a frame sent by a websocket client.
type RealtimeCommand struct {
	Action    string `json:"action" validate:"required,oneof=join_request leave_request"`
	RequestID uint   `json:"request_id" validate:"required"`
}

// RequestAcceptedEvent announces that a pooled request has been claimed.
type RequestAcceptedEvent struct {
	RequestID  uint   `json:"request_id"`
	StudentID  uint   `json:"student_id"`
	WriterID   uint   `json:"writer_id"`
	WriterName string `json:"writer_name"`
}

// StatusUpdatedEvent announces a lifecycle transition.
type StatusUpdatedEvent struct {
	RequestID uint   `json:"request_id"`
	Status    string `json:"status"`
	UpdatedBy uint   `json:"updated_by"`
}

// RequestRatedEvent announces a rating and the writer's new reputation.
type RequestRatedEvent struct {
	RequestID         uint    `json:"request_id"`
	WriterID          uint    `json:"writer_id"`
	Score             int     `json:"score"`
	WriterRating      float64 `json:"writer_rating"`
	WriterTotalOrders int     `json:"writer_total_orders"`
}

// ChannelAck confirms a join or leave.
type ChannelAck struct {
	RequestID uint `json:"request_id"`
}

// ErrorEvent reports a rejected client command.
type ErrorEvent struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
