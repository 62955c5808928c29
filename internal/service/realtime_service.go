package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/notehub-api/internal/dto"
	"github.com/noah-isme/notehub-api/internal/models"
	"github.com/noah-isme/notehub-api/internal/observability"
	"github.com/noah-isme/notehub-api/internal/repository"
)

// PoolTopic receives lifecycle events relevant to every connected client.
const PoolTopic = "pool"

const (
	realtimeSendBufferSize = 32
	realtimePingInterval   = 30 * time.Second
	realtimeCommandTimeout = 5 * time.Second
	realtimeRelayTimeout   = 5 * time.Second
	realtimeRelaySeenLimit = 4096
)

// RequestTopic names the channel scoped to a single request.
func RequestTopic(requestID uint) string {
	return fmt.Sprintf("request:%d", requestID)
}

// EventPublisher fans events out to live subscribers. Publishing never blocks
// and never fails: subscribers that cannot keep up miss the event.
type EventPublisher interface {
	Publish(ctx context.Context, event string, data interface{}, topics ...string)
}

// RealtimeConnectionOptions wraps metadata extracted during the HTTP upgrade.
type RealtimeConnectionOptions struct {
	Actor         Actor
	CorrelationID string
}

// RealtimeService manages realtime subscriptions and event delivery.
type RealtimeService interface {
	EventPublisher
	Subscribe(actor Actor) *Subscription
	Join(ctx context.Context, sub *Subscription, requestID uint) error
	Leave(sub *Subscription, requestID uint)
	ServeConnection(conn *websocket.Conn, opts RealtimeConnectionOptions)
	Start(ctx context.Context)
}

// RealtimeConfig tunes the realtime service.
type RealtimeConfig struct {
	ChannelBase string
	VerifyJoin  bool
}

type realtimeService struct {
	requests    repository.RequestRepository
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	verifyJoin  bool
	validator   *validator.Validate
	logger      zerolog.Logger
	hub         *realtimeHub
	nodeID      string
	relayed     *relaySeen
}

// Subscription is one live listener. The pool topic is joined on creation.
type Subscription struct {
	id     string
	actor  Actor
	events chan dto.RealtimeEvent
	hub    *realtimeHub
	once   sync.Once

	// guarded by hub.mu
	topics map[string]struct{}
	closed bool
}

type realtimeHub struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	log    zerolog.Logger
}

type realtimeEnvelope struct {
	ID     string            `json:"id"`
	Source string            `json:"source"`
	Topics []string          `json:"topics"`
	Event  dto.RealtimeEvent `json:"event"`
}

// NewRealtimeService constructs the fan-out hub. Redis and NATS are optional relays
// between API nodes.
func NewRealtimeService(requests repository.RequestRepository, redisClient *redis.Client, natsConn *nats.Conn, cfg RealtimeConfig, validate *validator.Validate, logger zerolog.Logger) RealtimeService {
	stream := ""
	subject := ""
	if cfg.ChannelBase != "" {
		stream = cfg.ChannelBase + ":realtime"
		subject = strings.ReplaceAll(cfg.ChannelBase, ":", ".") + ".realtime"
	}

	return &realtimeService{
		requests:    requests,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		verifyJoin:  cfg.VerifyJoin,
		validator:   validate,
		logger:      logger.With().Str("component", "realtime_service").Logger(),
		hub: &realtimeHub{
			topics: make(map[string]map[*Subscription]struct{}),
			log:    logger.With().Str("component", "realtime_hub").Logger(),
		},
		nodeID:  uuid.NewString(),
		relayed: newRelaySeen(realtimeRelaySeenLimit),
	}
}

func (s *realtimeService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *realtimeService) Subscribe(actor Actor) *Subscription {
	sub := &Subscription{
		id:     uuid.NewString(),
		actor:  actor,
		events: make(chan dto.RealtimeEvent, realtimeSendBufferSize),
		hub:    s.hub,
		topics: make(map[string]struct{}),
	}
	s.hub.add(sub, PoolTopic)
	observability.RealtimeConnections().Inc()
	return sub
}

func (s *realtimeService) Join(ctx context.Context, sub *Subscription, requestID uint) error {
	if sub == nil || requestID == 0 {
		return ErrValidation
	}

	if s.verifyJoin {
		request, err := s.requests.GetByID(ctx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		watchingPool := request.Status == models.StatusOpen && sub.actor.IsWriter()
		if !request.IsParticipant(sub.actor.ID) && !watchingPool {
			return ErrForbidden
		}
	}

	if !s.hub.add(sub, RequestTopic(requestID)) {
		return ErrInvalidState
	}
	return nil
}

func (s *realtimeService) Leave(sub *Subscription, requestID uint) {
	if sub == nil {
		return
	}
	s.hub.remove(sub, RequestTopic(requestID))
}

func (s *realtimeService) Publish(ctx context.Context, event string, data interface{}, topics ...string) {
	if len(topics) == 0 {
		return
	}

	frame := dto.RealtimeEvent{Event: event, Data: data, SentAt: time.Now().UTC()}
	s.hub.broadcast(topics, frame)

	if s.relayEnabled() {
		go s.relay(topics, frame)
	}
}

func (s *realtimeService) ServeConnection(conn *websocket.Conn, opts RealtimeConnectionOptions) {
	sub := s.Subscribe(opts.Actor)
	log := s.logger.With().
		Uint("user_id", opts.Actor.ID).
		Str("subscription_id", sub.id).
		Str("correlation_id", opts.CorrelationID).
		Logger()
	log.Debug().Msg("realtime client connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(conn, sub, log)
	}()

	s.readLoop(conn, sub, log)

	sub.Close()
	<-writerDone
	log.Debug().Msg("realtime client disconnected")
}

func (s *realtimeService) readLoop(conn *websocket.Conn, sub *Subscription, log zerolog.Logger) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Msg("realtime read loop ended")
			return
		}

		var command dto.RealtimeCommand
		if err := json.Unmarshal(payload, &command); err != nil {
			s.hub.sendTo(sub, errorFrame(ErrValidation, "malformed command"))
			continue
		}
		if err := s.validator.Struct(command); err != nil {
			s.hub.sendTo(sub, errorFrame(ErrValidation, err.Error()))
			continue
		}

		switch command.Action {
		case dto.ActionJoinRequest:
			ctx, cancel := context.WithTimeout(context.Background(), realtimeCommandTimeout)
			err := s.Join(ctx, sub, command.RequestID)
			cancel()
			if err != nil {
				log.Debug().Err(err).Uint("request_id", command.RequestID).Msg("join rejected")
				s.hub.sendTo(sub, errorFrame(err, err.Error()))
				continue
			}
			s.hub.sendTo(sub, newFrame(dto.EventJoined, dto.ChannelAck{RequestID: command.RequestID}))
		case dto.ActionLeaveRequest:
			s.Leave(sub, command.RequestID)
			s.hub.sendTo(sub, newFrame(dto.EventLeft, dto.ChannelAck{RequestID: command.RequestID}))
		}
	}
}

func (s *realtimeService) writeLoop(conn *websocket.Conn, sub *Subscription, log zerolog.Logger) {
	ticker := time.NewTicker(realtimePingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-sub.events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				log.Debug().Err(err).Msg("realtime write loop terminated")
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				log.Debug().Err(err).Msg("realtime ping failed")
				_ = conn.Close()
				return
			}
		}
	}
}

func (s *realtimeService) relayEnabled() bool {
	return (s.redis != nil && s.redisStream != "") || (s.nats != nil && s.natsSubject != "")
}

func (s *realtimeService) relay(topics []string, frame dto.RealtimeEvent) {
	payload, err := json.Marshal(realtimeEnvelope{ID: uuid.NewString(), Source: s.nodeID, Topics: topics, Event: frame})
	if err != nil {
		s.logger.Warn().Err(err).Str("event", frame.Event).Msg("failed to marshal realtime event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), realtimeRelayTimeout)
	defer cancel()

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to relay realtime event to redis")
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			s.logger.Warn().Err(err).Msg("failed to relay realtime event to nats")
		}
	}
}

func (s *realtimeService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			s.logger.Error().Err(err).Msg("realtime redis subscription closed")
			return
		}
		s.handleEnvelope([]byte(msg.Payload))
	}
}

func (s *realtimeService) consumeNATS(ctx context.Context) {
	// Plain subscribe: every node must see every event to reach its own clients.
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEnvelope(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats realtime subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain realtime nats subscription")
		}
	}()
}

func (s *realtimeService) handleEnvelope(payload []byte) {
	var envelope realtimeEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid realtime envelope")
		return
	}
	if envelope.Source == s.nodeID || envelope.Event.Event == "" {
		return
	}
	// With both Redis and NATS configured the same envelope arrives twice.
	if envelope.ID != "" && !s.relayed.firstSight(envelope.ID) {
		return
	}
	s.hub.broadcast(envelope.Topics, envelope.Event)
}

// relaySeen remembers the most recent relayed envelope ids, oldest evicted first.
type relaySeen struct {
	mu    sync.Mutex
	limit int
	ids   map[string]struct{}
	order []string
}

func newRelaySeen(limit int) *relaySeen {
	return &relaySeen{limit: limit, ids: make(map[string]struct{}, limit)}
}

func (r *relaySeen) firstSight(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[id]; ok {
		return false
	}
	if len(r.order) >= r.limit {
		delete(r.ids, r.order[0])
		r.order = r.order[1:]
	}
	r.ids[id] = struct{}{}
	r.order = append(r.order, id)
	return true
}

// Events returns the channel the subscriber reads frames from. It is closed by Close.
func (s *Subscription) Events() <-chan dto.RealtimeEvent {
	return s.events
}

// Actor returns the identity the subscription was opened for.
func (s *Subscription) Actor() Actor {
	return s.actor
}

// Topics lists the topics the subscription currently belongs to.
func (s *Subscription) Topics() []string {
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()

	out := make([]string, 0, len(s.topics))
	for topic := range s.topics {
		out = append(out, topic)
	}
	return out
}

// Close detaches the subscription from every topic and closes its event channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.removeAll(s)
		observability.RealtimeConnections().Dec()
	})
}

func (h *realtimeHub) add(sub *Subscription, topic string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub.closed {
		return false
	}
	if _, exists := h.topics[topic]; !exists {
		h.topics[topic] = make(map[*Subscription]struct{})
	}
	h.topics[topic][sub] = struct{}{}
	sub.topics[topic] = struct{}{}
	return true
}

func (h *realtimeHub) remove(sub *Subscription, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.detach(sub, topic)
}

func (h *realtimeHub) removeAll(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic := range sub.topics {
		h.detach(sub, topic)
	}
	sub.closed = true
	close(sub.events)
}

// detach requires h.mu held for writing.
func (h *realtimeHub) detach(sub *Subscription, topic string) {
	delete(sub.topics, topic)
	if subscribers, ok := h.topics[topic]; ok {
		delete(subscribers, sub)
		if len(subscribers) == 0 {
			delete(h.topics, topic)
		}
	}
}

func (h *realtimeHub) broadcast(topics []string, frame dto.RealtimeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Subscription]struct{})
	for _, topic := range topics {
		for sub := range h.topics[topic] {
			if _, dup := seen[sub]; dup {
				continue
			}
			seen[sub] = struct{}{}
			h.deliver(sub, frame)
		}
	}
}

func (h *realtimeHub) sendTo(sub *Subscription, frame dto.RealtimeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if sub.closed {
		return
	}
	h.deliver(sub, frame)
}

// deliver requires h.mu held.
func (h *realtimeHub) deliver(sub *Subscription, frame dto.RealtimeEvent) {
	select {
	case sub.events <- frame:
		observability.RealtimeEventsDelivered().WithLabelValues(frame.Event).Inc()
	default:
		observability.RealtimeEventsDropped().WithLabelValues(frame.Event).Inc()
		h.log.Warn().Str("event", frame.Event).Uint("user_id", sub.actor.ID).Msg("dropping realtime event for slow client")
	}
}

func newFrame(event string, data interface{}) dto.RealtimeEvent {
	return dto.RealtimeEvent{Event: event, Data: data, SentAt: time.Now().UTC()}
}

func errorFrame(err error, message string) dto.RealtimeEvent {
	return newFrame(dto.EventError, dto.ErrorEvent{Kind: ErrorKind(err), Message: message})
}
