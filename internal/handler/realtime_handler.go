package handler

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/notehub-api/internal/middleware"
	"github.com/noah-isme/notehub-api/internal/service"
)

// RealtimeHandler upgrades authenticated clients to the realtime event stream.
type RealtimeHandler struct {
	service service.RealtimeService
	logger  zerolog.Logger
}

// NewRealtimeHandler creates a realtime handler instance.
func NewRealtimeHandler(service service.RealtimeService, logger zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		service: service,
		logger:  logger.With().Str("component", "realtime_handler").Logger(),
	}
}

// Register binds the websocket route under the provided router group.
func (h *RealtimeHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("correlation_id", middleware.GetCorrelationID(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
}

func (h *RealtimeHandler) handleConnection(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(uint)
	if userID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required"))
		_ = conn.Close()
		return
	}

	actor := service.Actor{ID: userID}
	if role, ok := conn.Locals("user_role").(string); ok {
		actor.Role = role
	}
	if username, ok := conn.Locals("username").(string); ok {
		actor.Username = username
	}
	correlation := fmt.Sprint(conn.Locals("correlation_id"))

	h.logger.Info().Uint("user_id", userID).Str("correlation_id", correlation).Msg("realtime websocket connected")
	h.service.ServeConnection(conn, service.RealtimeConnectionOptions{
		Actor:         actor,
		CorrelationID: correlation,
	})
	h.logger.Info().Uint("user_id", userID).Msg("realtime websocket disconnected")
}
