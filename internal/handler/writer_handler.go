package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/notehub-api/internal/service"
	"github.com/noah-isme/notehub-api/internal/utils"
)

// WriterHandler exposes public writer profiles.
type WriterHandler struct {
	service service.ProfileService
	logger  zerolog.Logger
}

// NewWriterHandler constructs a writer profile handler.
func NewWriterHandler(service service.ProfileService, logger zerolog.Logger) *WriterHandler {
	return &WriterHandler{
		service: service,
		logger:  logger.With().Str("component", "writer_handler").Logger(),
	}
}

// Register wires writer routes.
func (h *WriterHandler) Register(router fiber.Router) {
	router.Get("/:id", h.profile)
}

func (h *WriterHandler) profile(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	profile, err := h.service.Writer(requestContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "writer profile", profile)
}
