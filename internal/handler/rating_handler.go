package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/notehub-api/internal/dto"
	"github.com/noah-isme/notehub-api/internal/middleware"
	"github.com/noah-isme/notehub-api/internal/models"
	"github.com/noah-isme/notehub-api/internal/service"
	"github.com/noah-isme/notehub-api/internal/utils"
)

// RatingHandler exposes rating submission.
type RatingHandler struct {
	service service.RatingService
	logger  zerolog.Logger
}

// NewRatingHandler constructs a rating handler.
func NewRatingHandler(service service.RatingService, logger zerolog.Logger) *RatingHandler {
	return &RatingHandler{
		service: service,
		logger:  logger.With().Str("component", "rating_handler").Logger(),
	}
}

// Register wires rating routes under the requests group.
func (h *RatingHandler) Register(router fiber.Router) {
	router.Post("/:id/rate", middleware.RequireRole(models.RoleStudent), h.rate)
}

func (h *RatingHandler) rate(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.RatingCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request payload")
	}

	result, err := h.service.Rate(requestContext(c), actorFromContext(c), id, payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "rating submitted successfully", result)
}
