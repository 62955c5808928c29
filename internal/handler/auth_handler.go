package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/notehub-api/internal/dto"
	"github.com/noah-isme/notehub-api/internal/service"
	"github.com/noah-isme/notehub-api/internal/utils"
)

// AuthHandler exposes registration, login and profile endpoints.
type AuthHandler struct {
	service service.AuthService
	logger  zerolog.Logger
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(service service.AuthService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger.With().Str("component", "auth_handler").Logger(),
	}
}

// RegisterPublic wires the unauthenticated routes behind the given guards.
func (h *AuthHandler) RegisterPublic(router fiber.Router, guards ...fiber.Handler) {
	router.Post("/register", append(guards, h.register)...)
	router.Post("/login", append(guards, h.login)...)
}

// RegisterProtected wires the routes that require a token.
func (h *AuthHandler) RegisterProtected(router fiber.Router, guards ...fiber.Handler) {
	router.Get("/me", append(guards, h.me)...)
}

func (h *AuthHandler) register(c *fiber.Ctx) error {
	var payload dto.RegisterRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request payload")
	}

	result, err := h.service.Register(requestContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "registration successful", result)
}

func (h *AuthHandler) login(c *fiber.Ctx) error {
	var payload dto.LoginRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request payload")
	}

	result, err := h.service.Login(requestContext(c), payload)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "login successful", result)
}

func (h *AuthHandler) me(c *fiber.Ctx) error {
	result, err := h.service.Me(requestContext(c), userIDFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "profile", result)
}
