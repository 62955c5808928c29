package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/notehub-api/internal/dto"
	"github.com/noah-isme/notehub-api/internal/service"
	"github.com/noah-isme/notehub-api/internal/utils"
)

const chatFileField = "file"

// ChatHandler exposes the per-request conversation endpoints.
type ChatHandler struct {
	service service.ChatService
	logger  zerolog.Logger
}

// NewChatHandler creates a chat handler instance.
func NewChatHandler(service service.ChatService, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds chat routes under the provided router group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Get("/:requestId", h.list)
	router.Post("/:requestId", h.send)
}

func (h *ChatHandler) list(c *fiber.Ctx) error {
	requestID, err := parseIDParam(c, "requestId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	messages, err := h.service.List(requestContext(c), actorFromContext(c), requestID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "chat messages", messages)
}

func (h *ChatHandler) send(c *fiber.Ctx) error {
	requestID, err := parseIDParam(c, "requestId")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var (
		payload dto.ChatSendRequest
		file    *dto.FileUpload
	)
	if isMultipart(c) {
		payload.Message = c.FormValue("message")
		if header, err := c.FormFile(chatFileField); err == nil {
			upload, err := readFileHeader(header)
			if err != nil {
				return badRequest(c, "invalid file")
			}
			file = &upload
		}
	} else if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request payload")
	}

	message, err := h.service.Send(requestContext(c), actorFromContext(c), requestID, payload, file)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}
