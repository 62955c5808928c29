package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/notehub-api/internal/dto"
	"github.com/noah-isme/notehub-api/internal/middleware"
	"github.com/noah-isme/notehub-api/internal/models"
	"github.com/noah-isme/notehub-api/internal/service"
	"github.com/noah-isme/notehub-api/internal/utils"
)

const referenceFilesField = "reference_files"

// RequestHandler exposes the request lifecycle endpoints.
type RequestHandler struct {
	requests    service.RequestService
	activity    service.ActivityService
	minLeadTime time.Duration
	now         func() time.Time
	logger      zerolog.Logger
}

// NewRequestHandler constructs a request handler. minLeadTime is the advisory
// gap required between now and a new request's deadline.
func NewRequestHandler(requests service.RequestService, activity service.ActivityService, minLeadTime time.Duration, logger zerolog.Logger) *RequestHandler {
	return &RequestHandler{
		requests:    requests,
		activity:    activity,
		minLeadTime: minLeadTime,
		now:         time.Now,
		logger:      logger.With().Str("component", "request_handler").Logger(),
	}
}

// Register wires request routes under the provided router group.
func (h *RequestHandler) Register(router fiber.Router) {
	router.Post("", middleware.RequireRole(models.RoleStudent), h.create)
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Post("/:id/accept", middleware.RequireRole(models.RoleWriter), h.accept)
	router.Post("/:id/update-status", h.updateStatus)
	router.Get("/:id/activity", h.listActivity)
}

func (h *RequestHandler) create(c *fiber.Ctx) error {
	var (
		payload dto.RequestCreateRequest
		files   []dto.FileUpload
		err     error
	)

	if isMultipart(c) {
		payload, err = requestFromForm(c)
		if err != nil {
			return badRequest(c, err.Error())
		}
		files, err = readFormFiles(c, referenceFilesField)
		if err != nil {
			return badRequest(c, "invalid reference files")
		}
	} else if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request payload")
	}

	if h.minLeadTime > 0 && payload.Deadline.Before(h.now().Add(h.minLeadTime)) {
		return badRequest(c, "deadline must be at least "+h.minLeadTime.String()+" from now")
	}

	result, err := h.requests.Create(requestContext(c), actorFromContext(c), payload, files)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, result.Message, result)
}

func (h *RequestHandler) list(c *fiber.Ctx) error {
	result, err := h.requests.ListFor(requestContext(c), actorFromContext(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "requests", result)
}

func (h *RequestHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.requests.Get(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "request", result)
}

func (h *RequestHandler) accept(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.requests.Accept(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "request accepted successfully", result)
}

func (h *RequestHandler) updateStatus(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	var payload dto.StatusUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "invalid request payload")
	}

	result, err := h.requests.Transition(requestContext(c), actorFromContext(c), id, payload.Status)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "status updated successfully", result)
}

func (h *RequestHandler) listActivity(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.activity.ListForRequest(requestContext(c), actorFromContext(c), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "request activity", result)
}

func requestFromForm(c *fiber.Ctx) (dto.RequestCreateRequest, error) {
	payload := dto.RequestCreateRequest{
		Subject:             c.FormValue("subject"),
		Topic:               c.FormValue("topic"),
		NoteType:            strings.ToLower(strings.TrimSpace(c.FormValue("note_type"))),
		Language:            c.FormValue("language"),
		DeliveryLocation:    c.FormValue("delivery_location"),
		PaymentType:         strings.ToLower(strings.TrimSpace(c.FormValue("payment_type"))),
		SpecialInstructions: c.FormValue("special_instructions"),
	}

	if raw := strings.TrimSpace(c.FormValue("pages")); raw != "" {
		pages, err := strconv.Atoi(raw)
		if err != nil {
			return payload, fmt.Errorf("invalid pages")
		}
		payload.Pages = pages
	}
	if raw := strings.TrimSpace(c.FormValue("amount")); raw != "" {
		amount, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return payload, fmt.Errorf("invalid amount")
		}
		payload.Amount = amount
	}
	if raw := strings.TrimSpace(c.FormValue("deadline")); raw != "" {
		deadline, err := parseDeadline(raw)
		if err != nil {
			return payload, err
		}
		payload.Deadline = deadline
	}

	return payload, nil
}
