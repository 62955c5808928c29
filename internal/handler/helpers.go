package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/notehub-api/internal/dto"
	"github.com/noah-isme/notehub-api/internal/middleware"
	"github.com/noah-isme/notehub-api/internal/service"
	"github.com/noah-isme/notehub-api/internal/utils"
)

var kindStatus = map[string]int{
	service.KindValidation:     fiber.StatusBadRequest,
	service.KindAuth:           fiber.StatusUnauthorized,
	service.KindForbidden:      fiber.StatusForbidden,
	service.KindConflict:       fiber.StatusConflict,
	service.KindNotFound:       fiber.StatusNotFound,
	service.KindInvalidState:   fiber.StatusUnprocessableEntity,
	service.KindAlreadyRated:   fiber.StatusConflict,
	service.KindInvalidScore:   fiber.StatusBadRequest,
	service.KindInvalidMessage: fiber.StatusBadRequest,
	service.KindInternal:       fiber.StatusInternalServerError,
}

var deadlineLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// handleError converts a service error into the error envelope.
func handleError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	kind := service.ErrorKind(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = fiber.StatusInternalServerError
	}
	if errors.Is(err, service.ErrUploadTooLarge) {
		status = fiber.StatusRequestEntityTooLarge
	}

	if kind == service.KindInternal {
		requestLogger(logger, c).Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return utils.SendErrorKind(c, status, kind, "internal server error", nil)
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make(map[string]string, len(validationErrors))
		for _, fieldErr := range validationErrors {
			details[fieldErr.Field()] = fieldErr.Tag()
		}
		return utils.SendErrorKind(c, status, kind, "validation failed", details)
	}

	return utils.SendErrorKind(c, status, kind, err.Error(), nil)
}

func badRequest(c *fiber.Ctx, message string) error {
	return utils.SendErrorKind(c, fiber.StatusBadRequest, service.KindValidation, message, nil)
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		ID:       userIDFromContext(c),
		Role:     userRoleFromContext(c),
		Username: usernameFromContext(c),
	}
}

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func usernameFromContext(c *fiber.Ctx) string {
	if v, ok := c.Locals("username").(string); ok {
		return v
	}
	return ""
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func parseIDParam(c *fiber.Ctx, name string) (uint, error) {
	raw := strings.TrimSpace(c.Params(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return uint(id), nil
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}

func parseDeadline(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range deadlineLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid deadline %q", value)
}

func readFormFiles(c *fiber.Ctx, field string) ([]dto.FileUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	headers := form.File[field]
	files := make([]dto.FileUpload, 0, len(headers))
	for _, header := range headers {
		file, err := readFileHeader(header)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, nil
}

func readFileHeader(header *multipart.FileHeader) (dto.FileUpload, error) {
	handle, err := header.Open()
	if err != nil {
		return dto.FileUpload{}, err
	}
	defer handle.Close()

	data, err := io.ReadAll(handle)
	if err != nil {
		return dto.FileUpload{}, err
	}
	return dto.FileUpload{FileName: header.Filename, Data: data}, nil
}
