package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/notehub-api/internal/config"
	"github.com/noah-isme/notehub-api/internal/utils"
)

const healthCheckTimeout = 2 * time.Second

// HealthDependency is a named backing service probed by the health endpoint.
type HealthDependency struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status       string            `json:"status"`
	Timestamp    time.Time         `json:"timestamp"`
	Service      string            `json:"service"`
	Environment  string            `json:"environment"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthCheck returns a handler that reports application and dependency health.
// Any failing dependency turns the response into a 503 with status "degraded".
func HealthCheck(cfg config.Config, deps ...HealthDependency) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
		}

		if len(deps) > 0 {
			payload.Dependencies = make(map[string]string, len(deps))
			ctx, cancel := context.WithTimeout(requestContext(c), healthCheckTimeout)
			defer cancel()

			for _, dep := range deps {
				if err := dep.Ping(ctx); err != nil {
					payload.Dependencies[dep.Name] = "down"
					payload.Status = "degraded"
					continue
				}
				payload.Dependencies[dep.Name] = "up"
			}
		}

		if payload.Status != "ok" {
			return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "service degraded", payload)
		}
		return utils.SendSuccess(c, "service healthy", payload)
	}
}
