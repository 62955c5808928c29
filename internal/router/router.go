package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/notehub-api/internal/config"
	"github.com/noah-isme/notehub-api/internal/handler"
	"github.com/noah-isme/notehub-api/internal/middleware"
	"github.com/noah-isme/notehub-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler     *handler.AuthHandler
	RequestHandler  *handler.RequestHandler
	RatingHandler   *handler.RatingHandler
	ChatHandler     *handler.ChatHandler
	WriterHandler   *handler.WriterHandler
	RealtimeHandler *handler.RealtimeHandler
	JWTMiddleware   fiber.Handler
	HealthChecks    []handler.HealthDependency
	// UploadsDir is served at /uploads when files are stored on local disk.
	UploadsDir string
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	v1 := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	v1.Get("/health", handler.HealthCheck(cfg, deps.HealthChecks...))
	app.Get("/metrics", observability.MetricsHandler())

	if deps.UploadsDir != "" {
		app.Static("/uploads", deps.UploadsDir)
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	api := app.Group("/api")

	if deps.AuthHandler != nil {
		deps.AuthHandler.RegisterPublic(api, middleware.RateLimit("auth", cfg.RateLimitMax, cfg.RateLimitWindow))
		deps.AuthHandler.RegisterProtected(api, jwtMiddleware)
	}

	if deps.RequestHandler != nil {
		requests := api.Group("/requests", jwtMiddleware)
		deps.RequestHandler.Register(requests)
		if deps.RatingHandler != nil {
			deps.RatingHandler.Register(requests)
		}
	}

	if deps.ChatHandler != nil {
		chat := api.Group("/chat", jwtMiddleware, middleware.RateLimit("chat", cfg.RateLimitMax, cfg.RateLimitWindow))
		deps.ChatHandler.Register(chat)
	}

	if deps.WriterHandler != nil {
		deps.WriterHandler.Register(api.Group("/writers", jwtMiddleware))
	}

	if deps.RealtimeHandler != nil {
		deps.RealtimeHandler.Register(api.Group("/realtime", jwtMiddleware))
	}
}
