package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/notehub-api/internal/config"
	"github.com/noah-isme/notehub-api/internal/database"
	"github.com/noah-isme/notehub-api/internal/handler"
	"github.com/noah-isme/notehub-api/internal/middleware"
	"github.com/noah-isme/notehub-api/internal/repository"
	"github.com/noah-isme/notehub-api/internal/router"
	"github.com/noah-isme/notehub-api/internal/service"
	"github.com/noah-isme/notehub-api/pkg/localstore"
)

const testJWTSecret = "router-test-secret"

type envelope struct {
	Success   bool              `json:"success"`
	Data      json.RawMessage   `json:"data"`
	Message   string            `json:"message"`
	ErrorKind string            `json:"error_kind"`
	Details   map[string]string `json:"details"`
}

type testAPI struct {
	t   *testing.T
	app *fiber.App
	db  *gorm.DB
}

type account struct {
	ID    uint
	Token string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))

	cfg := config.Config{
		AppName:            "notehub-test",
		AppEnv:             "test",
		RealtimeChannel:    "notehub-test",
		RealtimeVerifyJoin: true,
		JWTSecret:          testJWTSecret,
		RateLimitMax:       1000,
		RateLimitWindow:    time.Minute,
	}

	logger := zerolog.Nop()
	validate := validator.New(validator.WithRequiredStructEnabled())

	uploadsDir := t.TempDir()
	store, err := localstore.New(uploadsDir, localstore.DefaultPublicPrefix, logger)
	require.NoError(t, err)

	users := repository.NewUserRepository(db)
	requests := repository.NewRequestRepository(db)

	realtime := service.NewRealtimeService(requests, nil, nil, service.RealtimeConfig{
		ChannelBase: cfg.RealtimeChannel,
		VerifyJoin:  cfg.RealtimeVerifyJoin,
	}, validate, logger)
	uploads := service.NewUploadService(store, repository.NewUploadRepository(db), 5, logger)
	activity := service.NewActivityService(repository.NewActivityLogRepository(db), requests, logger)
	profiles := service.NewProfileService(users, nil, cfg.RealtimeChannel, time.Minute, logger)

	auth := service.NewAuthService(users, service.NewTokenIssuer(cfg.JWTSecret, time.Hour), validate, logger)
	requestService := service.NewRequestService(requests, users, uploads, activity, realtime, service.RequestServiceConfig{}, validate, logger)
	chat := service.NewChatService(requests, repository.NewMessageRepository(db), uploads, realtime, validate, logger)
	ratings := service.NewRatingService(repository.NewRatingRepository(db), profiles, activity, realtime, validate, logger)

	app := fiber.New()
	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:     handler.NewAuthHandler(auth, logger),
		RequestHandler:  handler.NewRequestHandler(requestService, activity, 0, logger),
		RatingHandler:   handler.NewRatingHandler(ratings, logger),
		ChatHandler:     handler.NewChatHandler(chat, logger),
		WriterHandler:   handler.NewWriterHandler(profiles, logger),
		RealtimeHandler: handler.NewRealtimeHandler(realtime, logger),
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
		HealthChecks: []handler.HealthDependency{{
			Name: "sqlite",
			Ping: func(ctx context.Context) error { return sqlDB.PingContext(ctx) },
		}},
		UploadsDir: uploadsDir,
	})

	return &testAPI{t: t, app: app, db: db}
}

func (a *testAPI) register(username, role string) account {
	a.t.Helper()

	status, body := a.call(http.MethodPost, "/api/register", "", map[string]string{
		"username":  username,
		"email":     username + "@example.com",
		"password":  "secret123",
		"user_type": role,
		"phone":     "0812" + username,
	})
	require.Equal(a.t, http.StatusCreated, status, body.Message)

	var auth struct {
		Token string `json:"token"`
		User  struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	require.NoError(a.t, json.Unmarshal(body.Data, &auth))
	return account{ID: auth.User.ID, Token: auth.Token}
}

func (a *testAPI) call(method, path, token string, payload interface{}) (int, envelope) {
	a.t.Helper()

	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return a.do(req)
}

func (a *testAPI) do(req *http.Request) (int, envelope) {
	a.t.Helper()

	resp, err := a.app.Test(req, -1)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var body envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(a.t, err)
	if len(raw) > 0 {
		require.NoError(a.t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func (a *testAPI) createRequest(student account) uint {
	a.t.Helper()

	status, body := a.call(http.MethodPost, "/api/requests", student.Token, map[string]interface{}{
		"subject":           "Biology",
		"topic":             "Cell division",
		"note_type":         "handwritten",
		"pages":             3,
		"deadline":          time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
		"delivery_location": "Block C",
	})
	require.Equal(a.t, http.StatusCreated, status, body.Message)

	var created struct {
		ID uint `json:"id"`
	}
	require.NoError(a.t, json.Unmarshal(body.Data, &created))
	return created.ID
}

func (a *testAPI) serve() string {
	a.t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(a.t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := a.app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.t.Logf("fiber listener stopped: %v", err)
		}
	}()

	a.t.Cleanup(func() {
		_ = a.app.Shutdown()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	})
	return listener.Addr().String()
}
