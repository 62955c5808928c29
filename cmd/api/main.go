package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/notehub-api/internal/config"
	"github.com/noah-isme/notehub-api/internal/database"
	"github.com/noah-isme/notehub-api/internal/handler"
	"github.com/noah-isme/notehub-api/internal/middleware"
	"github.com/noah-isme/notehub-api/internal/repository"
	"github.com/noah-isme/notehub-api/internal/router"
	"github.com/noah-isme/notehub-api/internal/service"
	cloud "github.com/noah-isme/notehub-api/pkg/cloudinary"
	"github.com/noah-isme/notehub-api/pkg/localstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", cfg.AppName).Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	healthChecks := []handler.HealthDependency{{
		Name: "postgres",
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.ConnectRedis(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		healthChecks = append(healthChecks, handler.HealthDependency{
			Name: "redis",
			Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL, cfg.AppName)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
		healthChecks = append(healthChecks, handler.HealthDependency{
			Name: "nats",
			Ping: func(context.Context) error { return natsConn.FlushTimeout(time.Second) },
		})
	}

	var (
		storage    service.FileStorage
		uploadsDir string
	)
	if cfg.CloudinaryEnabled() {
		storage, err = cloud.New(cloud.Config{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryUploadFolder,
		}, logger)
		if err != nil {
			log.Fatalf("failed to create cloudinary client: %v", err)
		}
	} else {
		store, err := localstore.New(cfg.UploadsDir, localstore.DefaultPublicPrefix, logger)
		if err != nil {
			log.Fatalf("failed to prepare upload directory: %v", err)
		}
		storage = store
		uploadsDir = store.Root()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)
	uploadRepo := repository.NewUploadRepository(db)

	realtimeService := service.NewRealtimeService(requestRepo, redisClient, natsConn, service.RealtimeConfig{
		ChannelBase: cfg.RealtimeChannel,
		VerifyJoin:  cfg.RealtimeVerifyJoin,
	}, validate, logger)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()
	realtimeService.Start(rootCtx)

	tokenIssuer := service.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authService := service.NewAuthService(userRepo, tokenIssuer, validate, logger)
	uploadService := service.NewUploadService(storage, uploadRepo, cfg.UploadMaxSizeMB, logger)
	activityService := service.NewActivityService(activityRepo, requestRepo, logger)
	profileService := service.NewProfileService(userRepo, redisClient, cfg.RealtimeChannel, cfg.ProfileCacheTTL, logger)
	requestService := service.NewRequestService(requestRepo, userRepo, uploadService, activityService, realtimeService, service.RequestServiceConfig{
		StrictTransitions: cfg.StrictTransitions,
		MaxReferenceFiles: cfg.UploadMaxFiles,
	}, validate, logger)
	chatService := service.NewChatService(requestRepo, messageRepo, uploadService, realtimeService, validate, logger)
	ratingService := service.NewRatingService(ratingRepo, profileService, activityService, realtimeService, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    bodyLimit(cfg),
	})

	middleware.Register(app, middleware.Config{
		Logger:       &logger,
		AllowOrigins: cfg.AllowOrigins,
	})
	router.Register(app, cfg, router.Dependencies{
		AuthHandler:     handler.NewAuthHandler(authService, logger),
		RequestHandler:  handler.NewRequestHandler(requestService, activityService, cfg.RequestMinLeadTime, logger),
		RatingHandler:   handler.NewRatingHandler(ratingService, logger),
		ChatHandler:     handler.NewChatHandler(chatService, logger),
		WriterHandler:   handler.NewWriterHandler(profileService, logger),
		RealtimeHandler: handler.NewRealtimeHandler(realtimeService, logger),
		JWTMiddleware:   middleware.JWTProtected(cfg.JWTSecret),
		HealthChecks:    healthChecks,
		UploadsDir:      uploadsDir,
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancelRoot)
}

// bodyLimit leaves room for a full set of reference files plus form fields.
func bodyLimit(cfg config.Config) int {
	perFile := cfg.UploadMaxSizeMB
	if perFile <= 0 {
		perFile = 10
	}
	files := cfg.UploadMaxFiles
	if files <= 0 {
		files = 5
	}
	return (perFile*files + 1) * 1024 * 1024
}

func waitForShutdown(app *fiber.App, stopBackground context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
