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
	"github.com/rs/zerolog"

	"github.com/noah-isme/helphub-go-api/internal/config"
	"github.com/noah-isme/helphub-go-api/internal/database"
	"github.com/noah-isme/helphub-go-api/internal/handler"
	"github.com/noah-isme/helphub-go-api/internal/middleware"
	"github.com/noah-isme/helphub-go-api/internal/models"
	"github.com/noah-isme/helphub-go-api/internal/repository"
	"github.com/noah-isme/helphub-go-api/internal/router"
	"github.com/noah-isme/helphub-go-api/internal/service"
	cloud "github.com/noah-isme/helphub-go-api/pkg/cloudinary"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.HelpRequest{},
		&models.RequestApplication{},
		&models.ChatThread{},
		&models.ChatParticipant{},
		&models.ChatMessage{},
		&models.Rating{},
		&models.Notification{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Redis and NATS are optional; without them realtime events stay
	// node-local.
	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, realtime replication disabled")
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, realtime replication disabled")
			natsConn = nil
		} else {
			defer natsConn.Drain()
		}
	}

	uploader, err := cloud.New(cloud.Config{
		CloudName: cfg.CloudinaryCloudName,
		APIKey:    cfg.CloudinaryAPIKey,
		APISecret: cfg.CloudinaryAPISecret,
		Folder:    cfg.CloudinaryUploadFolder,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create cloudinary client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewHelpRequestRepository(db)
	chatRepo := repository.NewChatRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	runCtx, stopServices := context.WithCancel(context.Background())
	defer stopServices()

	realtimeService := service.NewRealtimeService(redisClient, cfg.EventChannelBase, natsConn, logger)
	realtimeService.Start(runCtx)

	notificationService := service.NewNotificationService(notificationRepo, logger)
	requestService := service.NewRequestService(requestRepo, userRepo, chatRepo, ratingRepo, notificationService, realtimeService, validate, logger)
	chatService := service.NewChatService(chatRepo, realtimeService, notificationService, validate, logger)
	adminService := service.NewAdminService(userRepo, requestRepo, chatRepo, ratingRepo, notificationService, validate, logger)
	uploadService := service.NewUploadService(uploader, cfg.MaxUploadBytes, logger)

	requestHandler := handler.NewRequestHandler(requestService, uploadService, logger)
	chatHandler := handler.NewChatHandler(chatService, realtimeService, uploadService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationService, logger)
	adminHandler := handler.NewAdminHandler(adminService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(cfg.MaxUploadBytes) + 1<<20,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		RequestHandler:      requestHandler,
		ChatHandler:         chatHandler,
		NotificationHandler: notificationHandler,
		AdminHandler:        adminHandler,
		JWTMiddleware:       middleware.JWTProtected(cfg.JWTSecret),
		PresenceMiddleware:  middleware.Presence(userRepo),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
