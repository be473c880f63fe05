package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"recipehub/internal/adapter/api"
	"recipehub/internal/adapter/api/handler"
	apimiddleware "recipehub/internal/adapter/api/middleware"
	"recipehub/internal/adapter/api/router"
	"recipehub/internal/adapter/repository"
	"recipehub/internal/domain/service"
	"recipehub/internal/infrastructure/firebase"
	"recipehub/internal/infrastructure/metrics"
	"recipehub/internal/infrastructure/ratelimit"
	"recipehub/internal/infrastructure/storage"
	"recipehub/internal/infrastructure/websocket"
	"recipehub/internal/usecase"
	"recipehub/pkg/config"
	"recipehub/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Configure(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := repository.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer backend.Close()

	verifier, err := firebase.SelectVerifier(backend.Firebase, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to configure authentication: %v", err)
	}

	var attachments service.AttachmentResolver
	if cfg.StorageBucket != "" && backend.Firebase != nil {
		signer, err := storage.NewAttachmentSigner(ctx, cfg.StorageBucket, backend.Firebase.Option)
		if err != nil {
			log.Fatalf("Failed to initialize Cloud Storage: %v", err)
		}
		defer signer.Close()
		attachments = signer
	}

	checks := map[string]handler.Pinger{}
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	limiter := ratelimit.NewRateLimiter(map[string]ratelimit.Policy{
		ratelimit.ActionSendMessage:        {PerMinute: cfg.SendRatePerMinute},
		ratelimit.ActionFollow:             {PerMinute: cfg.FollowRatePerMinute},
		ratelimit.ActionCreateConversation: {PerMinute: 10, Burst: 5},
		ratelimit.ActionNotify:             {PerMinute: 120},
	})
	limiter.StartCleanupRoutine(ctx.Done())

	wsManager := websocket.NewManager(rdb)
	wsManager.Start(ctx)

	repos := backend.Repositories
	notificationUseCase := usecase.NewNotificationUseCase(repos.Notifications, repos.Preferences, repos.Profiles, repos.Posts)
	conversationUseCase := usecase.NewConversationUseCase(repos.Conversations, repos.Messages, repos.Relationships, repos.Profiles, cfg.DeleteBatchSize)
	messageUseCase := usecase.NewMessageUseCase(repos.Conversations, repos.Messages, repos.Relationships, notificationUseCase, attachments, limiter)
	relationshipUseCase := usecase.NewRelationshipUseCase(repos.Relationships, notificationUseCase, conversationUseCase, limiter)

	handlers := handler.Setup(
		conversationUseCase,
		messageUseCase,
		notificationUseCase,
		relationshipUseCase,
		wsManager,
		handler.NewHealthHandler(backend.Driver, checks),
		cfg.AllowedOrigins,
	)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: corsOrigins(cfg.AllowedOrigins)}))
	e.Use(metrics.Middleware())

	e.Validator = api.NewValidator()

	router.Setup(e, handlers, apimiddleware.NewAuthMiddleware(verifier), limiter)

	go func() {
		logger.Info("Starting server on port %s (store=%s)", cfg.ServerPort, backend.Driver)
		if err := e.Start(":" + cfg.ServerPort); err != nil {
			logger.Info("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
}

func corsOrigins(allowed []string) []string {
	if len(allowed) == 0 {
		return []string{"*"}
	}
	return allowed
}
