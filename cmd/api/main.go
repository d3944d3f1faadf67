package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/handoff-service/internal/api/http"
	"github.com/spec-kit/handoff-service/internal/api/http/handlers"
	apiws "github.com/spec-kit/handoff-service/internal/api/ws"
	"github.com/spec-kit/handoff-service/internal/auth"
	"github.com/spec-kit/handoff-service/internal/config"
	"github.com/spec-kit/handoff-service/internal/discord"
	"github.com/spec-kit/handoff-service/internal/events"
	"github.com/spec-kit/handoff-service/internal/observability"
	"github.com/spec-kit/handoff-service/internal/persistence"
	"github.com/spec-kit/handoff-service/internal/repository"
	"github.com/spec-kit/handoff-service/internal/service"
	"github.com/spec-kit/handoff-service/internal/whatsapp"
	"github.com/spec-kit/handoff-service/internal/worker"
	"github.com/spec-kit/handoff-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	ticketRepo := repository.NewTicketRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)
	analystRepo := repository.NewAnalystRepository(pool)
	intakeStore := persistence.NewRedisIntakeStore(redis, cfg.Intake.SessionTTL())

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes, cfg.Auth.HandoffTokenTTLHours)

	registry := ws.NewRegistry()
	hub := ws.NewHub(logger, metrics)
	deliveryWorker := worker.NewDeliveryWorker()
	defer deliveryWorker.Stop()

	var announcer discord.Announcer = discord.NopAnnouncer{}
	if cfg.Discord.WebhookURL != "" {
		announcer = discord.NewWebhookAnnouncer(cfg.Discord.WebhookURL, logger)
	}
	var sender whatsapp.Sender = whatsapp.NopSender{}
	if cfg.WhatsApp.GatewayURL != "" {
		sender = whatsapp.NewHTTPSender(cfg.WhatsApp.GatewayURL, cfg.WhatsApp.GatewayToken, logger)
	}

	gate := service.NewAccessGate(service.AccessGateDependencies{
		TokenManager: tokenManager,
		AnalystRepo:  analystRepo,
	})
	lifecycleService := service.NewLifecycleService(service.LifecycleDependencies{
		TicketRepo:     ticketRepo,
		Dispatcher:     dispatcher,
		Logger:         logger,
		UnclaimedLimit: cfg.Chat.UnclaimedListLimit,
	})
	conversationService := service.NewConversationService(service.ConversationDependencies{
		Hub:          hub,
		Registry:     registry,
		Gate:         gate,
		Lifecycle:    lifecycleService,
		MessageRepo:  messageRepo,
		Sender:       sender,
		Delivery:     deliveryWorker,
		Logger:       logger,
		ConfirmDelay: cfg.Chat.DeliveryConfirmDelay(),
	})
	intakeService := service.NewIntakeService(service.IntakeDependencies{
		Store:        intakeStore,
		TicketRepo:   ticketRepo,
		Conversation: conversationService,
		Dispatcher:   dispatcher,
		Logger:       logger,
	})
	authService := service.NewAuthService(service.AuthDependencies{
		AnalystRepo:  analystRepo,
		TicketRepo:   ticketRepo,
		TokenManager: tokenManager,
		Logger:       logger,
	})
	analystService := service.NewAnalystService(service.AnalystDependencies{
		AnalystRepo: analystRepo,
		BcryptCost:  cfg.Auth.BcryptCost,
		Logger:      logger,
	})
	notificationService := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: dispatcher,
		Hub:        hub,
		Registry:   registry,
		Lifecycle:  lifecycleService,
		Announcer:  announcer,
		Sender:     sender,
		PortalBase: cfg.Discord.PortalBaseURL,
		Logger:     logger,
	})
	notificationService.RegisterHandlers()

	authMiddleware := auth.NewMiddleware(tokenManager, analystRepo)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	realtimeHandler := apiws.NewHandler(apiws.HandlerDependencies{
		Hub:          hub,
		Registry:     registry,
		Conversation: conversationService,
		Lifecycle:    lifecycleService,
		Metrics:      metrics,
		Logger:       logger,
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Analysts:       handlers.NewAnalystsHandler(analystService),
		Tickets:        handlers.NewTicketsHandler(lifecycleService, conversationService),
		Integrations:   handlers.NewIntegrationsHandler(lifecycleService, intakeService, authService, cfg.Discord.IntegrationToken, cfg.Discord.PortalBaseURL),
		Realtime:       realtimeHandler,
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
