package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-desk/internal/api/http"
	"github.com/spec-kit/support-desk/internal/api/http/handlers"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/config"
	"github.com/spec-kit/support-desk/internal/dedup"
	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/observability"
	"github.com/spec-kit/support-desk/internal/persistence"
	"github.com/spec-kit/support-desk/internal/repository"
	"github.com/spec-kit/support-desk/internal/repository/memstore"
	"github.com/spec-kit/support-desk/internal/service"
	"github.com/spec-kit/support-desk/internal/storage"
	"github.com/spec-kit/support-desk/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
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

	var repos *repository.Repos
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = repository.NewPostgresRepos(pg.PoolHandle())
	} else {
		repos = memstore.New().Repos()
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var dedupStore dedup.Store = dedup.NewMemoryStore()
	var readyChecks []handlers.Dependency
	if redis.Enabled() {
		dedupStore = dedup.NewRedisStore(redis.Client, cfg.Redis.KeyPrefix, cfg.Reply.LockTTL())
		readyChecks = append(readyChecks, handlers.Dependency{Name: "redis", Ping: redis.Ping})
	}

	var attachments storage.AttachmentStore = storage.NewMemoryStore()
	if cfg.Minio.Endpoint != "" {
		minioStore, err := storage.NewMinioStore(ctx, cfg.Minio, logger)
		if err != nil {
			logger.Fatal("failed to init attachment storage", zap.Error(err))
		}
		attachments = minioStore
	} else {
		logger.Warn("MINIO_ENDPOINT not provided; attachments are kept in memory")
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(dispatcher, notificationService, metrics)

	retry := service.RetryPolicyFromConfig(cfg.Storage)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:              repos.Tickets,
		ReplyRepo:               repos.Replies,
		Locker:                  repos.Locker,
		Attachments:             attachments,
		Dispatcher:              dispatcher,
		Logger:                  logger,
		Retry:                   retry,
		AttachmentLimits:        cfg.Attachments,
		AllowCustomerOnResolved: cfg.Reply.AllowCustomerOnResolved,
	})
	replyGate := service.NewReplyGate(service.ReplyGateDependencies{
		Tickets: ticketService,
		Store:   dedupStore,
		Window:  cfg.Reply.DedupWindow(),
		Logger:  logger,
	})
	statsService := service.NewStatsService(repos.Tickets, retry)
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		AgentRepo: repos.Agents,
		Retry:     retry,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.Agents)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    cfg.App.BodyLimitBytes,
		ErrorHandler: httptransport.ErrorHandler,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, repos.Health, metrics, readyChecks...),
		Public:         handlers.NewPublicTicketsHandler(ticketService, replyGate),
		AgentTickets:   handlers.NewAgentTicketsHandler(ticketService, replyGate, statsService),
		Agents:         handlers.NewAgentsHandler(authService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
