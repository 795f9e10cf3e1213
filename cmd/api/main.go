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

	httptransport "github.com/spec-kit/dinewithus/internal/api/http"
	"github.com/spec-kit/dinewithus/internal/api/http/handlers"
	"github.com/spec-kit/dinewithus/internal/auth"
	"github.com/spec-kit/dinewithus/internal/backend"
	"github.com/spec-kit/dinewithus/internal/config"
	"github.com/spec-kit/dinewithus/internal/events"
	"github.com/spec-kit/dinewithus/internal/identity"
	"github.com/spec-kit/dinewithus/internal/observability"
	"github.com/spec-kit/dinewithus/internal/persistence"
	"github.com/spec-kit/dinewithus/internal/repository"
	"github.com/spec-kit/dinewithus/internal/service"
	"github.com/spec-kit/dinewithus/internal/worker"
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
		if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	var userRepo repository.UserRepository
	if pg.Enabled() {
		userRepo = repository.NewUserRepository(pg.Pool)
	} else {
		userRepo = repository.NewMemoryUserRepository()
	}
	syncStatus := repository.NewSyncStatusRepository(redis.Client, cfg.Redis.KeyPrefix)
	revocations := repository.NewRevocationRepository(redis.Client, cfg.Redis.KeyPrefix)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification, cfg.App.Development())
	notifier := worker.StartNotificationWorker(ctx, notificationService, logger)
	defer notifier.Stop()

	provider, devProvider := buildIdentityProvider(cfg, dispatcher, logger)
	backendClient := backend.NewClient(cfg.Backend.APIURL, cfg.Backend.HostBio, cfg.Backend.RequestTimeout())
	if !backendClient.Configured() {
		logger.Warn("BACKEND_API_URL not provided; proxy routes answer 500 and role sync skips the backend")
	}

	profileService := service.NewProfileService(service.ProfileDependencies{
		Users:      userRepo,
		SyncStatus: syncStatus,
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    metrics,
	})
	roleService := service.NewRoleService(service.RoleDependencies{
		Identity:        provider,
		Users:           userRepo,
		Backend:         backendClient,
		SyncStatus:      syncStatus,
		Dispatcher:      dispatcher,
		Logger:          logger,
		Metrics:         metrics,
		AdvisoryTimeout: cfg.Backend.AdvisoryTimeout(),
	})
	authMiddleware := auth.NewAuthMiddleware(provider, revocations, logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	routes := httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"mirror": userRepo,
			"redis":  redis,
		}),
		Auth: handlers.NewAuthHandler(handlers.AuthHandlerDependencies{
			Profiles:    profileService,
			Roles:       roleService,
			Provider:    provider,
			Revocations: revocations,
			RevokeTTL:   cfg.Identity.AccessTokenTTL(),
			Logger:      logger,
		}),
		Dinners:        handlers.NewDinnersHandler(backendClient, logger),
		AuthMiddleware: authMiddleware,
		Principals:     userRepo,
		Metrics:        metrics,
	}
	if devProvider != nil {
		routes.Identity = handlers.NewIdentityHandler(devProvider)
	}
	httptransport.RegisterRoutes(app, routes)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.ShutdownWithTimeout(10 * time.Second)
}

// buildIdentityProvider returns the provider the service verifies tokens with and, when
// no external provider is configured, the development provider to expose over HTTP.
func buildIdentityProvider(cfg *config.Config, dispatcher events.Dispatcher, logger *zap.Logger) (identity.Provider, identity.Provider) {
	idCfg := cfg.Identity
	if !idCfg.LocalProvider() {
		logger.Info("using external identity provider", zap.String("url", idCfg.ProviderURL))
		client := identity.NewGoTrueClient(idCfg.ProviderURL, idCfg.APIKey, nil)
		return identity.NewCachedProvider(client, idCfg.CacheSize, idCfg.CacheTTL()), nil
	}

	if !cfg.App.Development() {
		logger.Fatal("IDENTITY_PROVIDER_URL is required outside development")
	}
	logger.Warn("IDENTITY_PROVIDER_URL not provided; serving the development identity provider under /auth/v1")
	local := identity.NewLocalProvider(identity.LocalProviderOptions{
		Tokens:     auth.NewTokenManager(idCfg.JWTSecret, idCfg.AccessTokenTTL()),
		CodeTTL:    idCfg.OneTimeCodeTTL(),
		BcryptCost: idCfg.BcryptCost,
		Sender: func(ctx context.Context, email, code string, expiresAt time.Time) error {
			return dispatcher.Publish(ctx, events.New(events.EventOneTimeCodeIssued, email, events.OneTimeCodeIssuedPayload{
				Code:      code,
				ExpiresAt: expiresAt,
			}))
		},
	})
	cached := identity.NewCachedProvider(local, idCfg.CacheSize, idCfg.CacheTTL())
	return cached, cached
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
