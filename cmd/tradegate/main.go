package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/tradegate/tradegate/pkg/api"
	"github.com/tradegate/tradegate/pkg/audit"
	"github.com/tradegate/tradegate/pkg/auth"
	"github.com/tradegate/tradegate/pkg/catalog"
	"github.com/tradegate/tradegate/pkg/config"
	"github.com/tradegate/tradegate/pkg/db"
	"github.com/tradegate/tradegate/pkg/identity"
	"github.com/tradegate/tradegate/pkg/inquiry"
	"github.com/tradegate/tradegate/pkg/media"
	"github.com/tradegate/tradegate/pkg/middleware"
	"github.com/tradegate/tradegate/pkg/observability"
	"github.com/tradegate/tradegate/pkg/orgs"
	"github.com/tradegate/tradegate/pkg/rbac"
	"github.com/tradegate/tradegate/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tradegate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Observability.ParsedLogLevel(), os.Stdout)
	logger.Infof("Starting TradeGate admin API on port %s", cfg.Server.Port)

	ctx := context.Background()

	// Database: primary plus optional read replicas
	var replicas []string
	if cfg.Database.ReplicaURLs != "" {
		replicas = strings.Split(cfg.Database.ReplicaURLs, ",")
	}
	conns, err := db.NewConnectionManager(db.ConnectionConfig{
		PrimaryURL:   cfg.Database.URL,
		ReplicaURLs:  replicas,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		ConnLifetime: cfg.Database.ConnLifetime,
	}, logger)
	if err != nil {
		return err
	}
	defer conns.Close()

	// Redis is optional; without it rate limiting falls back to in-process
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable, continuing without it")
		}
	}

	backend, err := storage.NewBackend(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize blob storage: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	auditLog, err := audit.NewDBLogger(conns.Primary())
	if err != nil {
		return fmt.Errorf("failed to initialize audit log: %w", err)
	}

	authService := auth.NewService(conns.Primary(), cfg.Auth.SessionTTL, cfg.Auth.BcryptCost, metrics)

	var oidcProvider *auth.OIDCProvider
	if cfg.Auth.OIDCIssuer != "" {
		oidcProvider, err = auth.NewOIDCProvider(ctx, auth.OIDCConfig{
			IssuerURL:    cfg.Auth.OIDCIssuer,
			ClientID:     cfg.Auth.OIDCClientID,
			ClientSecret: cfg.Auth.OIDCClientKey,
			RedirectURL:  cfg.Auth.OIDCRedirectURL,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize OIDC provider: %w", err)
		}
	}

	var rateLimit func(http.Handler) http.Handler
	if cfg.RateLimit.Enabled {
		if redisClient != nil {
			rateLimit = middleware.NewDistributedRateLimiter(
				redisClient, cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window).Middleware()
		} else {
			rateLimit = middleware.NewRateLimiter(
				cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window).Middleware()
		}
	}

	server := api.NewServer(api.Deps{
		Logger:    logger,
		Metrics:   metrics,
		Resolver:  identity.NewResolver(conns.Primary()),
		Auth:      authService,
		OIDC:      oidcProvider,
		Orgs:      orgs.NewStore(conns.Primary()),
		Roles:     rbac.NewStore(conns.Primary()),
		Catalog:   catalog.NewStore(conns.Primary(), conns.Replica()),
		Inquiry:   inquiry.NewStore(conns.Primary()),
		Media:     media.NewService(media.NewStore(conns.Primary()), backend, cfg.Storage.SignedURLTTL),
		Audit:     auditLog,
		AuditLog:  auditLog,
		RateLimit: rateLimit,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics live on a separate port so probes bypass auth and
	// rate limiting
	healthChecker := observability.NewHealthChecker(conns.Primary(), redisClient)
	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/healthz", healthChecker.Liveness)
	healthMux.HandleFunc("/readyz", healthChecker.Readiness)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}

	var group errgroup.Group
	group.Go(func() error {
		logger.Infof("API server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		return shutdown.WaitForShutdown()
	})

	if err := group.Wait(); err != nil {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}
