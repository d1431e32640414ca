package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"worksphere/internal/api"
	"worksphere/internal/api/handlers"
	"worksphere/internal/api/middleware"
	"worksphere/internal/engine/admin"
	"worksphere/internal/engine/analytics"
	"worksphere/internal/engine/metrics"
	"worksphere/internal/engine/webhooks"
	"worksphere/internal/pkg/logger"
	"worksphere/internal/pkg/validator"
	"worksphere/internal/platform/audit"
	"worksphere/internal/platform/auth"
	"worksphere/internal/platform/config"
	"worksphere/internal/platform/database"
	"worksphere/internal/platform/repositories"
	"worksphere/internal/platform/telemetry"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(cfg.Logging)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Server exited with error")
	}
	log.Info().Msg("Server exited properly")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	// Telemetry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sink := telemetry.NewPrometheusSink(registry)

	// Analytics
	rdb := analytics.NewRedisClient(cfg.Redis)
	var analyticsSink analytics.Sink = analytics.LogSink{}
	if rdb != nil {
		defer rdb.Close()
		analyticsSink = analytics.NewRedisSink(rdb)
	}
	emitter := analytics.NewEmitter(analyticsSink, cfg.Redis.BufferSize, sink)

	// Repositories
	orgRepo := repositories.NewOrganizationRepository(db)
	userRepo := repositories.NewUserRepository(db)
	endpointRepo := repositories.NewWebhookRepository(db)
	eventRepo := repositories.NewEventRepository(db)
	attemptRepo := repositories.NewDeliveryRepository(db)

	// Services
	v := validator.New()
	tokenSvc := auth.NewTokenService(cfg.JWT)
	aggregator := metrics.NewAggregator(metrics.NewRepository(db), sink)
	if cfg.Metrics.DashboardCacheTTL > 0 {
		aggregator.WithCache(metrics.NewSnapshotCache(cfg.Metrics.DashboardCacheTTL))
	}
	tracker := webhooks.NewTracker(endpointRepo, eventRepo, attemptRepo, cfg.Webhooks, webhooks.WithMetrics(sink))
	facade := admin.NewFacade(admin.Options{
		DB:            db,
		Registry:      webhooks.NewRegistry(endpointRepo, v, cfg.Webhooks),
		Dispatcher:    webhooks.NewDispatcher(endpointRepo, eventRepo, tracker, cfg.Webhooks.WorkerCount),
		Tracker:       tracker,
		Aggregator:    aggregator,
		Alerts:        repositories.NewAlertRepository(db),
		Flags:         repositories.NewFeatureFlagRepository(db),
		Announcements: repositories.NewAnnouncementRepository(db),
		Audit:         audit.NewLogger(db),
		Validator:     v,
		Emitter:       emitter,
	})

	limiter := middleware.NewRateLimiter(cfg.RateLimit)
	defer limiter.Stop()
	clientIP, err := middleware.NewClientIP(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("server.trusted_proxies: %w", err)
	}

	deps := &api.Dependencies{
		AuthHandler:      handlers.NewAuthHandler(userRepo, orgRepo, tokenSvc),
		OrgHandler:       handlers.NewOrgHandler(orgRepo, userRepo),
		WebhookHandler:   handlers.NewWebhookHandler(facade),
		EventHandler:     handlers.NewEventHandler(facade),
		AdminHandler:     handlers.NewAdminHandler(facade),
		AuditHandler:     handlers.NewAuditHandler(facade),
		HealthHandler:    handlers.NewHealthHandler(db, rdb),
		MetricsPath:      cfg.Metrics.Path,
		AuthMiddleware:   middleware.NewAuthMiddleware(tokenSvc),
		TenantMiddleware: middleware.NewTenantMiddleware(orgRepo),
		RateLimiter:      limiter,
		ClientIP:         clientIP,
	}
	if cfg.Metrics.Enabled {
		deps.MetricsHandler = handlers.NewMetricsHandler(registry)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return emitter.Run(gctx)
	})

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
