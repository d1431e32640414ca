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

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"worksphere/internal/engine/metrics"
	"worksphere/internal/engine/webhooks"
	"worksphere/internal/pkg/logger"
	"worksphere/internal/platform/config"
	"worksphere/internal/platform/database"
	"worksphere/internal/platform/repositories"
	"worksphere/internal/platform/telemetry"
	"worksphere/internal/workers"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(cfg.Logging)
	log.Info().Msg("Starting WorkSphere background workers...")

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Worker error")
	}
	log.Info().Msg("Worker exited properly")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	registry := prometheus.NewRegistry()
	sink := telemetry.NewPrometheusSink(registry)

	tracker := webhooks.NewTracker(
		repositories.NewWebhookRepository(db),
		repositories.NewEventRepository(db),
		repositories.NewDeliveryRepository(db),
		cfg.Webhooks,
		webhooks.WithMetrics(sink),
	)
	jobs := workers.NewJobs(tracker, metrics.NewRollup(metrics.NewRepository(db)), cfg.Worker)

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	if err := jobs.Schedule(ctx, scheduler); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		return scheduler.Shutdown()
	})

	if cfg.Worker.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.Worker.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("Worker metrics listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
