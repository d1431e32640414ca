package workers

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"worksphere/internal/engine/metrics"
	"worksphere/internal/engine/webhooks"
	"worksphere/internal/platform/config"
)

// Jobs holds the periodic maintenance work run by the worker process.
type Jobs struct {
	tracker *webhooks.Tracker
	rollup  *metrics.Rollup
	cfg     config.WorkerConfig
	now     func() time.Time
}

func NewJobs(tracker *webhooks.Tracker, rollup *metrics.Rollup, cfg config.WorkerConfig) *Jobs {
	return &Jobs{tracker: tracker, rollup: rollup, cfg: cfg, now: time.Now}
}

// RetryWebhooks sends every delivery whose retry time has passed.
func (j *Jobs) RetryWebhooks(ctx context.Context) error {
	n, err := j.tracker.ProcessDue(ctx, j.now(), j.cfg.RetryBatchSize)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info().Int("count", n).Msg("Worker: retried webhook deliveries")
	}
	return nil
}

// AggregateDailyMetrics refreshes today's business metrics row.
func (j *Jobs) AggregateDailyMetrics(ctx context.Context) error {
	rec, err := j.rollup.Run(ctx, j.now().UTC())
	if err != nil {
		return err
	}
	log.Info().Str("date", rec.Date).Float64("mrr", rec.MRR).Msg("Worker: aggregated daily metrics")
	return nil
}

// PruneDeliveries drops terminal delivery attempts older than the
// configured retention.
func (j *Jobs) PruneDeliveries(ctx context.Context) error {
	retention := j.cfg.AttemptRetention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	n, err := j.tracker.Prune(ctx, j.now().Add(-retention))
	if err != nil {
		return err
	}
	log.Info().Int64("count", n).Msg("Worker: pruned delivery attempts")
	return nil
}

// Schedule registers the jobs on s. A job still running when its next
// tick arrives is skipped rather than run twice.
func (j *Jobs) Schedule(ctx context.Context, s gocron.Scheduler) error {
	jobs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context) error
	}{
		{"webhook_retry", orDefault(j.cfg.RetryInterval, 15*time.Second), j.RetryWebhooks},
		{"metrics_rollup", orDefault(j.cfg.RollupInterval, time.Hour), j.AggregateDailyMetrics},
		{"delivery_prune", 24 * time.Hour, j.PruneDeliveries},
	}

	for _, job := range jobs {
		run := job.run
		name := job.name
		_, err := s.NewJob(
			gocron.DurationJob(job.interval),
			gocron.NewTask(func() {
				if err := run(ctx); err != nil {
					log.Error().Err(err).Str("job", name).Msg("Worker job failed")
				}
			}),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
