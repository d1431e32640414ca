package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"worksphere/internal/pkg/errors"
)

// Source is the read side the aggregator draws on. *Repository implements it.
type Source interface {
	LatestDaily(ctx context.Context) (*DailyRecord, error)
	DailySeries(ctx context.Context, from, to string) ([]*DailyRecord, error)
	CountActiveUsers(ctx context.Context, since time.Time) (int64, error)
	DailyRevenue(ctx context.Context, since time.Time) ([]DailyRevenue, error)
	RevenueByPlan(ctx context.Context) ([]PlanRevenue, error)
	UsageCounts(ctx context.Context, since time.Time) (Usage, error)
	LatestHealth(ctx context.Context) (*HealthSample, error)
	CountActiveSessions(ctx context.Context, since time.Time) (int64, error)
}

// FailureRecorder is notified of every source that fails during aggregation.
type FailureRecorder interface {
	SourceFailed(source string)
}

const (
	SourceBusinessMetrics = "business_metrics"
	SourceActiveUsers     = "active_users"
	SourceChurn           = "churn"
	SourceDailyRevenue    = "revenue_daily"
	SourceRevenueByPlan   = "revenue_by_plan"
	SourceUsage           = "usage"
	SourcePerformance     = "performance"
)

// churnWindow is the trailing period the paid-organization series spans.
const churnWindow = 30 * 24 * time.Hour

// sessionWindow bounds how recently a session must have been seen to count as active.
const sessionWindow = 15 * time.Minute

type Aggregator struct {
	source   Source
	recorder FailureRecorder
	cache    *SnapshotCache
	now      func() time.Time
}

func NewAggregator(source Source, recorder FailureRecorder) *Aggregator {
	return &Aggregator{source: source, recorder: recorder, now: time.Now}
}

// WithCache serves repeated requests for a range from c.
func (a *Aggregator) WithCache(c *SnapshotCache) *Aggregator {
	a.cache = c
	return a
}

type sourceResult struct {
	name string
	err  error
}

// GetDashboardMetrics builds a snapshot for r. The sources are queried
// concurrently and each writes only its own section. A failing source
// leaves its section zeroed and is reported in the snapshot's
// DegradedSources; the call itself only fails for an unknown range.
func (a *Aggregator) GetDashboardMetrics(ctx context.Context, r TimeRange) (*Snapshot, error) {
	if _, err := ParseTimeRange(string(r)); err != nil {
		return nil, err
	}

	if a.cache != nil {
		if snap, ok := a.cache.Get(r); ok {
			return snap, nil
		}
	}

	snap := a.collect(ctx, r)
	if a.cache != nil {
		a.cache.Set(r, snap)
	}
	return snap, nil
}

func (a *Aggregator) collect(ctx context.Context, r TimeRange) *Snapshot {
	now := a.now().UTC()
	start := r.Start(now)

	var (
		latest     *DailyRecord
		series     []*DailyRecord
		active     int64
		daily      []DailyRevenue
		byPlan     []PlanRevenue
		usage      Usage
		health     *HealthSample
		sessions   int64
		healthErr  error
		sessionErr error
	)

	results := make([]sourceResult, 7)
	var g errgroup.Group
	run := func(i int, name string, fn func() error) {
		g.Go(func() error {
			results[i] = sourceResult{name: name, err: fn()}
			return nil
		})
	}

	run(0, SourceBusinessMetrics, func() (err error) {
		latest, err = a.source.LatestDaily(ctx)
		return err
	})
	run(1, SourceActiveUsers, func() (err error) {
		active, err = a.source.CountActiveUsers(ctx, start)
		return err
	})
	run(2, SourceChurn, func() (err error) {
		series, err = a.source.DailySeries(ctx, now.Add(-churnWindow).Format(dateLayout), now.Format(dateLayout))
		return err
	})
	run(3, SourceDailyRevenue, func() (err error) {
		daily, err = a.source.DailyRevenue(ctx, start)
		return err
	})
	run(4, SourceRevenueByPlan, func() (err error) {
		byPlan, err = a.source.RevenueByPlan(ctx)
		return err
	})
	run(5, SourceUsage, func() (err error) {
		usage, err = a.source.UsageCounts(ctx, start)
		return err
	})
	run(6, SourcePerformance, func() error {
		health, healthErr = a.source.LatestHealth(ctx)
		sessions, sessionErr = a.source.CountActiveSessions(ctx, now.Add(-sessionWindow))
		if healthErr != nil {
			return healthErr
		}
		return sessionErr
	})
	g.Wait()

	snap := &Snapshot{
		Range:       r,
		WindowStart: start.Unix(),
		GeneratedAt: now.Unix(),
		Revenue:     Revenue{Daily: []DailyRevenue{}, ByPlan: []PlanRevenue{}},
	}

	failed := map[string]error{}
	for _, res := range results {
		if res.err != nil {
			failed[res.name] = res.err
		}
	}

	if failed[SourceBusinessMetrics] == nil && latest != nil {
		snap.Overview.TotalUsers = latest.TotalUsers
		snap.Overview.TotalOrganizations = latest.TotalOrganizations
		snap.Overview.PaidOrganizations = latest.PaidOrganizations
		snap.Overview.TrialOrganizations = latest.TrialOrganizations
		snap.Overview.MRR = latest.MRR
		snap.Overview.ARR = latest.ARR
		snap.Overview.CAC = latest.CAC
		snap.Overview.LTV = latest.LTV
	}
	if failed[SourceActiveUsers] == nil {
		snap.Overview.ActiveUsers = active
	}
	if failed[SourceChurn] == nil && len(series) > 0 {
		snap.Overview.ChurnRate = ChurnRate(series[0].PaidOrganizations, series[len(series)-1].PaidOrganizations)
	}
	if failed[SourceDailyRevenue] == nil && daily != nil {
		snap.Revenue.Daily = daily
	}
	if failed[SourceRevenueByPlan] == nil && byPlan != nil {
		snap.Revenue.ByPlan = byPlan
	}
	if failed[SourceUsage] == nil {
		snap.Usage = usage
	}
	if healthErr == nil && health != nil {
		snap.Performance.AvgLatencyMs = health.AvgLatencyMs
		snap.Performance.UptimePercent = health.UptimePercent
		snap.Performance.ErrorRate = health.ErrorRate
	}
	if sessionErr == nil {
		snap.Performance.ActiveSessions = sessions
	}

	if len(failed) > 0 {
		partial := &errors.AggregationPartialFailure{Sources: failed}
		snap.Partial = partial
		snap.DegradedSources = partial.SourceNames()
		for name, err := range failed {
			if a.recorder != nil {
				a.recorder.SourceFailed(name)
			}
			log.Warn().Err(err).Str("source", name).Str("range", string(r)).Msg("dashboard metric source failed")
		}
	}

	return snap
}
