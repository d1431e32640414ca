package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Rollup writes one business_metrics_daily row per day from the live
// subscription and organization tables.
type Rollup struct {
	repo *Repository
	now  func() time.Time
}

func NewRollup(repo *Repository) *Rollup {
	return &Rollup{repo: repo, now: time.Now}
}

// Run computes the record for the UTC day containing day and upserts it.
// Churn compares the oldest paid-organization count in the trailing 30
// days with the current count; ltv is ARPA divided by the monthly churn
// fraction and is 0 while churn is 0.
func (r *Rollup) Run(ctx context.Context, day time.Time) (*DailyRecord, error) {
	day = day.UTC()
	date := day.Format(dateLayout)

	totalUsers, err := r.repo.CountUsers(ctx)
	if err != nil {
		return nil, wrap("count users", err)
	}
	totalOrgs, paid, trial, err := r.repo.OrganizationCounts(ctx)
	if err != nil {
		return nil, wrap("count organizations", err)
	}
	plans, err := r.repo.RevenueByPlan(ctx)
	if err != nil {
		return nil, wrap("revenue by plan", err)
	}

	var mrr float64
	for _, p := range plans {
		mrr += p.MRR
	}

	from := day.Add(-churnWindow).Format(dateLayout)
	prevDay := day.AddDate(0, 0, -1).Format(dateLayout)
	history, err := r.repo.DailySeries(ctx, from, prevDay)
	if err != nil {
		return nil, wrap("paid series", err)
	}

	var churn float64
	if len(history) > 0 {
		churn = ChurnRate(history[0].PaidOrganizations, paid)
	}

	var ltv float64
	if churn > 0 && paid > 0 {
		arpa := mrr / float64(paid)
		ltv = arpa / (churn / 100)
	}

	rec := &DailyRecord{
		Date:               date,
		TotalUsers:         totalUsers,
		TotalOrganizations: totalOrgs,
		PaidOrganizations:  paid,
		TrialOrganizations: trial,
		MRR:                mrr,
		ARR:                mrr * 12,
		ChurnRate:          churn,
		LTV:                ltv,
		CreatedAt:          r.now().Unix(),
	}
	if err := r.repo.UpsertDaily(ctx, rec); err != nil {
		return nil, wrap("upsert", err)
	}

	stored, err := r.repo.GetDaily(ctx, date)
	if err != nil {
		return nil, wrap("reload", err)
	}

	log.Info().
		Str("date", date).
		Int64("paid_organizations", paid).
		Float64("mrr", mrr).
		Float64("churn_rate", churn).
		Msg("business metrics rolled up")
	return stored, nil
}

func wrap(step string, err error) error {
	return fmt.Errorf("rollup %s: %w", step, err)
}
