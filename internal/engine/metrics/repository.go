package metrics

import (
	"context"
	"database/sql"
	"time"
)

// Repository reads the collaborator tables the dashboard summarises and
// writes the daily rollup.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const dailyColumns = `date, total_users, total_organizations, paid_organizations, trial_organizations,
	mrr, arr, churn_rate, cac, ltv, created_at`

// LatestDaily returns the most recent daily record, or nil if none exist.
func (r *Repository) LatestDaily(ctx context.Context) (*DailyRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+dailyColumns+` FROM business_metrics_daily ORDER BY date DESC LIMIT 1`)
	rec, err := scanDaily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (r *Repository) GetDaily(ctx context.Context, date string) (*DailyRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+dailyColumns+` FROM business_metrics_daily WHERE date = ?`, date)
	rec, err := scanDaily(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// DailySeries returns the records with from <= date <= to, oldest first.
func (r *Repository) DailySeries(ctx context.Context, from, to string) ([]*DailyRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+dailyColumns+` FROM business_metrics_daily
		WHERE date >= ? AND date <= ? ORDER BY date ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var series []*DailyRecord
	for rows.Next() {
		rec, err := scanDaily(rows)
		if err != nil {
			return nil, err
		}
		series = append(series, rec)
	}
	return series, rows.Err()
}

// UpsertDaily writes rec. An existing cac value is kept because it is
// supplied by the marketing pipeline, not computed here.
func (r *Repository) UpsertDaily(ctx context.Context, rec *DailyRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO business_metrics_daily (`+dailyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_users = excluded.total_users,
			total_organizations = excluded.total_organizations,
			paid_organizations = excluded.paid_organizations,
			trial_organizations = excluded.trial_organizations,
			mrr = excluded.mrr,
			arr = excluded.arr,
			churn_rate = excluded.churn_rate,
			ltv = excluded.ltv
	`, rec.Date, rec.TotalUsers, rec.TotalOrganizations, rec.PaidOrganizations, rec.TrialOrganizations,
		rec.MRR, rec.ARR, rec.ChurnRate, rec.CAC, rec.LTV, rec.CreatedAt)
	return err
}

func (r *Repository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE deleted_at IS NULL`).Scan(&n)
	return n, err
}

func (r *Repository) CountActiveUsers(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM users WHERE deleted_at IS NULL AND last_active_at >= ?
	`, since.Unix()).Scan(&n)
	return n, err
}

// OrganizationCounts returns total organizations and the number with an
// active and a trialing subscription.
func (r *Repository) OrganizationCounts(ctx context.Context) (total, paid, trial int64, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM organizations WHERE deleted_at IS NULL),
			(SELECT COUNT(DISTINCT organization_id) FROM subscriptions WHERE status = 'active'),
			(SELECT COUNT(DISTINCT organization_id) FROM subscriptions WHERE status = 'trialing')
	`).Scan(&total, &paid, &trial)
	return total, paid, trial, err
}

// RevenueByPlan groups active subscriptions by plan. Yearly plans count
// towards MRR at a twelfth of their yearly price.
func (r *Repository) RevenueByPlan(ctx context.Context) ([]PlanRevenue, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.name, COUNT(s.id),
			COALESCE(SUM(CASE WHEN s.billing_cycle = 'yearly' THEN p.price_yearly / 12.0 ELSE p.price_monthly END), 0)
		FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.status = 'active'
		GROUP BY p.id, p.name
		ORDER BY p.name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plans := []PlanRevenue{}
	for rows.Next() {
		var p PlanRevenue
		if err := rows.Scan(&p.PlanID, &p.Plan, &p.Subscriptions, &p.MRR); err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (r *Repository) DailyRevenue(ctx context.Context, since time.Time) ([]DailyRevenue, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT strftime('%Y-%m-%d', paid_at, 'unixepoch') AS day, COALESCE(SUM(amount), 0)
		FROM invoices
		WHERE status = 'paid' AND paid_at >= ?
		GROUP BY day
		ORDER BY day ASC
	`, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	series := []DailyRevenue{}
	for rows.Next() {
		var d DailyRevenue
		if err := rows.Scan(&d.Date, &d.Amount); err != nil {
			return nil, err
		}
		series = append(series, d)
	}
	return series, rows.Err()
}

// UsageCounts counts records created since the window start. Storage is
// the total over all documents.
func (r *Repository) UsageCounts(ctx context.Context, since time.Time) (Usage, error) {
	var u Usage
	ts := since.Unix()
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM messages WHERE created_at >= ?),
			(SELECT COUNT(*) FROM tasks WHERE created_at >= ?),
			(SELECT COUNT(*) FROM documents WHERE created_at >= ?),
			(SELECT COALESCE(SUM(size_bytes), 0) FROM documents)
	`, ts, ts, ts).Scan(&u.Messages, &u.Tasks, &u.Documents, &u.StorageBytes)
	return u, err
}

// LatestHealth returns the newest system health sample, or nil.
func (r *Repository) LatestHealth(ctx context.Context) (*HealthSample, error) {
	var h HealthSample
	err := r.db.QueryRowContext(ctx, `
		SELECT avg_latency_ms, uptime_percent, error_rate, recorded_at
		FROM system_health_samples ORDER BY recorded_at DESC LIMIT 1
	`).Scan(&h.AvgLatencyMs, &h.UptimePercent, &h.ErrorRate, &h.RecordedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *Repository) CountActiveSessions(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_sessions WHERE last_seen_at >= ?`, since.Unix()).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDaily(s scanner) (*DailyRecord, error) {
	var rec DailyRecord
	err := s.Scan(&rec.Date, &rec.TotalUsers, &rec.TotalOrganizations, &rec.PaidOrganizations, &rec.TrialOrganizations,
		&rec.MRR, &rec.ARR, &rec.ChurnRate, &rec.CAC, &rec.LTV, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
