package metrics

import (
	"time"

	"worksphere/internal/pkg/errors"
)

type TimeRange string

const (
	RangeToday   TimeRange = "today"
	RangeWeek    TimeRange = "week"
	RangeMonth   TimeRange = "month"
	RangeQuarter TimeRange = "quarter"
)

// ParseTimeRange accepts one of today, week, month or quarter.
func ParseTimeRange(s string) (TimeRange, error) {
	switch r := TimeRange(s); r {
	case RangeToday, RangeWeek, RangeMonth, RangeQuarter:
		return r, nil
	default:
		return "", errors.NewFieldError("range", "must be one of: today week month quarter")
	}
}

// Start returns the beginning of the lookback window ending at now.
// Today starts at midnight UTC.
func (r TimeRange) Start(now time.Time) time.Time {
	now = now.UTC()
	switch r {
	case RangeToday:
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	case RangeWeek:
		return now.AddDate(0, 0, -7)
	case RangeMonth:
		return now.AddDate(0, 0, -30)
	default:
		return now.AddDate(0, 0, -90)
	}
}

type Overview struct {
	TotalUsers         int64   `json:"total_users"`
	ActiveUsers        int64   `json:"active_users"`
	TotalOrganizations int64   `json:"total_organizations"`
	PaidOrganizations  int64   `json:"paid_organizations"`
	TrialOrganizations int64   `json:"trial_organizations"`
	MRR                float64 `json:"mrr"`
	ARR                float64 `json:"arr"`
	ChurnRate          float64 `json:"churn_rate"`
	CAC                float64 `json:"cac"`
	LTV                float64 `json:"ltv"`
}

type DailyRevenue struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

type PlanRevenue struct {
	PlanID        string  `json:"plan_id"`
	Plan          string  `json:"plan"`
	Subscriptions int64   `json:"subscriptions"`
	MRR           float64 `json:"mrr"`
}

type Revenue struct {
	Daily  []DailyRevenue `json:"daily"`
	ByPlan []PlanRevenue  `json:"by_plan"`
}

type Usage struct {
	Messages     int64 `json:"messages"`
	Tasks        int64 `json:"tasks"`
	Documents    int64 `json:"documents"`
	StorageBytes int64 `json:"storage_bytes"`
}

type Performance struct {
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	UptimePercent  float64 `json:"uptime_percent"`
	ErrorRate      float64 `json:"error_rate"`
	ActiveSessions int64   `json:"active_sessions"`
}

// Snapshot is the dashboard view for one time range. DegradedSources
// names the sources whose fields were zeroed because their query failed.
type Snapshot struct {
	Range           TimeRange   `json:"range"`
	WindowStart     int64       `json:"window_start"`
	GeneratedAt     int64       `json:"generated_at"`
	Overview        Overview    `json:"overview"`
	Revenue         Revenue     `json:"revenue"`
	Usage           Usage       `json:"usage"`
	Performance     Performance `json:"performance"`
	DegradedSources []string    `json:"degraded_sources,omitempty"`

	Partial *errors.AggregationPartialFailure `json:"-"`
}

// DailyRecord is one row of business_metrics_daily.
type DailyRecord struct {
	Date               string  `json:"date"`
	TotalUsers         int64   `json:"total_users"`
	TotalOrganizations int64   `json:"total_organizations"`
	PaidOrganizations  int64   `json:"paid_organizations"`
	TrialOrganizations int64   `json:"trial_organizations"`
	MRR                float64 `json:"mrr"`
	ARR                float64 `json:"arr"`
	ChurnRate          float64 `json:"churn_rate"`
	CAC                float64 `json:"cac"`
	LTV                float64 `json:"ltv"`
	CreatedAt          int64   `json:"created_at"`
}

type HealthSample struct {
	AvgLatencyMs  float64
	UptimePercent float64
	ErrorRate     float64
	RecordedAt    int64
}

// ChurnRate is the percentage drop from start to end. Growth is never
// reported as negative churn, and an empty starting base yields 0.
func ChurnRate(start, end int64) float64 {
	if start <= 0 || end >= start {
		return 0
	}
	return float64(start-end) / float64(start) * 100
}

const dateLayout = "2006-01-02"
