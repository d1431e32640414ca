package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// PrometheusSink records webhook, analytics and dashboard telemetry.
// All methods are non-blocking. Registration errors are logged but never
// propagated.
type PrometheusSink struct {
	// Webhook delivery
	deliveryAttemptsTotal *prometheus.CounterVec
	deliveryOutcomesTotal *prometheus.CounterVec
	webhookDuration       prometheus.Histogram
	retryAttemptsTotal    *prometheus.CounterVec

	// Analytics side channel
	analyticsBuffered prometheus.Gauge
	analyticsDropped  prometheus.Counter

	// Dashboard aggregation
	sourceFailuresTotal *prometheus.CounterVec
}

func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initDeliveryMetrics(reg)
	s.initAnalyticsMetrics(reg)
	s.initAggregatorMetrics(reg)
	return s
}

func (s *PrometheusSink) initDeliveryMetrics(reg prometheus.Registerer) {
	s.deliveryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worksphere_webhook_delivery_attempts_total",
		Help: "Total number of webhook HTTP attempts.",
	}, []string{"attempt", "status_class"})

	s.deliveryOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worksphere_webhook_delivery_outcomes_total",
		Help: "Total number of terminal delivery outcomes.",
	}, []string{"outcome"})

	s.webhookDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "worksphere_webhook_duration_seconds",
		Help:    "Webhook request latency in seconds.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	s.retryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worksphere_webhook_failures_total",
		Help: "Failed webhook attempts by whether a retry was scheduled.",
	}, []string{"retry_scheduled"})

	s.register(reg, s.deliveryAttemptsTotal, "worksphere_webhook_delivery_attempts_total")
	s.register(reg, s.deliveryOutcomesTotal, "worksphere_webhook_delivery_outcomes_total")
	s.register(reg, s.webhookDuration, "worksphere_webhook_duration_seconds")
	s.register(reg, s.retryAttemptsTotal, "worksphere_webhook_failures_total")
}

func (s *PrometheusSink) initAnalyticsMetrics(reg prometheus.Registerer) {
	s.analyticsBuffered = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "worksphere_analytics_buffered_events",
		Help: "Analytics events waiting to be written.",
	})
	s.analyticsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "worksphere_analytics_dropped_total",
		Help: "Analytics events dropped because the buffer was full.",
	})

	s.register(reg, s.analyticsBuffered, "worksphere_analytics_buffered_events")
	s.register(reg, s.analyticsDropped, "worksphere_analytics_dropped_total")
}

func (s *PrometheusSink) initAggregatorMetrics(reg prometheus.Registerer) {
	s.sourceFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "worksphere_dashboard_source_failures_total",
		Help: "Dashboard metric sources that failed during aggregation.",
	}, []string{"source"})

	s.register(reg, s.sourceFailuresTotal, "worksphere_dashboard_source_failures_total")
}

func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Warn().Err(err).Str("metric", name).Msg("failed to register metric")
	}
}

func (s *PrometheusSink) DeliveryAttemptCompleted(attempt int, statusClass string, duration time.Duration) {
	s.deliveryAttemptsTotal.WithLabelValues(strconv.Itoa(attempt), statusClass).Inc()
	s.webhookDuration.Observe(duration.Seconds())
}

func (s *PrometheusSink) DeliveryOutcome(outcome string) {
	s.deliveryOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (s *PrometheusSink) RetryAttempt(scheduled bool) {
	s.retryAttemptsTotal.WithLabelValues(strconv.FormatBool(scheduled)).Inc()
}

func (s *PrometheusSink) BufferSizeUpdate(size int) {
	s.analyticsBuffered.Set(float64(size))
}

func (s *PrometheusSink) EmitDropped() {
	s.analyticsDropped.Inc()
}

func (s *PrometheusSink) SourceFailed(source string) {
	s.sourceFailuresTotal.WithLabelValues(source).Inc()
}
