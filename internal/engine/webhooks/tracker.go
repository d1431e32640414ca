package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"worksphere/internal/pkg/errors"
	"worksphere/internal/platform/config"
	"worksphere/internal/platform/models"
	"worksphere/internal/platform/repositories"
)

const (
	HeaderEvent     = "X-WorkSphere-Event"
	HeaderDelivery  = "X-WorkSphere-Delivery"
	HeaderTimestamp = "X-WorkSphere-Timestamp"
	HeaderSignature = "X-WorkSphere-Signature"
)

const (
	persistTimeout = 5 * time.Second
	requeueDelay   = time.Minute
)

// OutcomeSkipped is reported when an endpoint was due a delivery but no
// attempt could be created for it.
const OutcomeSkipped = "skipped"

// MetricsSink receives delivery telemetry. Implementations must not block.
type MetricsSink interface {
	DeliveryAttemptCompleted(attempt int, statusClass string, duration time.Duration)
	DeliveryOutcome(outcome string)
	RetryAttempt(scheduled bool)
}

type nopMetrics struct{}

func (nopMetrics) DeliveryAttemptCompleted(int, string, time.Duration) {}
func (nopMetrics) DeliveryOutcome(string)                              {}
func (nopMetrics) RetryAttempt(bool)                                   {}

// Payload is the JSON body POSTed to endpoints.
type Payload struct {
	ID             string          `json:"id"`
	EventType      string          `json:"event_type"`
	OrganizationID string          `json:"organization_id"`
	Payload        json.RawMessage `json:"payload"`
	Timestamp      string          `json:"timestamp"`
}

// Tracker owns the lifecycle of delivery attempts: it sends, records the
// outcome of every HTTP attempt and reschedules failures.
type Tracker struct {
	endpoints *repositories.WebhookRepository
	events    *repositories.EventRepository
	attempts  *repositories.DeliveryRepository
	sender    Sender
	metrics   MetricsSink

	timeout     time.Duration
	userAgent   string
	workerCount int
	now         func() time.Time
}

type TrackerOption func(*Tracker)

func WithSender(s Sender) TrackerOption {
	return func(t *Tracker) { t.sender = s }
}

func WithMetrics(m MetricsSink) TrackerOption {
	return func(t *Tracker) {
		if m != nil {
			t.metrics = m
		}
	}
}

func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(
	endpoints *repositories.WebhookRepository,
	events *repositories.EventRepository,
	attempts *repositories.DeliveryRepository,
	cfg config.WebhooksConfig,
	opts ...TrackerOption,
) *Tracker {
	t := &Tracker{
		endpoints:   endpoints,
		events:      events,
		attempts:    attempts,
		sender:      NewHTTPSender(),
		metrics:     nopMetrics{},
		timeout:     cfg.Timeout,
		userAgent:   cfg.UserAgent,
		workerCount: cfg.WorkerCount,
		now:         time.Now,
	}
	if t.userAgent == "" {
		t.userAgent = "WorkSphere-Webhooks/1.0"
	}
	if t.workerCount <= 0 {
		t.workerCount = 4
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Begin persists a pending attempt for endpoint and event.
func (t *Tracker) Begin(ctx context.Context, endpoint *models.WebhookEndpoint, event *models.DomainEvent, attemptCount int) (*models.DeliveryAttempt, error) {
	attempt := &models.DeliveryAttempt{
		ID:             "dlv_" + uuid.New().String(),
		OrganizationID: endpoint.OrganizationID,
		EndpointID:     endpoint.ID,
		EventID:        event.ID,
		EventType:      event.Type,
		Status:         models.DeliveryPending,
		AttemptCount:   attemptCount,
		CreatedAt:      t.now().Unix(),
	}
	if err := t.attempts.Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("create delivery attempt: %w", err)
	}
	return attempt, nil
}

// Send performs one HTTP attempt and records its outcome on attempt and on
// the endpoint. Delivery failures are recorded, never returned; the
// returned attempt reflects the stored state.
func (t *Tracker) Send(ctx context.Context, endpoint *models.WebhookEndpoint, event *models.DomainEvent, attempt *models.DeliveryAttempt) *models.DeliveryAttempt {
	logger := log.With().
		Str("org_id", endpoint.OrganizationID).
		Str("endpoint_id", endpoint.ID).
		Str("attempt_id", attempt.ID).
		Str("event_type", event.Type).
		Int("attempt", attempt.AttemptCount).
		Logger()

	now := t.now()
	body, err := t.buildBody(event, now)
	if err != nil {
		t.fail(ctx, endpoint, attempt, errors.NewValidationError("payload: "+err.Error()), now, false)
		logger.Error().Err(err).Msg("failed to encode webhook payload")
		return attempt
	}

	result := t.sender.Send(ctx, Request{
		URL:     endpoint.URL,
		Headers: t.headers(endpoint, event, attempt, body, now),
		Body:    body,
		Timeout: t.timeout,
	})
	attempt.DurationMs = result.Duration.Milliseconds()
	t.metrics.DeliveryAttemptCompleted(attempt.AttemptCount, statusClass(result.StatusCode), result.Duration)

	finished := t.now()
	if result.Err == nil && result.StatusCode >= 200 && result.StatusCode < 300 {
		code := result.StatusCode
		delivered := finished.Unix()
		attempt.Status = models.DeliveryDelivered
		attempt.ResponseStatus = &code
		attempt.DeliveredAt = &delivered
		attempt.ErrorMessage = ""
		attempt.NextAttemptAt = nil

		pctx, cancel := persistCtx(ctx)
		defer cancel()
		if err := t.attempts.Complete(pctx, attempt); err != nil {
			logger.Error().Err(err).Msg("failed to record delivery")
		}
		if err := t.endpoints.RecordOutcome(pctx, endpoint.ID, models.DeliveryDelivered, "", delivered); err != nil {
			logger.Error().Err(err).Msg("failed to update endpoint status")
		}
		t.metrics.DeliveryOutcome(models.DeliveryDelivered)
		logger.Info().Int("status", code).Int64("duration_ms", attempt.DurationMs).Msg("webhook delivered")
		return attempt
	}

	deliveryErr := &errors.DeliveryError{StatusCode: result.StatusCode, Err: result.Err}
	if result.StatusCode != 0 {
		code := result.StatusCode
		attempt.ResponseStatus = &code
	}
	retryable := event.Type != models.TestEventType && attempt.AttemptCount <= endpoint.RetryPolicy.MaxRetries
	t.fail(ctx, endpoint, attempt, deliveryErr, finished, retryable)
	logger.Warn().Err(deliveryErr).Str("status", attempt.Status).Msg("webhook delivery failed")
	return attempt
}

func (t *Tracker) fail(ctx context.Context, endpoint *models.WebhookEndpoint, attempt *models.DeliveryAttempt, cause error, at time.Time, retryable bool) {
	attempt.ErrorMessage = cause.Error()
	if retryable {
		next := at.Add(time.Duration(endpoint.RetryPolicy.RetryDelaySeconds) * time.Second).Unix()
		attempt.Status = models.DeliveryRetrying
		attempt.NextAttemptAt = &next
	} else {
		attempt.Status = models.DeliveryFailed
		attempt.NextAttemptAt = nil
	}

	pctx, cancel := persistCtx(ctx)
	defer cancel()
	if err := t.attempts.Complete(pctx, attempt); err != nil {
		log.Error().Err(err).Str("attempt_id", attempt.ID).Msg("failed to record delivery failure")
	}
	if err := t.endpoints.RecordOutcome(pctx, endpoint.ID, attempt.Status, attempt.ErrorMessage, at.Unix()); err != nil {
		log.Error().Err(err).Str("endpoint_id", endpoint.ID).Msg("failed to update endpoint status")
	}

	t.metrics.RetryAttempt(retryable)
	if !retryable {
		t.metrics.DeliveryOutcome(models.DeliveryFailed)
	}
}

// persistCtx detaches ctx from cancellation so an outcome observed on the
// wire is stored even after the caller has gone away.
func persistCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

func (t *Tracker) buildBody(event *models.DomainEvent, now time.Time) ([]byte, error) {
	payload := event.Payload
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	return json.Marshal(Payload{
		ID:             event.ID,
		EventType:      event.Type,
		OrganizationID: event.OrganizationID,
		Payload:        payload,
		Timestamp:      now.UTC().Format(time.RFC3339),
	})
}

// headers applies the endpoint's custom headers first so the standard
// headers, the signature included, always win.
func (t *Tracker) headers(endpoint *models.WebhookEndpoint, event *models.DomainEvent, attempt *models.DeliveryAttempt, body []byte, now time.Time) http.Header {
	h := http.Header{}
	for k, v := range endpoint.Headers {
		h.Set(k, v)
	}
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", t.userAgent)
	h.Set(HeaderEvent, event.Type)
	h.Set(HeaderDelivery, attempt.ID)
	h.Set(HeaderTimestamp, strconv.FormatInt(now.Unix(), 10))
	h.Set(HeaderSignature, SignatureHeader(endpoint.Secret, body))
	return h
}

// Test sends a synthetic test.event to endpoint. The attempt is never retried.
func (t *Tracker) Test(ctx context.Context, endpoint *models.WebhookEndpoint) (*models.DeliveryAttempt, error) {
	event, attempt, err := t.BeginTest(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return t.Send(ctx, endpoint, event, attempt), nil
}

// BeginTest stores a test.event for endpoint and its pending attempt
// without sending it.
func (t *Tracker) BeginTest(ctx context.Context, endpoint *models.WebhookEndpoint) (*models.DomainEvent, *models.DeliveryAttempt, error) {
	payload, err := json.Marshal(map[string]string{
		"message":     "Test webhook from WorkSphere",
		"endpoint_id": endpoint.ID,
	})
	if err != nil {
		return nil, nil, err
	}

	event := &models.DomainEvent{
		ID:             "evt_" + uuid.New().String(),
		OrganizationID: endpoint.OrganizationID,
		Type:           models.TestEventType,
		Payload:        payload,
		CreatedAt:      t.now().Unix(),
	}
	if err := t.events.Append(ctx, event); err != nil {
		return nil, nil, fmt.Errorf("store test event: %w", err)
	}

	attempt, err := t.Begin(ctx, endpoint, event, 1)
	if err != nil {
		return nil, nil, err
	}
	return event, attempt, nil
}

// ProcessDue claims retrying attempts due at now and sends the next attempt
// for each. It returns the number of attempts sent. Attempts claimed before
// a claim error are still processed.
func (t *Tracker) ProcessDue(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	due, claimErr := t.attempts.ClaimDue(ctx, now.Unix(), limit)
	if claimErr != nil {
		claimErr = fmt.Errorf("claim due attempts: %w", claimErr)
		if len(due) == 0 {
			return 0, claimErr
		}
	}

	sent := make([]bool, len(due))
	var g errgroup.Group
	g.SetLimit(t.workerCount)
	for i, prev := range due {
		i, prev := i, prev
		g.Go(func() error {
			sent[i] = t.retry(ctx, prev)
			return nil
		})
	}
	g.Wait()

	count := 0
	for _, ok := range sent {
		if ok {
			count++
		}
	}
	return count, claimErr
}

// retry sends the attempt after prev. A claimed attempt always leaves here
// either requeued, abandoned or superseded by a new attempt.
func (t *Tracker) retry(ctx context.Context, prev *models.DeliveryAttempt) bool {
	logger := log.With().Str("attempt_id", prev.ID).Str("endpoint_id", prev.EndpointID).Logger()

	endpoint, err := t.endpoints.GetByID(ctx, prev.OrganizationID, prev.EndpointID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load endpoint for retry")
		t.requeue(ctx, prev, requeueDelay)
		return false
	}
	if endpoint == nil || !endpoint.Active {
		t.abandon(ctx, prev, "endpoint inactive")
		return false
	}
	if prev.AttemptCount+1 > endpoint.RetryPolicy.MaxRetries+1 {
		t.abandon(ctx, prev, "retry limit lowered")
		return false
	}

	delay := time.Duration(endpoint.RetryPolicy.RetryDelaySeconds) * time.Second
	event, err := t.events.GetByID(ctx, prev.EventID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load event for retry")
		t.requeue(ctx, prev, delay)
		return false
	}
	if event == nil {
		t.abandon(ctx, prev, "event no longer available")
		return false
	}

	if ctx.Err() != nil {
		t.requeue(ctx, prev, delay)
		return false
	}
	next, err := t.Begin(ctx, endpoint, event, prev.AttemptCount+1)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create retry attempt")
		t.requeue(ctx, prev, delay)
		return false
	}
	t.Send(ctx, endpoint, event, next)
	return true
}

// requeue makes a claimed attempt due again after delay.
func (t *Tracker) requeue(ctx context.Context, prev *models.DeliveryAttempt, delay time.Duration) {
	if delay <= 0 {
		delay = requeueDelay
	}
	next := t.now().Add(delay).Unix()

	pctx, cancel := persistCtx(ctx)
	defer cancel()
	if _, err := t.attempts.Requeue(pctx, prev.ID, next); err != nil {
		log.Error().Err(err).Str("attempt_id", prev.ID).Msg("failed to requeue retry")
		return
	}
	prev.NextAttemptAt = &next
	log.Warn().Str("attempt_id", prev.ID).Int64("next_attempt_at", next).Msg("retry requeued")
}

func (t *Tracker) abandon(ctx context.Context, prev *models.DeliveryAttempt, reason string) {
	prev.Status = models.DeliveryFailed
	prev.ErrorMessage = reason
	prev.NextAttemptAt = nil

	pctx, cancel := persistCtx(ctx)
	defer cancel()
	if err := t.attempts.Complete(pctx, prev); err != nil {
		log.Error().Err(err).Str("attempt_id", prev.ID).Msg("failed to abandon retry")
		return
	}
	t.metrics.DeliveryOutcome(models.DeliveryFailed)
	log.Info().Str("attempt_id", prev.ID).Str("reason", reason).Msg("retry abandoned")
}

// Deliveries lists recent attempts for an endpoint of orgID.
func (t *Tracker) Deliveries(ctx context.Context, orgID, endpointID string, limit int) ([]*models.DeliveryAttempt, error) {
	endpoint, err := t.endpoints.GetByID(ctx, orgID, endpointID)
	if err != nil {
		return nil, err
	}
	if endpoint == nil {
		return nil, errors.NewNotFoundError("webhook", endpointID)
	}
	return t.attempts.ListByEndpoint(ctx, orgID, endpointID, limit)
}

// Prune deletes terminal attempts and unreferenced events older than cutoff.
func (t *Tracker) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := t.attempts.DeleteTerminalBefore(ctx, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune attempts: %w", err)
	}
	if _, err := t.events.DeleteOrphanedBefore(ctx, cutoff.Unix()); err != nil {
		return n, fmt.Errorf("prune events: %w", err)
	}
	return n, nil
}
