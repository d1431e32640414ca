package webhooks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worksphere/internal/pkg/errors"
	"worksphere/internal/pkg/validator"
	"worksphere/internal/platform/config"
	"worksphere/internal/platform/models"
	"worksphere/internal/platform/repositories"
	"worksphere/internal/testutil"
)

type testEnv struct {
	db         *sql.DB
	registry   *Registry
	tracker    *Tracker
	dispatcher *Dispatcher
	attempts   *repositories.DeliveryRepository
	now        time.Time
}

func (e *testEnv) clock() time.Time { return e.now }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)

	cfg := config.WebhooksConfig{
		WorkerCount:       4,
		Timeout:           5 * time.Second,
		DefaultMaxRetries: 3,
		DefaultRetryDelay: 60,
		UserAgent:         "WorkSphere-Webhooks/test",
	}
	env := &testEnv{db: db, now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}

	endpoints := repositories.NewWebhookRepository(db)
	events := repositories.NewEventRepository(db)
	env.attempts = repositories.NewDeliveryRepository(db)

	env.registry = NewRegistry(endpoints, validator.New(), cfg)
	env.registry.now = env.clock
	env.tracker = NewTracker(endpoints, events, env.attempts, cfg, WithClock(env.clock))
	env.dispatcher = NewDispatcher(endpoints, events, env.tracker, cfg.WorkerCount)
	env.dispatcher.now = env.clock
	return env
}

func intPtr(v int) *int { return &v }

type receiver struct {
	*httptest.Server
	hits    atomic.Int32
	mu      sync.Mutex
	headers http.Header
	body    []byte
}

func newReceiver(t *testing.T, status int) *receiver {
	t.Helper()
	rcv := &receiver{}
	rcv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rcv.mu.Lock()
		rcv.headers = r.Header.Clone()
		rcv.body = body
		rcv.mu.Unlock()
		rcv.hits.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(rcv.Close)
	return rcv
}

func TestRegistry_CreateAndList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	spec := EndpointSpec{
		Name:              "CRM Sync",
		URL:               "https://example.com/hook",
		Events:            []string{"task.completed"},
		MaxRetries:        intPtr(2),
		RetryDelaySeconds: intPtr(30),
		Headers:           map[string]string{"X-Team": "sales"},
	}
	created, err := env.registry.Create(ctx, "org_1", spec)
	require.NoError(t, err)
	assert.True(t, created.Active)
	assert.Contains(t, created.Secret, "whsec_")

	list, err := env.registry.List(ctx, "org_1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	got := list[0]
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "CRM Sync", got.Name)
	assert.Equal(t, "https://example.com/hook", got.URL)
	assert.Equal(t, []string{"task.completed"}, got.Events)
	assert.Equal(t, models.RetryPolicy{MaxRetries: 2, RetryDelaySeconds: 30}, got.RetryPolicy)
	assert.Equal(t, map[string]string{"X-Team": "sales"}, got.Headers)
	assert.Equal(t, created.Secret, got.Secret)

	other, err := env.registry.List(ctx, "org_2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestRegistry_CreateDefaults(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.registry.Create(context.Background(), "org_1", EndpointSpec{
		Name:   "Defaults",
		URL:    "http://hooks.internal/x",
		Events: []string{"user.created", "user.created"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.RetryPolicy{MaxRetries: 3, RetryDelaySeconds: 60}, created.RetryPolicy)
	assert.Equal(t, []string{"user.created"}, created.Events)
}

func TestRegistry_CreateValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		spec  EndpointSpec
		field string
	}{
		{"missing name", EndpointSpec{URL: "https://a.io/h", Events: []string{"task.completed"}}, "name"},
		{"relative url", EndpointSpec{Name: "x", URL: "/hook", Events: []string{"task.completed"}}, "url"},
		{"ftp url", EndpointSpec{Name: "x", URL: "ftp://a.io/h", Events: []string{"task.completed"}}, "url"},
		{"no events", EndpointSpec{Name: "x", URL: "https://a.io/h"}, "events"},
		{"malformed event", EndpointSpec{Name: "x", URL: "https://a.io/h", Events: []string{"Task Completed"}}, "events[0]"},
		{"negative retries", EndpointSpec{Name: "x", URL: "https://a.io/h", Events: []string{"task.completed"}, MaxRetries: intPtr(-1)}, "max_retries"},
		{"zero delay", EndpointSpec{Name: "x", URL: "https://a.io/h", Events: []string{"task.completed"}, RetryDelaySeconds: intPtr(0)}, "retry_delay_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.registry.Create(context.Background(), "org_1", tt.spec)
			var verr *errors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestRegistry_UpdateAndTenantIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.registry.Create(ctx, "org_1", EndpointSpec{Name: "A", URL: "https://a.io/h", Events: []string{"task.completed"}})
	require.NoError(t, err)

	name := "Renamed"
	updated, err := env.registry.Update(ctx, "org_1", created.ID, EndpointPatch{Name: &name, Events: []string{"task.created"}})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, []string{"task.created"}, updated.Events)
	assert.Equal(t, created.URL, updated.URL)

	bad := "not a url"
	_, err = env.registry.Update(ctx, "org_1", created.ID, EndpointPatch{URL: &bad})
	var verr *errors.ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = env.registry.Update(ctx, "org_2", created.ID, EndpointPatch{Name: &name})
	var nf *errors.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestRegistry_DeactivateIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.registry.Create(ctx, "org_1", EndpointSpec{Name: "A", URL: "https://a.io/h", Events: []string{"task.completed"}})
	require.NoError(t, err)

	first, err := env.registry.Deactivate(ctx, "org_1", created.ID)
	require.NoError(t, err)
	assert.False(t, first.Active)

	second, err := env.registry.Deactivate(ctx, "org_1", created.ID)
	require.NoError(t, err)
	assert.False(t, second.Active)

	_, err = env.registry.Deactivate(ctx, "org_1", "wh_missing")
	var nf *errors.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestRegistry_RotateSecret(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := env.registry.Create(ctx, "org_1", EndpointSpec{Name: "A", URL: "https://a.io/h", Events: []string{"task.completed"}})
	require.NoError(t, err)

	rotated, err := env.registry.RotateSecret(ctx, "org_1", created.ID)
	require.NoError(t, err)
	assert.NotEqual(t, created.Secret, rotated.Secret)
	assert.Len(t, rotated.Secret, len("whsec_")+64)
}

func TestDispatch_OnlySubscribedActiveEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rcv := newReceiver(t, http.StatusOK)

	subscribed, err := env.registry.Create(ctx, "org_1", EndpointSpec{Name: "sub", URL: rcv.URL, Events: []string{"task.completed", "task.created"}})
	require.NoError(t, err)
	inactive, err := env.registry.Create(ctx, "org_1", EndpointSpec{Name: "off", URL: rcv.URL, Events: []string{"task.completed"}})
	require.NoError(t, err)
	_, err = env.registry.Deactivate(ctx, "org_1", inactive.ID)
	require.NoError(t, err)
	_, err = env.registry.Create(ctx, "org_1", EndpointSpec{Name: "other", URL: rcv.URL, Events: []string{"task.completed.v2"}})
	require.NoError(t, err)
	_, err = env.registry.Create(ctx, "org_2", EndpointSpec{Name: "tenant", URL: rcv.URL, Events: []string{"task.completed"}})
	require.NoError(t, err)

	attempts, err := env.dispatcher.Dispatch(ctx, &models.DomainEvent{
		OrganizationID: "org_1",
		Type:           "task.completed",
		Payload:        json.RawMessage(`{"task_id":"t1"}`),
	})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, subscribed.ID, attempts[0].EndpointID)
	assert.Equal(t, models.DeliveryDelivered, attempts[0].Status)
	assert.Equal(t, 1, attempts[0].AttemptCount)
	assert.EqualValues(t, 1, rcv.hits.Load())

	stored, err := env.registry.Get(ctx, "org_1", subscribed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryDelivered, stored.LastStatus)
	require.NotNil(t, stored.LastTriggeredAt)
}

func TestDispatch_NoSubscribers(t *testing.T) {
	env := newTestEnv(t)

	attempts, err := env.dispatcher.Dispatch(context.Background(), &models.DomainEvent{OrganizationID: "org_1", Type: "task.completed"})
	require.NoError(t, err)
	assert.Empty(t, attempts)
}

func TestDispatch_RetriesUntilExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rcv := newReceiver(t, http.StatusInternalServerError)

	endpoint, err := env.registry.Create(ctx, "org_1", EndpointSpec{
		Name:              "CRM Sync",
		URL:               rcv.URL,
		Events:            []string{"task.completed"},
		MaxRetries:        intPtr(2),
		RetryDelaySeconds: intPtr(30),
	})
	require.NoError(t, err)

	attempts, err := env.dispatcher.Dispatch(ctx, &models.DomainEvent{
		OrganizationID: "org_1",
		Type:           "task.completed",
		Payload:        json.RawMessage(`{"task_id":"t1"}`),
	})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	first := attempts[0]
	assert.Equal(t, models.DeliveryRetrying, first.Status)
	require.NotNil(t, first.NextAttemptAt)
	assert.Equal(t, env.now.Add(30*time.Second).Unix(), *first.NextAttemptAt)

	// Not yet due.
	sent, err := env.tracker.ProcessDue(ctx, env.now.Add(10*time.Second), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	env.now = env.now.Add(31 * time.Second)
	sent, err = env.tracker.ProcessDue(ctx, env.now, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	env.now = env.now.Add(31 * time.Second)
	sent, err = env.tracker.ProcessDue(ctx, env.now, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	// Exhausted: nothing left to claim.
	env.now = env.now.Add(time.Hour)
	sent, err = env.tracker.ProcessDue(ctx, env.now, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	history, err := env.attempts.ListByEvent(ctx, first.EventID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	last := history[2]
	assert.Equal(t, models.DeliveryFailed, last.Status)
	assert.Equal(t, 3, last.AttemptCount)
	require.NotNil(t, last.ResponseStatus)
	assert.Equal(t, http.StatusInternalServerError, *last.ResponseStatus)
	assert.Nil(t, last.NextAttemptAt)
	assert.EqualValues(t, 3, rcv.hits.Load())

	stored, err := env.registry.Get(ctx, "org_1", endpoint.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryFailed, stored.LastStatus)
	assert.Contains(t, stored.LastError, "HTTP 500")
}

func TestProcessDue_InactiveEndpointAbandonsRetry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rcv := newReceiver(t, http.StatusBadGateway)

	endpoint, err := env.registry.Create(ctx, "org_1", EndpointSpec{Name: "A", URL: rcv.URL, Events: []string{"task.completed"}, RetryDelaySeconds: intPtr(5)})
	require.NoError(t, err)

	attempts, err := env.dispatcher.Dispatch(ctx, &models.DomainEvent{OrganizationID: "org_1", Type: "task.completed"})
	require.NoError(t, err)
	require.Len(t, attempts, 1)

	_, err = env.registry.Deactivate(ctx, "org_1", endpoint.ID)
	require.NoError(t, err)

	sent, err := env.tracker.ProcessDue(ctx, env.now.Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	got, err := env.attempts.GetByID(ctx, attempts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryFailed, got.Status)
	assert.Equal(t, "endpoint inactive", got.ErrorMessage)
	assert.EqualValues(t, 1, rcv.hits.Load())
}

func TestSend_HeadersAndSignature(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rcv := newReceiver(t, http.StatusNoContent)

	endpoint, err := env.registry.Create(ctx, "org_1", EndpointSpec{
		Name:   "A",
		URL:    rcv.URL,
		Events: []string{"task.completed"},
		Headers: map[string]string{
			"X-Custom":               "yes",
			"X-WorkSphere-Signature": "sha256=forged",
			"Content-Type":           "text/plain",
		},
	})
	require.NoError(t, err)

	attempts, err := env.dispatcher.Dispatch(ctx, &models.DomainEvent{
		ID:             "evt_fixed",
		OrganizationID: "org_1",
		Type:           "task.completed",
		Payload:        json.RawMessage(`{"task_id":"t1"}`),
	})
	require.NoError(t, err)
	require.Len(t, attempts, 1)

	rcv.mu.Lock()
	headers, body := rcv.headers, rcv.body
	rcv.mu.Unlock()

	assert.Equal(t, "yes", headers.Get("X-Custom"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "task.completed", headers.Get(HeaderEvent))
	assert.Equal(t, attempts[0].ID, headers.Get(HeaderDelivery))
	assert.Equal(t, "WorkSphere-Webhooks/test", headers.Get("User-Agent"))
	assert.True(t, Verify(endpoint.Secret, body, headers.Get(HeaderSignature)))

	var payload Payload
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, "evt_fixed", payload.ID)
	assert.Equal(t, "task.completed", payload.EventType)
	assert.Equal(t, "org_1", payload.OrganizationID)
	assert.JSONEq(t, `{"task_id":"t1"}`, string(payload.Payload))
	assert.Equal(t, "2026-03-02T10:00:00Z", payload.Timestamp)
}

func TestTest_NeverRetried(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rcv := newReceiver(t, http.StatusInternalServerError)

	endpoint, err := env.registry.Create(ctx, "org_1", EndpointSpec{Name: "A", URL: rcv.URL, Events: []string{"task.completed"}})
	require.NoError(t, err)

	attempt, err := env.tracker.Test(ctx, endpoint)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryFailed, attempt.Status)
	assert.Equal(t, models.TestEventType, attempt.EventType)
	assert.Nil(t, attempt.NextAttemptAt)

	sent, err := env.tracker.ProcessDue(ctx, env.now.Add(24*time.Hour), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestPublish_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.dispatcher.Publish(ctx, "org_1", "TaskCompleted", nil)
	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "event_type")

	_, _, err = env.dispatcher.Publish(ctx, "org_1", "task.completed", json.RawMessage(`{not json`))
	require.ErrorAs(t, err, &verr)

	event, attempts, err := env.dispatcher.Publish(ctx, "org_1", "task.completed", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.Empty(t, attempts)
}

// cancelingSender cancels the caller's context mid-request, as a client
// disconnect or a worker shutdown would.
type cancelingSender struct {
	cancel context.CancelFunc
}

func (s cancelingSender) Send(ctx context.Context, req Request) Result {
	s.cancel()
	return Result{Err: ctx.Err()}
}

type recordingMetrics struct {
	nopMetrics
	mu       sync.Mutex
	outcomes []string
}

func (m *recordingMetrics) DeliveryOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func TestPublish_OutcomeStoredAfterCallerCancels(t *testing.T) {
	env := newTestEnv(t)
	rcv := newReceiver(t, http.StatusOK)

	endpoint, err := env.registry.Create(context.Background(), "org_1", EndpointSpec{Name: "A", URL: rcv.URL, Events: []string{"task.completed"}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.tracker.sender = cancelingSender{cancel: cancel}

	_, attempts, err := env.dispatcher.Publish(ctx, "org_1", "task.completed", json.RawMessage(`{"task_id":"t1"}`))
	require.NoError(t, err)
	require.Len(t, attempts, 1)

	stored, err := env.attempts.ListByEndpoint(context.Background(), "org_1", endpoint.ID, 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, models.DeliveryRetrying, stored[0].Status)
	require.NotNil(t, stored[0].NextAttemptAt)
	assert.Equal(t, env.now.Add(60*time.Second).Unix(), *stored[0].NextAttemptAt)
	assert.Contains(t, stored[0].ErrorMessage, "context canceled")

	env.tracker.sender = NewHTTPSender()
	env.now = env.now.Add(61 * time.Second)
	sent, err := env.tracker.ProcessDue(context.Background(), env.now, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.EqualValues(t, 1, rcv.hits.Load())
}

func TestProcessDue_RequeuesWhenRetryCannotStart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rcv := newReceiver(t, http.StatusServiceUnavailable)

	_, err := env.registry.Create(ctx, "org_1", EndpointSpec{Name: "A", URL: rcv.URL, Events: []string{"task.completed"}, RetryDelaySeconds: intPtr(30)})
	require.NoError(t, err)

	attempts, err := env.dispatcher.Dispatch(ctx, &models.DomainEvent{OrganizationID: "org_1", Type: "task.completed"})
	require.NoError(t, err)
	require.Len(t, attempts, 1)

	testutil.MustExec(t, env.db, `CREATE TRIGGER block_retries BEFORE INSERT ON delivery_attempts
		WHEN NEW.attempt_count > 1 BEGIN SELECT RAISE(ABORT, 'disk full'); END`)

	env.now = env.now.Add(31 * time.Second)
	sent, err := env.tracker.ProcessDue(ctx, env.now, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	got, err := env.attempts.GetByID(ctx, attempts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryRetrying, got.Status)
	require.NotNil(t, got.NextAttemptAt)
	assert.Equal(t, env.now.Add(30*time.Second).Unix(), *got.NextAttemptAt)

	testutil.MustExec(t, env.db, `DROP TRIGGER block_retries`)

	env.now = env.now.Add(31 * time.Second)
	sent, err = env.tracker.ProcessDue(ctx, env.now, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.EqualValues(t, 2, rcv.hits.Load())
}

func TestProcessDue_RetryLimitLowered(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rcv := newReceiver(t, http.StatusInternalServerError)

	endpoint, err := env.registry.Create(ctx, "org_1", EndpointSpec{Name: "A", URL: rcv.URL, Events: []string{"task.completed"}, MaxRetries: intPtr(3)})
	require.NoError(t, err)

	attempts, err := env.dispatcher.Dispatch(ctx, &models.DomainEvent{OrganizationID: "org_1", Type: "task.completed"})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	require.Equal(t, models.DeliveryRetrying, attempts[0].Status)

	_, err = env.registry.Update(ctx, "org_1", endpoint.ID, EndpointPatch{MaxRetries: intPtr(0)})
	require.NoError(t, err)

	env.now = env.now.Add(time.Hour)
	sent, err := env.tracker.ProcessDue(ctx, env.now, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)

	history, err := env.attempts.ListByEvent(ctx, attempts[0].EventID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.DeliveryFailed, history[0].Status)
	assert.Equal(t, "retry limit lowered", history[0].ErrorMessage)
	assert.EqualValues(t, 1, rcv.hits.Load())
}

func TestDispatch_ReportsSkippedEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rcv := newReceiver(t, http.StatusOK)
	m := &recordingMetrics{}
	env.tracker.metrics = m

	ok, err := env.registry.Create(ctx, "org_1", EndpointSpec{Name: "ok", URL: rcv.URL, Events: []string{"task.completed"}})
	require.NoError(t, err)
	broken, err := env.registry.Create(ctx, "org_1", EndpointSpec{Name: "broken", URL: rcv.URL, Events: []string{"task.completed"}})
	require.NoError(t, err)

	testutil.MustExec(t, env.db, fmt.Sprintf(`CREATE TRIGGER block_endpoint BEFORE INSERT ON delivery_attempts
		WHEN NEW.endpoint_id = '%s' BEGIN SELECT RAISE(ABORT, 'constraint failed'); END`, broken.ID))

	attempts, err := env.dispatcher.Dispatch(ctx, &models.DomainEvent{OrganizationID: "org_1", Type: "task.completed"})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, ok.ID, attempts[0].EndpointID)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.ElementsMatch(t, []string{models.DeliveryDelivered, OutcomeSkipped}, m.outcomes)
}

func TestSend_RedirectIsNotDelivered(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	target := newReceiver(t, http.StatusOK)
	redirect := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer redirect.Close()

	_, err := env.registry.Create(ctx, "org_1", EndpointSpec{Name: "moved", URL: redirect.URL, Events: []string{"task.completed"}})
	require.NoError(t, err)

	attempts, err := env.dispatcher.Dispatch(ctx, &models.DomainEvent{OrganizationID: "org_1", Type: "task.completed"})
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, models.DeliveryRetrying, attempts[0].Status)
	require.NotNil(t, attempts[0].ResponseStatus)
	assert.Equal(t, http.StatusFound, *attempts[0].ResponseStatus)
	assert.Zero(t, target.hits.Load())
}
