package workers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"worksphere/internal/engine/metrics"
	"worksphere/internal/engine/webhooks"
	"worksphere/internal/pkg/validator"
	"worksphere/internal/platform/config"
	"worksphere/internal/platform/models"
	"worksphere/internal/platform/repositories"
	"worksphere/internal/testutil"
)

func TestJobs_RetryThenPrune(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	testutil.SeedOrganization(t, db, "org_1", "active")

	var failing int32 = 1
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&failing) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer receiver.Close()

	now := time.Now()
	clock := func() time.Time { return now }

	cfg := config.WebhooksConfig{WorkerCount: 2, Timeout: 5 * time.Second, DefaultMaxRetries: 2, DefaultRetryDelay: 60}
	endpoints := repositories.NewWebhookRepository(db)
	events := repositories.NewEventRepository(db)
	attempts := repositories.NewDeliveryRepository(db)
	tracker := webhooks.NewTracker(endpoints, events, attempts, cfg, webhooks.WithClock(func() time.Time { return clock() }))
	registry := webhooks.NewRegistry(endpoints, validator.New(), cfg)
	dispatcher := webhooks.NewDispatcher(endpoints, events, tracker, 2)

	ep, err := registry.Create(ctx, "org_1", webhooks.EndpointSpec{
		Name:   "payroll",
		URL:    receiver.URL,
		Events: []string{"payroll.run_completed"},
	})
	require.NoError(t, err)

	_, first, err := dispatcher.Publish(ctx, "org_1", "payroll.run_completed", []byte(`{"run":"r_1"}`))
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, models.DeliveryRetrying, first[0].Status)

	jobs := NewJobs(tracker, metrics.NewRollup(metrics.NewRepository(db)), config.WorkerConfig{RetryBatchSize: 10, AttemptRetention: 24 * time.Hour})
	jobs.now = func() time.Time { return clock() }

	// Not yet due.
	require.NoError(t, jobs.RetryWebhooks(ctx))
	history, err := attempts.ListByEndpoint(ctx, "org_1", ep.ID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	atomic.StoreInt32(&failing, 0)
	now = now.Add(2 * time.Minute)
	require.NoError(t, jobs.RetryWebhooks(ctx))

	history, err = attempts.ListByEndpoint(ctx, "org_1", ep.ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.DeliveryDelivered, history[0].Status)
	assert.Equal(t, 2, history[0].AttemptCount)

	now = now.Add(48 * time.Hour)
	require.NoError(t, jobs.PruneDeliveries(ctx))
	history, err = attempts.ListByEndpoint(ctx, "org_1", ep.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestJobs_AggregateDailyMetrics(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedOrganization(t, db, "org_1", "active")

	repo := metrics.NewRepository(db)
	jobs := NewJobs(nil, metrics.NewRollup(repo), config.WorkerConfig{})
	require.NoError(t, jobs.AggregateDailyMetrics(context.Background()))

	rec, err := repo.LatestDaily(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.EqualValues(t, 1, rec.TotalOrganizations)
}

func TestJobs_Schedule(t *testing.T) {
	s, err := gocron.NewScheduler()
	require.NoError(t, err)
	defer s.Shutdown()

	jobs := NewJobs(nil, nil, config.WorkerConfig{RetryInterval: time.Minute})
	require.NoError(t, jobs.Schedule(context.Background(), s))

	names := make([]string, 0, 3)
	for _, j := range s.Jobs() {
		names = append(names, j.Name())
	}
	assert.ElementsMatch(t, []string{"webhook_retry", "metrics_rollup", "delivery_prune"}, names)
}
