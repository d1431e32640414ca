package repositories

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"worksphere/internal/platform/models"
	"worksphere/internal/testutil"
)

func newEndpoint(id, orgID string, createdAt int64, events ...string) *models.WebhookEndpoint {
	return &models.WebhookEndpoint{
		ID:             id,
		OrganizationID: orgID,
		Name:           "Endpoint " + id,
		URL:            "https://example.com/" + id,
		Events:         events,
		Secret:         "whsec_" + id,
		RetryPolicy:    models.RetryPolicy{MaxRetries: 2, RetryDelaySeconds: 30},
		Headers:        map[string]string{"X-Source": id},
		Active:         true,
		CreatedAt:      createdAt,
		UpdatedAt:      createdAt,
	}
}

func TestWebhookRepository_ListOrdering(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewWebhookRepository(db)
	ctx := context.Background()

	for _, e := range []*models.WebhookEndpoint{
		newEndpoint("wh_a", "org_1", 100, "task.completed"),
		newEndpoint("wh_b", "org_1", 200, "task.completed"),
		newEndpoint("wh_c", "org_1", 200, "task.created"),
		newEndpoint("wh_d", "org_2", 300, "task.completed"),
	} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create(%s) error = %v", e.ID, err)
		}
	}

	list, err := repo.List(ctx, "org_1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"wh_c", "wh_b", "wh_a"}
	if len(list) != len(want) {
		t.Fatalf("len(list) = %d, want %d", len(list), len(want))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("list[%d] = %s, want %s", i, list[i].ID, id)
		}
	}
	if list[0].Headers["X-Source"] != "wh_c" || list[0].RetryPolicy.MaxRetries != 2 {
		t.Errorf("round trip lost fields: %+v", list[0])
	}
}

func TestWebhookRepository_ListSubscribed(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewWebhookRepository(db)
	ctx := context.Background()

	repo.Create(ctx, newEndpoint("wh_a", "org_1", 100, "task.completed", "task.created"))
	repo.Create(ctx, newEndpoint("wh_b", "org_1", 100, "task.completed.v2"))
	repo.Create(ctx, newEndpoint("wh_c", "org_1", 100, "task.completed"))
	repo.SetActive(ctx, "org_1", "wh_c", false, 200)

	got, err := repo.ListSubscribed(ctx, "org_1", "task.completed")
	if err != nil {
		t.Fatalf("ListSubscribed() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "wh_a" {
		t.Errorf("ListSubscribed() = %v, want [wh_a]", got)
	}
}

func TestWebhookRepository_GetByIDScopedToOrg(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewWebhookRepository(db)
	ctx := context.Background()
	repo.Create(ctx, newEndpoint("wh_a", "org_1", 100, "task.completed"))

	got, err := repo.GetByID(ctx, "org_2", "wh_a")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for other tenant, got %+v", got)
	}
}

func TestDeliveryRepository_ClaimDueOnce(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	NewWebhookRepository(db).Create(ctx, newEndpoint("wh_a", "org_1", 100, "task.completed"))
	NewEventRepository(db).Append(ctx, &models.DomainEvent{ID: "evt_1", OrganizationID: "org_1", Type: "task.completed", CreatedAt: 100})

	repo := NewDeliveryRepository(db)
	due, later := int64(500), int64(5000)
	for _, a := range []*models.DeliveryAttempt{
		{ID: "dlv_1", OrganizationID: "org_1", EndpointID: "wh_a", EventID: "evt_1", Status: models.DeliveryRetrying, AttemptCount: 1, NextAttemptAt: &due, CreatedAt: 100},
		{ID: "dlv_2", OrganizationID: "org_1", EndpointID: "wh_a", EventID: "evt_1", Status: models.DeliveryRetrying, AttemptCount: 1, NextAttemptAt: &later, CreatedAt: 100},
		{ID: "dlv_3", OrganizationID: "org_1", EndpointID: "wh_a", EventID: "evt_1", Status: models.DeliveryFailed, AttemptCount: 3, CreatedAt: 100},
	} {
		if err := repo.Create(ctx, a); err != nil {
			t.Fatalf("Create(%s) error = %v", a.ID, err)
		}
	}

	first, err := repo.ClaimDue(ctx, 1000, 10)
	if err != nil {
		t.Fatalf("ClaimDue() error = %v", err)
	}
	if len(first) != 1 || first[0].ID != "dlv_1" {
		t.Fatalf("ClaimDue() = %v, want [dlv_1]", first)
	}
	if first[0].EventType != "task.completed" {
		t.Errorf("EventType = %q, want task.completed", first[0].EventType)
	}

	second, err := repo.ClaimDue(ctx, 1000, 10)
	if err != nil {
		t.Fatalf("ClaimDue() error = %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second ClaimDue() = %v, want none", second)
	}
}

func TestDeliveryRepository_DeleteTerminalBefore(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	NewWebhookRepository(db).Create(ctx, newEndpoint("wh_a", "org_1", 100, "task.completed"))
	events := NewEventRepository(db)
	events.Append(ctx, &models.DomainEvent{ID: "evt_1", OrganizationID: "org_1", Type: "task.completed", CreatedAt: 100})

	repo := NewDeliveryRepository(db)
	next := int64(900)
	repo.Create(ctx, &models.DeliveryAttempt{ID: "dlv_old", OrganizationID: "org_1", EndpointID: "wh_a", EventID: "evt_1", Status: models.DeliveryDelivered, AttemptCount: 1, CreatedAt: 100})
	repo.Create(ctx, &models.DeliveryAttempt{ID: "dlv_retry", OrganizationID: "org_1", EndpointID: "wh_a", EventID: "evt_1", Status: models.DeliveryRetrying, AttemptCount: 1, NextAttemptAt: &next, CreatedAt: 100})

	n, err := repo.DeleteTerminalBefore(ctx, 500)
	if err != nil {
		t.Fatalf("DeleteTerminalBefore() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d rows, want 1", n)
	}

	// Still referenced by the pending retry.
	if removed, _ := events.DeleteOrphanedBefore(ctx, 500); removed != 0 {
		t.Errorf("removed %d referenced events", removed)
	}
}

func TestFeatureFlagRepository_UpsertKeepsID(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewFeatureFlagRepository(db)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, &models.FeatureFlag{ID: "flag_1", OrganizationID: "org_1", Key: "beta", RolloutPercentage: 10, CreatedAt: 1, UpdatedAt: 1})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	second, err := repo.Upsert(ctx, &models.FeatureFlag{ID: "flag_2", OrganizationID: "org_1", Key: "beta", Enabled: true, RolloutPercentage: 50, CreatedAt: 2, UpdatedAt: 2})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if second.ID != first.ID || !second.Enabled || second.RolloutPercentage != 50 {
		t.Errorf("unexpected flag after upsert: %+v", second)
	}
}

func TestUserRepository_GetByEmailError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM users WHERE email = ?").
		WithArgs("a@example.com").
		WillReturnError(errors.New("connection reset"))

	_, err = NewUserRepository(db).GetByEmail(context.Background(), "a@example.com")
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
