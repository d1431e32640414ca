package repositories

import (
	"context"
	"database/sql"

	"worksphere/internal/platform/database"
	"worksphere/internal/platform/models"
)

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append stores an event. Re-appending an existing id is a no-op so a
// caller may publish the same event more than once.
func (r *EventRepository) Append(ctx context.Context, ev *models.DomainEvent) error {
	payload := string(ev.Payload)
	if payload == "" {
		payload = "{}"
	}
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO domain_events (id, organization_id, event_type, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, ev.ID, ev.OrganizationID, ev.Type, payload, ev.CreatedAt)
	return err
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.DomainEvent, error) {
	ev := &models.DomainEvent{}
	var payload string
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, organization_id, event_type, payload, created_at
		FROM domain_events WHERE id = ?
	`, id).Scan(&ev.ID, &ev.OrganizationID, &ev.Type, &payload, &ev.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	ev.Payload = []byte(payload)
	return ev, nil
}

// DeleteOrphanedBefore removes events older than cutoff that no delivery
// attempt references any more.
func (r *EventRepository) DeleteOrphanedBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		DELETE FROM domain_events
		WHERE created_at < ?
		AND NOT EXISTS (SELECT 1 FROM delivery_attempts a WHERE a.event_id = domain_events.id)
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
