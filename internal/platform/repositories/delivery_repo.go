package repositories

import (
	"context"
	"database/sql"

	"worksphere/internal/platform/database"
	"worksphere/internal/platform/models"
)

const attemptColumns = `a.id, a.organization_id, a.endpoint_id, a.event_id, COALESCE(e.event_type, ''), a.status,
	a.response_status, a.attempt_count, a.error_message, a.next_attempt_at, a.duration_ms, a.created_at, a.delivered_at`

const attemptFrom = ` FROM delivery_attempts a LEFT JOIN domain_events e ON e.id = a.event_id `

type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

func (r *DeliveryRepository) Create(ctx context.Context, a *models.DeliveryAttempt) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO delivery_attempts (id, organization_id, endpoint_id, event_id, status, response_status, attempt_count,
			error_message, next_attempt_at, duration_ms, created_at, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.OrganizationID, a.EndpointID, a.EventID, a.Status, a.ResponseStatus, a.AttemptCount,
		nullString(a.ErrorMessage), a.NextAttemptAt, a.DurationMs, a.CreatedAt, a.DeliveredAt)
	return err
}

// Complete records the outcome of the HTTP attempt a describes.
func (r *DeliveryRepository) Complete(ctx context.Context, a *models.DeliveryAttempt) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE delivery_attempts
		SET status = ?, response_status = ?, error_message = ?, next_attempt_at = ?, duration_ms = ?, delivered_at = ?
		WHERE id = ?
	`, a.Status, a.ResponseStatus, nullString(a.ErrorMessage), a.NextAttemptAt, a.DurationMs, a.DeliveredAt, a.ID)
	return err
}

func (r *DeliveryRepository) GetByID(ctx context.Context, id string) (*models.DeliveryAttempt, error) {
	row := database.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+attemptColumns+attemptFrom+`WHERE a.id = ?`, id)
	a, err := scanAttempt(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

func (r *DeliveryRepository) ListByEndpoint(ctx context.Context, orgID, endpointID string, limit int) ([]*models.DeliveryAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.query(ctx, `SELECT `+attemptColumns+attemptFrom+`
		WHERE a.organization_id = ? AND a.endpoint_id = ?
		ORDER BY a.created_at DESC, a.attempt_count DESC
		LIMIT ?`, orgID, endpointID, limit)
}

func (r *DeliveryRepository) ListByEvent(ctx context.Context, eventID string) ([]*models.DeliveryAttempt, error) {
	return r.query(ctx, `SELECT `+attemptColumns+attemptFrom+`
		WHERE a.event_id = ?
		ORDER BY a.endpoint_id, a.attempt_count`, eventID)
}

// ClaimDue hands out retrying attempts whose next_attempt_at has passed.
// An attempt is claimed by clearing next_attempt_at; only the caller whose
// update changes the row receives it, so concurrent workers never resend
// the same attempt.
func (r *DeliveryRepository) ClaimDue(ctx context.Context, now int64, limit int) ([]*models.DeliveryAttempt, error) {
	candidates, err := r.query(ctx, `SELECT `+attemptColumns+attemptFrom+`
		WHERE a.status = ? AND a.next_attempt_at IS NOT NULL AND a.next_attempt_at <= ?
		ORDER BY a.next_attempt_at ASC
		LIMIT ?`, models.DeliveryRetrying, now, limit)
	if err != nil {
		return nil, err
	}

	claimed := make([]*models.DeliveryAttempt, 0, len(candidates))
	for _, a := range candidates {
		res, err := database.Conn(ctx, r.db).ExecContext(ctx, `
			UPDATE delivery_attempts SET next_attempt_at = NULL
			WHERE id = ? AND status = ? AND next_attempt_at IS NOT NULL
		`, a.ID, models.DeliveryRetrying)
		if err != nil {
			return claimed, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return claimed, err
		}
		if n == 1 {
			a.NextAttemptAt = nil
			claimed = append(claimed, a)
		}
	}
	return claimed, nil
}

// Requeue hands a claimed attempt back to ClaimDue at nextAt. It reports
// false when the row is no longer a claimed retry.
func (r *DeliveryRepository) Requeue(ctx context.Context, id string, nextAt int64) (bool, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE delivery_attempts SET next_attempt_at = ?
		WHERE id = ? AND status = ? AND next_attempt_at IS NULL
	`, nextAt, id, models.DeliveryRetrying)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DeleteTerminalBefore prunes attempts created before cutoff that will not
// be sent again: delivered, failed, and retrying rows already claimed.
func (r *DeliveryRepository) DeleteTerminalBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		DELETE FROM delivery_attempts
		WHERE created_at < ?
		  AND (status IN (?, ?) OR (status = ? AND next_attempt_at IS NULL))
	`, cutoff, models.DeliveryDelivered, models.DeliveryFailed, models.DeliveryRetrying)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *DeliveryRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.DeliveryAttempt, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := []*models.DeliveryAttempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func scanAttempt(s scanner) (*models.DeliveryAttempt, error) {
	var a models.DeliveryAttempt
	var responseStatus, nextAttemptAt, deliveredAt sql.NullInt64
	var errorMessage sql.NullString

	err := s.Scan(&a.ID, &a.OrganizationID, &a.EndpointID, &a.EventID, &a.EventType, &a.Status,
		&responseStatus, &a.AttemptCount, &errorMessage, &nextAttemptAt, &a.DurationMs, &a.CreatedAt, &deliveredAt)
	if err != nil {
		return nil, err
	}
	a.ResponseStatus = nullIntPtr(responseStatus)
	a.NextAttemptAt = nullInt64Ptr(nextAttemptAt)
	a.DeliveredAt = nullInt64Ptr(deliveredAt)
	a.ErrorMessage = errorMessage.String
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
