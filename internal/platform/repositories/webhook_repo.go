package repositories

import (
	"context"
	"database/sql"
	"encoding/json"

	"worksphere/internal/platform/database"
	"worksphere/internal/platform/models"
)

const endpointColumns = `id, organization_id, name, url, events, secret, max_retries, retry_delay_seconds,
	headers, active, last_triggered_at, last_status, last_error, created_at, updated_at`

type WebhookRepository struct {
	db *sql.DB
}

func NewWebhookRepository(db *sql.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Create(ctx context.Context, e *models.WebhookEndpoint) error {
	eventsJSON, headersJSON, err := marshalEndpointJSON(e)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO webhook_endpoints (id, organization_id, name, url, events, secret, max_retries, retry_delay_seconds, headers, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = database.Conn(ctx, r.db).ExecContext(ctx, query, e.ID, e.OrganizationID, e.Name, e.URL, eventsJSON, e.Secret,
		e.RetryPolicy.MaxRetries, e.RetryPolicy.RetryDelaySeconds, headersJSON, e.Active, e.CreatedAt, e.UpdatedAt)
	return err
}

// GetByID returns nil, nil when the endpoint does not exist in orgID.
func (r *WebhookRepository) GetByID(ctx context.Context, orgID, id string) (*models.WebhookEndpoint, error) {
	row := database.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+endpointColumns+` FROM webhook_endpoints WHERE id = ? AND organization_id = ?`, id, orgID)
	e, err := scanEndpoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (r *WebhookRepository) List(ctx context.Context, orgID string) ([]*models.WebhookEndpoint, error) {
	return r.query(ctx, `SELECT `+endpointColumns+` FROM webhook_endpoints WHERE organization_id = ? ORDER BY created_at DESC, id DESC`, orgID)
}

// ListSubscribed returns the active endpoints of orgID whose event list
// contains eventType exactly. Events are stored as a JSON array, so the
// match happens in Go after a per-tenant scan of active rows.
func (r *WebhookRepository) ListSubscribed(ctx context.Context, orgID, eventType string) ([]*models.WebhookEndpoint, error) {
	active, err := r.query(ctx, `SELECT `+endpointColumns+` FROM webhook_endpoints WHERE organization_id = ? AND active = 1 ORDER BY created_at ASC, id ASC`, orgID)
	if err != nil {
		return nil, err
	}

	var matched []*models.WebhookEndpoint
	for _, e := range active {
		if e.Subscribes(eventType) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

func (r *WebhookRepository) Update(ctx context.Context, e *models.WebhookEndpoint) error {
	eventsJSON, headersJSON, err := marshalEndpointJSON(e)
	if err != nil {
		return err
	}

	query := `
		UPDATE webhook_endpoints
		SET name = ?, url = ?, events = ?, secret = ?, max_retries = ?, retry_delay_seconds = ?, headers = ?, active = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`
	_, err = database.Conn(ctx, r.db).ExecContext(ctx, query, e.Name, e.URL, eventsJSON, e.Secret, e.RetryPolicy.MaxRetries,
		e.RetryPolicy.RetryDelaySeconds, headersJSON, e.Active, e.UpdatedAt, e.ID, e.OrganizationID)
	return err
}

func (r *WebhookRepository) SetActive(ctx context.Context, orgID, id string, active bool, updatedAt int64) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `UPDATE webhook_endpoints SET active = ?, updated_at = ? WHERE id = ? AND organization_id = ?`, active, updatedAt, id, orgID)
	return err
}

// RecordOutcome stores the latest delivery result shown on the endpoint's
// status badge. A delivered outcome clears last_error.
func (r *WebhookRepository) RecordOutcome(ctx context.Context, id, status, lastError string, timestamp int64) error {
	if status == models.DeliveryDelivered {
		_, err := database.Conn(ctx, r.db).ExecContext(ctx, `UPDATE webhook_endpoints SET last_status = ?, last_error = NULL, last_triggered_at = ? WHERE id = ?`, status, timestamp, id)
		return err
	}
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `UPDATE webhook_endpoints SET last_status = ?, last_error = ?, last_triggered_at = ? WHERE id = ?`, status, lastError, timestamp, id)
	return err
}

func (r *WebhookRepository) query(ctx context.Context, query string, args ...interface{}) ([]*models.WebhookEndpoint, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	endpoints := []*models.WebhookEndpoint{}
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, e)
	}
	return endpoints, rows.Err()
}

func marshalEndpointJSON(e *models.WebhookEndpoint) (string, string, error) {
	events := e.Events
	if events == nil {
		events = []string{}
	}
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return "", "", err
	}

	headers := e.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return "", "", err
	}
	return string(eventsJSON), string(headersJSON), nil
}

func scanEndpoint(s scanner) (*models.WebhookEndpoint, error) {
	var e models.WebhookEndpoint
	var eventsStr, headersStr string
	var lastTriggeredAt sql.NullInt64
	var lastStatus, lastError sql.NullString

	err := s.Scan(&e.ID, &e.OrganizationID, &e.Name, &e.URL, &eventsStr, &e.Secret, &e.RetryPolicy.MaxRetries,
		&e.RetryPolicy.RetryDelaySeconds, &headersStr, &e.Active, &lastTriggeredAt, &lastStatus, &lastError,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.LastTriggeredAt = nullInt64Ptr(lastTriggeredAt)
	e.LastStatus = lastStatus.String
	e.LastError = lastError.String

	if err := json.Unmarshal([]byte(eventsStr), &e.Events); err != nil {
		return nil, err
	}
	if headersStr != "" {
		if err := json.Unmarshal([]byte(headersStr), &e.Headers); err != nil {
			return nil, err
		}
	}
	return &e, nil
}
