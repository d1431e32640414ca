package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"worksphere/internal/platform/database"
	"worksphere/internal/platform/models"
)

// Entry describes one administrative mutation.
type Entry struct {
	OrganizationID string
	AdminID        string
	Action         string
	EntityType     string
	EntityID       string
	NewValues      map[string]interface{}
	IPAddress      string
	UserAgent      string
}

type Logger struct {
	db  *sql.DB
	now func() time.Time
}

func NewLogger(db *sql.DB) *Logger {
	return &Logger{db: db, now: time.Now}
}

// Record appends entry to audit_logs synchronously and returns the stored row.
func (l *Logger) Record(ctx context.Context, entry Entry) (*models.AuditLog, error) {
	values := entry.NewValues
	if values == nil {
		values = map[string]interface{}{}
	}
	valuesJSON, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}

	row := &models.AuditLog{
		ID:             "audit_" + uuid.New().String(),
		OrganizationID: entry.OrganizationID,
		AdminID:        entry.AdminID,
		Action:         entry.Action,
		EntityType:     entry.EntityType,
		EntityID:       entry.EntityID,
		NewValues:      values,
		IPAddress:      entry.IPAddress,
		UserAgent:      entry.UserAgent,
		CreatedAt:      l.now().Unix(),
	}

	query := `
		INSERT INTO audit_logs (id, organization_id, admin_id, action, entity_type, entity_id, new_values, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = database.Conn(ctx, l.db).ExecContext(ctx, query, row.ID, row.OrganizationID, row.AdminID, row.Action, row.EntityType,
		row.EntityID, string(valuesJSON), row.IPAddress, row.UserAgent, row.CreatedAt)
	if err != nil {
		return nil, err
	}
	return row, nil
}

// List returns the newest audit records of orgID. An empty entityID
// returns records for every entity.
func (l *Logger) List(ctx context.Context, orgID, entityID string, limit int) ([]*models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT id, organization_id, admin_id, action, entity_type, entity_id, new_values, ip_address, user_agent, created_at
		FROM audit_logs WHERE organization_id = ?`
	args := []interface{}{orgID}
	if entityID != "" {
		query += ` AND entity_id = ?`
		args = append(args, entityID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := database.Conn(ctx, l.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*models.AuditLog{}
	for rows.Next() {
		var a models.AuditLog
		var valuesJSON string
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.AdminID, &a.Action, &a.EntityType, &a.EntityID,
			&valuesJSON, &a.IPAddress, &a.UserAgent, &a.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(valuesJSON), &a.NewValues); err != nil {
			return nil, err
		}
		logs = append(logs, &a)
	}
	return logs, rows.Err()
}
