package repositories

import (
	"context"
	"database/sql"

	"worksphere/internal/platform/database"
	"worksphere/internal/platform/models"
)

type AlertRepository struct {
	db *sql.DB
}

func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) Create(ctx context.Context, a *models.Alert) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO admin_alerts (id, organization_id, severity, title, message, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.OrganizationID, a.Severity, a.Title, a.Message, a.Status, a.CreatedAt)
	return err
}

func (r *AlertRepository) GetByID(ctx context.Context, orgID, id string) (*models.Alert, error) {
	a := &models.Alert{}
	var resolvedAt sql.NullInt64
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, organization_id, severity, title, message, status, created_at, resolved_at
		FROM admin_alerts WHERE id = ? AND organization_id = ?
	`, id, orgID).Scan(&a.ID, &a.OrganizationID, &a.Severity, &a.Title, &a.Message, &a.Status, &a.CreatedAt, &resolvedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	a.ResolvedAt = nullInt64Ptr(resolvedAt)
	return a, nil
}

func (r *AlertRepository) Resolve(ctx context.Context, orgID, id string, resolvedAt int64) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE admin_alerts SET status = ?, resolved_at = ? WHERE id = ? AND organization_id = ?
	`, models.AlertResolved, resolvedAt, id, orgID)
	return err
}

// List returns alerts newest first. An empty status returns every alert.
func (r *AlertRepository) List(ctx context.Context, orgID, status string) ([]*models.Alert, error) {
	query := `SELECT id, organization_id, severity, title, message, status, created_at, resolved_at
		FROM admin_alerts WHERE organization_id = ?`
	args := []interface{}{orgID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := []*models.Alert{}
	for rows.Next() {
		a := &models.Alert{}
		var resolvedAt sql.NullInt64
		if err := rows.Scan(&a.ID, &a.OrganizationID, &a.Severity, &a.Title, &a.Message, &a.Status, &a.CreatedAt, &resolvedAt); err != nil {
			return nil, err
		}
		a.ResolvedAt = nullInt64Ptr(resolvedAt)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

type FeatureFlagRepository struct {
	db *sql.DB
}

func NewFeatureFlagRepository(db *sql.DB) *FeatureFlagRepository {
	return &FeatureFlagRepository{db: db}
}

// Upsert creates the flag or updates the existing one with the same key.
// The stored row is returned so callers see the surviving id.
func (r *FeatureFlagRepository) Upsert(ctx context.Context, f *models.FeatureFlag) (*models.FeatureFlag, error) {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO feature_flags (id, organization_id, key, description, enabled, rollout_percentage, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(organization_id, key) DO UPDATE SET
			description = excluded.description,
			enabled = excluded.enabled,
			rollout_percentage = excluded.rollout_percentage,
			updated_at = excluded.updated_at
	`, f.ID, f.OrganizationID, f.Key, f.Description, f.Enabled, f.RolloutPercentage, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return r.GetByKey(ctx, f.OrganizationID, f.Key)
}

func (r *FeatureFlagRepository) GetByKey(ctx context.Context, orgID, key string) (*models.FeatureFlag, error) {
	f := &models.FeatureFlag{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, organization_id, key, description, enabled, rollout_percentage, created_at, updated_at
		FROM feature_flags WHERE organization_id = ? AND key = ?
	`, orgID, key).Scan(&f.ID, &f.OrganizationID, &f.Key, &f.Description, &f.Enabled, &f.RolloutPercentage, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return f, nil
}

func (r *FeatureFlagRepository) Delete(ctx context.Context, orgID, key string) (bool, error) {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM feature_flags WHERE organization_id = ? AND key = ?`, orgID, key)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *FeatureFlagRepository) List(ctx context.Context, orgID string) ([]*models.FeatureFlag, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, organization_id, key, description, enabled, rollout_percentage, created_at, updated_at
		FROM feature_flags WHERE organization_id = ? ORDER BY key ASC
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flags := []*models.FeatureFlag{}
	for rows.Next() {
		f := &models.FeatureFlag{}
		if err := rows.Scan(&f.ID, &f.OrganizationID, &f.Key, &f.Description, &f.Enabled, &f.RolloutPercentage, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		flags = append(flags, f)
	}
	return flags, rows.Err()
}

type AnnouncementRepository struct {
	db *sql.DB
}

func NewAnnouncementRepository(db *sql.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

const announcementColumns = `id, organization_id, title, body, audience, status, published_at, created_at, updated_at`

func (r *AnnouncementRepository) Create(ctx context.Context, a *models.Announcement) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO announcements (id, organization_id, title, body, audience, status, published_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.OrganizationID, a.Title, a.Body, a.Audience, a.Status, a.PublishedAt, a.CreatedAt, a.UpdatedAt)
	return err
}

func (r *AnnouncementRepository) Update(ctx context.Context, a *models.Announcement) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE announcements SET title = ?, body = ?, audience = ?, status = ?, published_at = ?, updated_at = ?
		WHERE id = ? AND organization_id = ?
	`, a.Title, a.Body, a.Audience, a.Status, a.PublishedAt, a.UpdatedAt, a.ID, a.OrganizationID)
	return err
}

func (r *AnnouncementRepository) GetByID(ctx context.Context, orgID, id string) (*models.Announcement, error) {
	row := database.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE id = ? AND organization_id = ?`, id, orgID)
	a, err := scanAnnouncement(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// List returns announcements newest first. An empty status returns all of them.
func (r *AnnouncementRepository) List(ctx context.Context, orgID, status string) ([]*models.Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM announcements WHERE organization_id = ?`
	args := []interface{}{orgID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []*models.Announcement{}
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func scanAnnouncement(s scanner) (*models.Announcement, error) {
	a := &models.Announcement{}
	var publishedAt sql.NullInt64
	if err := s.Scan(&a.ID, &a.OrganizationID, &a.Title, &a.Body, &a.Audience, &a.Status, &publishedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	a.PublishedAt = nullInt64Ptr(publishedAt)
	return a, nil
}
