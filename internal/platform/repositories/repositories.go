package repositories

import (
	"context"
	"database/sql"

	"worksphere/internal/platform/database"
	"worksphere/internal/platform/models"
)

type OrganizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO organizations (id, slug, name, plan_tier, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, org.ID, org.Slug, org.Name, org.PlanTier, org.Status, org.CreatedAt, org.UpdatedAt)
	return err
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	org := &models.Organization{}
	var deletedAt sql.NullInt64
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, slug, name, plan_tier, status, created_at, updated_at, deleted_at
		FROM organizations WHERE id = ?
	`, id).Scan(&org.ID, &org.Slug, &org.Name, &org.PlanTier, &org.Status, &org.CreatedAt, &org.UpdatedAt, &deletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if deletedAt.Valid {
		v := deletedAt.Int64
		org.DeletedAt = &v
	}
	return org, nil
}

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO users (id, organization_id, email, password_hash, full_name, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.OrganizationID, user.Email, user.PasswordHash, user.FullName, user.Role, user.CreatedAt, user.UpdatedAt)
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `WHERE id = ?`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `WHERE email = ?`, email)
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	user := &models.User{}
	var lastActive, lastLogin, deletedAt sql.NullInt64
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, organization_id, email, password_hash, full_name, role, last_active_at, last_login_at, created_at, updated_at, deleted_at
		FROM users `+where, arg).Scan(&user.ID, &user.OrganizationID, &user.Email, &user.PasswordHash, &user.FullName, &user.Role,
		&lastActive, &lastLogin, &user.CreatedAt, &user.UpdatedAt, &deletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	user.LastActiveAt = nullInt64Ptr(lastActive)
	user.LastLoginAt = nullInt64Ptr(lastLogin)
	user.DeletedAt = nullInt64Ptr(deletedAt)
	return user, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID string, timestamp int64) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `UPDATE users SET last_login_at = ?, last_active_at = ? WHERE id = ?`, timestamp, timestamp, userID)
	return err
}

func nullInt64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

type scanner interface {
	Scan(dest ...interface{}) error
}
