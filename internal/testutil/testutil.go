// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"worksphere/internal/platform/database"
)

// NewDB returns an in-memory sqlite database with the full schema applied.
// The pool is pinned to one connection so every query sees the same
// in-memory database.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := database.ApplySchema(db); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}

// MustExec runs a fixture statement and fails the test on error.
func MustExec(t *testing.T, db *sql.DB, query string, args ...interface{}) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

// SeedOrganization inserts an organization row with the given status.
func SeedOrganization(t *testing.T, db *sql.DB, id, status string) {
	t.Helper()
	now := time.Now().Unix()
	MustExec(t, db, `INSERT INTO organizations (id, slug, name, plan_tier, status, created_at, updated_at) VALUES (?, ?, ?, 'pro', ?, ?, ?)`,
		id, id, "Org "+id, status, now, now)
}

// FixedClock returns a clock function pinned to t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
