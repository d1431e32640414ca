package database

import (
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"worksphere/internal/platform/config"
)

// NewDB opens the platform database. URLs may carry a "file:" prefix; it is
// stripped for the sqlite3 driver and pragmas are appended so that
// concurrent readers do not trip over the writer.
func NewDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", DSN(cfg.URL))
	if err != nil {
		return nil, err
	}

	maxConns := cfg.MaxConnections
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func DSN(url string) string {
	dsn := strings.TrimPrefix(url, "file:")
	if dsn == ":memory:" {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
}
