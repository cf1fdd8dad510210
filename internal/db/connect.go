package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB, tunes the pool for the driver and ensures the schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:hiring.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/hiring?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	tunePool(driver, db)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	return db, nil
}

// tunePool keeps sqlite to a single writer connection.
func tunePool(driver Driver, db *sql.DB) {
	switch driver {
	case DriverSQLite:
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(45 * time.Minute)
	}
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS exam_papers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  category_id INTEGER NOT NULL DEFAULT 0,
  sub_category_id INTEGER,
  owner_id TEXT NOT NULL,
  is_private INTEGER NOT NULL DEFAULT 0,
  questions_json TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS exam_assignments (
  id TEXT PRIMARY KEY,
  application_id TEXT NOT NULL,
  exam_id TEXT NOT NULL REFERENCES exam_papers(id),
  note TEXT NOT NULL DEFAULT '',
  assigned_by TEXT NOT NULL,
  invitation_code TEXT NOT NULL UNIQUE,
  deadline INTEGER NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('PENDING','COMPLETED','EXPIRED')),
  score REAL,
  needs_review INTEGER NOT NULL DEFAULT 0,
  start_time INTEGER,
  end_time INTEGER,
  progress_json TEXT,
  answers_json TEXT,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assignments_status_deadline ON exam_assignments(status, deadline);

CREATE INDEX IF NOT EXISTS idx_assignments_application ON exam_assignments(application_id);

CREATE TABLE IF NOT EXISTS event_log (
  "offset" INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at INTEGER NOT NULL
)
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS exam_papers (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  category_id BIGINT NOT NULL DEFAULT 0,
  sub_category_id BIGINT,
  owner_id TEXT NOT NULL,
  is_private BOOLEAN NOT NULL DEFAULT FALSE,
  questions_json TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS exam_assignments (
  id TEXT PRIMARY KEY,
  application_id TEXT NOT NULL,
  exam_id TEXT NOT NULL REFERENCES exam_papers(id),
  note TEXT NOT NULL DEFAULT '',
  assigned_by TEXT NOT NULL,
  invitation_code TEXT NOT NULL UNIQUE,
  deadline BIGINT NOT NULL,
  status TEXT NOT NULL CHECK (status IN ('PENDING','COMPLETED','EXPIRED')),
  score DOUBLE PRECISION,
  needs_review BOOLEAN NOT NULL DEFAULT FALSE,
  start_time BIGINT,
  end_time BIGINT,
  progress_json TEXT,
  answers_json TEXT,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assignments_status_deadline ON exam_assignments(status, deadline);

CREATE INDEX IF NOT EXISTS idx_assignments_application ON exam_assignments(application_id);

CREATE TABLE IF NOT EXISTS event_log (
  "offset" BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
)
`
