package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverMemory   Driver = "memory"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists. DriverMemory has no database
// and is rejected here; callers pick the in-memory stores instead.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:skillassess.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/skillassess?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// single writer; avoids SQLITE_BUSY between pooled connections
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
PRAGMA foreign_keys=ON;

CREATE TABLE IF NOT EXISTS templates (
  code TEXT PRIMARY KEY,
  skills TEXT NOT NULL,
  difficulty TEXT NOT NULL,
  time_limit_min INTEGER NOT NULL,
  questions_json TEXT NOT NULL,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL REFERENCES templates(code),
  candidate_name TEXT NOT NULL,
  status TEXT NOT NULL,
  answers_json TEXT NOT NULL,
  started_at INTEGER NOT NULL,
  deadline INTEGER NOT NULL,
  submitted_at INTEGER,
  forced INTEGER NOT NULL DEFAULT 0,
  result_json TEXT,
  ledger_seq INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS sessions_active_deadline ON sessions (status, deadline);
CREATE INDEX IF NOT EXISTS sessions_candidate ON sessions (code, candidate_name);

CREATE TABLE IF NOT EXISTS submissions (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  session_id TEXT NOT NULL,
  test_code TEXT NOT NULL,
  candidate_name TEXT NOT NULL,
  score INTEGER NOT NULL,
  total INTEGER NOT NULL,
  percentage INTEGER NOT NULL,
  status TEXT NOT NULL,
  forced INTEGER NOT NULL DEFAULT 0,
  graded_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS submissions_session ON submissions (session_id);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS templates (
  code TEXT PRIMARY KEY,
  skills TEXT NOT NULL,
  difficulty TEXT NOT NULL,
  time_limit_min INTEGER NOT NULL,
  questions_json TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL REFERENCES templates(code),
  candidate_name TEXT NOT NULL,
  status TEXT NOT NULL,
  answers_json TEXT NOT NULL,
  started_at BIGINT NOT NULL,
  deadline BIGINT NOT NULL,
  submitted_at BIGINT,
  forced INTEGER NOT NULL DEFAULT 0,
  result_json TEXT,
  ledger_seq BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS sessions_active_deadline ON sessions (status, deadline);
CREATE INDEX IF NOT EXISTS sessions_candidate ON sessions (code, candidate_name);

CREATE TABLE IF NOT EXISTS submissions (
  seq BIGSERIAL PRIMARY KEY,
  session_id TEXT NOT NULL,
  test_code TEXT NOT NULL,
  candidate_name TEXT NOT NULL,
  score INTEGER NOT NULL,
  total INTEGER NOT NULL,
  percentage INTEGER NOT NULL,
  status TEXT NOT NULL,
  forced INTEGER NOT NULL DEFAULT 0,
  graded_at BIGINT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS submissions_session ON submissions (session_id);
`
