// Package db persists the run event log. Every pipeline decision and
// every agent invocation is recorded so runs can be inspected and
// aggregated after the fact. SQLite is the default backend; postgres is
// selectable for shared deployments.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const (
	driverSQLite   = "sqlite3"
	driverPostgres = "postgres"
)

// DB wraps the event-log database connection.
type DB struct {
	conn   *sql.DB
	driver string
	path   string
}

// DefaultDBPath returns ~/.repofactor/repofactor.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	dir := filepath.Join(home, ".repofactor")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	return filepath.Join(dir, "repofactor.db"), nil
}

// Open opens the event log. For "sqlite3" (or an empty driver) dsn is a
// file path, defaulting to DefaultDBPath when empty. For "postgres" dsn
// is a connection string and is required.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case "", driverSQLite:
		path := dsn
		if path == "" {
			var err error
			if path, err = DefaultDBPath(); err != nil {
				return nil, err
			}
		}
		conn, err := sql.Open("sqlite3", path)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		conn.SetMaxOpenConns(1)
		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set journal mode: %w", err)
		}
		if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
		return &DB{conn: conn, driver: driverSQLite, path: path}, nil

	case driverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("postgres driver requires database.dsn")
		}
		conn, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := conn.Ping(); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		return &DB{conn: conn, driver: driverPostgres, path: dsn}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying *sql.DB for advanced queries.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Driver reports which backend the log was opened with.
func (d *DB) Driver() string {
	return d.driver
}

// Rebind rewrites ? placeholders to $n for postgres. SQLite queries pass
// through unchanged. Packages querying through Conn directly should run
// their SQL through Rebind first.
func (d *DB) Rebind(query string) string {
	if d.driver != driverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// schemaStatements returns the v1 DDL. Statements are applied one at a
// time because the postgres driver rejects multi-statement Exec calls.
func schemaStatements(driver string) []string {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == driverPostgres {
		pk = "BIGSERIAL PRIMARY KEY"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS run_events (
    id        %s,
    run_id    TEXT NOT NULL,
    event     TEXT NOT NULL CHECK(event IN ('decision','stage_complete','stage_failed','research_applied','terminal')),
    stage     TEXT,
    action    TEXT,
    retry     INTEGER,
    detail    TEXT,
    timestamp TEXT NOT NULL
)`, pk),
		`CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id, id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS agent_calls (
    id          %s,
    run_id      TEXT NOT NULL,
    agent       TEXT NOT NULL,
    model       TEXT,
    attempt     INTEGER NOT NULL DEFAULT 1,
    duration_ms INTEGER,
    success     BOOLEAN NOT NULL,
    error       TEXT,
    timestamp   TEXT NOT NULL
)`, pk),
		`CREATE INDEX IF NOT EXISTS idx_agent_calls_run ON agent_calls(run_id, id)`,
	}
}

// Migrate applies the database schema.
func (d *DB) Migrate() error {
	var count int
	err := d.conn.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = 1").Scan(&count)
	if err == nil && count > 0 {
		return nil
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements(d.driver) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema v1: %w", err)
		}
	}
	if _, err := tx.Exec(d.Rebind("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)"), 1, now()); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Reset drops all tables and re-applies the schema.
func (d *DB) Reset() error {
	tables := []string{"agent_calls", "run_events", "schema_version"}
	for _, t := range tables {
		if _, err := d.conn.Exec("DROP TABLE IF EXISTS " + t); err != nil {
			return fmt.Errorf("drop table %s: %w", t, err)
		}
	}
	return d.Migrate()
}
