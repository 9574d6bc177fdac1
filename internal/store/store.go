package store

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jward/sugarsurvey/internal/analysis"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// dialect rewrites the portable DDL placeholders for one backend.
type dialect struct {
	name     string
	replacer *strings.Replacer
}

var dialects = map[string]dialect{
	DriverSQLite: {
		name:     DriverSQLite,
		replacer: strings.NewReplacer("{{id}}", "INTEGER PRIMARY KEY", "{{ts}}", "TIMESTAMP"),
	},
	DriverPostgres: {
		name:     DriverPostgres,
		replacer: strings.NewReplacer("{{id}}", "BIGSERIAL PRIMARY KEY", "{{ts}}", "TIMESTAMPTZ"),
	},
}

// NormalizeDriver maps user-facing driver names onto registered drivers.
func NormalizeDriver(driver string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "pgx", "postgres", "postgresql":
		return DriverPostgres, nil
	}
	return "", fmt.Errorf("unsupported driver %q (want sqlite3 or pgx)", driver)
}

// Store is the relational sink for snapshots and their occurrences.
type Store struct {
	db      *sqlx.DB
	dialect dialect
}

// Open connects to dsn with the given driver. SQLite DSNs without options get
// WAL mode, foreign keys and a busy timeout.
func Open(driver, dsn string) (*Store, error) {
	driver, err := NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite && !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000"
	}
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if driver == DriverSQLite {
		// One writer at a time; snapshot transactions queue instead of failing busy.
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db, dialect: dialects[driver]}, nil
}

// NewStore opens a SQLite database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	return Open(DriverSQLite, dbPath)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sqlx.DB for ad-hoc queries.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Driver returns the database/sql driver name.
func (s *Store) Driver() string {
	return s.dialect.name
}

// ExecDDL runs each statement after expanding dialect placeholders.
func (s *Store) ExecDDL(ctx context.Context, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, s.dialect.replacer.Replace(stmt)); err != nil {
			return err
		}
	}
	return nil
}

var _ analysis.Schema = (*Store)(nil)

// Migrate creates the snapshots table, then runs every analysis's Init once.
// Idempotent.
func (s *Store) Migrate(ctx context.Context, reg analysis.Registry) error {
	if err := s.ExecDDL(ctx, snapshotsDDL...); err != nil {
		return &StoreError{Op: "migrate", Err: err}
	}
	for _, d := range reg.Descriptors() {
		if d.Init == nil {
			continue
		}
		if err := d.Init(ctx, s); err != nil {
			return &StoreError{Op: "migrate " + d.Name, Err: err}
		}
	}
	return nil
}

var snapshotsDDL = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
  id              {{id}},
  repository      TEXT NOT NULL,
  month_bucket    INTEGER NOT NULL,
  month           TEXT NOT NULL,
  commit_hash     TEXT NOT NULL,
  committed_at    {{ts}} NOT NULL,
  run_id          TEXT NOT NULL,
  UNIQUE (repository, month_bucket)
)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_month ON snapshots(month_bucket)`,
}

// TableExists reports whether a table of that name exists.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var q string
	switch s.dialect.name {
	case DriverPostgres:
		q = `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?`
	default:
		q = `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
	}
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(q), table); err != nil {
		return false, fmt.Errorf("table exists %s: %w", table, err)
	}
	return n > 0, nil
}
