package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/monico-sh/monico/pkg/types"
)

func init() {
	// modernc registers itself as "sqlite"; teach sqlx its bind style.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// SQLiteStore implements Store over an embedded single-file SQLite database
// using the pure-Go modernc driver. The engine serializes writers, so the
// plain compound UPDATE suffices for the lease protocol.
type SQLiteStore struct {
	sqlStore
	uri string
}

// NewSQLiteStore prepares a store for a sqlite:///path URI. Connect must be
// called before any other operation.
func NewSQLiteStore(uri, prefix string) *SQLiteStore {
	s := &SQLiteStore{uri: uri}
	s.tables = NewTables(prefix)
	s.isUniqueViolation = isSQLiteUniqueViolation
	return s
}

func isSQLiteUniqueViolation(err error) bool {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	code := sqlErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// databasePath strips the sqlite:// scheme, leaving the filesystem path.
func (s *SQLiteStore) databasePath() string {
	return strings.TrimPrefix(s.uri, "sqlite://")
}

// Connect creates the parent directory if needed, opens the database file and
// applies the recommended pragmas: WAL journal mode, synchronous=NORMAL,
// foreign_keys=ON, busy_timeout=5000.
func (s *SQLiteStore) Connect(ctx context.Context) error {
	path := s.databasePath()
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: %v", ErrConnection, err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	// Single writer: one connection avoids SQLITE_BUSY under concurrency.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return fmt.Errorf("%w: %q on %s: %v", ErrConnection, p, path, err)
		}
	}

	if _, err := db.ExecContext(ctx, "SELECT 1"); err != nil {
		db.Close()
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	s.db = db
	return nil
}

// Disconnect closes the database file.
func (s *SQLiteStore) Disconnect() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Setup creates the tables and indexes. SQLite has no enumerated types, so
// status columns carry CHECK constraints over the same value sets as the
// Postgres enums.
func (s *SQLiteStore) Setup(ctx context.Context, force bool) error {
	if force {
		if err := s.Teardown(ctx); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSetup, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, stmt := range s.setupStatements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			if strings.Contains(err.Error(), "already exists") {
				return fmt.Errorf("%w: storage already initialized", ErrSetup)
			}
			return fmt.Errorf("%w: %v", ErrSetup, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrSetup, err)
	}
	return nil
}

func (s *SQLiteStore) setupStatements() []string {
	t := s.tables
	return []string{
		fmt.Sprintf(`CREATE TABLE %s (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			interval INTEGER NOT NULL,
			body_regexp TEXT NULL,
			last_task_at INTEGER NULL,
			last_probe_at INTEGER NULL,
			created_at INTEGER NOT NULL
		)`, t.Monitors),
		fmt.Sprintf("CREATE INDEX %s_last_probe_at_idx ON %s (last_probe_at)", t.Monitors, t.Monitors),
		fmt.Sprintf("CREATE INDEX %s_created_at_idx ON %s (created_at)", t.Monitors, t.Monitors),

		fmt.Sprintf(`CREATE TABLE %s (
			id TEXT PRIMARY KEY,
			timestamp INTEGER NOT NULL,
			fk_monitor TEXT NOT NULL,
			status TEXT CHECK (status IN (%s)) NOT NULL,
			locked_at INTEGER NULL,
			locked_by TEXT NULL,
			completed_at INTEGER NULL,
			FOREIGN KEY(fk_monitor)
				REFERENCES %s(id) ON DELETE CASCADE
		)`, t.Tasks, enumValues(taskStatusValues()), t.Monitors),
		fmt.Sprintf("CREATE INDEX %s_fk_monitor_idx ON %s (fk_monitor)", t.Tasks, t.Tasks),

		fmt.Sprintf(`CREATE TABLE %s (
			id TEXT PRIMARY KEY,
			timestamp INTEGER NOT NULL,
			fk_monitor TEXT NOT NULL,
			fk_task TEXT NULL,
			response_time FLOAT NULL,
			response_code INTEGER NULL,
			response_error TEXT CHECK (response_error IN (%s)) NULL,
			content_match TEXT NULL,
			FOREIGN KEY(fk_monitor)
				REFERENCES %s(id) ON DELETE CASCADE,
			FOREIGN KEY(fk_task)
				REFERENCES %s(id) ON DELETE SET NULL
		)`, t.Probes, enumValues(probeErrorValues()), t.Monitors, t.Tasks),
		fmt.Sprintf("CREATE INDEX %s_timestamp_idx ON %s (timestamp)", t.Probes, t.Probes),
		fmt.Sprintf("CREATE INDEX %s_fk_monitor_idx ON %s (fk_monitor)", t.Probes, t.Probes),
	}
}

// Teardown drops all managed tables.
func (s *SQLiteStore) Teardown(ctx context.Context) error {
	t := s.tables
	stmts := []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s", t.Probes),
		fmt.Sprintf("DROP TABLE IF EXISTS %s", t.Tasks),
		fmt.Sprintf("DROP TABLE IF EXISTS %s", t.Monitors),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("teardown: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) CreateMonitor(ctx context.Context, m *types.Monitor) (*types.Monitor, error) {
	return s.createMonitor(ctx, m)
}

func (s *SQLiteStore) ListMonitors(ctx context.Context, sort MonitorSort) ([]*types.Monitor, error) {
	return s.listMonitors(ctx, sort)
}

func (s *SQLiteStore) ReadMonitor(ctx context.Context, id string) (*types.Monitor, error) {
	return s.readMonitor(ctx, id)
}

func (s *SQLiteStore) DeleteMonitor(ctx context.Context, id string) (*types.Monitor, error) {
	return s.deleteMonitor(ctx, id)
}

func (s *SQLiteStore) CreateTask(ctx context.Context, t *types.Task) (*types.Task, error) {
	return s.createTask(ctx, t)
}

// LockTasks leases a batch with a compound UPDATE ... RETURNING. SQLite
// serializes writers at the engine level, so no explicit row locking is
// needed for batch disjointness.
func (s *SQLiteStore) LockTasks(ctx context.Context, workerID string, batchSize int) ([]*types.Task, error) {
	leaseSQL := fmt.Sprintf(`
		UPDATE %s SET
			status = 'running',
			locked_by = ?,
			locked_at = ?
		WHERE id IN (
			SELECT id FROM %s
			WHERE status = 'pending'
			ORDER BY timestamp ASC
			LIMIT ?
		)
		RETURNING %s`,
		s.tables.Tasks, s.tables.Tasks, taskColumns,
	)
	return s.lockTasks(ctx, leaseSQL, workerID, batchSize)
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, t *types.Task) error {
	return s.updateTask(ctx, t)
}

func (s *SQLiteStore) RecordProbe(ctx context.Context, p *types.Probe) error {
	return s.recordProbe(ctx, p)
}

func (s *SQLiteStore) ListProbes(ctx context.Context, monitorID string, limit int) ([]*types.Probe, error) {
	return s.listProbes(ctx, monitorID, limit)
}
