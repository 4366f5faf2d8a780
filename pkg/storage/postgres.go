package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver
	"github.com/jmoiron/sqlx"

	"github.com/monico-sh/monico/pkg/types"
)

// Postgres error codes used for error classification.
const (
	pgUniqueViolation = "23505"
	pgDuplicateTable  = "42P07"
)

// PostgresStore implements Store over a client/server PostgreSQL database.
// The lease query uses FOR UPDATE SKIP LOCKED so concurrent workers never
// block each other on the pending-task scan.
type PostgresStore struct {
	sqlStore
	uri string
}

// NewPostgresStore prepares a store for the given connection URI. Connect must
// be called before any other operation.
func NewPostgresStore(uri, prefix string) *PostgresStore {
	s := &PostgresStore{uri: uri}
	s.tables = NewTables(prefix)
	s.isUniqueViolation = isPgUniqueViolation
	return s
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Connect opens the pool and probes the server with SELECT version().
func (s *PostgresStore) Connect(ctx context.Context) error {
	db, err := sqlx.Open("pgx", s.uri)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	var version string
	if err := db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		db.Close()
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	s.db = db
	return nil
}

// Disconnect closes the pool.
func (s *PostgresStore) Disconnect() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Setup creates the enumerated types, tables and indexes. With force it tears
// everything down first. Running against an initialized store fails.
func (s *PostgresStore) Setup(ctx context.Context, force bool) error {
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
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateTable {
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

func (s *PostgresStore) setupStatements() []string {
	t := s.tables
	return []string{
		fmt.Sprintf(`CREATE TABLE %s (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			interval INT NOT NULL,
			body_regexp TEXT NULL,
			last_task_at BIGINT NULL,
			last_probe_at BIGINT NULL,
			created_at BIGINT DEFAULT EXTRACT(EPOCH FROM NOW())
		)`, t.Monitors),
		fmt.Sprintf("CREATE INDEX %s_last_probe_at_idx ON %s (last_probe_at)", t.Monitors, t.Monitors),
		fmt.Sprintf("CREATE INDEX %s_created_at_idx ON %s (created_at)", t.Monitors, t.Monitors),

		fmt.Sprintf("CREATE TYPE %s_status AS ENUM (%s)", t.Tasks, enumValues(taskStatusValues())),
		fmt.Sprintf(`CREATE TABLE %s (
			id TEXT PRIMARY KEY,
			timestamp BIGINT NOT NULL,
			fk_monitor TEXT NOT NULL,
			status %s_status NOT NULL,
			locked_at BIGINT NULL,
			locked_by TEXT NULL,
			completed_at BIGINT NULL,
			CONSTRAINT fk_monitor
				FOREIGN KEY(fk_monitor)
					REFERENCES %s(id) ON DELETE CASCADE
		)`, t.Tasks, t.Tasks, t.Monitors),
		fmt.Sprintf("CREATE INDEX %s_fk_monitor_idx ON %s (fk_monitor)", t.Tasks, t.Tasks),

		fmt.Sprintf("CREATE TYPE %s_response_error AS ENUM (%s)", t.Probes, enumValues(probeErrorValues())),
		fmt.Sprintf(`CREATE TABLE %s (
			id TEXT PRIMARY KEY,
			timestamp BIGINT NOT NULL,
			fk_monitor TEXT NOT NULL,
			fk_task TEXT NULL,
			response_time FLOAT NULL,
			response_code INT NULL,
			response_error %s_response_error NULL,
			content_match TEXT NULL,
			CONSTRAINT fk_monitor
				FOREIGN KEY(fk_monitor)
					REFERENCES %s(id) ON DELETE CASCADE,
			CONSTRAINT fk_task
				FOREIGN KEY(fk_task)
					REFERENCES %s(id) ON DELETE SET NULL
		)`, t.Probes, t.Probes, t.Monitors, t.Tasks),
		fmt.Sprintf("CREATE INDEX %s_timestamp_idx ON %s (timestamp)", t.Probes, t.Probes),
		fmt.Sprintf("CREATE INDEX %s_fk_monitor_idx ON %s (fk_monitor)", t.Probes, t.Probes),
	}
}

// Teardown drops all managed tables and types.
func (s *PostgresStore) Teardown(ctx context.Context) error {
	t := s.tables
	stmts := []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s", t.Probes),
		fmt.Sprintf("DROP TYPE IF EXISTS %s_response_error", t.Probes),
		fmt.Sprintf("DROP TABLE IF EXISTS %s", t.Tasks),
		fmt.Sprintf("DROP TYPE IF EXISTS %s_status", t.Tasks),
		fmt.Sprintf("DROP TABLE IF EXISTS %s", t.Monitors),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("teardown: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateMonitor(ctx context.Context, m *types.Monitor) (*types.Monitor, error) {
	return s.createMonitor(ctx, m)
}

func (s *PostgresStore) ListMonitors(ctx context.Context, sort MonitorSort) ([]*types.Monitor, error) {
	return s.listMonitors(ctx, sort)
}

func (s *PostgresStore) ReadMonitor(ctx context.Context, id string) (*types.Monitor, error) {
	return s.readMonitor(ctx, id)
}

func (s *PostgresStore) DeleteMonitor(ctx context.Context, id string) (*types.Monitor, error) {
	return s.deleteMonitor(ctx, id)
}

func (s *PostgresStore) CreateTask(ctx context.Context, t *types.Task) (*types.Task, error) {
	return s.createTask(ctx, t)
}

// LockTasks leases a batch in one compound statement. Row locks taken by the
// inner SELECT ... FOR UPDATE SKIP LOCKED guarantee disjoint batches across
// concurrent workers.
func (s *PostgresStore) LockTasks(ctx context.Context, workerID string, batchSize int) ([]*types.Task, error) {
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
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s`,
		s.tables.Tasks, s.tables.Tasks, taskColumns,
	)
	return s.lockTasks(ctx, leaseSQL, workerID, batchSize)
}

func (s *PostgresStore) UpdateTask(ctx context.Context, t *types.Task) error {
	return s.updateTask(ctx, t)
}

func (s *PostgresStore) RecordProbe(ctx context.Context, p *types.Probe) error {
	return s.recordProbe(ctx, p)
}

func (s *PostgresStore) ListProbes(ctx context.Context, monitorID string, limit int) ([]*types.Probe, error) {
	return s.listProbes(ctx, monitorID, limit)
}

func taskStatusValues() []string {
	values := make([]string, 0, len(types.TaskStatuses))
	for _, s := range types.TaskStatuses {
		values = append(values, string(s))
	}
	return values
}

func probeErrorValues() []string {
	values := make([]string, 0, len(types.ProbeErrors))
	for _, e := range types.ProbeErrors {
		values = append(values, string(e))
	}
	return values
}

func enumValues(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, "'"+v+"'")
	}
	return strings.Join(quoted, ", ")
}
