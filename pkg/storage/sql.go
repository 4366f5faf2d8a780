package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/monico-sh/monico/pkg/types"
)

// sqlStore implements everything the two SQL backends share: row mapping and
// the transactional CRUD operations. Queries are written with ? placeholders
// and rebound to the backend's bind variable style via sqlx. Backend structs
// embed sqlStore and supply connection management, DDL and the lease query.
type sqlStore struct {
	db     *sqlx.DB
	tables Tables

	// isUniqueViolation classifies driver errors for CreateMonitor.
	isUniqueViolation func(error) bool
}

type monitorRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Endpoint    string         `db:"endpoint"`
	Interval    int            `db:"interval"`
	BodyRegexp  sql.NullString `db:"body_regexp"`
	LastTaskAt  sql.NullInt64  `db:"last_task_at"`
	LastProbeAt sql.NullInt64  `db:"last_probe_at"`
	CreatedAt   sql.NullInt64  `db:"created_at"`
}

func (r monitorRow) toMonitor() *types.Monitor {
	m := &types.Monitor{
		ID:        r.ID,
		Name:      r.Name,
		Endpoint:  r.Endpoint,
		Interval:  r.Interval,
		CreatedAt: r.CreatedAt.Int64,
	}
	if r.BodyRegexp.Valid {
		m.BodyRegexp = r.BodyRegexp.String
	}
	if r.LastTaskAt.Valid {
		v := r.LastTaskAt.Int64
		m.LastTaskAt = &v
	}
	if r.LastProbeAt.Valid {
		v := r.LastProbeAt.Int64
		m.LastProbeAt = &v
	}
	return m
}

type taskRow struct {
	ID          string         `db:"id"`
	Timestamp   int64          `db:"timestamp"`
	MonitorID   string         `db:"fk_monitor"`
	Status      string         `db:"status"`
	LockedAt    sql.NullInt64  `db:"locked_at"`
	LockedBy    sql.NullString `db:"locked_by"`
	CompletedAt sql.NullInt64  `db:"completed_at"`
}

func (r taskRow) toTask() *types.Task {
	t := &types.Task{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		MonitorID: r.MonitorID,
		Status:    types.TaskStatus(r.Status),
	}
	if r.LockedAt.Valid {
		v := r.LockedAt.Int64
		t.LockedAt = &v
	}
	if r.LockedBy.Valid {
		v := r.LockedBy.String
		t.LockedBy = &v
	}
	if r.CompletedAt.Valid {
		v := r.CompletedAt.Int64
		t.CompletedAt = &v
	}
	return t
}

type probeRow struct {
	ID            string          `db:"id"`
	Timestamp     int64           `db:"timestamp"`
	MonitorID     string          `db:"fk_monitor"`
	TaskID        sql.NullString  `db:"fk_task"`
	ResponseTime  sql.NullFloat64 `db:"response_time"`
	ResponseCode  sql.NullInt64   `db:"response_code"`
	ResponseError sql.NullString  `db:"response_error"`
	ContentMatch  sql.NullString  `db:"content_match"`
}

func (r probeRow) toProbe() *types.Probe {
	p := &types.Probe{
		ID:           r.ID,
		Timestamp:    r.Timestamp,
		MonitorID:    r.MonitorID,
		TaskID:       r.TaskID.String,
		ResponseTime: r.ResponseTime.Float64,
	}
	if r.ResponseCode.Valid {
		v := int(r.ResponseCode.Int64)
		p.ResponseCode = &v
	}
	if r.ResponseError.Valid {
		v := types.ProbeError(r.ResponseError.String)
		p.ResponseError = &v
	}
	if r.ContentMatch.Valid {
		v := r.ContentMatch.String
		p.ContentMatch = &v
	}
	return p
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const monitorColumns = "id, name, endpoint, interval, body_regexp, last_task_at, last_probe_at, created_at"
const taskColumns = "id, timestamp, fk_monitor, status, locked_at, locked_by, completed_at"
const probeColumns = "id, timestamp, fk_monitor, fk_task, response_time, response_code, response_error, content_match"

func (s *sqlStore) createMonitor(ctx context.Context, m *types.Monitor) (*types.Monitor, error) {
	stored := *m
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.CreatedAt = time.Now().Unix()

	query := s.db.Rebind(fmt.Sprintf(
		"INSERT INTO %s (id, name, endpoint, interval, body_regexp, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		s.tables.Monitors,
	))
	_, err := s.db.ExecContext(ctx, query,
		stored.ID, stored.Name, stored.Endpoint, stored.Interval,
		nullString(stored.BodyRegexp), stored.CreatedAt,
	)
	if err != nil {
		if s.isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: monitor with ID %q", ErrMonitorExists, stored.ID)
		}
		return nil, fmt.Errorf("create monitor %s: %w", stored.ID, err)
	}
	return &stored, nil
}

func (s *sqlStore) listMonitors(ctx context.Context, sort MonitorSort) ([]*types.Monitor, error) {
	order := "created_at ASC"
	if sort == ByLastTaskAtDesc {
		order = "last_task_at DESC"
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", monitorColumns, s.tables.Monitors, order)

	var rows []monitorRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	monitors := make([]*types.Monitor, 0, len(rows))
	for _, r := range rows {
		monitors = append(monitors, r.toMonitor())
	}
	return monitors, nil
}

func (s *sqlStore) readMonitor(ctx context.Context, id string) (*types.Monitor, error) {
	query := s.db.Rebind(fmt.Sprintf(
		"SELECT %s FROM %s WHERE id = ?", monitorColumns, s.tables.Monitors,
	))
	var row monitorRow
	err := s.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: monitor with ID %q", ErrMonitorNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read monitor %s: %w", id, err)
	}
	return row.toMonitor(), nil
}

func (s *sqlStore) deleteMonitor(ctx context.Context, id string) (*types.Monitor, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("delete monitor %s: begin: %w", id, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := tx.Rebind(fmt.Sprintf(
		"SELECT %s FROM %s WHERE id = ?", monitorColumns, s.tables.Monitors,
	))
	var row monitorRow
	err = tx.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: monitor with ID %q", ErrMonitorNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("delete monitor %s: %w", id, err)
	}

	del := tx.Rebind(fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tables.Monitors))
	if _, err := tx.ExecContext(ctx, del, id); err != nil {
		return nil, fmt.Errorf("delete monitor %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("delete monitor %s: commit: %w", id, err)
	}
	return row.toMonitor(), nil
}

func (s *sqlStore) createTask(ctx context.Context, t *types.Task) (*types.Task, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create task: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	insert := tx.Rebind(fmt.Sprintf(
		"INSERT INTO %s (id, timestamp, fk_monitor, status) VALUES (?, ?, ?, ?)",
		s.tables.Tasks,
	))
	if _, err := tx.ExecContext(ctx, insert, t.ID, t.Timestamp, t.MonitorID, string(t.Status)); err != nil {
		return nil, fmt.Errorf("create task %s: %w", t.ID, err)
	}

	update := tx.Rebind(fmt.Sprintf(
		"UPDATE %s SET last_task_at = ? WHERE id = ?", s.tables.Monitors,
	))
	if _, err := tx.ExecContext(ctx, update, t.Timestamp, t.MonitorID); err != nil {
		return nil, fmt.Errorf("create task %s: stamp monitor: %w", t.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create task %s: commit: %w", t.ID, err)
	}
	return t, nil
}

// lockTasks runs the backend-supplied lease statement. The statement must
// claim up to batchSize PENDING tasks FIFO and return the claimed rows; its
// bind parameters are (worker id, lease time, batch size) in ? order.
func (s *sqlStore) lockTasks(ctx context.Context, leaseSQL, workerID string, batchSize int) ([]*types.Task, error) {
	now := time.Now().Unix()
	var rows []taskRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(leaseSQL), workerID, now, batchSize)
	if err != nil {
		return nil, fmt.Errorf("lock tasks for %s: %w", workerID, err)
	}
	tasks := make([]*types.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.toTask())
	}
	return tasks, nil
}

func (s *sqlStore) updateTask(ctx context.Context, t *types.Task) error {
	query := s.db.Rebind(fmt.Sprintf(
		"UPDATE %s SET status = ?, completed_at = ? WHERE id = ?", s.tables.Tasks,
	))
	var completedAt sql.NullInt64
	if t.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: *t.CompletedAt, Valid: true}
	}
	if _, err := s.db.ExecContext(ctx, query, string(t.Status), completedAt, t.ID); err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	return nil
}

func (s *sqlStore) recordProbe(ctx context.Context, p *types.Probe) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record probe: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var code sql.NullInt64
	if p.ResponseCode != nil {
		code = sql.NullInt64{Int64: int64(*p.ResponseCode), Valid: true}
	}
	var probeErr sql.NullString
	if p.ResponseError != nil {
		probeErr = sql.NullString{String: string(*p.ResponseError), Valid: true}
	}
	var match sql.NullString
	if p.ContentMatch != nil {
		match = sql.NullString{String: *p.ContentMatch, Valid: true}
	}

	insert := tx.Rebind(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		s.tables.Probes, probeColumns,
	))
	if _, err := tx.ExecContext(ctx, insert,
		p.ID, p.Timestamp, p.MonitorID, p.TaskID,
		p.ResponseTime, code, probeErr, match,
	); err != nil {
		return fmt.Errorf("record probe %s: %w", p.ID, err)
	}

	stamp := tx.Rebind(fmt.Sprintf(
		"UPDATE %s SET last_probe_at = ? WHERE id = ?", s.tables.Monitors,
	))
	if _, err := tx.ExecContext(ctx, stamp, p.Timestamp, p.MonitorID); err != nil {
		return fmt.Errorf("record probe %s: stamp monitor: %w", p.ID, err)
	}

	complete := tx.Rebind(fmt.Sprintf(
		"UPDATE %s SET status = ?, completed_at = ? WHERE id = ?", s.tables.Tasks,
	))
	if _, err := tx.ExecContext(ctx, complete, string(types.TaskStatusCompleted), p.Timestamp, p.TaskID); err != nil {
		return fmt.Errorf("record probe %s: complete task: %w", p.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record probe %s: commit: %w", p.ID, err)
	}
	return nil
}

func (s *sqlStore) listProbes(ctx context.Context, monitorID string, limit int) ([]*types.Probe, error) {
	query := s.db.Rebind(fmt.Sprintf(
		"SELECT %s FROM %s WHERE fk_monitor = ? ORDER BY timestamp DESC LIMIT ?",
		probeColumns, s.tables.Probes,
	))
	var rows []probeRow
	if err := s.db.SelectContext(ctx, &rows, query, monitorID, limit); err != nil {
		return nil, fmt.Errorf("list probes for %s: %w", monitorID, err)
	}
	probes := make([]*types.Probe, 0, len(rows))
	for _, r := range rows {
		probes = append(probes, r.toProbe())
	}
	return probes, nil
}
