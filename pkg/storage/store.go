package storage

import (
	"context"
	"errors"

	"github.com/monico-sh/monico/pkg/types"
)

// Sentinel errors for the closed storage error taxonomy. Backends wrap these
// with backend-specific detail; callers match with errors.Is.
var (
	// ErrConnection indicates a transport failure to the backend.
	ErrConnection = errors.New("storage connection failed")

	// ErrSetup indicates setup ran against an initialized store without
	// force, or a DDL failure.
	ErrSetup = errors.New("storage setup failed")

	// ErrMonitorExists indicates a unique-key violation on monitor creation.
	ErrMonitorExists = errors.New("monitor already exists")

	// ErrMonitorNotFound indicates a read or delete of an unknown monitor id.
	ErrMonitorNotFound = errors.New("monitor not found")
)

// MonitorSort selects the ordering of ListMonitors results.
type MonitorSort string

const (
	ByCreatedAtAsc   MonitorSort = "created_at_asc"
	ByLastTaskAtDesc MonitorSort = "last_task_at_desc"
)

// Store is the backend-neutral persistence contract. Each mutation runs as a
// single database transaction and rolls back on any error. Implementations
// must be safe for concurrent use.
type Store interface {
	// Connect acquires the underlying connection or pool and probes the
	// backend with a trivial query. Failures wrap ErrConnection.
	Connect(ctx context.Context) error

	// Disconnect releases the connection. Safe to call once after Connect.
	Disconnect() error

	// Setup creates all managed tables, indexes and enumerated types. With
	// force it first drops everything. Re-running without force on an
	// initialized store wraps ErrSetup.
	Setup(ctx context.Context, force bool) error

	// Teardown drops all managed objects. Idempotent.
	Teardown(ctx context.Context) error

	// CreateMonitor inserts the monitor, assigning a UUID when the id is
	// empty, and returns the stored row. Wraps ErrMonitorExists on duplicate.
	CreateMonitor(ctx context.Context, m *types.Monitor) (*types.Monitor, error)

	// ListMonitors returns all monitors in the requested order.
	ListMonitors(ctx context.Context, sort MonitorSort) ([]*types.Monitor, error)

	// ReadMonitor returns the monitor or wraps ErrMonitorNotFound.
	ReadMonitor(ctx context.Context, id string) (*types.Monitor, error)

	// DeleteMonitor removes the monitor, cascading to its tasks and probes,
	// and returns the deleted row for echo.
	DeleteMonitor(ctx context.Context, id string) (*types.Monitor, error)

	// CreateTask inserts the task as PENDING and updates the parent
	// monitor's last_task_at in the same transaction.
	CreateTask(ctx context.Context, t *types.Task) (*types.Task, error)

	// LockTasks atomically leases up to batchSize PENDING tasks in FIFO
	// order by creation timestamp: each claimed task becomes RUNNING,
	// stamped with workerID and the lease time. Concurrent callers never
	// receive overlapping task sets.
	LockTasks(ctx context.Context, workerID string, batchSize int) ([]*types.Task, error)

	// UpdateTask persists the task's status and completed_at.
	UpdateTask(ctx context.Context, t *types.Task) error

	// RecordProbe inserts the probe, updates the parent monitor's
	// last_probe_at and completes the parent task, all in one transaction.
	RecordProbe(ctx context.Context, p *types.Probe) error

	// ListProbes returns up to limit probes for the monitor, newest first.
	ListProbes(ctx context.Context, monitorID string, limit int) ([]*types.Probe, error)
}

// DefaultPrefix prefixes all managed table and type names so multiple
// deployments can share one database.
const DefaultPrefix = "monico"

// Tables holds the prefixed names of the three managed tables.
type Tables struct {
	Monitors string
	Tasks    string
	Probes   string
}

// NewTables derives table names from a prefix. An empty prefix falls back to
// DefaultPrefix.
func NewTables(prefix string) Tables {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Tables{
		Monitors: prefix + "_monitors",
		Tasks:    prefix + "_tasks",
		Probes:   prefix + "_probes",
	}
}
