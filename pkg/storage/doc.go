/*
Package storage provides durable persistence for monitors, tasks and probes
behind a backend-neutral Store interface, with PostgreSQL and embedded SQLite
implementations that preserve identical semantics.

# Architecture

Both backends speak SQL through sqlx; queries are written once with ?
placeholders and rebound to the driver's bind style. The shared sqlStore core
owns row mapping and the transactional operations; the backend structs own
connection management, DDL and the lease statement:

	┌───────────────────────── Store interface ─────────────────────────┐
	│  Connect / Disconnect / Setup / Teardown                          │
	│  CreateMonitor / ListMonitors / ReadMonitor / DeleteMonitor       │
	│  CreateTask / LockTasks / UpdateTask / RecordProbe / ListProbes   │
	└──────────────┬──────────────────────────────┬─────────────────────┘
	               │                              │
	     ┌─────────▼─────────┐          ┌─────────▼─────────┐
	     │   PostgresStore   │          │    SQLiteStore    │
	     │  pgx/v5 stdlib    │          │  modernc.org/     │
	     │  SKIP LOCKED      │          │  sqlite, WAL      │
	     │  lease            │          │  single writer    │
	     └─────────┬─────────┘          └─────────┬─────────┘
	               └──────────────┬───────────────┘
	                    ┌─────────▼─────────┐
	                    │     sqlStore      │
	                    │ row mapping, tx   │
	                    │ CRUD, rebinding   │
	                    └───────────────────┘

All table and type names carry a configurable prefix (default "monico") so
multiple deployments can share one database.

# Task lease protocol

LockTasks is the one contended operation. Both backends run a single compound
statement:

	UPDATE <tasks> SET status = 'running', locked_by = $worker, locked_at = $now
	WHERE id IN (
	    SELECT id FROM <tasks> WHERE status = 'pending'
	    ORDER BY timestamp ASC LIMIT $n [FOR UPDATE SKIP LOCKED]
	)
	RETURNING ...

On Postgres the inner select takes row locks with SKIP LOCKED, so concurrent
workers claim disjoint sets without blocking. On SQLite the engine serializes
writers, which gives the same guarantee. Lease order is task timestamp
ascending (FIFO across monitors); callers must not rely on returned row order.

Leases carry no TTL. A task leased by a dead worker stays RUNNING; the manager
issues a fresh task for the monitor once its interval elapses.

# Atomicity

CreateTask inserts the task and stamps the monitor's last_task_at in one
transaction. RecordProbe inserts the probe, stamps last_probe_at and completes
the task in one transaction. Any error rolls back the whole transaction.

# Errors

The closed taxonomy is expressed as sentinels (ErrConnection, ErrSetup,
ErrMonitorExists, ErrMonitorNotFound) wrapped with detail; match with
errors.Is. Driver-specific failures (pgconn error codes, sqlite result codes)
are classified inside the backend and never leak to callers.
*/
package storage
