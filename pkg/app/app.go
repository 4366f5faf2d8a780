package app

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/monico-sh/monico/pkg/manager"
	"github.com/monico-sh/monico/pkg/storage"
	"github.com/monico-sh/monico/pkg/types"
	"github.com/monico-sh/monico/pkg/worker"
)

// App is the composition root: it owns the storage handle and exposes the
// core operations the adapter layer (CLI) dispatches to. Validation lives in
// the domain constructors; storage errors propagate unchanged.
type App struct {
	store storage.Store

	shutdownOnce sync.Once
	shutdownErr  error
}

// New wires an app on top of the given store.
func New(store storage.Store) *App {
	return &App{store: store}
}

// Connect acquires the storage connection.
func (a *App) Connect(ctx context.Context) error {
	return a.store.Connect(ctx)
}

// Setup initializes the database schema; with force it drops and recreates
// all managed objects.
func (a *App) Setup(ctx context.Context, force bool) error {
	return a.store.Setup(ctx, force)
}

// CreateMonitor validates the fields and persists a new monitor.
func (a *App) CreateMonitor(ctx context.Context, id, name, endpoint string, interval int, bodyRegexp string) (*types.Monitor, error) {
	monitor, err := types.NewMonitor(id, name, endpoint, interval, bodyRegexp)
	if err != nil {
		return nil, err
	}
	return a.store.CreateMonitor(ctx, monitor)
}

// ListMonitors returns all monitors, oldest first.
func (a *App) ListMonitors(ctx context.Context) ([]*types.Monitor, error) {
	return a.store.ListMonitors(ctx, storage.ByCreatedAtAsc)
}

// DeleteMonitor removes a monitor and everything that cascades from it,
// returning the deleted row for echo.
func (a *App) DeleteMonitor(ctx context.Context, id string) (*types.Monitor, error) {
	return a.store.DeleteMonitor(ctx, id)
}

// Status returns the monitor and its most recent probes, newest first.
func (a *App) Status(ctx context.Context, id string, limit int) (*types.Monitor, []*types.Probe, error) {
	monitor, err := a.store.ReadMonitor(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	probes, err := a.store.ListProbes(ctx, id, limit)
	if err != nil {
		return nil, nil, err
	}
	return monitor, probes, nil
}

// RunManager runs the scheduling loop until ctx is cancelled.
func (a *App) RunManager(ctx context.Context) error {
	return manager.New(a.store).Run(ctx)
}

// RunWorker runs a probing loop until ctx is cancelled. An empty workerID
// gets a generated UUID.
func (a *App) RunWorker(ctx context.Context, workerID string) error {
	return worker.New(a.store, workerID).Run(ctx)
}

// Run runs manager and worker concurrently in one process, joining both.
func (a *App) Run(ctx context.Context, workerID string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.New(a.store).Run(ctx)
	})
	g.Go(func() error {
		return worker.New(a.store, workerID).Run(ctx)
	})
	return g.Wait()
}

// Shutdown disconnects storage. Safe to call more than once; only the first
// call closes the connection.
func (a *App) Shutdown() error {
	a.shutdownOnce.Do(func() {
		a.shutdownErr = a.store.Disconnect()
	})
	return a.shutdownErr
}
