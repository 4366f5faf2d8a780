package manager

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monico-sh/monico/pkg/storage"
	"github.com/monico-sh/monico/pkg/types"
)

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monico.db")
	store := storage.NewSQLiteStore("sqlite://"+path, storage.DefaultPrefix)

	ctx := context.Background()
	require.NoError(t, store.Connect(ctx))
	require.NoError(t, store.Setup(ctx, false))
	t.Cleanup(func() {
		store.Disconnect() //nolint:errcheck
	})
	return store
}

func mustMonitor(t *testing.T, store storage.Store, id string) *types.Monitor {
	t.Helper()
	monitor, err := types.NewMonitor(id, "Test Monitor", "https://example.com", 60, "")
	require.NoError(t, err)
	stored, err := store.CreateMonitor(context.Background(), monitor)
	require.NoError(t, err)
	return stored
}

func TestScheduleIssuesTaskForNewMonitor(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	monitor := mustMonitor(t, store, "m1")

	require.NoError(t, New(store).Schedule(ctx))

	batch, err := store.LockTasks(ctx, "test-worker", 10)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, monitor.ID, batch[0].MonitorID)

	read, err := store.ReadMonitor(ctx, monitor.ID)
	require.NoError(t, err)
	assert.NotNil(t, read.LastTaskAt)
}

func TestScheduleRespectsInterval(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mustMonitor(t, store, "m1")

	manager := New(store)
	require.NoError(t, manager.Schedule(ctx))
	// the second pass runs well inside the 60 s interval, so the monitor
	// is not due again
	require.NoError(t, manager.Schedule(ctx))

	batch, err := store.LockTasks(ctx, "test-worker", 10)
	require.NoError(t, err)
	assert.Len(t, batch, 1)
}

func TestScheduleCoversAllDueMonitors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	mustMonitor(t, store, "m1")
	mustMonitor(t, store, "m2")
	mustMonitor(t, store, "m3")

	require.NoError(t, New(store).Schedule(ctx))

	batch, err := store.LockTasks(ctx, "test-worker", 10)
	require.NoError(t, err)
	assert.Len(t, batch, 3)
}

func TestScheduleWithNoMonitors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, New(store).Schedule(ctx))

	batch, err := store.LockTasks(ctx, "test-worker", 10)
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestRunStopsOnCancellation(t *testing.T) {
	store := newTestStore(t)
	mustMonitor(t, store, "m1")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- New(store).Run(ctx)
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not stop after cancellation")
	}
}
