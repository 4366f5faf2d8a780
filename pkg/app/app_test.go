package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monico-sh/monico/pkg/storage"
	"github.com/monico-sh/monico/pkg/types"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monico.db")
	store := storage.NewSQLiteStore("sqlite://"+path, storage.DefaultPrefix)

	a := New(store)
	ctx := context.Background()
	require.NoError(t, a.Connect(ctx))
	require.NoError(t, a.Setup(ctx, false))
	t.Cleanup(func() {
		a.Shutdown() //nolint:errcheck
	})
	return a
}

func TestCreateMonitorValidates(t *testing.T) {
	a := newTestApp(t)

	_, err := a.CreateMonitor(context.Background(), "bad id!", "Test", "https://example.com", 60, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrAttribute)

	monitors, err := a.ListMonitors(context.Background())
	require.NoError(t, err)
	assert.Empty(t, monitors)
}

func TestMonitorLifecycle(t *testing.T) {
	ctx := context.Background()
	a := newTestApp(t)

	created, err := a.CreateMonitor(ctx, "m1", "Test Monitor", "example.com", 60, "")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", created.Endpoint)

	monitors, err := a.ListMonitors(ctx)
	require.NoError(t, err)
	require.Len(t, monitors, 1)

	monitor, probes, err := a.Status(ctx, "m1", 10)
	require.NoError(t, err)
	assert.Equal(t, "m1", monitor.ID)
	assert.Empty(t, probes)

	deleted, err := a.DeleteMonitor(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", deleted.ID)

	_, _, err = a.Status(ctx, "m1", 10)
	assert.ErrorIs(t, err, storage.ErrMonitorNotFound)
}

func TestShutdownIsIdempotent(t *testing.T) {
	a := newTestApp(t)

	assert.NoError(t, a.Shutdown())
	assert.NoError(t, a.Shutdown())
}
