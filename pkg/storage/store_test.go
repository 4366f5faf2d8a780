package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monico-sh/monico/pkg/types"
)

// runStoreSuite exercises the Store contract against a backend. Both backends
// must pass it unchanged; the lease protocol and the transactional guarantees
// are backend-neutral.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	mustMonitor := func(t *testing.T, store Store, id string) *types.Monitor {
		t.Helper()
		monitor, err := types.NewMonitor(id, "Test Monitor", "https://example.com", 60, "")
		require.NoError(t, err)
		stored, err := store.CreateMonitor(ctx, monitor)
		require.NoError(t, err)
		return stored
	}

	// mustTask inserts a task with an explicit creation timestamp so FIFO
	// ordering is observable within a single test second.
	mustTask := func(t *testing.T, store Store, monitorID string, timestamp int64) *types.Task {
		t.Helper()
		task := &types.Task{
			ID:        uuid.NewString(),
			Timestamp: timestamp,
			MonitorID: monitorID,
			Status:    types.TaskStatusPending,
		}
		stored, err := store.CreateTask(ctx, task)
		require.NoError(t, err)
		return stored
	}

	t.Run("setup twice fails without force", func(t *testing.T) {
		store := newStore(t)

		err := store.Setup(ctx, false)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSetup)

		require.NoError(t, store.Setup(ctx, true))
	})

	t.Run("create monitor assigns id and created_at", func(t *testing.T) {
		store := newStore(t)

		monitor, err := types.NewMonitor("", "Test Monitor", "https://example.com", 60, "")
		require.NoError(t, err)
		stored, err := store.CreateMonitor(ctx, monitor)
		require.NoError(t, err)

		assert.NotEmpty(t, stored.ID)
		assert.NotZero(t, stored.CreatedAt)

		read, err := store.ReadMonitor(ctx, stored.ID)
		require.NoError(t, err)
		assert.Equal(t, stored.ID, read.ID)
		assert.Equal(t, "Test Monitor", read.Name)
		assert.Equal(t, "https://example.com", read.Endpoint)
		assert.Equal(t, 60, read.Interval)
		assert.Nil(t, read.LastTaskAt)
		assert.Nil(t, read.LastProbeAt)
	})

	t.Run("create monitor with duplicate id", func(t *testing.T) {
		store := newStore(t)
		mustMonitor(t, store, "dup")

		monitor, err := types.NewMonitor("dup", "Another", "https://example.org", 60, "")
		require.NoError(t, err)
		_, err = store.CreateMonitor(ctx, monitor)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMonitorExists)
	})

	t.Run("read unknown monitor", func(t *testing.T) {
		store := newStore(t)

		_, err := store.ReadMonitor(ctx, "missing")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMonitorNotFound)
	})

	t.Run("list monitors", func(t *testing.T) {
		store := newStore(t)
		mustMonitor(t, store, "m1")
		mustMonitor(t, store, "m2")
		mustMonitor(t, store, "m3")

		monitors, err := store.ListMonitors(ctx, ByCreatedAtAsc)
		require.NoError(t, err)
		ids := make([]string, 0, len(monitors))
		for _, m := range monitors {
			ids = append(ids, m.ID)
		}
		assert.ElementsMatch(t, []string{"m1", "m2", "m3"}, ids)
	})

	t.Run("delete monitor", func(t *testing.T) {
		store := newStore(t)
		mustMonitor(t, store, "doomed")

		deleted, err := store.DeleteMonitor(ctx, "doomed")
		require.NoError(t, err)
		assert.Equal(t, "doomed", deleted.ID)
		assert.Equal(t, "Test Monitor", deleted.Name)
		assert.Equal(t, "https://example.com", deleted.Endpoint)

		_, err = store.ReadMonitor(ctx, "doomed")
		assert.ErrorIs(t, err, ErrMonitorNotFound)

		_, err = store.DeleteMonitor(ctx, "doomed")
		assert.ErrorIs(t, err, ErrMonitorNotFound)
	})

	t.Run("create task stamps monitor", func(t *testing.T) {
		store := newStore(t)
		monitor := mustMonitor(t, store, "m1")
		task := mustTask(t, store, monitor.ID, time.Now().Unix())

		read, err := store.ReadMonitor(ctx, monitor.ID)
		require.NoError(t, err)
		require.NotNil(t, read.LastTaskAt)
		assert.Equal(t, task.Timestamp, *read.LastTaskAt)
	})

	t.Run("lock tasks leases oldest first", func(t *testing.T) {
		store := newStore(t)
		monitor := mustMonitor(t, store, "m1")

		now := time.Now().Unix()
		oldest := mustTask(t, store, monitor.ID, now-30)
		middle := mustTask(t, store, monitor.ID, now-20)
		newest := mustTask(t, store, monitor.ID, now-10)

		batch, err := store.LockTasks(ctx, "worker-1", 2)
		require.NoError(t, err)
		require.Len(t, batch, 2)

		leased := map[string]bool{}
		for _, task := range batch {
			leased[task.ID] = true
			assert.Equal(t, types.TaskStatusRunning, task.Status)
			require.NotNil(t, task.LockedBy)
			assert.Equal(t, "worker-1", *task.LockedBy)
			require.NotNil(t, task.LockedAt)
		}
		assert.True(t, leased[oldest.ID])
		assert.True(t, leased[middle.ID])
		assert.False(t, leased[newest.ID])

		// the remaining pending task goes to the next caller, never a
		// task already leased
		batch, err = store.LockTasks(ctx, "worker-2", 2)
		require.NoError(t, err)
		require.Len(t, batch, 1)
		assert.Equal(t, newest.ID, batch[0].ID)

		batch, err = store.LockTasks(ctx, "worker-3", 2)
		require.NoError(t, err)
		assert.Empty(t, batch)
	})

	t.Run("concurrent lock tasks claim disjoint batches", func(t *testing.T) {
		store := newStore(t)
		monitor := mustMonitor(t, store, "m1")

		const total = 30
		now := time.Now().Unix()
		for i := 0; i < total; i++ {
			mustTask(t, store, monitor.ID, now-int64(total-i))
		}

		// all workers race for the same pending pool; every task must be
		// claimed by exactly one of them
		const workers = 6
		batches := make(chan []*types.Task, workers)
		errs := make(chan error, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(workerID string) {
				defer wg.Done()
				batch, err := store.LockTasks(ctx, workerID, 10)
				if err != nil {
					errs <- err
					return
				}
				batches <- batch
			}(fmt.Sprintf("worker-%d", i))
		}
		wg.Wait()
		close(batches)
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
		claimed := map[string]string{}
		for batch := range batches {
			for _, task := range batch {
				require.NotNil(t, task.LockedBy)
				owner, seen := claimed[task.ID]
				require.False(t, seen,
					"task %s leased twice, by %s and %s", task.ID, owner, *task.LockedBy)
				claimed[task.ID] = *task.LockedBy
			}
		}
		assert.Len(t, claimed, total)

		batch, err := store.LockTasks(ctx, "straggler", 10)
		require.NoError(t, err)
		assert.Empty(t, batch)
	})

	t.Run("update task takes it out of the pending pool", func(t *testing.T) {
		store := newStore(t)
		monitor := mustMonitor(t, store, "m1")
		mustTask(t, store, monitor.ID, time.Now().Unix()-700)

		batch, err := store.LockTasks(ctx, "worker-1", 10)
		require.NoError(t, err)
		require.Len(t, batch, 1)

		task := batch[0]
		task.Abandon()
		require.NoError(t, store.UpdateTask(ctx, task))

		batch, err = store.LockTasks(ctx, "worker-1", 10)
		require.NoError(t, err)
		assert.Empty(t, batch)
	})

	t.Run("record probe completes the task", func(t *testing.T) {
		store := newStore(t)
		monitor := mustMonitor(t, store, "m1")
		mustTask(t, store, monitor.ID, time.Now().Unix())

		batch, err := store.LockTasks(ctx, "worker-1", 10)
		require.NoError(t, err)
		require.Len(t, batch, 1)
		task := batch[0]

		code := 200
		match := "hello"
		probe := types.NewProbe(monitor.ID, task.ID, 0.123, &code, nil, &match)
		require.NoError(t, store.RecordProbe(ctx, probe))

		probes, err := store.ListProbes(ctx, monitor.ID, 10)
		require.NoError(t, err)
		require.Len(t, probes, 1)
		assert.Equal(t, probe.ID, probes[0].ID)
		assert.Equal(t, task.ID, probes[0].TaskID)
		require.NotNil(t, probes[0].ResponseCode)
		assert.Equal(t, 200, *probes[0].ResponseCode)
		assert.Nil(t, probes[0].ResponseError)
		require.NotNil(t, probes[0].ContentMatch)
		assert.Equal(t, "hello", *probes[0].ContentMatch)

		read, err := store.ReadMonitor(ctx, monitor.ID)
		require.NoError(t, err)
		require.NotNil(t, read.LastProbeAt)
		assert.Equal(t, probe.Timestamp, *read.LastProbeAt)

		// the task is terminal now, so nothing is left to lease
		batch, err = store.LockTasks(ctx, "worker-1", 10)
		require.NoError(t, err)
		assert.Empty(t, batch)
	})

	t.Run("record probe with transport failure", func(t *testing.T) {
		store := newStore(t)
		monitor := mustMonitor(t, store, "m1")
		task := mustTask(t, store, monitor.ID, time.Now().Unix())

		probeErr := types.ProbeErrorTimeout
		probe := types.NewProbe(monitor.ID, task.ID, 5.0, nil, &probeErr, nil)
		require.NoError(t, store.RecordProbe(ctx, probe))

		probes, err := store.ListProbes(ctx, monitor.ID, 10)
		require.NoError(t, err)
		require.Len(t, probes, 1)
		assert.Nil(t, probes[0].ResponseCode)
		require.NotNil(t, probes[0].ResponseError)
		assert.Equal(t, types.ProbeErrorTimeout, *probes[0].ResponseError)
		assert.Nil(t, probes[0].ContentMatch)
	})

	t.Run("list probes returns newest first up to limit", func(t *testing.T) {
		store := newStore(t)
		monitor := mustMonitor(t, store, "m1")

		now := time.Now().Unix()
		for i, offset := range []int64{30, 20, 10} {
			task := mustTask(t, store, monitor.ID, now-offset)
			probe := &types.Probe{
				ID:           uuid.NewString(),
				Timestamp:    now - offset,
				MonitorID:    monitor.ID,
				TaskID:       task.ID,
				ResponseTime: float64(i),
			}
			require.NoError(t, store.RecordProbe(ctx, probe))
		}

		probes, err := store.ListProbes(ctx, monitor.ID, 2)
		require.NoError(t, err)
		require.Len(t, probes, 2)
		assert.Equal(t, now-10, probes[0].Timestamp)
		assert.Equal(t, now-20, probes[1].Timestamp)
	})

	t.Run("delete monitor cascades", func(t *testing.T) {
		store := newStore(t)
		monitor := mustMonitor(t, store, "m1")
		task := mustTask(t, store, monitor.ID, time.Now().Unix())

		code := 200
		probe := types.NewProbe(monitor.ID, task.ID, 0.1, &code, nil, nil)
		require.NoError(t, store.RecordProbe(ctx, probe))

		_, err := store.DeleteMonitor(ctx, monitor.ID)
		require.NoError(t, err)

		probes, err := store.ListProbes(ctx, monitor.ID, 10)
		require.NoError(t, err)
		assert.Empty(t, probes)

		batch, err := store.LockTasks(ctx, "worker-1", 10)
		require.NoError(t, err)
		assert.Empty(t, batch)
	})
}

func TestNewTables(t *testing.T) {
	tables := NewTables("monico")
	assert.Equal(t, "monico_monitors", tables.Monitors)
	assert.Equal(t, "monico_tasks", tables.Tasks)
	assert.Equal(t, "monico_probes", tables.Probes)

	tables = NewTables("")
	assert.Equal(t, "monico_monitors", tables.Monitors)
}
