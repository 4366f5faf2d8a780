package manager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/monico-sh/monico/pkg/log"
	"github.com/monico-sh/monico/pkg/metrics"
	"github.com/monico-sh/monico/pkg/storage"
	"github.com/monico-sh/monico/pkg/types"
)

// MinWait throttles the scheduling loop to at most one pass per interval.
const MinWait = 5 * time.Second

// Manager is the scheduling half of the system. It watches monitor metadata
// in the shared store and enqueues a task whenever a monitor comes due. It
// holds no state of its own; the store is the source of truth.
type Manager struct {
	store  storage.Store
	logger zerolog.Logger
}

// New creates a manager on top of the given store.
func New(store storage.Store) *Manager {
	return &Manager{
		store:  store,
		logger: log.WithComponent("manager"),
	}
}

// Run executes scheduling passes until ctx is cancelled. Each tick waits for
// both the pass to finish and MinWait to elapse, whichever is later, so a
// slow pass never stacks up behind the throttle. Errors inside a pass are
// logged and the loop continues; the next tick is the retry.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info().Msg("manager has started")

	for {
		timer := time.NewTimer(MinWait)

		if err := m.Schedule(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error().Err(err).Msg("scheduling pass failed")
		}

		select {
		case <-ctx.Done():
			timer.Stop()
			m.logger.Info().Msg("manager has been cancelled")
			return nil
		case <-timer.C:
		}
	}
}

// Schedule performs one scheduling pass: every monitor whose interval has
// elapsed since its last task (or that has never been scheduled) gets a fresh
// PENDING task.
func (m *Manager) Schedule(ctx context.Context) error {
	start := time.Now()
	defer func() {
		metrics.SchedulingLatency.Observe(time.Since(start).Seconds())
	}()

	now := start.Unix()
	monitors, err := m.store.ListMonitors(ctx, storage.ByLastTaskAtDesc)
	if err != nil {
		return fmt.Errorf("list monitors: %w", err)
	}
	m.logger.Debug().Int("count", len(monitors)).Msg("scheduling pass")

	for _, monitor := range monitors {
		if !monitor.Due(now) {
			m.logger.Debug().
				Str("monitor_id", monitor.ID).
				Int64("since_last_task", now-*monitor.LastTaskAt).
				Int("interval", monitor.Interval).
				Msg("monitor not due, skipping")
			continue
		}
		if err := m.issueTask(ctx, monitor); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) issueTask(ctx context.Context, monitor *types.Monitor) error {
	logger := log.WithMonitorID(monitor.ID)
	logger.Debug().Msg("issuing task")
	if _, err := m.store.CreateTask(ctx, monitor.NewTask()); err != nil {
		return fmt.Errorf("issue task for monitor %s: %w", monitor.ID, err)
	}
	metrics.TasksScheduled.Inc()
	return nil
}
