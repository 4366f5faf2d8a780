package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/monico-sh/monico/pkg/log"
	"github.com/monico-sh/monico/pkg/metrics"
	"github.com/monico-sh/monico/pkg/prober"
	"github.com/monico-sh/monico/pkg/storage"
	"github.com/monico-sh/monico/pkg/types"
)

const (
	// MinWait is the lower bound between two lease attempts.
	MinWait = 5 * time.Second

	// BatchSize is the number of tasks leased per attempt.
	BatchSize = 10

	// StaleThreshold is the task age beyond which a leased task is
	// abandoned instead of executed. Age is measured from task creation.
	StaleThreshold = 600 * time.Second
)

// Worker leases batches of pending tasks, executes the HTTP probes
// concurrently and records the results. Each worker carries a stable id that
// stamps the tasks it leases.
type Worker struct {
	id     string
	store  storage.Store
	prober *prober.HTTPProber
	logger zerolog.Logger
}

// New creates a worker. An empty id gets a generated UUID.
func New(store storage.Store, id string) *Worker {
	if id == "" {
		id = uuid.NewString()
	}
	return &Worker{
		id:     id,
		store:  store,
		prober: prober.New(),
		logger: log.WithWorkerID(id),
	}
}

// ID returns the worker's stable id.
func (w *Worker) ID() string {
	return w.id
}

// Run leases and executes batches until ctx is cancelled. All probes of a
// batch run concurrently, joined with a MinWait sleep, so lease attempts are
// spaced out even when a batch finishes instantly. Storage errors are logged
// and retried after MinWait.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Msg("worker has started")

	for {
		if ctx.Err() != nil {
			w.logger.Info().Msg("worker has been cancelled")
			return nil
		}

		w.logger.Debug().Int("batch_size", BatchSize).Msg("locking a batch of tasks")
		batch, err := w.store.LockTasks(ctx, w.id, BatchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("failed to lock tasks")
			if !sleep(ctx, MinWait) {
				w.logger.Info().Msg("worker has been cancelled")
				return nil
			}
			continue
		}
		w.logger.Debug().Int("locked", len(batch)).Msg("locked tasks")
		metrics.TasksLocked.Add(float64(len(batch)))

		throttle := time.NewTimer(MinWait)
		var wg sync.WaitGroup
		for _, task := range batch {
			wg.Add(1)
			go func(t *types.Task) {
				defer wg.Done()
				if err := w.runTask(ctx, t); err != nil {
					w.logger.Error().Err(err).Str("task_id", t.ID).Msg("task failed")
				}
			}(task)
		}
		wg.Wait()

		select {
		case <-ctx.Done():
			throttle.Stop()
			w.logger.Info().Msg("worker has been cancelled")
			return nil
		case <-throttle.C:
		}
	}
}

// runTask executes one leased task: abandon it when stale, otherwise probe
// the monitor's endpoint and record the outcome. Recording the probe also
// completes the task, atomically, inside storage.
func (w *Worker) runTask(ctx context.Context, task *types.Task) error {
	now := time.Now().Unix()
	w.logger.Debug().Str("task_id", task.ID).Msg("running task")

	if task.Stale(now, StaleThreshold) {
		w.logger.Warn().Str("task_id", task.ID).Msg("abandoning a stale task")
		task.Abandon()
		if err := w.store.UpdateTask(ctx, task); err != nil {
			return fmt.Errorf("abandon task: %w", err)
		}
		metrics.TasksAbandoned.Inc()
		return nil
	}

	monitor, err := w.store.ReadMonitor(ctx, task.MonitorID)
	if err != nil {
		return fmt.Errorf("resolve monitor: %w", err)
	}

	probe := w.prober.Probe(ctx, monitor, task)
	if err := w.store.RecordProbe(ctx, probe); err != nil {
		return fmt.Errorf("record probe: %w", err)
	}

	metrics.ProbeDuration.Observe(probe.ResponseTime)
	metrics.ProbesTotal.WithLabelValues(probeOutcome(probe)).Inc()
	w.logger.Debug().
		Str("task_id", task.ID).
		Str("probe_id", probe.ID).
		Msg("recorded probe")
	return nil
}

func probeOutcome(p *types.Probe) string {
	if p.ResponseError == nil {
		return metrics.OutcomeSuccess
	}
	if *p.ResponseError == types.ProbeErrorTimeout {
		return metrics.OutcomeTimeout
	}
	return metrics.OutcomeConnectionError
}

// sleep waits for d or until ctx is cancelled; it reports false on
// cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
