package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/natikgadzhi/notion-mirror/internal/queue"
	"github.com/natikgadzhi/notion-mirror/internal/sync"
)

// Rescanner periodically re-enumerates every configured data source
// so pages changed without a webhook delivery still converge.
type Rescanner struct {
	queue    queue.Queue
	bindings *sync.Bindings
	interval time.Duration
	logger   *slog.Logger
}

// New creates a rescanner. Intervals under a second are clamped to a
// second.
func New(q queue.Queue, bindings *sync.Bindings, interval time.Duration, logger *slog.Logger) *Rescanner {
	if logger == nil {
		logger = slog.Default()
	}
	if interval < time.Second {
		interval = time.Second
	}
	return &Rescanner{queue: q, bindings: bindings, interval: interval, logger: logger}
}

// Run ticks until ctx is cancelled. A tick only enqueues scan jobs;
// it never waits for a prior scan to finish.
func (r *Rescanner) Run(ctx context.Context) {
	r.logger.Info("periodic rescan enabled", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("rescanner stopped")
			return
		case <-ticker.C:
			EnqueueScans(ctx, r.queue, r.bindings, r.logger)
		}
	}
}

// EnqueueScans queues one ScanDataSource job per (binding, data
// source) pair. It backs both the ticker and the startup scan.
// Enqueue failures are logged and skipped.
func EnqueueScans(ctx context.Context, q queue.Queue, bindings *sync.Bindings, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, binding := range bindings.All() {
		for _, ds := range binding.DataSources {
			job := queue.Job{ScanDataSource: &queue.ScanDataSource{
				DatabaseID:   binding.DatabaseID,
				DataSourceID: ds.ID,
			}}
			if err := q.Enqueue(ctx, job); err != nil {
				logger.Warn("enqueue failed", "job", job.Describe(), "error", err)
			}
		}
	}
}
