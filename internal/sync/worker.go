package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/natikgadzhi/notion-mirror/internal/queue"
)

const (
	// jobPause spaces consecutive jobs so webhook bursts do not
	// translate into Notion API bursts.
	jobPause = 200 * time.Millisecond

	// defaultRetryDelay backs a failed job off before its retry.
	defaultRetryDelay = 10 * time.Second
)

// Worker drains the job queue one job at a time.
type Worker struct {
	queue      queue.Queue
	syncer     *Syncer
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewWorker creates a worker that feeds jobs from q into syncer.
func NewWorker(q queue.Queue, syncer *Syncer, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:      q,
		syncer:     syncer,
		retryDelay: defaultRetryDelay,
		logger:     logger,
	}
}

// Run processes jobs until ctx is cancelled or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrClosed) && !errors.Is(err, context.Canceled) {
				w.logger.Warn("dequeue failed", "error", err)
			}
			w.logger.Info("worker stopped")
			return
		}

		w.handle(ctx, job)

		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return
		case <-time.After(jobPause):
		}
	}
}

// handle runs one job; failures go back on the queue after a delay
// instead of blocking the worker.
func (w *Worker) handle(ctx context.Context, job queue.Job) {
	w.logger.Info("processing job", "job", job.Describe())
	if err := w.process(ctx, job); err != nil {
		w.logger.Warn("job failed, requeueing", "job", job.Describe(), "error", err)
		queue.RequeueAfter(w.queue, job, w.retryDelay, w.logger)
	}
}

func (w *Worker) process(ctx context.Context, job queue.Job) error {
	switch {
	case job.SyncPageByID != nil:
		return w.syncer.SyncPageByID(ctx, job.SyncPageByID.PageID)

	case job.SyncPage != nil:
		binding, ok := w.syncer.bindings.ByDatabaseID(job.SyncPage.DatabaseID)
		if !ok {
			w.logger.Warn("database not configured, dropping page",
				"database_id", job.SyncPage.DatabaseID,
				"page_id", job.SyncPage.PageID,
			)
			return nil
		}
		return w.syncer.SyncPage(ctx, binding, job.SyncPage.PageID)

	case job.ScanDataSource != nil:
		binding, ok := w.syncer.bindings.ByDatabaseID(job.ScanDataSource.DatabaseID)
		if !ok {
			w.logger.Warn("database not configured, dropping scan",
				"database_id", job.ScanDataSource.DatabaseID,
			)
			return nil
		}
		return w.scan(ctx, binding, job.ScanDataSource.DataSourceID)
	}

	w.logger.Warn("empty job, dropped")
	return nil
}

// scan re-enumerates a data source and fans a SyncPage job out per
// page. Enqueue failures are logged and skipped so one bad page never
// fails the whole scan.
func (w *Worker) scan(ctx context.Context, binding *Binding, dataSourceID string) error {
	ids, err := w.syncer.upstream.QueryDataSourcePageIDs(ctx, dataSourceID)
	if err != nil {
		return fmt.Errorf("querying data source %s: %w", dataSourceID, err)
	}
	w.logger.Info("found pages in data source",
		"data_source_id", dataSourceID,
		"pages", len(ids),
	)

	for _, id := range ids {
		job := queue.Job{SyncPage: &queue.SyncPage{DatabaseID: binding.DatabaseID, PageID: id}}
		if err := w.queue.Enqueue(ctx, job); err != nil {
			w.logger.Warn("enqueue failed", "job", job.Describe(), "error", err)
		}
	}
	return nil
}
