package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// memoryQueueSize bounds the in-process queue; a full queue blocks
// producers instead of dropping work.
const memoryQueueSize = 256

// ErrClosed reports an operation on a closed queue.
var ErrClosed = errors.New("queue closed")

// SyncPageByID syncs one page whose database is not yet known; the
// worker resolves the parent first.
type SyncPageByID struct {
	PageID string `json:"page_id"`
}

// SyncPage syncs one page of a configured database.
type SyncPage struct {
	DatabaseID string `json:"database_id"`
	PageID     string `json:"page_id"`
}

// ScanDataSource re-enumerates a data source and fans out page syncs.
type ScanDataSource struct {
	DatabaseID   string `json:"database_id"`
	DataSourceID string `json:"data_source_id"`
}

// Job is the queue's tagged union; exactly one variant is set. The
// JSON shape keeps the variant name as the single top-level key, e.g.
// {"SyncPageById":{"page_id":"p"}}, so encode/decode round-trips.
type Job struct {
	SyncPageByID   *SyncPageByID   `json:"SyncPageById,omitempty"`
	SyncPage       *SyncPage       `json:"SyncPage,omitempty"`
	ScanDataSource *ScanDataSource `json:"ScanDataSource,omitempty"`
}

// Describe names a job for log lines.
func (j Job) Describe() string {
	switch {
	case j.SyncPageByID != nil:
		return fmt.Sprintf("page sync %s", j.SyncPageByID.PageID)
	case j.SyncPage != nil:
		return fmt.Sprintf("page sync %s (db %s)", j.SyncPage.PageID, j.SyncPage.DatabaseID)
	case j.ScanDataSource != nil:
		return fmt.Sprintf("data source scan %s (db %s)", j.ScanDataSource.DataSourceID, j.ScanDataSource.DatabaseID)
	}
	return "empty job"
}

// Queue carries sync jobs from producers (webhook handler, scheduler)
// to the single worker.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context) (Job, error)
	Close() error
}

// Config selects and names the queue backend.
type Config struct {
	Name     string
	RedisURL string
}

// New picks the Redis queue when a redis_url is configured, otherwise
// the in-process queue.
func New(cfg Config, logger *slog.Logger) (Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.RedisURL) != "" {
		return newRedisQueue(cfg, logger)
	}
	logger.Info("using in-process job queue")
	return newMemoryQueue(logger), nil
}

// RequeueAfter re-enqueues job on a detached goroutine once delay has
// passed, so the worker never blocks on retry backoff.
func RequeueAfter(q Queue, job Job, delay time.Duration, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	go func() {
		time.Sleep(delay)
		if err := q.Enqueue(context.Background(), job); err != nil {
			logger.Warn("requeue failed", "job", job.Describe(), "error", err)
			return
		}
		logger.Info("requeued", "job", job.Describe(), "delay", delay)
	}()
}

type memoryQueue struct {
	jobs   chan Job
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newMemoryQueue(logger *slog.Logger) *memoryQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &memoryQueue{
		jobs:   make(chan Job, memoryQueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (q *memoryQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}
	select {
	case q.jobs <- job:
		q.logger.Debug("queued job", "job", job.Describe())
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *memoryQueue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	case <-q.done:
		// drain jobs accepted before the close
		select {
		case job := <-q.jobs:
			return job, nil
		default:
			return Job{}, ErrClosed
		}
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

func (q *memoryQueue) Close() error {
	q.once.Do(func() { close(q.done) })
	return nil
}
