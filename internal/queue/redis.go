package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisRetryDelay paces reconnect attempts when the blocking pop
// fails, e.g. across a Redis restart.
const redisRetryDelay = 2 * time.Second

// redisQueue persists jobs in a Redis list so deliveries survive a
// process restart and multiple producers can feed one worker.
type redisQueue struct {
	client *redis.Client
	key    string
	logger *slog.Logger
}

func newRedisQueue(cfg Config, logger *slog.Logger) (*redisQueue, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(cfg.RedisURL))
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	key := cfg.Name + ":sync-jobs"
	logger.Info("using redis job queue", "key", key)
	return &redisQueue{client: redis.NewClient(opts), key: key, logger: logger}, nil
}

func (q *redisQueue) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("pushing job: %w", err)
	}
	q.logger.Debug("queued job", "job", job.Describe())
	return nil
}

// Dequeue blocks until a job arrives. Pop failures log, pause and
// retry rather than killing the worker; payloads that do not decode
// are logged and skipped.
func (q *redisQueue) Dequeue(ctx context.Context) (Job, error) {
	for {
		res, err := q.client.BLPop(ctx, 0, q.key).Result()
		if err != nil {
			if ctx.Err() != nil {
				return Job{}, ctx.Err()
			}
			q.logger.Warn("blocking pop failed", "error", err)
			select {
			case <-ctx.Done():
				return Job{}, ctx.Err()
			case <-time.After(redisRetryDelay):
			}
			continue
		}
		if len(res) < 2 {
			continue
		}

		var job Job
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			q.logger.Warn("invalid job payload", "error", err, "payload", res[1])
			continue
		}
		return job, nil
	}
}

func (q *redisQueue) Close() error {
	return q.client.Close()
}
