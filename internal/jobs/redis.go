package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/codeguard/codeguard/internal/config"
	"github.com/codeguard/codeguard/internal/core"
	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/pkg/types"
)

const (
	queuePending    = "codeguard:queue:pending"
	queueProcessing = "codeguard:queue:processing"
	jobPrefix       = "codeguard:job:"
	jobTTL          = 24 * time.Hour
)

// redisQueue mirrors the memory queue's contract on a redis list, so
// queued linguistic work survives process restarts.
type redisQueue struct {
	client *redis.Client
	log    *logger.Logger
}

func NewRedisQueue(cfg config.RedisConfig, log *logger.Logger) (core.JobQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.WithComponent("jobs").Infow("Redis job queue initialised", "addr", cfg.Addr)
	return &redisQueue{client: client, log: log.WithComponent("jobs")}, nil
}

func (q *redisQueue) Push(ctx context.Context, job *types.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = "pending"
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, jobPrefix+job.ID, data, jobTTL)
	pipe.RPush(ctx, queuePending, job.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (q *redisQueue) Pop(ctx context.Context, workerID string) (*types.Job, error) {
	jobID, err := q.client.LPop(ctx, queuePending).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop job: %w", err)
	}

	data, err := q.client.Get(ctx, jobPrefix+jobID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", jobID, err)
	}

	var job types.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", jobID, err)
	}

	job.Status = "processing"
	job.UpdatedAt = time.Now()

	updated, err := json.Marshal(&job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job update: %w", err)
	}

	pipe := q.client.Pipeline()
	pipe.Set(ctx, jobPrefix+jobID, updated, jobTTL)
	pipe.HSet(ctx, queueProcessing, jobID, workerID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to mark job processing: %w", err)
	}

	return &job, nil
}

func (q *redisQueue) Complete(ctx context.Context, jobID string) error {
	pipe := q.client.Pipeline()
	pipe.HDel(ctx, queueProcessing, jobID)
	pipe.Del(ctx, jobPrefix+jobID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *redisQueue) Fail(ctx context.Context, jobID string, reason string) error {
	q.log.Warnw("Job failed", "job_id", jobID, "reason", reason)
	pipe := q.client.Pipeline()
	pipe.HDel(ctx, queueProcessing, jobID)
	pipe.Del(ctx, jobPrefix+jobID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *redisQueue) Close() error {
	return q.client.Close()
}
