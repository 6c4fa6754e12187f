// Package jobs carries linguistic-phase work from the request handler
// to the worker pool. The in-memory queue is the default: a job lost
// on restart surfaces as a stale processing status, which pollers
// tolerate by timeout. The redis queue is for operators who want the
// backlog to survive restarts.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeguard/codeguard/internal/config"
	"github.com/codeguard/codeguard/internal/core"
	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/pkg/types"
)

// New selects the queue backend from configuration.
func New(cfg config.QueueConfig, log *logger.Logger) (core.JobQueue, error) {
	switch cfg.Backend {
	case "memory", "":
		return NewMemoryQueue(), nil
	case "redis":
		return NewRedisQueue(cfg.Redis, log)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Backend)
	}
}

// memoryQueue is a FIFO guarded by a mutex. Pop returns nil when the
// queue is empty; workers poll.
type memoryQueue struct {
	mu      sync.Mutex
	pending []*types.Job
	active  map[string]*types.Job
	closed  bool
}

func NewMemoryQueue() core.JobQueue {
	return &memoryQueue{active: make(map[string]*types.Job)}
}

func (q *memoryQueue) Push(ctx context.Context, job *types.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return fmt.Errorf("queue closed")
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = "pending"
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	q.pending = append(q.pending, job)
	return nil
}

func (q *memoryQueue) Pop(ctx context.Context, workerID string) (*types.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.pending) == 0 {
		return nil, nil
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	job.Status = "processing"
	job.UpdatedAt = time.Now()
	q.active[job.ID] = job
	return job, nil
}

func (q *memoryQueue) Complete(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.active[jobID]
	if !ok {
		return fmt.Errorf("job %s not active", jobID)
	}
	job.Status = "completed"
	job.UpdatedAt = time.Now()
	delete(q.active, jobID)
	return nil
}

func (q *memoryQueue) Fail(ctx context.Context, jobID string, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.active[jobID]
	if !ok {
		return fmt.Errorf("job %s not active", jobID)
	}
	job.Status = "failed"
	job.UpdatedAt = time.Now()
	delete(q.active, jobID)
	return nil
}

func (q *memoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.pending = nil
	return nil
}
