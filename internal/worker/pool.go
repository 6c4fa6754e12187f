package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codeguard/codeguard/internal/core"
	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/pkg/types"
)

type workerPool struct {
	queue    core.JobQueue
	runner   JobRunner
	interval time.Duration
	log      *logger.Logger

	mu      sync.RWMutex
	workers []core.Worker
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewPool(queue core.JobQueue, runner JobRunner, interval time.Duration, log *logger.Logger) core.WorkerPool {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &workerPool{
		queue:    queue,
		runner:   runner,
		interval: interval,
		log:      log,
	}
}

func (p *workerPool) Start(ctx context.Context, workerCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ctx != nil {
		return fmt.Errorf("worker pool already started")
	}
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < workerCount; i++ {
		w := newWorker(p.queue, p.runner, p.interval, p.log)
		if err := w.Start(p.ctx); err != nil {
			p.stopAll()
			return fmt.Errorf("failed to start worker %d: %w", i, err)
		}
		p.workers = append(p.workers, w)
	}

	p.log.Infow("Worker pool started", "workers", len(p.workers))
	return nil
}

func (p *workerPool) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return fmt.Errorf("worker pool not started")
	}
	p.cancel()
	return p.stopAll()
}

func (p *workerPool) Status() []*types.WorkerStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	statuses := make([]*types.WorkerStatus, 0, len(p.workers))
	for _, w := range p.workers {
		statuses = append(statuses, w.Status())
	}
	return statuses
}

func (p *workerPool) stopAll() error {
	g := new(errgroup.Group)
	for _, w := range p.workers {
		g.Go(w.Stop)
	}
	err := g.Wait()
	p.workers = nil
	p.ctx = nil
	p.cancel = nil
	return err
}
