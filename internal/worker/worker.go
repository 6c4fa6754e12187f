package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeguard/codeguard/internal/core"
	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/pkg/types"
)

// JobRunner executes one popped job. The orchestrator is the only
// implementation today.
type JobRunner interface {
	RunJob(ctx context.Context, job *types.Job) error
}

type worker struct {
	id       string
	hostname string
	queue    core.JobQueue
	runner   JobRunner
	interval time.Duration
	log      *logger.Logger

	status   types.WorkerStatus
	statusMu sync.RWMutex

	cancel context.CancelFunc
	done   chan struct{}
}

func newWorker(queue core.JobQueue, runner JobRunner, interval time.Duration, log *logger.Logger) core.Worker {
	id := uuid.New().String()
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &worker{
		id:       id,
		hostname: hostname,
		queue:    queue,
		runner:   runner,
		interval: interval,
		log:      log.WithComponent("worker").WithFields("worker_id", id),
		done:     make(chan struct{}),
		status: types.WorkerStatus{
			ID:       id,
			Hostname: hostname,
			Status:   "idle",
		},
	}
}

func (w *worker) ID() string { return w.id }

func (w *worker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return fmt.Errorf("worker already started")
	}
	ctx, w.cancel = context.WithCancel(ctx)

	go w.loop(ctx)
	w.log.Infow("Worker started", "poll_interval", w.interval)
	return nil
}

func (w *worker) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.setStatus("stopped", "")
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *worker) poll(ctx context.Context) {
	job, err := w.queue.Pop(ctx, w.id)
	if err != nil {
		w.log.LogError(ctx, err, "worker.poll")
		return
	}
	if job == nil {
		w.setStatus("idle", "")
		return
	}

	w.setStatus("busy", job.ID)
	start := time.Now()

	if err := w.runner.RunJob(ctx, job); err != nil {
		w.log.LogError(ctx, err, "worker.runJob",
			"job_id", job.ID,
			"analysis_id", job.AnalysisID,
		)
		if failErr := w.queue.Fail(ctx, job.ID, err.Error()); failErr != nil {
			w.log.LogError(ctx, failErr, "worker.failJob", "job_id", job.ID)
		}
	} else {
		if compErr := w.queue.Complete(ctx, job.ID); compErr != nil {
			w.log.LogError(ctx, compErr, "worker.completeJob", "job_id", job.ID)
		}
		w.log.LogDuration(ctx, "worker.runJob", start,
			"job_id", job.ID,
			"analysis_id", job.AnalysisID,
		)
	}

	w.statusMu.Lock()
	w.status.JobsComplete++
	w.statusMu.Unlock()
	w.setStatus("idle", "")
}

func (w *worker) Stop() error {
	if w.cancel == nil {
		return fmt.Errorf("worker not started")
	}
	w.cancel()
	<-w.done
	return nil
}

func (w *worker) Status() *types.WorkerStatus {
	w.statusMu.RLock()
	defer w.statusMu.RUnlock()
	status := w.status
	status.LastPing = time.Now()
	return &status
}

func (w *worker) setStatus(state, jobID string) {
	w.statusMu.Lock()
	defer w.statusMu.Unlock()
	w.status.Status = state
	w.status.CurrentJob = jobID
	w.status.LastPing = time.Now()
}
