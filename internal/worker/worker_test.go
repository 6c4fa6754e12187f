package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeguard/codeguard/internal/jobs"
	"github.com/codeguard/codeguard/internal/logger"
	"github.com/codeguard/codeguard/pkg/types"
)

// recordingRunner collects the jobs it executes.
type recordingRunner struct {
	mu   sync.Mutex
	ran  []string
	fail bool
}

func (r *recordingRunner) RunJob(ctx context.Context, job *types.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, job.AnalysisID)
	if r.fail {
		return fmt.Errorf("boom")
	}
	return nil
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ran)
}

func TestPoolProcessesQueuedJobs(t *testing.T) {
	queue := jobs.NewMemoryQueue()
	runner := &recordingRunner{}
	pool := NewPool(queue, runner, 10*time.Millisecond, logger.Nop())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, queue.Push(ctx, &types.Job{
			Type:       types.JobTypeLinguistic,
			AnalysisID: fmt.Sprintf("a%d", i),
		}))
	}

	require.NoError(t, pool.Start(ctx, 2))
	defer pool.Stop()

	deadline := time.After(3 * time.Second)
	for runner.count() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d of 3 jobs ran", runner.count())
		case <-time.After(10 * time.Millisecond):
		}
	}

	statuses := pool.Status()
	assert.Len(t, statuses, 2)
}

func TestPoolDoubleStartRejected(t *testing.T) {
	pool := NewPool(jobs.NewMemoryQueue(), &recordingRunner{}, 10*time.Millisecond, logger.Nop())

	require.NoError(t, pool.Start(context.Background(), 1))
	assert.Error(t, pool.Start(context.Background(), 1))
	require.NoError(t, pool.Stop())

	assert.Error(t, pool.Stop(), "stopping a stopped pool")
}

func TestFailedJobDoesNotStopWorker(t *testing.T) {
	queue := jobs.NewMemoryQueue()
	runner := &recordingRunner{fail: true}
	pool := NewPool(queue, runner, 10*time.Millisecond, logger.Nop())

	ctx := context.Background()
	require.NoError(t, queue.Push(ctx, &types.Job{Type: types.JobTypeLinguistic, AnalysisID: "a1"}))
	require.NoError(t, queue.Push(ctx, &types.Job{Type: types.JobTypeLinguistic, AnalysisID: "a2"}))

	require.NoError(t, pool.Start(ctx, 1))
	defer pool.Stop()

	deadline := time.After(3 * time.Second)
	for runner.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("only %d of 2 jobs ran", runner.count())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
