package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeguard/codeguard/pkg/types"
)

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	first := &types.Job{Type: types.JobTypeLinguistic, AnalysisID: "a1"}
	second := &types.Job{Type: types.JobTypeLinguistic, AnalysisID: "a2"}
	require.NoError(t, q.Push(ctx, first))
	require.NoError(t, q.Push(ctx, second))
	assert.NotEmpty(t, first.ID)

	popped, err := q.Pop(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, popped)
	assert.Equal(t, "a1", popped.AnalysisID)
	assert.Equal(t, "processing", popped.Status)

	require.NoError(t, q.Complete(ctx, popped.ID))

	popped, err = q.Pop(ctx, "w1")
	require.NoError(t, err)
	require.NotNil(t, popped)
	assert.Equal(t, "a2", popped.AnalysisID)
}

func TestMemoryQueueEmptyPop(t *testing.T) {
	q := NewMemoryQueue()
	job, err := q.Pop(context.Background(), "w1")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestMemoryQueueFailAndUnknown(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	job := &types.Job{Type: types.JobTypeLinguistic, AnalysisID: "a1"}
	require.NoError(t, q.Push(ctx, job))

	popped, err := q.Pop(ctx, "w1")
	require.NoError(t, err)
	require.NoError(t, q.Fail(ctx, popped.ID, "model unavailable"))

	assert.Error(t, q.Complete(ctx, popped.ID), "job is no longer active")
	assert.Error(t, q.Fail(ctx, "ghost", "nope"))
}

func TestMemoryQueueClose(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, &types.Job{Type: types.JobTypeLinguistic}))
	require.NoError(t, q.Close())

	assert.Error(t, q.Push(ctx, &types.Job{Type: types.JobTypeLinguistic}))
	job, err := q.Pop(ctx, "w1")
	require.NoError(t, err)
	assert.Nil(t, job)
}
