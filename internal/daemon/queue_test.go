package daemon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mschnitzer/daps-buildenv/internal/build"
)

func job(dc string) build.Job {
	return build.Job{Project: "p", Branch: "main", DCFile: dc, Commit: "abc"}
}

func TestQueueStartNextRespectsLimit(t *testing.T) {
	q := NewQueue(2)
	q.Enqueue(job("DC-a"))
	q.Enqueue(job("DC-b"))
	q.Enqueue(job("DC-c"))

	first := q.StartNext()
	require.NotNil(t, first)
	assert.Equal(t, "DC-a", first.Job.DCFile)
	assert.Equal(t, StatusRunning, first.Status)
	assert.False(t, first.TimeStarted.IsZero())

	second := q.StartNext()
	require.NotNil(t, second)
	assert.Equal(t, "DC-b", second.Job.DCFile)

	// Limit reached, third job must wait.
	assert.Nil(t, q.StartNext())

	running, scheduled := q.Counts()
	assert.Equal(t, 2, running)
	assert.Equal(t, 1, scheduled)

	q.Finish(first.ID)
	third := q.StartNext()
	require.NotNil(t, third)
	assert.Equal(t, "DC-c", third.Job.DCFile)
}

func TestQueueFinishRemovesJob(t *testing.T) {
	q := NewQueue(1)
	qj := q.Enqueue(job("DC-a"))
	require.NotNil(t, q.StartNext())

	q.Finish(qj.ID)
	running, scheduled := q.Counts()
	assert.Equal(t, 0, running)
	assert.Equal(t, 0, scheduled)
	assert.Empty(t, q.Snapshot())
}

func TestQueueFinishUnknownIDIsNoop(t *testing.T) {
	q := NewQueue(1)
	q.Enqueue(job("DC-a"))
	q.Finish("missing")

	running, scheduled := q.Counts()
	assert.Equal(t, 0, running)
	assert.Equal(t, 1, scheduled)
}

func TestQueueSnapshotIsCopy(t *testing.T) {
	q := NewQueue(1)
	q.Enqueue(job("DC-a"))

	snap := q.Snapshot()
	require.Len(t, snap, 1)
	snap[0].Status = StatusRunning

	// Mutating the snapshot must not affect the queue.
	fresh := q.Snapshot()
	assert.Equal(t, StatusQueued, fresh[0].Status)
}
