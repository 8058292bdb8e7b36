package daemon

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mschnitzer/daps-buildenv/internal/build"
)

// JobStatus is the queue state of a job. The numeric values are part of the
// status API wire format.
type JobStatus int

const (
	StatusQueued  JobStatus = 0
	StatusRunning JobStatus = 1
)

// QueuedJob is one scheduled DC file build.
type QueuedJob struct {
	ID          string
	Job         build.Job
	Status      JobStatus
	TimeStarted time.Time
}

// Queue holds scheduled build jobs and enforces the container limit. Jobs
// stay in the queue while running; Finish removes them.
type Queue struct {
	mu         sync.Mutex
	maxRunning int
	jobs       []*QueuedJob
	running    int
}

// NewQueue creates a queue allowing maxRunning concurrent builds.
func NewQueue(maxRunning int) *Queue {
	if maxRunning <= 0 {
		maxRunning = 1
	}
	return &Queue{maxRunning: maxRunning}
}

// Enqueue schedules a new build job.
func (q *Queue) Enqueue(job build.Job) *QueuedJob {
	qj := &QueuedJob{ID: uuid.NewString(), Job: job, Status: StatusQueued}
	q.mu.Lock()
	q.jobs = append(q.jobs, qj)
	q.mu.Unlock()
	return qj
}

// StartNext marks the oldest queued job as running and returns it. Returns
// nil when nothing is queued or the container limit is reached.
func (q *Queue) StartNext() *QueuedJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running >= q.maxRunning {
		return nil
	}
	for _, qj := range q.jobs {
		if qj.Status == StatusQueued {
			qj.Status = StatusRunning
			qj.TimeStarted = time.Now()
			q.running++
			return qj
		}
	}
	return nil
}

// Finish removes a job from the queue.
func (q *Queue) Finish(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, qj := range q.jobs {
		if qj.ID == id {
			if qj.Status == StatusRunning {
				q.running--
			}
			q.jobs = append(q.jobs[:i], q.jobs[i+1:]...)
			return
		}
	}
}

// Counts returns the number of running and scheduled (queued) jobs.
func (q *Queue) Counts() (running, scheduled int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running, len(q.jobs) - q.running
}

// Snapshot returns a copy of all jobs currently in the queue.
func (q *Queue) Snapshot() []QueuedJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]QueuedJob, len(q.jobs))
	for i, qj := range q.jobs {
		out[i] = *qj
	}
	return out
}
