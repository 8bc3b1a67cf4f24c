package queue

import (
	"sync"

	"github.com/justa/mapupload/internal/common"
	"github.com/justa/mapupload/internal/entity"
)

// Queue holds pending jobs. Removal is last-in-first-out.
type Queue struct {
	mu   sync.Mutex
	jobs []entity.Job
}

func New() *Queue {
	return &Queue{}
}

func (q *Queue) Enqueue(job entity.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.jobs = append(q.jobs, job)
}

// DequeueNext removes and returns the most recently enqueued job.
func (q *Queue) DequeueNext() (entity.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.jobs)
	if n == 0 {
		return nil, common.ErrEmptyQueue
	}

	job := q.jobs[n-1]
	q.jobs[n-1] = nil
	q.jobs = q.jobs[:n-1]

	return job, nil
}

func (q *Queue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.jobs)
}

// Titles lists pending jobs in the order they will be dequeued.
func (q *Queue) Titles() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	titles := make([]string, 0, len(q.jobs))
	for i := len(q.jobs) - 1; i >= 0; i-- {
		titles = append(titles, q.jobs[i].Title())
	}

	return titles
}
