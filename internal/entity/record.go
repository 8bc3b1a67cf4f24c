package entity

import "time"

type JobStatus string

const (
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobRecord is the outcome of one processed job.
type JobRecord struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Title      string    `json:"title"`
	Requester  string    `json:"requester"`
	Status     JobStatus `json:"status"`
	Stage      string    `json:"stage,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (r *JobRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// QueueStatus is a point-in-time view of the dispatcher.
type QueueStatus struct {
	Running bool         `json:"running"`
	Pending []string     `json:"pending"` // Titles of queued jobs, next to run first
	Recent  []*JobRecord `json:"recent"`
}
