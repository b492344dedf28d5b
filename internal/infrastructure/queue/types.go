package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Job is one durable unit of deferred work: an async command dispatch or a
// workflow resume. RunAt orders the queue; jobs are invisible to Due until it
// passes.
type Job struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	RunAt      time.Time       `json:"run_at"`
	Retries    int             `json:"retries"`
	EnqueuedAt time.Time       `json:"enqueued_at"`

	bucketKey []byte
}

func (j *Job) normalize() {
	now := time.Now().UTC()
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.EnqueuedAt.IsZero() {
		j.EnqueuedAt = now
	}
	if j.RunAt.IsZero() {
		j.RunAt = now
	}
}
