package domain

import "time"

// WorkflowStatus tracks a saga instance through execution, suspension and
// compensation.
type WorkflowStatus string

const (
	WorkflowRunning                WorkflowStatus = "running"
	WorkflowSuspended              WorkflowStatus = "suspended"
	WorkflowCompleted              WorkflowStatus = "completed"
	WorkflowCompensating           WorkflowStatus = "compensating"
	WorkflowCompensated            WorkflowStatus = "compensated"
	WorkflowCompensationIncomplete WorkflowStatus = "compensation_incomplete"
)

// Step outcome labels recorded per executed activity.
const (
	StepCompleted          = "completed"
	StepFailed             = "failed"
	StepCompensated        = "compensated"
	StepCompensationFailed = "compensation_failed"
)

// WorkflowStep is the durable record of one executed activity.
type WorkflowStep struct {
	Index      int       `json:"index"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	ExecutedAt time.Time `json:"executed_at"`
}

// WorkflowInstance is the persisted state of one saga run. Step is the index
// of the next activity to execute; it is checkpointed after every completed
// step so a suspended run resumes without re-running finished work.
type WorkflowInstance struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Status      WorkflowStatus    `json:"status"`
	Step        int               `json:"step"`
	Values      map[string]string `json:"values"`
	Steps       []WorkflowStep    `json:"steps"`
	LastError   string            `json:"last_error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// Terminal reports whether the instance reached an end state.
func (w *WorkflowInstance) Terminal() bool {
	switch w.Status {
	case WorkflowCompleted, WorkflowCompensated, WorkflowCompensationIncomplete:
		return true
	}
	return false
}
