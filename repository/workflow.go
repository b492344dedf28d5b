package repository

import (
	"context"

	"github.com/fastygo/ledger/domain"
)

// WorkflowStore persists saga instances. Each step's result is saved before
// the next step runs so suspended workflows resume from the same point.
type WorkflowStore interface {
	SaveWorkflow(ctx context.Context, instance *domain.WorkflowInstance) error
	GetWorkflow(ctx context.Context, id string) (*domain.WorkflowInstance, error)
}
