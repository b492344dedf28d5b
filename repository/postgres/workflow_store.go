package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/repository"
)

type workflowStore struct {
	pool *pgxpool.Pool
}

// NewWorkflowStore creates a Postgres-backed WorkflowStore implementation.
func NewWorkflowStore(pool *pgxpool.Pool) repository.WorkflowStore {
	return &workflowStore{pool: pool}
}

func (s *workflowStore) SaveWorkflow(ctx context.Context, instance *domain.WorkflowInstance) error {
	if instance == nil || instance.ID == "" {
		return domain.ErrInvalidPayload
	}

	values, err := json.Marshal(instance.Values)
	if err != nil {
		return err
	}
	steps, err := json.Marshal(instance.Steps)
	if err != nil {
		return err
	}

	const query = `
	INSERT INTO workflows (id, name, status, step, shared_values, steps, last_error, started_at, updated_at, completed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE
	SET status = EXCLUDED.status,
		step = EXCLUDED.step,
		shared_values = EXCLUDED.shared_values,
		steps = EXCLUDED.steps,
		last_error = EXCLUDED.last_error,
		updated_at = EXCLUDED.updated_at,
		completed_at = EXCLUDED.completed_at
	`
	_, err = s.pool.Exec(ctx, query,
		instance.ID,
		instance.Name,
		string(instance.Status),
		instance.Step,
		values,
		steps,
		instance.LastError,
		instance.StartedAt,
		instance.UpdatedAt,
		instance.CompletedAt,
	)
	return err
}

func (s *workflowStore) GetWorkflow(ctx context.Context, id string) (*domain.WorkflowInstance, error) {
	const query = `
	SELECT id, name, status, step, shared_values, steps, last_error, started_at, updated_at, completed_at
	FROM workflows
	WHERE id = $1
	`
	var (
		instance domain.WorkflowInstance
		status   string
		values   []byte
		steps    []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&instance.ID,
		&instance.Name,
		&status,
		&instance.Step,
		&values,
		&steps,
		&instance.LastError,
		&instance.StartedAt,
		&instance.UpdatedAt,
		&instance.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAggregateNotFound
		}
		return nil, err
	}

	instance.Status = domain.WorkflowStatus(status)
	if len(values) > 0 {
		if err := json.Unmarshal(values, &instance.Values); err != nil {
			return nil, err
		}
	}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &instance.Steps); err != nil {
			return nil, err
		}
	}
	return &instance, nil
}
