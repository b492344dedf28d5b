package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/fastygo/ledger/domain"
)

// WorkflowStore keeps saga instances in memory. Instances are stored as
// serialized copies so callers cannot mutate saved state in place.
type WorkflowStore struct {
	mu        sync.RWMutex
	instances map[string][]byte
}

// NewWorkflowStore creates an empty in-memory workflow store.
func NewWorkflowStore() *WorkflowStore {
	return &WorkflowStore{instances: make(map[string][]byte)}
}

func (s *WorkflowStore) SaveWorkflow(ctx context.Context, instance *domain.WorkflowInstance) error {
	body, err := json.Marshal(instance)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instances[instance.ID] = body
	return nil
}

func (s *WorkflowStore) GetWorkflow(ctx context.Context, id string) (*domain.WorkflowInstance, error) {
	s.mu.RLock()
	body, ok := s.instances[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrAggregateNotFound
	}
	var instance domain.WorkflowInstance
	if err := json.Unmarshal(body, &instance); err != nil {
		return nil, err
	}
	return &instance, nil
}
