package usecase

import (
	"context"
	"sync"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/repository"
)

// stagedStore buffers appends during transactional dispatch. Loads see the
// committed stream plus the staged tail so later commands in the same batch
// observe earlier commands' events. Commit flushes everything as one atomic
// multi-stream append.
type stagedStore struct {
	inner repository.EventStore

	mu     sync.Mutex
	staged []repository.StreamAppend
	index  map[string]int
}

func newStagedStore(inner repository.EventStore) *stagedStore {
	return &stagedStore{inner: inner, index: make(map[string]int)}
}

func (s *stagedStore) Append(ctx context.Context, streamID string, expectedSequence int64, events []domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[streamID]; ok {
		part := &s.staged[i]
		stagedHead := part.ExpectedSequence + int64(len(part.Events))
		if stagedHead != expectedSequence {
			return domain.ErrConcurrencyConflict
		}
		part.Events = append(part.Events, events...)
		return nil
	}

	s.index[streamID] = len(s.staged)
	s.staged = append(s.staged, repository.StreamAppend{
		StreamID:         streamID,
		ExpectedSequence: expectedSequence,
		Events:           append([]domain.Event(nil), events...),
	})
	return nil
}

func (s *stagedStore) AppendBatch(ctx context.Context, batch []repository.StreamAppend) error {
	for _, part := range batch {
		if err := s.Append(ctx, part.StreamID, part.ExpectedSequence, part.Events); err != nil {
			return err
		}
	}
	return nil
}

func (s *stagedStore) Load(ctx context.Context, streamID string, fromSequence int64) ([]domain.Event, error) {
	committed, err := s.inner.Load(ctx, streamID, fromSequence)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[streamID]; ok {
		for _, evt := range s.staged[i].Events {
			if evt.Sequence >= fromSequence {
				committed = append(committed, evt)
			}
		}
	}
	return committed, nil
}

func (s *stagedStore) ReadAll(ctx context.Context, fromPosition int64, limit int) ([]domain.Event, error) {
	return s.inner.ReadAll(ctx, fromPosition, limit)
}

// Commit flushes all staged appends atomically and reports how many events
// were persisted.
func (s *stagedStore) Commit(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.staged) == 0 {
		return 0, nil
	}
	if err := s.inner.AppendBatch(ctx, s.staged); err != nil {
		return 0, err
	}
	total := 0
	for _, part := range s.staged {
		total += len(part.Events)
	}
	s.staged = nil
	s.index = make(map[string]int)
	return total, nil
}
