package memory

import (
	"context"
	"sync"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/repository"
)

// EventStore is an in-memory event log with the same optimistic-concurrency
// semantics as the Postgres store. Used in tests and single-process setups.
type EventStore struct {
	mu       sync.Mutex
	streams  map[string][]domain.Event
	all      []domain.Event
	position int64
}

// NewEventStore creates an empty in-memory event log.
func NewEventStore() *EventStore {
	return &EventStore{streams: make(map[string][]domain.Event)}
}

func (s *EventStore) Append(ctx context.Context, streamID string, expectedSequence int64, events []domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.append(streamID, expectedSequence, events)
}

func (s *EventStore) AppendBatch(ctx context.Context, batch []repository.StreamAppend) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every stream head before touching anything so the batch is
	// all-or-nothing.
	for _, part := range batch {
		if int64(len(s.streams[part.StreamID])) != part.ExpectedSequence {
			return domain.ErrConcurrencyConflict
		}
	}
	for _, part := range batch {
		if err := s.append(part.StreamID, part.ExpectedSequence, part.Events); err != nil {
			return err
		}
	}
	return nil
}

func (s *EventStore) append(streamID string, expectedSequence int64, events []domain.Event) error {
	stream := s.streams[streamID]
	if int64(len(stream)) != expectedSequence {
		return domain.ErrConcurrencyConflict
	}
	for _, evt := range events {
		s.position++
		evt.Position = s.position
		stream = append(stream, evt)
		s.all = append(s.all, evt)
	}
	s.streams[streamID] = stream
	return nil
}

func (s *EventStore) Load(ctx context.Context, streamID string, fromSequence int64) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream := s.streams[streamID]
	var out []domain.Event
	for _, evt := range stream {
		if evt.Sequence >= fromSequence {
			out = append(out, evt)
		}
	}
	return out, nil
}

func (s *EventStore) ReadAll(ctx context.Context, fromPosition int64, limit int) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Event
	for _, evt := range s.all {
		if evt.Position >= fromPosition {
			out = append(out, evt)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// Tamper overwrites a stored event in place. Test hook for hash chain checks.
func (s *EventStore) Tamper(streamID string, sequence int64, mutate func(*domain.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stream := s.streams[streamID]
	for i := range stream {
		if stream[i].Sequence == sequence {
			mutate(&stream[i])
		}
	}
	s.streams[streamID] = stream
}
