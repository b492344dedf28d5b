package services

import (
	"context"
	"time"

	"github.com/fastygo/ledger/internal/infrastructure/queue"
	"github.com/fastygo/ledger/usecase"
)

// QueueScheduler adapts the durable queue store to the bus and workflow
// engine scheduling interface.
type QueueScheduler struct {
	store *queue.Store
}

func NewQueueScheduler(store *queue.Store) *QueueScheduler {
	return &QueueScheduler{store: store}
}

// Schedule enqueues one job to run after the given delay.
func (s *QueueScheduler) Schedule(_ context.Context, kind string, payload []byte, delay time.Duration) error {
	return s.store.Enqueue(queue.Job{
		Kind:    kind,
		Payload: payload,
		RunAt:   time.Now().UTC().Add(delay),
	})
}

var _ usecase.Scheduler = (*QueueScheduler)(nil)
