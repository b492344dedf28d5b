package repository

import (
	"context"

	"github.com/fastygo/ledger/domain"
)

// StreamAppend is one stream's slice of a multi-stream atomic append.
type StreamAppend struct {
	StreamID         string
	ExpectedSequence int64
	Events           []domain.Event
}

// EventStore is the append-only, per-stream event log. It is the single
// source of truth; everything else is derived and rebuildable by replay.
type EventStore interface {
	// Append adds events to a stream. Fails with domain.ErrConcurrencyConflict
	// when expectedSequence no longer matches the stream head.
	Append(ctx context.Context, streamID string, expectedSequence int64, events []domain.Event) error

	// AppendBatch commits appends across several streams atomically. Used by
	// transactional command dispatch.
	AppendBatch(ctx context.Context, batch []StreamAppend) error

	// Load returns a stream's events from the given sequence, in order.
	Load(ctx context.Context, streamID string, fromSequence int64) ([]domain.Event, error)

	// ReadAll returns committed events in global commit order, starting at
	// fromPosition. This is the projection feed.
	ReadAll(ctx context.Context, fromPosition int64, limit int) ([]domain.Event, error)
}
