package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EventReader is the read half of the event log as seen by the replay engine.
type EventReader interface {
	Load(ctx context.Context, streamID string, fromSequence int64) ([]Event, error)
}

// EventAppender is the write half. Append fails with ErrConcurrencyConflict
// when expectedSequence no longer matches the head of the stream.
type EventAppender interface {
	Append(ctx context.Context, streamID string, expectedSequence int64, events []Event) error
}

// Snapshot is a serialized fold of an aggregate at a given sequence. It is a
// pure cache; replay from sequence zero must always reproduce it.
type Snapshot struct {
	StreamID string          `json:"stream_id"`
	Sequence int64           `json:"sequence"`
	State    json.RawMessage `json:"state"`
	TakenAt  time.Time       `json:"taken_at"`
}

// SnapshotReader loads the latest snapshot for a stream, if any.
type SnapshotReader interface {
	LoadSnapshot(ctx context.Context, streamID string) (Snapshot, bool, error)
}

// SnapshotWriter persists a snapshot.
type SnapshotWriter interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
}

// Aggregate is a consistency boundary whose entire state is a fold over its
// own event stream. Apply must be a pure transition: no state may change
// outside of it.
type Aggregate interface {
	Apply(evt Event) error
	AggregateRoot() *Root
}

// Snapshotter is implemented by aggregates that support snapshot restore.
type Snapshotter interface {
	SnapshotState() (json.RawMessage, error)
	RestoreSnapshot(sequence int64, state json.RawMessage) error
}

// Root carries the replay bookkeeping shared by every aggregate: identity,
// current sequence and the buffer of uncommitted events.
type Root struct {
	kind    string
	id      string
	version int64
	pending []Event
}

// NewRoot initializes the bookkeeping for an aggregate of the given kind.
func NewRoot(kind, id string) Root {
	return Root{kind: kind, id: id}
}

// AggregateRoot satisfies Aggregate for embedding types. The accessor cannot
// share the embedded field's name: the field would shadow it and break
// promotion.
func (r *Root) AggregateRoot() *Root { return r }

// AggregateID returns the aggregate's identifier.
func (r *Root) AggregateID() string { return r.id }

// Version is the sequence number of the last applied event.
func (r *Root) Version() int64 { return r.version }

// StreamID is the event log stream for this aggregate instance.
func (r *Root) StreamID() string { return r.kind + "-" + r.id }

// Uncommitted returns the buffered events not yet persisted.
func (r *Root) Uncommitted() []Event { return r.pending }

// IsNew reports whether any event has ever been applied.
func (r *Root) IsNew() bool { return r.version == 0 && len(r.pending) == 0 }

// RecordThat buffers a new event and applies it immediately, so operations
// later in the same call chain observe the updated state before persistence.
func (r *Root) RecordThat(agg Aggregate, eventType string, payload any) error {
	return r.record(agg, eventType, payload, Hash{}, QueueClassDefault)
}

// RecordChained is RecordThat for balance-mutating events: the chain hash is
// lifted onto the envelope and the event rides the ledger queue class.
func (r *Root) RecordChained(agg Aggregate, eventType string, payload any, hash Hash) error {
	return r.record(agg, eventType, payload, hash, QueueClassLedger)
}

func (r *Root) record(agg Aggregate, eventType string, payload any, hash Hash, queueClass string) error {
	evt, err := NewEvent(r.id, eventType, payload)
	if err != nil {
		return err
	}
	evt.Sequence = r.version + 1
	evt.Hash = hash.String()
	evt.QueueClass = queueClass
	if err := agg.Apply(evt); err != nil {
		return err
	}
	r.version = evt.Sequence
	r.pending = append(r.pending, evt)
	return nil
}

// Persist atomically appends all buffered events under the aggregate's stream
// using an expected-sequence check, then clears the buffer. On
// ErrConcurrencyConflict the caller must reload and retry.
func (r *Root) Persist(ctx context.Context, store EventAppender) error {
	if len(r.pending) == 0 {
		return nil
	}
	expected := r.version - int64(len(r.pending))
	if err := store.Append(ctx, r.StreamID(), expected, r.pending); err != nil {
		return err
	}
	r.pending = nil
	return nil
}

// Retrieve folds the aggregate's stream into the given zero-state instance.
// A stream with no events yields a fresh aggregate (create-on-first-event).
func Retrieve(ctx context.Context, store EventReader, agg Aggregate) error {
	root := agg.AggregateRoot()
	events, err := store.Load(ctx, root.StreamID(), root.version+1)
	if err != nil {
		return err
	}
	return fold(agg, events)
}

// RetrieveExisting is Retrieve for callers that require pre-existence.
func RetrieveExisting(ctx context.Context, store EventReader, agg Aggregate) error {
	if err := Retrieve(ctx, store, agg); err != nil {
		return err
	}
	if agg.AggregateRoot().IsNew() {
		return ErrAggregateNotFound
	}
	return nil
}

// RetrieveWithSnapshot restores the latest snapshot before replaying the tail
// of the stream. Falls back to a full replay when no snapshot exists or the
// aggregate cannot restore one.
func RetrieveWithSnapshot(ctx context.Context, events EventReader, snaps SnapshotReader, agg Aggregate) error {
	root := agg.AggregateRoot()
	if snapper, ok := agg.(Snapshotter); ok && snaps != nil {
		snap, found, err := snaps.LoadSnapshot(ctx, root.StreamID())
		if err != nil {
			return err
		}
		if found {
			if err := snapper.RestoreSnapshot(snap.Sequence, snap.State); err != nil {
				return err
			}
			root.version = snap.Sequence
		}
	}
	return Retrieve(ctx, events, agg)
}

// TakeSnapshot serializes the current fold. No-op for aggregates that do not
// implement Snapshotter or still hold uncommitted events.
func TakeSnapshot(ctx context.Context, snaps SnapshotWriter, agg Aggregate) error {
	snapper, ok := agg.(Snapshotter)
	if !ok || snaps == nil {
		return nil
	}
	root := agg.AggregateRoot()
	if len(root.pending) > 0 {
		return NewError(ErrCodeConflict, "cannot snapshot with uncommitted events")
	}
	state, err := snapper.SnapshotState()
	if err != nil {
		return err
	}
	return snaps.SaveSnapshot(ctx, Snapshot{
		StreamID: root.StreamID(),
		Sequence: root.version,
		State:    state,
		TakenAt:  time.Now().UTC(),
	})
}

func fold(agg Aggregate, events []Event) error {
	root := agg.AggregateRoot()
	for _, evt := range events {
		if evt.Sequence != root.version+1 {
			return WrapError(ErrCodeInternal, fmt.Sprintf(
				"stream %s out of order: expected sequence %d, got %d",
				root.StreamID(), root.version+1, evt.Sequence), nil)
		}
		if err := agg.Apply(evt); err != nil {
			return err
		}
		root.version = evt.Sequence
	}
	return nil
}
