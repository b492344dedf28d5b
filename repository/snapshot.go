package repository

import (
	"context"

	"github.com/fastygo/ledger/domain"
)

// SnapshotStore persists aggregate snapshots so replay can start from the
// latest fold instead of sequence one. Snapshots are a cache, never
// authoritative.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap domain.Snapshot) error
	LoadSnapshot(ctx context.Context, streamID string) (domain.Snapshot, bool, error)
}
