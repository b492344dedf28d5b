package memory

import (
	"context"
	"sync"

	"github.com/fastygo/ledger/domain"
)

// SnapshotStore keeps the latest snapshot per stream in memory.
type SnapshotStore struct {
	mu    sync.RWMutex
	snaps map[string]domain.Snapshot
}

// NewSnapshotStore creates an empty in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snaps: make(map[string]domain.Snapshot)}
}

func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.StreamID] = snap
	return nil
}

func (s *SnapshotStore) LoadSnapshot(ctx context.Context, streamID string) (domain.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[streamID]
	return snap, ok, nil
}
