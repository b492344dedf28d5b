package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/repository"
)

type snapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a Postgres-backed SnapshotStore implementation.
func NewSnapshotStore(pool *pgxpool.Pool) repository.SnapshotStore {
	return &snapshotStore{pool: pool}
}

func (s *snapshotStore) SaveSnapshot(ctx context.Context, snap domain.Snapshot) error {
	const query = `
	INSERT INTO snapshots (stream_id, sequence, state, taken_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (stream_id) DO UPDATE
	SET sequence = EXCLUDED.sequence,
		state = EXCLUDED.state,
		taken_at = EXCLUDED.taken_at
	WHERE snapshots.sequence < EXCLUDED.sequence
	`
	_, err := s.pool.Exec(ctx, query, snap.StreamID, snap.Sequence, []byte(snap.State), snap.TakenAt)
	return err
}

func (s *snapshotStore) LoadSnapshot(ctx context.Context, streamID string) (domain.Snapshot, bool, error) {
	const query = `
	SELECT stream_id, sequence, state, taken_at
	FROM snapshots
	WHERE stream_id = $1
	`
	var (
		snap  domain.Snapshot
		state []byte
	)
	err := s.pool.QueryRow(ctx, query, streamID).Scan(&snap.StreamID, &snap.Sequence, &state, &snap.TakenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Snapshot{}, false, nil
		}
		return domain.Snapshot{}, false, err
	}
	snap.State = append([]byte(nil), state...)
	return snap, true, nil
}
