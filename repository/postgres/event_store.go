package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/repository"
)

type eventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a Postgres-backed EventStore implementation.
func NewEventStore(pool *pgxpool.Pool) repository.EventStore {
	return &eventStore{pool: pool}
}

const insertEvent = `
	INSERT INTO events (id, stream_id, sequence, type, payload, hash, queue_class, recorded_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

func (s *eventStore) Append(ctx context.Context, streamID string, expectedSequence int64, events []domain.Event) error {
	return s.AppendBatch(ctx, []repository.StreamAppend{{
		StreamID:         streamID,
		ExpectedSequence: expectedSequence,
		Events:           events,
	}})
}

func (s *eventStore) AppendBatch(ctx context.Context, batch []repository.StreamAppend) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, part := range batch {
		var head int64
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(sequence), 0) FROM events WHERE stream_id = $1`,
			part.StreamID,
		).Scan(&head); err != nil {
			return err
		}
		if head != part.ExpectedSequence {
			return domain.ErrConcurrencyConflict
		}

		for _, evt := range part.Events {
			if _, err := tx.Exec(ctx, insertEvent,
				evt.ID,
				part.StreamID,
				evt.Sequence,
				evt.Type,
				[]byte(evt.Payload),
				nullString(evt.Hash),
				evt.QueueClass,
				evt.RecordedAt,
			); err != nil {
				// Concurrent writer got past the head check first.
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == "23505" {
					return domain.ErrConcurrencyConflict
				}
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

func (s *eventStore) Load(ctx context.Context, streamID string, fromSequence int64) ([]domain.Event, error) {
	const query = `
	SELECT id, stream_id, sequence, type, payload, hash, queue_class, global_position, recorded_at
	FROM events
	WHERE stream_id = $1 AND sequence >= $2
	ORDER BY sequence
	`
	rows, err := s.pool.Query(ctx, query, streamID, fromSequence)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *eventStore) ReadAll(ctx context.Context, fromPosition int64, limit int) ([]domain.Event, error) {
	const query = `
	SELECT id, stream_id, sequence, type, payload, hash, queue_class, global_position, recorded_at
	FROM events
	WHERE global_position >= $1
	ORDER BY global_position
	LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, fromPosition, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows pgx.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		var (
			evt      domain.Event
			streamID string
			payload  []byte
			hash     *string
		)
		if err := rows.Scan(
			&evt.ID,
			&streamID,
			&evt.Sequence,
			&evt.Type,
			&payload,
			&hash,
			&evt.QueueClass,
			&evt.Position,
			&evt.RecordedAt,
		); err != nil {
			return nil, err
		}
		evt.AggregateID = aggregateIDFromStream(streamID)
		evt.Payload = append([]byte(nil), payload...)
		if hash != nil {
			evt.Hash = *hash
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// Stream ids are "<kind>-<uuid>"; the aggregate id is everything after the
// first dash.
func aggregateIDFromStream(streamID string) string {
	for i := 0; i < len(streamID); i++ {
		if streamID[i] == '-' {
			return streamID[i+1:]
		}
	}
	return streamID
}
