package repository

import (
	"context"
	"time"
)

// QueryCache stores serialized query results keyed by a deterministic hash of
// the query. Entries expire by TTL only; there is no write-through
// invalidation, so callers needing read-after-write consistency bypass it.
type QueryCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
