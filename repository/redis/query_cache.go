package redis

import (
	"context"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/ledger/repository"
)

type queryCache struct {
	client *redislib.Client
	prefix string
}

// NewQueryCache creates a Redis-backed query result cache. Entries expire by
// TTL only.
func NewQueryCache(client *redislib.Client) repository.QueryCache {
	return &queryCache{client: client, prefix: "query:"}
}

func (c *queryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	result, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err == redislib.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	return result, true, nil
}

func (c *queryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}
