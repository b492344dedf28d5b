package redis

import (
	"context"
	"strconv"

	redislib "github.com/redis/go-redis/v9"
)

// BalanceView is the Redis read model maintained by the projection pump. It
// mirrors folded balances per account and asset; the event log remains the
// source of truth and the view can be rebuilt by replay at any time.
type BalanceView struct {
	client *redislib.Client
	prefix string
}

// NewBalanceView creates the read model accessor.
func NewBalanceView(client *redislib.Client) *BalanceView {
	return &BalanceView{client: client, prefix: "balance:"}
}

// ApplyDelta folds one balance movement into the view and advances the
// position marker in the same MULTI/EXEC, so a crash between the two can
// never double-apply a delta.
func (v *BalanceView) ApplyDelta(ctx context.Context, accountID, assetCode string, delta, position int64) error {
	_, err := v.client.TxPipelined(ctx, func(pipe redislib.Pipeliner) error {
		pipe.HIncrBy(ctx, v.prefix+accountID, assetCode, delta)
		pipe.Set(ctx, v.prefix+"position", strconv.FormatInt(position, 10), 0)
		return nil
	})
	return err
}

// Get returns the projected balance for one asset.
func (v *BalanceView) Get(ctx context.Context, accountID, assetCode string) (int64, bool, error) {
	result, err := v.client.HGet(ctx, v.prefix+accountID, assetCode).Result()
	if err != nil {
		if err == redislib.Nil {
			return 0, false, nil
		}
		return 0, false, err
	}
	balance, err := strconv.ParseInt(result, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return balance, true, nil
}

// GetAll returns all projected balances for an account.
func (v *BalanceView) GetAll(ctx context.Context, accountID string) (map[string]int64, error) {
	result, err := v.client.HGetAll(ctx, v.prefix+accountID).Result()
	if err != nil {
		return nil, err
	}
	balances := make(map[string]int64, len(result))
	for asset, raw := range result {
		balance, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		balances[asset] = balance
	}
	return balances, nil
}

// Position tracks the projection pump's progress through the global feed.
func (v *BalanceView) Position(ctx context.Context) (int64, error) {
	result, err := v.client.Get(ctx, v.prefix+"position").Result()
	if err != nil {
		if err == redislib.Nil {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseInt(result, 10, 64)
}

// SetPosition stores the pump's progress.
func (v *BalanceView) SetPosition(ctx context.Context, position int64) error {
	return v.client.Set(ctx, v.prefix+"position", strconv.FormatInt(position, 10), 0).Err()
}
