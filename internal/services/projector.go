package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/repository"
)

// BalanceProjection is the write side of the projected balance read model.
// ApplyDelta must fold the movement and advance the position marker in one
// atomic write, so a crash can never apply the same delta twice.
type BalanceProjection interface {
	ApplyDelta(ctx context.Context, accountID, assetCode string, delta, position int64) error
	Position(ctx context.Context) (int64, error)
	SetPosition(ctx context.Context, position int64) error
}

// Subscriber receives committed events in global order, after the durable
// projection has been updated. Used for in-process listeners; delivery stops
// at process exit, the position marker makes the pump pick up where it left
// off.
type Subscriber func(ctx context.Context, evt domain.Event)

// ProjectorConfig controls the projection pump cadence.
type ProjectorConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Projector pumps the global event feed into the balance read model. The
// view trails the log by at most one interval; reads needing the committed
// truth replay the stream instead.
type Projector struct {
	store  repository.EventStore
	view   BalanceProjection
	logger *zap.Logger
	cron   *cron.Cron
	cfg    ProjectorConfig

	mu          sync.RWMutex
	subscribers []Subscriber
}

func NewProjector(store repository.EventStore, view BalanceProjection, logger *zap.Logger, cfg ProjectorConfig) *Projector {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Projector{
		store:  store,
		view:   view,
		logger: logger,
		cfg:    cfg,
		cron:   cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", maxInt(1, int(cfg.Interval.Seconds())))
	_, _ = p.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval*2)
		defer cancel()
		if err := p.Pump(ctx); err != nil {
			p.logger.Error("projection pump failed", zap.Error(err))
		}
	})

	return p
}

// Subscribe registers an in-process listener for committed events.
func (p *Projector) Subscribe(fn Subscriber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Start launches the pump scheduler.
func (p *Projector) Start() {
	if p == nil || p.cron == nil {
		return
	}
	p.cron.Start()
	p.logger.Info("projector started")
}

// Stop gracefully stops the pump.
func (p *Projector) Stop(ctx context.Context) {
	if p == nil || p.cron == nil {
		return
	}
	stopCtx := p.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	p.logger.Info("projector stopped")
}

// Pump folds one batch of committed events into the read model. Balance
// deltas land together with the position marker in one write, so every
// movement counts exactly once no matter where a crash lands; events without
// a balance effect only advance the marker.
func (p *Projector) Pump(ctx context.Context) error {
	if p == nil || p.view == nil {
		return nil
	}

	position, err := p.view.Position(ctx)
	if err != nil {
		return err
	}

	for {
		events, err := p.store.ReadAll(ctx, position+1, p.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		for _, evt := range events {
			applied, err := p.project(ctx, evt)
			if err != nil {
				return err
			}
			if !applied {
				if err := p.view.SetPosition(ctx, evt.Position); err != nil {
					return err
				}
			}
			position = evt.Position
			p.notify(ctx, evt)
		}

		if len(events) < p.cfg.BatchSize {
			return nil
		}
	}
}

func (p *Projector) project(ctx context.Context, evt domain.Event) (bool, error) {
	var sign int64
	switch evt.Type {
	case domain.EventMoneyCredited:
		sign = 1
	case domain.EventMoneyDebited:
		sign = -1
	default:
		return false, nil
	}

	var payload domain.MoneyMoved
	if err := evt.DecodePayload(&payload); err != nil {
		return false, err
	}
	if err := p.view.ApplyDelta(ctx, evt.AggregateID, payload.AssetCode, sign*payload.Amount, evt.Position); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Projector) notify(ctx context.Context, evt domain.Event) {
	p.mu.RLock()
	subscribers := p.subscribers
	p.mu.RUnlock()
	for _, fn := range subscribers {
		fn(ctx, evt)
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
