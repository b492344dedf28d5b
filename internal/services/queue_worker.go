package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/ledger/internal/infrastructure/queue"
	"github.com/fastygo/ledger/internal/metrics"
	"github.com/fastygo/ledger/usecase"
	"github.com/fastygo/ledger/usecase/workflow"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// WorkerConfig controls how frequently the queue is drained.
type WorkerConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	RetryDelay time.Duration
}

// QueueWorker drains due jobs from the durable queue: async command
// dispatches go back through the bus, resume jobs wake suspended workflows.
// Draining is skipped while primary stores are offline so jobs are not burned
// on connection errors.
type QueueWorker struct {
	store   *queue.Store
	bus     *usecase.Bus
	engine  *workflow.Engine
	monitor ConnectionHealth
	logger  *zap.Logger
	stats   *metrics.Set
	cron    *cron.Cron
	cfg     WorkerConfig
}

func NewQueueWorker(
	store *queue.Store,
	bus *usecase.Bus,
	engine *workflow.Engine,
	monitor ConnectionHealth,
	logger *zap.Logger,
	stats *metrics.Set,
	cfg WorkerConfig,
) *QueueWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &QueueWorker{
		store:   store,
		bus:     bus,
		engine:  engine,
		monitor: monitor,
		logger:  logger,
		stats:   stats,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = w.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := w.Drain(ctx); err != nil {
			w.logger.Error("queue drain failed", zap.Error(err))
		}
	})

	return w
}

// Start launches the cron scheduler.
func (w *QueueWorker) Start() {
	if w == nil || w.cron == nil {
		return
	}
	w.cron.Start()
	w.logger.Info("queue worker started")
}

// Stop gracefully stops the scheduler.
func (w *QueueWorker) Stop(ctx context.Context) {
	if w == nil || w.cron == nil {
		return
	}
	stopCtx := w.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	w.logger.Info("queue worker stopped")
}

// Drain processes due jobs synchronously.
func (w *QueueWorker) Drain(ctx context.Context) error {
	if w == nil || w.store == nil {
		return nil
	}
	if w.monitor != nil && !w.monitor.IsOnline() {
		w.logger.Debug("skipping queue drain (offline)")
		return nil
	}

	jobs, err := w.store.Due(time.Now().UTC(), w.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			w.logger.Error("failed to process queue job",
				zap.String("job_id", job.ID),
				zap.String("kind", job.Kind),
				zap.Int("retries", job.Retries),
				zap.Error(err))

			if job.Retries+1 >= w.cfg.MaxRetries {
				w.logger.Warn("dropping queue job (max retries reached)", zap.String("job_id", job.ID))
				_ = w.store.Remove(job)
				continue
			}
			if err := w.store.Requeue(job, w.cfg.RetryDelay); err != nil {
				w.logger.Error("failed to requeue job", zap.Error(err))
			}
			continue
		}

		if err := w.store.Remove(job); err != nil {
			w.logger.Warn("failed to purge processed job", zap.Error(err))
		}
	}

	if size, err := w.store.Size(); err == nil {
		w.stats.QueueSize(size)
	}
	return nil
}

// Size returns the number of queued jobs.
func (w *QueueWorker) Size() int {
	if w == nil || w.store == nil {
		return 0
	}
	size, err := w.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (w *QueueWorker) processJob(ctx context.Context, job queue.Job) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch job.Kind {
	case usecase.JobKindCommand:
		_, err := w.bus.DispatchEncoded(ctx, job.Payload)
		return err

	case workflow.JobKindResume:
		var payload workflow.ResumePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return err
		}
		_, err := w.engine.Resume(ctx, payload.WorkflowID)
		return err

	default:
		return fmt.Errorf("unsupported job kind %s", job.Kind)
	}
}
