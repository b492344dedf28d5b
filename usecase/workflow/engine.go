package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/internal/metrics"
	"github.com/fastygo/ledger/repository"
	"github.com/fastygo/ledger/usecase"
)

// JobKindResume marks queue jobs that wake a suspended workflow.
const JobKindResume = "workflow.resume"

// ResumePayload is the queue job body for JobKindResume.
type ResumePayload struct {
	WorkflowID string `json:"workflow_id"`
}

// Run gives activities access to the shared workflow values. Values are
// strings; ids and minor-unit amounts both fit.
type Run struct {
	instance *domain.WorkflowInstance
}

// ID returns the workflow instance id.
func (r *Run) ID() string { return r.instance.ID }

// Get reads a shared value.
func (r *Run) Get(key string) string { return r.instance.Values[key] }

// GetInt64 reads a shared value as an integer.
func (r *Run) GetInt64(key string) (int64, error) {
	value, err := strconv.ParseInt(r.instance.Values[key], 10, 64)
	if err != nil {
		return 0, domain.WrapError(domain.ErrCodeInternal, "workflow value "+key+" is not an integer", err)
	}
	return value, nil
}

// Set stores a shared value for later steps and compensations.
func (r *Run) Set(key, value string) {
	if r.instance.Values == nil {
		r.instance.Values = make(map[string]string)
	}
	r.instance.Values[key] = value
}

// SetInt64 stores an integer value.
func (r *Run) SetInt64(key string, value int64) {
	r.Set(key, strconv.FormatInt(value, 10))
}

// Activity is one workflow step. Execute must be idempotent per attempt: the
// engine never deduplicates retries, so activities check whether their effect
// already applied (usually by inspecting aggregate state). Compensate, when
// set, reverses a completed Execute; nil means there is nothing to undo.
type Activity struct {
	Name       string
	Execute    func(ctx context.Context, run *Run) error
	Compensate func(ctx context.Context, run *Run) error
}

// Definition is a named, ordered list of activities. Steps run strictly in
// order; compensation runs in reverse.
type Definition struct {
	Name  string
	Steps []Activity
}

type suspension struct {
	delay time.Duration
}

func (s suspension) Error() string {
	return fmt.Sprintf("workflow suspended for %s", s.delay)
}

// Suspend signals that the current step is waiting on an external system.
// The engine parks the workflow and schedules a resume instead of blocking a
// goroutine for the wait.
func Suspend(delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	return suspension{delay: delay}
}

// AsSuspend extracts a suspension signal from a step error.
func AsSuspend(err error) (time.Duration, bool) {
	var s suspension
	if errors.As(err, &s) {
		return s.delay, true
	}
	return 0, false
}

// Engine drives saga instances: strict in-order execution, durable per-step
// checkpoints, LIFO compensation on failure. Unrelated workflows may run
// concurrently; steps within one instance never do.
type Engine struct {
	store     repository.WorkflowStore
	scheduler usecase.Scheduler
	logger    *zap.Logger
	stats     *metrics.Set

	mu   sync.RWMutex
	defs map[string]Definition
}

// NewEngine wires the workflow engine. Scheduler may be nil when no workflow
// uses suspension.
func NewEngine(store repository.WorkflowStore, scheduler usecase.Scheduler, logger *zap.Logger, stats *metrics.Set) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:     store,
		scheduler: scheduler,
		logger:    logger,
		stats:     stats,
		defs:      make(map[string]Definition),
	}
}

// Register adds a workflow definition. Definitions must be registered before
// Start and on every process start so suspended instances can resume.
func (e *Engine) Register(def Definition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.defs[def.Name] = def
}

// Start creates a new instance of the named workflow and runs it until it
// completes, suspends or fails. The returned instance reflects the final
// persisted state; the error is the failing step's error, if any.
func (e *Engine) Start(ctx context.Context, name string, values map[string]string) (*domain.WorkflowInstance, error) {
	def, ok := e.definition(name)
	if !ok {
		return nil, domain.NewError(domain.ErrCodeNotFound, "workflow "+name+" not registered")
	}

	shared := make(map[string]string, len(values))
	for k, v := range values {
		shared[k] = v
	}

	now := time.Now().UTC()
	instance := &domain.WorkflowInstance{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    domain.WorkflowRunning,
		Values:    shared,
		StartedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.SaveWorkflow(ctx, instance); err != nil {
		return nil, err
	}

	e.logger.Info("workflow started",
		zap.String("workflow_id", instance.ID),
		zap.String("workflow", name),
		zap.Int("steps", len(def.Steps)))

	return e.run(ctx, def, instance)
}

// Resume continues a suspended instance from its checkpoint without
// re-running completed steps.
func (e *Engine) Resume(ctx context.Context, id string) (*domain.WorkflowInstance, error) {
	instance, err := e.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if instance.Terminal() {
		return instance, nil
	}

	def, ok := e.definition(instance.Name)
	if !ok {
		return nil, domain.NewError(domain.ErrCodeNotFound, "workflow "+instance.Name+" not registered")
	}

	instance.Status = domain.WorkflowRunning
	e.logger.Info("workflow resumed",
		zap.String("workflow_id", instance.ID),
		zap.Int("step", instance.Step))
	return e.run(ctx, def, instance)
}

// Cancel aborts a running or suspended instance by taking the failure path:
// compensations run, nothing is left half-applied without being flagged.
func (e *Engine) Cancel(ctx context.Context, id, reason string) (*domain.WorkflowInstance, error) {
	instance, err := e.store.GetWorkflow(ctx, id)
	if err != nil {
		return nil, err
	}
	if instance.Terminal() {
		return nil, domain.InvalidStateTransition("workflow", id, string(instance.Status), "cancel")
	}

	def, ok := e.definition(instance.Name)
	if !ok {
		return nil, domain.NewError(domain.ErrCodeNotFound, "workflow "+instance.Name+" not registered")
	}

	instance.LastError = "cancelled: " + reason
	e.compensate(ctx, def, instance)
	if err := e.save(ctx, instance); err != nil {
		return nil, err
	}
	return instance, nil
}

func (e *Engine) definition(name string) (Definition, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	def, ok := e.defs[name]
	return def, ok
}

func (e *Engine) run(ctx context.Context, def Definition, instance *domain.WorkflowInstance) (*domain.WorkflowInstance, error) {
	run := &Run{instance: instance}

	for i := instance.Step; i < len(def.Steps); i++ {
		step := def.Steps[i]
		err := step.Execute(ctx, run)

		if delay, suspended := AsSuspend(err); suspended {
			instance.Status = domain.WorkflowSuspended
			instance.Step = i
			if err := e.save(ctx, instance); err != nil {
				return instance, err
			}
			if err := e.scheduleResume(ctx, instance.ID, delay); err != nil {
				return instance, err
			}
			e.logger.Info("workflow suspended",
				zap.String("workflow_id", instance.ID),
				zap.String("step", step.Name),
				zap.Duration("delay", delay))
			return instance, nil
		}

		if err != nil {
			instance.Steps = append(instance.Steps, domain.WorkflowStep{
				Index:      i,
				Name:       step.Name,
				Status:     domain.StepFailed,
				Error:      err.Error(),
				ExecutedAt: time.Now().UTC(),
			})
			instance.LastError = err.Error()
			e.logger.Error("workflow step failed",
				zap.String("workflow_id", instance.ID),
				zap.String("step", step.Name),
				zap.Error(err))

			e.compensate(ctx, def, instance)
			if saveErr := e.save(ctx, instance); saveErr != nil {
				return instance, saveErr
			}
			return instance, err
		}

		instance.Steps = append(instance.Steps, domain.WorkflowStep{
			Index:      i,
			Name:       step.Name,
			Status:     domain.StepCompleted,
			ExecutedAt: time.Now().UTC(),
		})
		instance.Step = i + 1
		// Checkpoint before the next step so a crash or suspension never
		// re-runs completed work.
		if err := e.save(ctx, instance); err != nil {
			return instance, err
		}
	}

	now := time.Now().UTC()
	instance.Status = domain.WorkflowCompleted
	instance.CompletedAt = &now
	if err := e.save(ctx, instance); err != nil {
		return instance, err
	}
	e.logger.Info("workflow completed", zap.String("workflow_id", instance.ID))
	return instance, nil
}

// compensate pops the executed steps in reverse order and runs each step's
// compensation. A compensation failure is logged and counted but does not
// halt the rest; the instance then ends CompensationIncomplete so manual
// reconciliation is never silently skipped.
func (e *Engine) compensate(ctx context.Context, def Definition, instance *domain.WorkflowInstance) {
	instance.Status = domain.WorkflowCompensating
	run := &Run{instance: instance}

	var failures error
	for i := len(instance.Steps) - 1; i >= 0; i-- {
		record := &instance.Steps[i]
		if record.Status != domain.StepCompleted {
			continue
		}
		if record.Index >= len(def.Steps) {
			continue
		}
		step := def.Steps[record.Index]
		if step.Compensate == nil {
			record.Status = domain.StepCompensated
			continue
		}

		if err := step.Compensate(ctx, run); err != nil {
			record.Status = domain.StepCompensationFailed
			record.Error = err.Error()
			failures = multierror.Append(failures, fmt.Errorf("compensate %s: %w", step.Name, err))
			e.logger.Error("workflow compensation failed",
				zap.String("workflow_id", instance.ID),
				zap.String("step", step.Name),
				zap.Error(err))
			continue
		}
		record.Status = domain.StepCompensated
		e.stats.CompensationRun()
		e.logger.Info("workflow step compensated",
			zap.String("workflow_id", instance.ID),
			zap.String("step", step.Name))
	}

	now := time.Now().UTC()
	instance.CompletedAt = &now
	if failures != nil {
		instance.Status = domain.WorkflowCompensationIncomplete
		instance.LastError = instance.LastError + "; " + failures.Error()
		return
	}
	instance.Status = domain.WorkflowCompensated
}

func (e *Engine) scheduleResume(ctx context.Context, id string, delay time.Duration) error {
	if e.scheduler == nil {
		return domain.NewError(domain.ErrCodeInternal, "no scheduler configured for workflow suspension")
	}
	payload, err := json.Marshal(ResumePayload{WorkflowID: id})
	if err != nil {
		return err
	}
	return e.scheduler.Schedule(ctx, JobKindResume, payload, delay)
}

func (e *Engine) save(ctx context.Context, instance *domain.WorkflowInstance) error {
	instance.UpdatedAt = time.Now().UTC()
	return e.store.SaveWorkflow(ctx, instance)
}
