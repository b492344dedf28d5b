package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/repository/memory"
)

type recordedCall struct {
	step   string
	action string
}

type callLog struct {
	calls []recordedCall
}

func (l *callLog) record(step, action string) {
	l.calls = append(l.calls, recordedCall{step: step, action: action})
}

func (l *callLog) count(step, action string) int {
	n := 0
	for _, c := range l.calls {
		if c.step == step && c.action == action {
			n++
		}
	}
	return n
}

type testScheduler struct {
	kinds    []string
	payloads [][]byte
	delays   []time.Duration
}

func (s *testScheduler) Schedule(_ context.Context, kind string, payload []byte, delay time.Duration) error {
	s.kinds = append(s.kinds, kind)
	s.payloads = append(s.payloads, payload)
	s.delays = append(s.delays, delay)
	return nil
}

func step(log *callLog, name string, execErr, compErr error) Activity {
	return Activity{
		Name: name,
		Execute: func(context.Context, *Run) error {
			log.record(name, "execute")
			return execErr
		},
		Compensate: func(context.Context, *Run) error {
			log.record(name, "compensate")
			return compErr
		},
	}
}

func TestWorkflowCompletesInOrder(t *testing.T) {
	log := &callLog{}
	engine := NewEngine(memory.NewWorkflowStore(), nil, nil, nil)
	engine.Register(Definition{
		Name:  "happy",
		Steps: []Activity{step(log, "one", nil, nil), step(log, "two", nil, nil), step(log, "three", nil, nil)},
	})

	instance, err := engine.Start(context.Background(), "happy", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if instance.Status != domain.WorkflowCompleted {
		t.Fatalf("expected completed, got %s", instance.Status)
	}
	if instance.CompletedAt == nil {
		t.Fatal("completed instance must carry a completion time")
	}

	want := []recordedCall{{"one", "execute"}, {"two", "execute"}, {"three", "execute"}}
	if len(log.calls) != len(want) {
		t.Fatalf("unexpected calls %v", log.calls)
	}
	for i, c := range want {
		if log.calls[i] != c {
			t.Fatalf("call %d: got %v want %v", i, log.calls[i], c)
		}
	}
}

func TestWorkflowCompensatesInReverseOrder(t *testing.T) {
	log := &callLog{}
	boom := errors.New("step three exploded")
	engine := NewEngine(memory.NewWorkflowStore(), nil, nil, nil)
	engine.Register(Definition{
		Name:  "failing",
		Steps: []Activity{step(log, "one", nil, nil), step(log, "two", nil, nil), step(log, "three", boom, nil)},
	})

	instance, err := engine.Start(context.Background(), "failing", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected the step error, got %v", err)
	}
	if instance.Status != domain.WorkflowCompensated {
		t.Fatalf("expected compensated, got %s", instance.Status)
	}

	// Completed steps compensate exactly once, last-in first-out; the failed
	// step never compensates.
	want := []recordedCall{
		{"one", "execute"}, {"two", "execute"}, {"three", "execute"},
		{"two", "compensate"}, {"one", "compensate"},
	}
	if len(log.calls) != len(want) {
		t.Fatalf("unexpected calls %v", log.calls)
	}
	for i, c := range want {
		if log.calls[i] != c {
			t.Fatalf("call %d: got %v want %v", i, log.calls[i], c)
		}
	}
	if log.count("three", "compensate") != 0 {
		t.Fatal("the failed step must not be compensated")
	}
}

func TestWorkflowCompensationIncomplete(t *testing.T) {
	log := &callLog{}
	boom := errors.New("execute failed")
	undoErr := errors.New("undo failed")
	engine := NewEngine(memory.NewWorkflowStore(), nil, nil, nil)
	engine.Register(Definition{
		Name: "stuck",
		Steps: []Activity{
			step(log, "one", nil, nil),
			step(log, "two", nil, undoErr),
			step(log, "three", boom, nil),
		},
	})

	instance, err := engine.Start(context.Background(), "stuck", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected step error, got %v", err)
	}
	if instance.Status != domain.WorkflowCompensationIncomplete {
		t.Fatalf("expected compensation_incomplete, got %s", instance.Status)
	}
	// A failed compensation does not stop the remaining ones.
	if log.count("one", "compensate") != 1 {
		t.Fatal("later compensations must still run")
	}
	if !strings.Contains(instance.LastError, "undo failed") {
		t.Fatalf("last error must carry the compensation failure: %q", instance.LastError)
	}

	for _, s := range instance.Steps {
		if s.Name == "two" && s.Status != domain.StepCompensationFailed {
			t.Fatalf("step two recorded as %s", s.Status)
		}
	}
}

func TestWorkflowNilCompensationSkips(t *testing.T) {
	log := &callLog{}
	boom := errors.New("fail")
	engine := NewEngine(memory.NewWorkflowStore(), nil, nil, nil)
	engine.Register(Definition{
		Name: "mixed",
		Steps: []Activity{
			{Name: "readonly", Execute: func(context.Context, *Run) error {
				log.record("readonly", "execute")
				return nil
			}},
			step(log, "boomer", boom, nil),
		},
	})

	instance, err := engine.Start(context.Background(), "mixed", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected step error, got %v", err)
	}
	if instance.Status != domain.WorkflowCompensated {
		t.Fatalf("nil compensation still counts as compensated, got %s", instance.Status)
	}
}

func TestWorkflowSuspendAndResume(t *testing.T) {
	store := memory.NewWorkflowStore()
	scheduler := &testScheduler{}
	engine := NewEngine(store, scheduler, nil, nil)

	attempts := 0
	engine.Register(Definition{
		Name: "waiting",
		Steps: []Activity{
			{Name: "prepare", Execute: func(_ context.Context, run *Run) error {
				run.Set("prepared", "yes")
				return nil
			}},
			{Name: "wait-external", Execute: func(_ context.Context, run *Run) error {
				attempts++
				if attempts == 1 {
					return Suspend(30 * time.Second)
				}
				return nil
			}},
		},
	})

	instance, err := engine.Start(context.Background(), "waiting", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if instance.Status != domain.WorkflowSuspended {
		t.Fatalf("expected suspended, got %s", instance.Status)
	}
	if len(scheduler.kinds) != 1 || scheduler.kinds[0] != JobKindResume {
		t.Fatalf("expected one resume job, got %v", scheduler.kinds)
	}
	if scheduler.delays[0] != 30*time.Second {
		t.Fatalf("unexpected delay %v", scheduler.delays[0])
	}

	var payload ResumePayload
	if err := json.Unmarshal(scheduler.payloads[0], &payload); err != nil {
		t.Fatalf("decode resume payload: %v", err)
	}
	if payload.WorkflowID != instance.ID {
		t.Fatal("resume job must target the suspended instance")
	}

	resumed, err := engine.Resume(context.Background(), payload.WorkflowID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.Status != domain.WorkflowCompleted {
		t.Fatalf("expected completed after resume, got %s", resumed.Status)
	}
	// Completed steps never re-run on resume.
	if resumed.Values["prepared"] != "yes" {
		t.Fatal("values must survive suspension")
	}
	prepared := 0
	for _, s := range resumed.Steps {
		if s.Name == "prepare" && s.Status == domain.StepCompleted {
			prepared++
		}
	}
	if prepared != 1 {
		t.Fatalf("prepare recorded %d times", prepared)
	}
}

func TestWorkflowResumeTerminalIsNoop(t *testing.T) {
	store := memory.NewWorkflowStore()
	engine := NewEngine(store, nil, nil, nil)
	engine.Register(Definition{
		Name:  "once",
		Steps: []Activity{{Name: "only", Execute: func(context.Context, *Run) error { return nil }}},
	})

	instance, err := engine.Start(context.Background(), "once", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	again, err := engine.Resume(context.Background(), instance.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if again.Status != domain.WorkflowCompleted {
		t.Fatalf("terminal resume must return the stored state, got %s", again.Status)
	}
}

func TestWorkflowCancelCompensates(t *testing.T) {
	log := &callLog{}
	store := memory.NewWorkflowStore()
	scheduler := &testScheduler{}
	engine := NewEngine(store, scheduler, nil, nil)
	engine.Register(Definition{
		Name: "cancellable",
		Steps: []Activity{
			step(log, "one", nil, nil),
			{Name: "hold", Execute: func(context.Context, *Run) error {
				return Suspend(time.Minute)
			}},
		},
	})

	instance, err := engine.Start(context.Background(), "cancellable", nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	cancelled, err := engine.Cancel(context.Background(), instance.ID, "operator request")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.WorkflowCompensated {
		t.Fatalf("expected compensated, got %s", cancelled.Status)
	}
	if log.count("one", "compensate") != 1 {
		t.Fatal("cancel must compensate completed steps")
	}

	if _, err := engine.Cancel(context.Background(), instance.ID, "again"); !domain.IsDomainError(err, domain.ErrCodeInvalidState) {
		t.Fatalf("cancelling a terminal instance must be INVALID_STATE, got %v", err)
	}
}

func TestWorkflowValuesHelpers(t *testing.T) {
	run := &Run{instance: &domain.WorkflowInstance{ID: "w1"}}
	run.SetInt64("amount", 1234)
	if run.Get("amount") != "1234" {
		t.Fatalf("unexpected value %q", run.Get("amount"))
	}
	amount, err := run.GetInt64("amount")
	if err != nil || amount != 1234 {
		t.Fatalf("GetInt64 = %d, %v", amount, err)
	}
	if _, err := run.GetInt64("missing"); err == nil {
		t.Fatal("missing key must fail integer parse")
	}
}

func TestWorkflowStartUnknownDefinition(t *testing.T) {
	engine := NewEngine(memory.NewWorkflowStore(), nil, nil, nil)
	if _, err := engine.Start(context.Background(), "ghost", nil); !domain.IsDomainError(err, domain.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
