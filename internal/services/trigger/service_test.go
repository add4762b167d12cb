package trigger

import (
	"context"
	"sync"
	"testing"
	"time"

	"pillbox/internal/schedule"
	"pillbox/internal/services/dispense"
	logx "pillbox/pkg/logx"
)

type fakeSchedule struct {
	mu      sync.Mutex
	entries []schedule.Entry
	err     error
}

func (f *fakeSchedule) List(context.Context) ([]schedule.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries, f.err
}

type fakePipeline struct {
	mu     sync.Mutex
	rounds int
}

func (f *fakePipeline) DispenseScheduled(context.Context) dispense.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rounds++
	return dispense.Outcome{CallID: "CA1"}
}

func (f *fakePipeline) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rounds
}

func at(hhmm string) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic(err)
	}
	return time.Date(2026, 8, 31, t.Hour(), t.Minute(), 0, 0, time.UTC)
}

func TestTickFiresOnExactMatch(t *testing.T) {
	t.Parallel()

	sched := &fakeSchedule{entries: []schedule.Entry{
		{ID: "1", Time: "08:00", Name: "Aspirin"},
		{ID: "2", Time: "08:00", Name: "Vitamin D"},
		{ID: "3", Time: "09:00", Name: "Ibuprofen"},
	}}
	pipe := &fakePipeline{}
	s := New(Config{Enabled: true}, sched, pipe, logx.Nop(), nil)

	s.tickAt(context.Background(), at("08:00"))

	// Two entries matched, one round.
	if got := pipe.count(); got != 1 {
		t.Fatalf("rounds = %d, want 1", got)
	}
}

func TestTickNearMissDoesNotFire(t *testing.T) {
	t.Parallel()

	sched := &fakeSchedule{entries: []schedule.Entry{
		{ID: "1", Time: "08:00", Name: "Aspirin"},
	}}
	pipe := &fakePipeline{}
	s := New(Config{Enabled: true}, sched, pipe, logx.Nop(), nil)

	s.tickAt(context.Background(), at("08:01"))
	s.tickAt(context.Background(), at("07:59"))

	if got := pipe.count(); got != 0 {
		t.Fatalf("rounds = %d, want 0", got)
	}
}

func TestTickSkipsOnStoreError(t *testing.T) {
	t.Parallel()

	sched := &fakeSchedule{err: schedule.ErrStoreUnavailable}
	pipe := &fakePipeline{}
	s := New(Config{Enabled: true}, sched, pipe, logx.Nop(), nil)

	s.tickAt(context.Background(), at("08:00"))
	if got := pipe.count(); got != 0 {
		t.Fatalf("rounds = %d, want 0", got)
	}

	// The engine keeps working once the store recovers.
	sched.mu.Lock()
	sched.err = nil
	sched.entries = []schedule.Entry{{ID: "1", Time: "08:00", Name: "Aspirin"}}
	sched.mu.Unlock()

	s.tickAt(context.Background(), at("08:00"))
	if got := pipe.count(); got != 1 {
		t.Fatalf("rounds after recovery = %d, want 1", got)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: true}, &fakeSchedule{}, &fakePipeline{}, logx.Nop(), nil)
	ctx := context.Background()

	s.Start(ctx)
	// Second Start is a no-op, not a double engine.
	s.Start(ctx)
	s.Stop(ctx)
	// Stop is idempotent.
	s.Stop(ctx)
}

func TestApplyDisableStopsEngine(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: true}, &fakeSchedule{}, &fakePipeline{}, logx.Nop(), nil)
	ctx := context.Background()
	s.Start(ctx)
	defer s.Stop(ctx)

	s.Apply(Config{Enabled: false})
	s.mu.Lock()
	running := s.c != nil
	s.mu.Unlock()
	if running {
		t.Fatal("engine still running after disable")
	}

	s.Apply(Config{Enabled: true})
	s.mu.Lock()
	running = s.c != nil
	s.mu.Unlock()
	if !running {
		t.Fatal("engine not running after re-enable")
	}
}
