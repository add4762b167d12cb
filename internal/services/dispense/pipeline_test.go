package dispense

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"pillbox/internal/schedule"
	logx "pillbox/pkg/logx"
)

type fakeCaller struct {
	mu     sync.Mutex
	calls  int
	twiml  string
	err    error
	callID string
}

func (f *fakeCaller) PlaceCall(_ context.Context, to, from, twiml string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.twiml = twiml
	if f.err != nil {
		return "", f.err
	}
	if f.callID == "" {
		return "CA123", nil
	}
	return f.callID, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	kinds    []string
}

func (f *fakeNotifier) Notify(_ context.Context, kind, _, _, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kinds = append(f.kinds, kind)
	f.messages = append(f.messages, message)
	return nil
}

type fakeSchedule struct {
	entries []schedule.Entry
	err     error
}

func (f *fakeSchedule) List(context.Context) ([]schedule.Entry, error) {
	return f.entries, f.err
}

func testService(caller *fakeCaller, notifier *fakeNotifier, sched Schedule) *Service {
	cfg := Config{
		To:            "+200",
		From:          "+100",
		Language:      "English",
		PostCallDelay: time.Millisecond,
	}
	return New(cfg, caller, notifier, sched, logx.Nop(), nil)
}

func TestDispenseScheduledPlacesCallAndNotifies(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{}
	notifier := &fakeNotifier{}
	s := testService(caller, notifier, nil)

	out := s.DispenseScheduled(context.Background())
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.CallID != "CA123" {
		t.Errorf("CallID = %q", out.CallID)
	}
	if out.Message != "" {
		t.Errorf("scheduled round should not carry an operator message, got %q", out.Message)
	}
	if len(notifier.messages) != 1 || notifier.messages[0] != "Medication notification sent" {
		t.Errorf("caregiver messages = %v", notifier.messages)
	}
	if !strings.Contains(caller.twiml, "Medication time, please take your meds.") {
		t.Errorf("twiml = %q", caller.twiml)
	}
}

func TestDispenseManualSuccessMessage(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{}
	notifier := &fakeNotifier{}
	sched := &fakeSchedule{entries: []schedule.Entry{
		{ID: "1", Time: "08:00", Name: "Aspirin", Quantity: "1", Container: "3"},
	}}
	s := testService(caller, notifier, sched)

	out := s.Dispense(context.Background(), Trigger{Kind: KindManual, Timing: "08:00"})
	if out.Err != nil {
		t.Fatalf("unexpected error: %v", out.Err)
	}
	if out.Message != "Dispensing for 08:00 confirmed successfully!" {
		t.Errorf("Message = %q", out.Message)
	}
}

func TestDispenseCallFailure(t *testing.T) {
	t.Parallel()

	callErr := errors.New("twilio unreachable")

	t.Run("manual surfaces the error", func(t *testing.T) {
		t.Parallel()
		caller := &fakeCaller{err: callErr}
		notifier := &fakeNotifier{}
		s := testService(caller, notifier, nil)

		out := s.Dispense(context.Background(), Trigger{Kind: KindManual, Timing: "08:00"})
		if !errors.Is(out.Err, callErr) {
			t.Fatalf("Err = %v", out.Err)
		}
		if !strings.HasPrefix(out.Message, "Error making the call:") {
			t.Errorf("Message = %q", out.Message)
		}
		if len(notifier.messages) != 0 {
			t.Errorf("no caregiver message expected after a failed call, got %v", notifier.messages)
		}
	})

	t.Run("scheduled swallows the message", func(t *testing.T) {
		t.Parallel()
		caller := &fakeCaller{err: callErr}
		s := testService(caller, &fakeNotifier{}, nil)

		out := s.DispenseScheduled(context.Background())
		if !errors.Is(out.Err, callErr) {
			t.Fatalf("Err = %v", out.Err)
		}
		if out.Message != "" {
			t.Errorf("Message = %q, want empty", out.Message)
		}
	})
}

func TestDispenseManualStoreErrorStillCalls(t *testing.T) {
	t.Parallel()

	caller := &fakeCaller{}
	sched := &fakeSchedule{err: schedule.ErrStoreUnavailable}
	s := testService(caller, &fakeNotifier{}, sched)

	out := s.Dispense(context.Background(), Trigger{Kind: KindManual, Timing: "08:00"})
	if out.Err != nil {
		t.Fatalf("store error must not block the call: %v", out.Err)
	}
	if caller.calls != 1 {
		t.Errorf("calls = %d, want 1", caller.calls)
	}
}

func TestConfirmTakenNotifiesCaregiver(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{}
	s := testService(&fakeCaller{}, notifier, nil)

	s.ConfirmTaken(context.Background())
	if len(notifier.messages) != 1 || notifier.messages[0] != "Medication has been taken" {
		t.Errorf("caregiver messages = %v", notifier.messages)
	}
	if notifier.kinds[0] != "taken" {
		t.Errorf("kind = %q", notifier.kinds[0])
	}
}

func TestScriptForLanguage(t *testing.T) {
	t.Parallel()

	if got := scriptForLanguage("Chinese"); !strings.Contains(got, `language="zh-CN"`) {
		t.Errorf("Chinese script = %q", got)
	}
	if got := scriptForLanguage("French"); got != scriptDefault {
		t.Errorf("fallback script = %q", got)
	}
	if got := scriptForLanguage("English"); got != scriptEnglish {
		t.Errorf("English script = %q", got)
	}
}
