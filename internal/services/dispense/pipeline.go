package dispense

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pillbox/internal/eventbus"
	"pillbox/internal/schedule"
	logx "pillbox/pkg/logx"
)

// Event is the payload published on the bus for dispense.* events.
type Event struct {
	Kind   Kind      `json:"kind"`
	Timing string    `json:"timing,omitempty"`
	CallID string    `json:"call_id,omitempty"`
	At     time.Time `json:"at"`
	Error  string    `json:"error,omitempty"`
}

// Service runs the dispense pipeline: look up what is due, place the
// reminder call, tell the caregiver. Safe for concurrent use; config is
// swappable at runtime via Apply.
type Service struct {
	mu  sync.Mutex
	cfg Config

	caller   Caller
	notifier Notifier
	sched    Schedule
	log      logx.Logger
	bus      eventbus.Bus
}

func New(cfg Config, caller Caller, notifier Notifier, sched Schedule, log logx.Logger, bus eventbus.Bus) *Service {
	if cfg.PostCallDelay <= 0 {
		cfg.PostCallDelay = 2 * time.Second
	}
	return &Service{
		cfg:      cfg,
		caller:   caller,
		notifier: notifier,
		sched:    sched,
		log:      log,
		bus:      bus,
	}
}

func (s *Service) Apply(cfg Config) {
	if cfg.PostCallDelay <= 0 {
		cfg.PostCallDelay = 2 * time.Second
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func (s *Service) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// DispenseScheduled runs one round on behalf of the trigger engine.
func (s *Service) DispenseScheduled(ctx context.Context) Outcome {
	return s.Dispense(ctx, Trigger{Kind: KindScheduled})
}

// Dispense places the reminder call and queues the caregiver notification.
//
// Call failures are logged for both kinds; only manual rounds surface the
// error in the outcome, since scheduled rounds have nobody to show it to.
func (s *Service) Dispense(ctx context.Context, trig Trigger) Outcome {
	cfg := s.config()

	if trig.Kind == KindManual {
		s.logManualRound(ctx, trig.Timing)
	}

	callID, err := s.caller.PlaceCall(ctx, cfg.To, cfg.From, scriptForLanguage(cfg.Language))
	if err != nil {
		s.log.Error("error making the call", logx.Any("err", err), logx.String("kind", string(trig.Kind)))
		s.publish("dispense.failed", Event{Kind: trig.Kind, Timing: trig.Timing, At: time.Now(), Error: err.Error()})
		out := Outcome{Err: err}
		if trig.Kind == KindManual {
			out.Message = fmt.Sprintf("Error making the call: %v", err)
		}
		return out
	}

	s.log.Info("reminder call placed", logx.String("call_id", callID), logx.String("kind", string(trig.Kind)))
	s.publish("dispense.called", Event{Kind: trig.Kind, Timing: trig.Timing, CallID: callID, At: time.Now()})

	s.notifyCaregiver(ctx, cfg, "dispensed", "Medication notification sent")

	// Give the hardware a moment before the next round can start.
	if cfg.PostCallDelay > 0 {
		t := time.NewTimer(cfg.PostCallDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
		}
	}

	out := Outcome{CallID: callID}
	if trig.Kind == KindManual {
		out.Message = fmt.Sprintf("Dispensing for %s confirmed successfully!", trig.Timing)
	}
	return out
}

// ConfirmTaken records that the patient took their medication and tells the
// caregiver.
func (s *Service) ConfirmTaken(ctx context.Context) {
	cfg := s.config()
	s.log.Info("medication has been marked as taken")
	s.publish("dispense.taken", Event{At: time.Now()})
	s.notifyCaregiver(ctx, cfg, "taken", "Medication has been taken")
}

func (s *Service) notifyCaregiver(ctx context.Context, cfg Config, kind, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, kind, cfg.CaregiverID, cfg.CaregiverNumber, message); err != nil {
		s.log.Warn("caregiver notification not queued", logx.Any("err", err), logx.String("kind", kind))
	}
}

// logManualRound prints what a manual round is about to dispense. Best
// effort; a store error here never blocks the call.
func (s *Service) logManualRound(ctx context.Context, timing string) {
	if s.sched == nil {
		return
	}
	entries, err := s.sched.List(ctx)
	if err != nil {
		s.log.Warn("schedule lookup failed for manual round", logx.Any("err", err))
		return
	}
	for _, e := range schedule.MatchTiming(entries, timing) {
		s.log.Info("meds to dispense",
			logx.String("name", e.Name),
			logx.String("quantity", e.Quantity),
			logx.String("container", e.Container),
		)
	}
}

func (s *Service) publish(typ string, ev Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: ev.At, Data: ev})
}
