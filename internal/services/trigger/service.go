package trigger

import (
	"context"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"pillbox/internal/eventbus"
	"pillbox/internal/schedule"
	"pillbox/internal/services/dispense"
	logx "pillbox/pkg/logx"
)

// Schedule is the read side of the medication table the engine polls.
type Schedule interface {
	List(ctx context.Context) ([]schedule.Entry, error)
}

// Pipeline runs one dispense round when a slot matches.
type Pipeline interface {
	DispenseScheduled(ctx context.Context) dispense.Outcome
}

type Config struct {
	Enabled  bool
	Timezone string
}

// Event is the payload published on the bus for trigger.* events.
type Event struct {
	Timing  string    `json:"timing"`
	Matched int       `json:"matched"`
	At      time.Time `json:"at"`
}

// Service checks the schedule once a minute and fires the dispense pipeline
// when the wall clock matches an entry's slot exactly. A minute with several
// matching entries still dispenses once; missed minutes are not caught up.
type Service struct {
	mu  sync.Mutex
	cfg Config

	sched    Schedule
	pipeline Pipeline
	log      logx.Logger
	bus      eventbus.Bus

	c         *cron.Cron
	runCtx    context.Context
	runCancel context.CancelFunc
}

func New(cfg Config, sched Schedule, pipeline Pipeline, log logx.Logger, bus eventbus.Bus) *Service {
	return &Service{
		cfg:      cfg,
		sched:    sched,
		pipeline: pipeline,
		log:      log,
		bus:      bus,
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	newTZ := strings.TrimSpace(cfg.Timezone)
	oldEnabled := s.cfg.Enabled
	s.cfg = cfg

	if s.runCtx == nil {
		// not started yet; Start() picks up the new config
		return
	}
	// restart cron with the new location, or stop/start on an enable flip
	if oldTZ != newTZ || oldEnabled != cfg.Enabled {
		s.stopLocked()
		if cfg.Enabled {
			s.startLocked(s.runCtx)
		}
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runCtx != nil {
		// already started
		return
	}
	s.runCtx, s.runCancel = context.WithCancel(ctx)
	if !s.cfg.Enabled {
		return
	}
	s.startLocked(s.runCtx)
}

func (s *Service) startLocked(ctx context.Context) {
	loc := s.loadLocationLocked()
	c := cron.New(cron.WithLocation(loc))
	_, err := c.AddFunc("* * * * *", func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic in trigger tick", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			}
		}()
		s.tickAt(ctx, time.Now().In(loc))
	})
	if err != nil {
		s.log.Error("trigger registration failed", logx.Any("err", err))
		return
	}
	c.Start()
	s.c = c
	s.log.Info("trigger engine started", logx.String("timezone", loc.String()))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	cancel := s.runCancel
	s.stopLocked()
	s.runCtx = nil
	s.runCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	_ = ctx
}

// stopLocked halts cron and waits for an in-flight tick to finish.
func (s *Service) stopLocked() {
	if s.c == nil {
		return
	}
	stopCtx := s.c.Stop()
	s.c = nil
	<-stopCtx.Done()
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid trigger timezone; using local", logx.String("timezone", tz), logx.Any("err", err))
		return time.Local
	}
	return loc
}

// tickAt runs one poll for the given wall-clock instant. A store error skips
// this minute; the engine keeps ticking.
func (s *Service) tickAt(ctx context.Context, now time.Time) {
	timing := schedule.FormatClock(now)

	entries, err := s.sched.List(ctx)
	if err != nil {
		s.log.Warn("schedule poll failed; skipping tick", logx.Any("err", err), logx.String("timing", timing))
		return
	}

	matched := schedule.MatchTiming(entries, timing)
	if len(matched) == 0 {
		return
	}

	s.log.Info("scheduled dispensing triggered", logx.String("timing", timing), logx.Int("matched", len(matched)))
	for _, e := range matched {
		s.log.Info("meds to dispense",
			logx.String("name", e.Name),
			logx.String("quantity", e.Quantity),
			logx.String("container", e.Container),
		)
	}
	if s.bus != nil {
		now := time.Now()
		s.bus.Publish(eventbus.Event{Type: "trigger.fired", Time: now, Data: Event{Timing: timing, Matched: len(matched), At: now}})
	}

	// One round per minute regardless of how many entries matched.
	out := s.pipeline.DispenseScheduled(ctx)
	if out.Err != nil {
		s.log.Warn("scheduled round failed", logx.Any("err", out.Err), logx.String("timing", timing))
	}
}
