package rest

import (
	"context"
	"sync"

	"pillbox/internal/eventbus"
)

// EventLog keeps the most recent bus events in a ring so operators can see
// what the dispenser has been doing.
type EventLog struct {
	mu     sync.Mutex
	buf    []eventbus.Event
	next   int
	filled bool
}

const eventLogSize = 200

func NewEventLog() *EventLog {
	return &EventLog{buf: make([]eventbus.Event, eventLogSize)}
}

// Run subscribes to the bus and records events until ctx is cancelled.
func (l *EventLog) Run(ctx context.Context, bus eventbus.Bus) {
	ch, unsub := bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			l.add(ev)
		}
	}
}

func (l *EventLog) add(ev eventbus.Event) {
	l.mu.Lock()
	l.buf[l.next] = ev
	l.next++
	if l.next == len(l.buf) {
		l.next = 0
		l.filled = true
	}
	l.mu.Unlock()
}

// Recent returns the recorded events oldest-first.
func (l *EventLog) Recent() []eventbus.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.filled {
		return append([]eventbus.Event(nil), l.buf[:l.next]...)
	}
	out := make([]eventbus.Event, 0, len(l.buf))
	out = append(out, l.buf[l.next:]...)
	out = append(out, l.buf[:l.next]...)
	return out
}
