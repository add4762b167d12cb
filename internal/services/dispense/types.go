package dispense

import (
	"context"
	"time"

	"pillbox/internal/schedule"
)

// Kind distinguishes who initiated a dispense round.
type Kind string

const (
	KindScheduled Kind = "scheduled"
	KindManual    Kind = "manual"
)

// Trigger describes one dispense request. Timing is only set for manual
// rounds, where the operator picks a schedule slot explicitly.
type Trigger struct {
	Kind   Kind
	Timing string
}

// Outcome reports what happened. Err is set when the call failed; Message
// carries the operator-facing text for manual rounds.
type Outcome struct {
	CallID  string
	Err     error
	Message string
}

// Caller places the outbound reminder call and returns a call id.
type Caller interface {
	PlaceCall(ctx context.Context, to, from, twiml string) (string, error)
}

// Notifier accepts caregiver messages for async delivery.
type Notifier interface {
	Notify(ctx context.Context, kind, recipientID, recipientContact, message string) error
}

// Schedule is the read side of the medication table the pipeline needs.
type Schedule interface {
	List(ctx context.Context) ([]schedule.Entry, error)
}

// Config holds the dialing and caregiver settings for the pipeline.
type Config struct {
	To       string
	From     string
	Language string

	// PostCallDelay is how long the pipeline idles after a successful call
	// before reporting done.
	PostCallDelay time.Duration

	CaregiverID     string
	CaregiverNumber string
}
