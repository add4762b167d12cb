package notify

import (
	"context"
	"time"
)

// Recipient identifies who a notification goes to. ID is the channel-side
// identity (e.g. a NotificationAPI user id or Telegram chat id as text),
// Contact is a phone number where the channel needs one.
type Recipient struct {
	ID      string
	Contact string
}

// Notification is one caregiver message.
type Notification struct {
	// Kind tags the message for events and logs ("dispensed", "taken", ...).
	Kind      string
	Recipient Recipient
	Message   string
}

// Channel is a delivery backend (SMS, Telegram). Implementations must be
// safe for concurrent use.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

// Config controls the async notification pipeline.
type Config struct {
	Enabled       bool
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
}

// Event is the payload published on the bus for notify.* events.
type Event struct {
	Kind    string    `json:"kind"`
	Channel string    `json:"channel,omitempty"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}
