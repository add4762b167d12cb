package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Entry is one scheduled dose.
//
// Time is time-of-day as "HH:MM" text, no date, no timezone. Name is a
// display attribute; it is NOT unique and name-keyed store operations act on
// the first match in store order. Quantity is opaque display text. Container
// is a physical slot identifier, "1".."10" when meaningful; non-numeric or
// empty values are tolerated everywhere.
type Entry struct {
	ID        string `json:"id"`
	Time      string `json:"scheduled_time"`
	Name      string `json:"name"`
	Quantity  string `json:"quantity"`
	Container string `json:"container"`
}

// Clock is a parsed time-of-day.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// ParseClock parses strict "HH:MM". Entries whose Time fails to parse are
// silently excluded from window calculation and trigger matching; the error
// is for the caller's control flow only and is never surfaced to users.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// FormatClock renders t as the "HH:MM" bucket used for exact trigger matching.
func FormatClock(t time.Time) string {
	return t.Format("15:04")
}
