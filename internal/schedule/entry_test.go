package schedule

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	t.Parallel()
	c, err := ParseClock("23:15")
	if err != nil {
		t.Fatalf("ParseClock error: %v", err)
	}
	if c.Hour != 23 || c.Minute != 15 {
		t.Fatalf("unexpected result: %d:%d", c.Hour, c.Minute)
	}
	if got := c.String(); got != "23:15" {
		t.Fatalf("String = %q", got)
	}

	for _, raw := range []string{"24:00", "12:60", "noon", "12", "12:3:4", ""} {
		if _, err := ParseClock(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestParseClockTrimsSpace(t *testing.T) {
	t.Parallel()
	c, err := ParseClock(" 08:05 ")
	if err != nil {
		t.Fatalf("ParseClock error: %v", err)
	}
	if c.String() != "08:05" {
		t.Fatalf("unexpected clock %v", c)
	}
}

func TestFormatClock(t *testing.T) {
	t.Parallel()
	ts := time.Date(2026, 1, 2, 8, 1, 59, 0, time.UTC)
	if got := FormatClock(ts); got != "08:01" {
		t.Fatalf("FormatClock = %q, want 08:01", got)
	}
}

func TestPatchApply(t *testing.T) {
	t.Parallel()
	e := Entry{ID: "x", Time: "08:00", Name: "Aspirin", Quantity: "1", Container: "3"}

	newTime := "09:00"
	Patch{Time: &newTime}.Apply(&e)
	if e.Time != "09:00" || e.Name != "Aspirin" || e.Quantity != "1" || e.Container != "3" {
		t.Fatalf("partial patch touched unrelated fields: %+v", e)
	}

	empty := ""
	Patch{Container: &empty}.Apply(&e)
	if e.Container != "" {
		t.Fatalf("explicit empty container should clear, got %q", e.Container)
	}
}
