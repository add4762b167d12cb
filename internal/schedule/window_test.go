package schedule

import (
	"reflect"
	"testing"
	"time"
)

func at(hhmm string, t *testing.T) time.Time {
	t.Helper()
	c, err := ParseClock(hhmm)
	if err != nil {
		t.Fatalf("ParseClock(%q): %v", hhmm, err)
	}
	return time.Date(2026, 3, 14, c.Hour, c.Minute, 0, 0, time.UTC)
}

func TestDueNowWindow(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		now  string
		med  string
		due  bool
	}{
		{name: "three minutes late", now: "08:03", med: "08:00", due: true},
		{name: "three minutes early", now: "07:57", med: "08:00", due: true},
		{name: "exactly on time", now: "08:00", med: "08:00", due: true},
		{name: "on the five minute edge", now: "08:05", med: "08:00", due: true},
		{name: "thirteen minutes late", now: "08:03", med: "07:50", due: false},
		{name: "six minutes early", now: "07:54", med: "08:00", due: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			entries := []Entry{{Name: "Aspirin", Time: tt.med}}
			got := DueNow(entries, at(tt.now, t))
			if due := len(got) == 1; due != tt.due {
				t.Fatalf("DueNow(now=%s, med=%s) due=%v, want %v", tt.now, tt.med, due, tt.due)
			}
		})
	}
}

func TestDueNowSkipsMalformedTimes(t *testing.T) {
	t.Parallel()
	entries := []Entry{
		{Name: "good", Time: "08:00"},
		{Name: "junk", Time: "8 o'clock"},
		{Name: "blank", Time: ""},
	}
	got := DueNow(entries, at("08:02", t))
	if len(got) != 1 || got[0].Name != "good" {
		t.Fatalf("expected only the parsable entry, got %+v", got)
	}
}

func TestMatchTimingExact(t *testing.T) {
	t.Parallel()
	entries := []Entry{
		{Name: "a", Time: "08:00"},
		{Name: "b", Time: "08:01"},
		{Name: "c", Time: "08:00"},
	}

	got := MatchTiming(entries, "08:00")
	if len(got) != 2 || got[0].Name != "a" || got[1].Name != "c" {
		t.Fatalf("unexpected match set: %+v", got)
	}
	// Near misses must not match.
	if got := MatchTiming(entries, "08:02"); len(got) != 0 {
		t.Fatalf("expected no match for 08:02, got %+v", got)
	}
}

func TestUniqueTimings(t *testing.T) {
	t.Parallel()
	entries := []Entry{
		{Time: "12:00"},
		{Time: "08:00"},
		{Time: "12:00"},
		{Time: ""},
		{Time: "09:30"},
	}
	got := UniqueTimings(entries)
	want := []string{"08:00", "09:30", "12:00"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("UniqueTimings = %v, want %v", got, want)
	}
}
