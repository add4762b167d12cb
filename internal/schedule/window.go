package schedule

import (
	"sort"
	"time"
)

// DueWindow is the patient-facing "take now" interval around a scheduled
// time. It is symmetric: a dose 4 minutes past is flagged exactly like one
// 4 minutes ahead. Distinct from the exact-minute rule used to fire calls.
const DueWindow = 5 * time.Minute

// DueNow returns the entries whose scheduled moment, placed on now's date,
// lies within DueWindow of now (inclusive). Entries with unparsable times
// are silently excluded.
func DueNow(entries []Entry, now time.Time) []Entry {
	var out []Entry
	for _, e := range entries {
		c, err := ParseClock(e.Time)
		if err != nil {
			continue
		}
		at := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, 0, 0, now.Location())
		d := now.Sub(at)
		if d < 0 {
			d = -d
		}
		if d <= DueWindow {
			out = append(out, e)
		}
	}
	return out
}

// MatchTiming returns the entries whose Time equals timing exactly (string
// equality on the "HH:MM" bucket). No tolerance window.
func MatchTiming(entries []Entry, timing string) []Entry {
	var out []Entry
	for _, e := range entries {
		if e.Time == timing {
			out = append(out, e)
		}
	}
	return out
}

// UniqueTimings returns the sorted distinct non-empty Time values. It feeds
// the manual-dispense timing picker.
func UniqueTimings(entries []Entry) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, e := range entries {
		if e.Time == "" {
			continue
		}
		if _, ok := seen[e.Time]; ok {
			continue
		}
		seen[e.Time] = struct{}{}
		out = append(out, e.Time)
	}
	sort.Strings(out)
	return out
}
