package schedule

import (
	"strconv"
	"strings"
)

// Container slots are physical positions in the dispenser carousel.
const (
	MinContainer = 1
	MaxContainer = 10
)

// AvailableContainers returns {1..10} minus the numeric container values
// present in entries, ascending. Non-numeric and empty values are ignored,
// not an error. The result is advisory: it seeds candidate lists for entry
// creation, while actual uniqueness is enforced at write time by the store.
func AvailableContainers(entries []Entry) []int {
	used := map[int]struct{}{}
	for _, e := range entries {
		n, err := strconv.Atoi(strings.TrimSpace(e.Container))
		if err != nil {
			continue
		}
		used[n] = struct{}{}
	}
	out := make([]int, 0, MaxContainer)
	for n := MinContainer; n <= MaxContainer; n++ {
		if _, ok := used[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// ContainerConflict reports whether container (when numeric) is already held
// by an entry other than excludeID. Blank and non-numeric containers never
// conflict.
func ContainerConflict(entries []Entry, container, excludeID string) bool {
	want, err := strconv.Atoi(strings.TrimSpace(container))
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.ID == excludeID {
			continue
		}
		got, err := strconv.Atoi(strings.TrimSpace(e.Container))
		if err != nil {
			continue
		}
		if got == want {
			return true
		}
	}
	return false
}
