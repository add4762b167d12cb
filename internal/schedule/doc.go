// Package schedule holds the medication schedule domain model: entries,
// HH:MM clock parsing, the container allocator, the due-now window
// calculator and the Store contract implemented by internal/storage.
//
// All calculators are pure functions over entry slices so both the trigger
// engine and the HTTP layer can use them against point-in-time snapshots.
package schedule
