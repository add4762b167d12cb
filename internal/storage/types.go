package storage

import "time"

// Config configures the schedule store.
//
// Driver values:
//   - "file" (default): CSV table with a header row, snapshot writes
//   - "sqlite": SQLite database file
//   - "postgres": PostgreSQL via DSN
type Config struct {
	Driver      string
	Path        string        // file and sqlite
	DSN         string        // postgres
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Column order of the persisted schedule table. The id column is appended by
// the store; legacy tables without it (or without container) are migrated on
// first load.
var tableColumns = []string{"scheduled_time", "name", "quantity", "container", "id"}
