package sqlite

import "time"

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:fwingest.db?_pragma=journal_mode(WAL)"
	//   "fwingest.db" (interpreted by the driver)
	DSN string

	// BusyTimeout bounds how long a writer waits on a locked database.
	BusyTimeout time.Duration
}

const defaultBusyTimeout = 5 * time.Second
