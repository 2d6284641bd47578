// Package store persists events, reviews, and activity-type definitions in
// SQLite and exposes the filtered queries the retrieval pipeline runs.
package store

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Open opens a SQLite database in WAL mode with a busy timeout. A single
// connection keeps writers serialized.
func Open(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// QueryCapabilities reports which event filters a structured query applies
// natively. Anything not covered here is enforced after the rows come back.
type QueryCapabilities struct {
	EventType bool
	City      bool
	State     bool
	AgeGroups bool
	Intensity bool
}
