package storage

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"rondo/internal/roulette"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("storage: not found")
)

// Config configures storage.
//
// Driver values:
//   - "file": dependency-free file backend (jsonl + snapshot)
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Run is one persisted scheduling run: the materialized weekly schedule plus
// the announcement cursor.
//
// NextWeek is 1-based and points at the next week to announce; it starts at 1
// and moves past len(Weeks) once the run is exhausted. The schedule is stored
// materialized rather than as a seed so that runs generated from entropy stay
// reproducible.
type Run struct {
	ID        string
	CreatedAt time.Time
	Seed      *int64 // nil when generated from entropy
	NextWeek  int
	Weeks     [][]roulette.Connection
}

// NewRun materializes a schedule into a Run with a fresh ID and the
// announcement cursor at week 1. Seed may be nil when the schedule was
// generated from entropy.
func NewRun(seed *int64, s *roulette.Schedule) (Run, error) {
	weeks := make([][]roulette.Connection, 0, s.Weeks())
	for w := 1; w <= s.Weeks(); w++ {
		conns, err := s.Week(w)
		if err != nil {
			return Run{}, err
		}
		weeks = append(weeks, conns)
	}
	return Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Seed:      seed,
		NextWeek:  1,
		Weeks:     weeks,
	}, nil
}

// Exhausted reports whether every week of the run has been announced.
func (r Run) Exhausted() bool { return r.NextWeek > len(r.Weeks) }

// AuditEntry records an operator or scheduler action.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At       time.Time
	Actor    string // "cli", "announcer"
	Action   string // "run.save", "week.announce", ...
	RunID    string
	Week     int
	OK       int
	Fail     int
	Error    string
	TookMS   int64
	MetaJSON string
}
