// Package storage persists scheduling runs and operational state.
//
// It keeps three kinds of records:
//   - Runs: materialized weekly schedules plus the announcement cursor
//   - Audit log appends (CLI and announcer actions)
//   - Optional notifier dedup state (to survive restarts)
//
// Two drivers are available: a dependency-free file backend and SQLite.
// Storage is operational only; schedule generation never reads it.
package storage
