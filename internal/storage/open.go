package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"rondo/internal/roulette"
	logx "rondo/pkg/logx"
)

// Store is the persistence API used by the announcer, the notifier, and the
// CLI. Implementations must be safe for concurrent use.
type Store interface {
	// SaveRun persists a run, replacing any run with the same ID.
	SaveRun(ctx context.Context, run Run) error
	// LatestRun returns the most recently created run, ok=false when none.
	LatestRun(ctx context.Context) (Run, bool, error)
	// GetRun returns the run with the given ID, ok=false when absent.
	GetRun(ctx context.Context, id string) (Run, bool, error)
	// WeekConnections returns one week of a run, 1-based. ErrNotFound covers
	// both an unknown run and a week outside the schedule.
	WeekConnections(ctx context.Context, runID string, week int) ([]roulette.Connection, error)
	// AdvanceWeek moves a run's announcement cursor.
	AdvanceWeek(ctx context.Context, runID string, nextWeek int) error

	AppendAudit(ctx context.Context, e AuditEntry) error
	PutDedup(ctx context.Context, key string, until time.Time) error
	GetDedup(ctx context.Context, key string) (until time.Time, ok bool, err error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
