package announcer

import (
	"context"

	"rondo/internal/notifier"
	"rondo/internal/roster"
	kit "rondo/internal/transport"
)

// Config controls the cron announcer.
type Config struct {
	Enabled  bool
	Spec     string // cron spec, 5 or 6 fields, or @descriptors
	Timezone string // IANA TZ, e.g. "Europe/Berlin"

	HTML   bool
	Digest kit.ChatTarget // zero ChatID disables the digest message

	// Regenerate makes the announcer start a fresh run from the roster file
	// when the active run is exhausted (or when none exists yet).
	Regenerate   bool
	RosterPath   string
	RosterFormat roster.Format
}

// Enqueuer is the announcement sink; satisfied by *notifier.Service.
type Enqueuer interface {
	Enqueue(ctx context.Context, a notifier.Announcement) error
	Enabled() bool
}

// Event payloads published on the bus. Data may be logged or serialized by
// subscribers, so keep these small.

// WeekEvent is the payload of "announce.week".
type WeekEvent struct {
	RunID  string `json:"run_id"`
	Week   int    `json:"week"`
	Queued int    `json:"queued"`
	Failed int    `json:"failed"`
}

// RunEvent is the payload of "run.generated".
type RunEvent struct {
	RunID string `json:"run_id"`
	Weeks int    `json:"weeks"`
	Seed  *int64 `json:"seed,omitempty"`
}

// ExhaustedEvent is the payload of "announce.exhausted".
type ExhaustedEvent struct {
	RunID string `json:"run_id"`
}

// Snapshot is a point-in-time view for diagnostics.
type Snapshot struct {
	Enabled  bool
	Running  bool
	Spec     string
	Timezone string
	Next     string // next fire time, empty when not running
	Prev     string
}
