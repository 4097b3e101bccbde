package notifier

import (
	"time"

	kit "rondo/internal/transport"
)

// Config controls the async announcement pipeline.
type Config struct {
	Enabled         bool
	Workers         int
	QueueSize       int
	RatePerSec      int
	RetryMax        int
	RetryBase       time.Duration
	RetryMaxDelay   time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	PersistDedup    bool
}

// Announcement is one rendered message headed for one chat.
//
// Contact is the participant's address from the roster; when Target.ChatID is
// zero the service resolves Contact into a chat ID at enqueue time. Digest
// announcements carry a pre-resolved Target and leave Contact empty.
type Announcement struct {
	RunID   string
	Week    int
	Contact string
	Target  kit.ChatTarget
	Text    string
	Options *kit.SendOptions
}

// AnnounceEvent is emitted on the event bus for announcement lifecycle events.
// Keep it small; Data may be logged/serialized by subscribers.
type AnnounceEvent struct {
	RunID    string    `json:"run_id,omitempty"`
	Week     int       `json:"week,omitempty"`
	ChatID   int64     `json:"chat_id"`
	ThreadID int       `json:"thread_id,omitempty"`
	Key      string    `json:"key"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}

type HistoryItem struct {
	At     time.Time
	RunID  string
	Week   int
	ChatID int64
	Text   string
}

// Report aggregates delivery outcomes for one run, keyed by RunID.
// Counters are monotonic for the lifetime of the service.
type Report struct {
	RunID   string
	Queued  int
	Deduped int
	Dropped int
	Sent    int
	Failed  int
}
