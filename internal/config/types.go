package config

type Config struct {
	App      AppConfig      `json:"app,omitempty"`
	Logging  LoggingConfig  `json:"logging"`
	Roster   RosterConfig   `json:"roster"`
	Schedule ScheduleConfig `json:"schedule,omitempty"`
	Export   ExportConfig   `json:"export,omitempty"`
	Telegram TelegramConfig `json:"telegram"`

	// Notify controls the delivery pipeline. If the whole section is
	// omitted, the notifier defaults to enabled=true.
	Notify *NotifyConfig `json:"notify,omitempty"`

	Announce AnnounceConfig `json:"announce"`

	// Storage is optional; nil means no persistence (generate/export still
	// work, announce needs a store).
	Storage *StorageConfig `json:"storage,omitempty"`

	Observability ObservabilityConfig `json:"observability,omitempty"`
}

type AppConfig struct {
	// Timezone applies to announce cron evaluation (e.g. "Europe/Berlin").
	// Empty means the process-local zone.
	Timezone string `json:"timezone,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// RosterConfig points at the participant list.
//
// Format is "auto" (default, by extension), "yaml" or "csv".
type RosterConfig struct {
	Path   string `json:"path"`
	Format string `json:"format,omitempty"`
}

// ScheduleConfig controls generation. Seed is a pointer so "omitted"
// (time-seeded randomness) stays distinguishable from an explicit 0.
type ScheduleConfig struct {
	Seed *int64 `json:"seed,omitempty"`
}

// ExportConfig controls artifact output for the generate command.
type ExportConfig struct {
	Dir     string   `json:"dir,omitempty"`
	Formats []string `json:"formats,omitempty"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
}

// NotifyConfig controls the async delivery pipeline.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type NotifyConfig struct {
	Enabled         bool   `json:"enabled"`
	Workers         int    `json:"workers"`
	QueueSize       int    `json:"queue_size"`
	RatePerSec      int    `json:"rate_per_sec"`
	RetryMax        int    `json:"retry_max"`
	RetryBase       string `json:"retry_base"`
	RetryMaxDelay   string `json:"retry_max_delay"`
	DedupWindow     string `json:"dedup_window"`
	DedupMaxEntries int    `json:"dedup_max_entries"`
	PersistDedup    bool   `json:"persist_dedup,omitempty"`
}

// AnnounceConfig controls the cron-driven weekly announcer.
//
// Cron accepts standard 5-field specs, optional leading seconds, and
// descriptors like "@weekly".
type AnnounceConfig struct {
	Enabled bool   `json:"enabled"`
	Cron    string `json:"cron"`

	// ParseMode selects message rendering: "html" (default) or "plain".
	ParseMode string `json:"parse_mode,omitempty"`

	// DigestChatID optionally receives a weekly summary of all
	// connections in addition to the per-participant messages.
	DigestChatID   int64 `json:"digest_chat_id,omitempty"`
	DigestThreadID int   `json:"digest_thread_id,omitempty"`

	// Regenerate makes the announcer start a fresh run from the roster
	// file once the active run is exhausted (or when storage has none).
	Regenerate bool `json:"regenerate,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./rondo.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// ObservabilityConfig controls the diagnostics HTTP server
// (/metrics, /healthz, optional /debug/pprof).
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:6060").
//   - If you bind to a non-loopback address, set a token or explicitly
//     allow_insecure.
type ObservabilityConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:6060"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`

	// Server timeouts (Go duration strings). WriteTimeout defaults to 0
	// (disabled) so /debug/pprof/profile (30s+) works reliably.
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}
