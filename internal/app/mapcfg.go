package app

import (
	"fmt"
	"strings"
	"time"

	"rondo/internal/config"
	"rondo/internal/notifier"
	"rondo/internal/observability/diag"
	"rondo/internal/roster"
	"rondo/internal/services/announcer"
	"rondo/internal/storage"
	kit "rondo/internal/transport"
	logx "rondo/pkg/logx"
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

// mapNotifierConfig applies defaults so an omitted notify section still
// yields a working pipeline. Values <= 0 fall back to defaults; retry_max
// may be set negative to disable retries entirely.
func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	n := cfg.Notify
	if n == nil {
		n = &config.NotifyConfig{Enabled: true}
	}

	out := notifier.Config{
		Enabled:         n.Enabled,
		Workers:         n.Workers,
		QueueSize:       n.QueueSize,
		RatePerSec:      n.RatePerSec,
		RetryMax:        n.RetryMax,
		DedupMaxEntries: n.DedupMaxEntries,
		PersistDedup:    n.PersistDedup,
	}
	if out.Workers <= 0 {
		out.Workers = 2
	}
	if out.QueueSize <= 0 {
		out.QueueSize = 512
	}
	if out.RatePerSec <= 0 {
		out.RatePerSec = 3
	}
	if out.RetryMax < 0 {
		out.RetryMax = 0
	} else if out.RetryMax == 0 {
		out.RetryMax = 3
	}
	if out.DedupMaxEntries <= 0 {
		out.DedupMaxEntries = 2000
	}

	var err error
	if out.RetryBase, err = config.ParseDurationOrDefault("notify.retry_base", n.RetryBase, 500*time.Millisecond); err != nil {
		return notifier.Config{}, err
	}
	if out.RetryMaxDelay, err = config.ParseDurationOrDefault("notify.retry_max_delay", n.RetryMaxDelay, 10*time.Second); err != nil {
		return notifier.Config{}, err
	}
	if out.DedupWindow, err = config.ParseDurationOrDefault("notify.dedup_window", n.DedupWindow, time.Minute); err != nil {
		return notifier.Config{}, err
	}
	return out, nil
}

func mapAnnouncerConfig(cfg *config.Config) (announcer.Config, error) {
	a := cfg.Announce

	format, err := parseRosterFormat(cfg.Roster.Format)
	if err != nil {
		return announcer.Config{}, err
	}

	out := announcer.Config{
		Enabled:      a.Enabled,
		Spec:         a.Cron,
		Timezone:     cfg.App.Timezone,
		Regenerate:   a.Regenerate,
		RosterPath:   cfg.Roster.Path,
		RosterFormat: format,
	}

	switch strings.ToLower(strings.TrimSpace(a.ParseMode)) {
	case "", "html":
		out.HTML = true
	case "plain":
	default:
		return announcer.Config{}, fmt.Errorf("announce.parse_mode: unknown %q (want html or plain)", a.ParseMode)
	}

	if a.DigestChatID != 0 {
		out.Digest = kit.ChatTarget{ChatID: a.DigestChatID, ThreadID: a.DigestThreadID}
	}

	if out.Enabled {
		if err := announcer.ValidateSpec(out.Spec); err != nil {
			return announcer.Config{}, fmt.Errorf("announce.cron: %w", err)
		}
		if _, err := config.ParseLocation("app.timezone", out.Timezone); err != nil {
			return announcer.Config{}, err
		}
	}
	return out, nil
}

func parseRosterFormat(raw string) (roster.Format, error) {
	switch f := roster.Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "", roster.FormatAuto:
		return roster.FormatAuto, nil
	case roster.FormatYAML, roster.FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("roster.format: unknown %q (want auto, yaml or csv)", raw)
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg == nil || cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	path := strings.TrimSpace(sc.Path)

	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	switch driver {
	case "", "none":
		return storage.Config{}, false, nil
	case "file":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=file")
		}
		return storage.Config{Driver: "file", Path: path}, true, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, false, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		return storage.Config{Driver: "sqlite", Path: path, BusyTimeout: busy}, true, nil
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapDiagConfig(cfg *config.Config) (diag.Config, error) {
	oc := cfg.Observability
	out := diag.Config{
		Enabled:       oc.Enabled,
		Addr:          strings.TrimSpace(oc.Addr),
		Token:         oc.Token,
		AllowInsecure: oc.AllowInsecure,
		Pprof:         oc.Pprof,
	}

	var err error
	if out.ReadTimeout, err = config.ParseDurationOrDefault("observability.read_timeout", oc.ReadTimeout, 5*time.Second); err != nil {
		return diag.Config{}, err
	}
	// Write timeout defaults to 0 so long pprof profiles are not cut off.
	if out.WriteTimeout, err = config.ParseDurationOrDefault("observability.write_timeout", oc.WriteTimeout, 0); err != nil {
		return diag.Config{}, err
	}
	if out.IdleTimeout, err = config.ParseDurationOrDefault("observability.idle_timeout", oc.IdleTimeout, 60*time.Second); err != nil {
		return diag.Config{}, err
	}
	return out, nil
}
