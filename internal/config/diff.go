package config

import (
	"reflect"
	"sort"
	"strings"

	logx "rondo/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections plus safe
// structured attrs for logging. Secrets (telegram token, diag token) are
// reported as set/unset only.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 24)

	if strings.TrimSpace(oldCfg.App.Timezone) != strings.TrimSpace(newCfg.App.Timezone) {
		changed = append(changed, "app")
		attrs = append(attrs, logx.String("app.timezone", strings.TrimSpace(newCfg.App.Timezone)))
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Roster != newCfg.Roster {
		changed = append(changed, "roster")
		attrs = append(attrs,
			logx.String("roster.path", strings.TrimSpace(newCfg.Roster.Path)),
			logx.String("roster.format", strings.TrimSpace(newCfg.Roster.Format)),
		)
	}

	if derefSeed(oldCfg.Schedule.Seed) != derefSeed(newCfg.Schedule.Seed) ||
		(oldCfg.Schedule.Seed == nil) != (newCfg.Schedule.Seed == nil) {
		changed = append(changed, "schedule")
		attrs = append(attrs, logx.Bool("schedule.seed_set", newCfg.Schedule.Seed != nil))
	}

	if strings.TrimSpace(oldCfg.Export.Dir) != strings.TrimSpace(newCfg.Export.Dir) ||
		!reflect.DeepEqual(oldCfg.Export.Formats, newCfg.Export.Formats) {
		changed = append(changed, "export")
		attrs = append(attrs,
			logx.String("export.dir", strings.TrimSpace(newCfg.Export.Dir)),
			logx.Int("export.format_count", len(newCfg.Export.Formats)),
		)
	}

	// Telegram (never log the token itself)
	if oldCfg.Telegram.Enabled != newCfg.Telegram.Enabled ||
		(strings.TrimSpace(oldCfg.Telegram.Token) != "") != (strings.TrimSpace(newCfg.Telegram.Token) != "") {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.enabled", newCfg.Telegram.Enabled),
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
		)
	}

	// Notify: a nil section means runtime defaults; compare effective values.
	oldN := notifyOrDefault(oldCfg.Notify)
	newN := notifyOrDefault(newCfg.Notify)
	if *oldN != *newN {
		changed = append(changed, "notify")
		attrs = append(attrs,
			logx.Bool("notify.enabled", newN.Enabled),
			logx.Int("notify.workers", newN.Workers),
			logx.Int("notify.queue_size", newN.QueueSize),
			logx.Int("notify.rate_per_sec", newN.RatePerSec),
			logx.Int("notify.retry_max", newN.RetryMax),
			logx.Bool("notify.persist_dedup", newN.PersistDedup),
		)
	}

	if oldCfg.Announce != newCfg.Announce {
		changed = append(changed, "announce")
		attrs = append(attrs,
			logx.Bool("announce.enabled", newCfg.Announce.Enabled),
			logx.String("announce.cron", strings.TrimSpace(newCfg.Announce.Cron)),
			logx.String("announce.parse_mode", strings.TrimSpace(newCfg.Announce.ParseMode)),
			logx.Bool("announce.digest_set", newCfg.Announce.DigestChatID != 0),
			logx.Bool("announce.regenerate", newCfg.Announce.Regenerate),
		)
	}

	// Storage: nil means disabled.
	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	if oldCfg.Storage != nil {
		oDriver = strings.TrimSpace(oldCfg.Storage.Driver)
		oBusy = strings.TrimSpace(oldCfg.Storage.BusyTimeout)
		oPathSet = strings.TrimSpace(oldCfg.Storage.Path) != ""
	}
	if newCfg.Storage != nil {
		nDriver = strings.TrimSpace(newCfg.Storage.Driver)
		nBusy = strings.TrimSpace(newCfg.Storage.BusyTimeout)
		nPathSet = strings.TrimSpace(newCfg.Storage.Path) != ""
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
			logx.String("storage.busy_timeout", nBusy),
		)
	}

	// Observability (never log the token itself)
	od, nd := oldCfg.Observability, newCfg.Observability
	if od.Enabled != nd.Enabled ||
		strings.TrimSpace(od.Addr) != strings.TrimSpace(nd.Addr) ||
		od.AllowInsecure != nd.AllowInsecure ||
		od.Pprof != nd.Pprof ||
		strings.TrimSpace(od.ReadTimeout) != strings.TrimSpace(nd.ReadTimeout) ||
		strings.TrimSpace(od.WriteTimeout) != strings.TrimSpace(nd.WriteTimeout) ||
		strings.TrimSpace(od.IdleTimeout) != strings.TrimSpace(nd.IdleTimeout) ||
		(strings.TrimSpace(od.Token) != "") != (strings.TrimSpace(nd.Token) != "") {
		changed = append(changed, "observability")
		attrs = append(attrs,
			logx.Bool("diag.enabled", nd.Enabled),
			logx.String("diag.addr", strings.TrimSpace(nd.Addr)),
			logx.Bool("diag.token_set", strings.TrimSpace(nd.Token) != ""),
			logx.Bool("diag.allow_insecure", nd.AllowInsecure),
			logx.Bool("diag.pprof", nd.Pprof),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func derefSeed(s *int64) int64 {
	if s == nil {
		return 0
	}
	return *s
}

// notifyOrDefault mirrors the runtime defaults applied when the notify
// section is omitted, so the summary reflects effective changes.
func notifyOrDefault(n *NotifyConfig) *NotifyConfig {
	if n != nil {
		return n
	}
	return &NotifyConfig{
		Enabled:         true,
		Workers:         2,
		QueueSize:       512,
		RatePerSec:      3,
		RetryMax:        3,
		RetryBase:       "500ms",
		RetryMaxDelay:   "10s",
		DedupWindow:     "1m",
		DedupMaxEntries: 2000,
	}
}
