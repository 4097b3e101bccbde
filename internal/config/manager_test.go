package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) = %v", name, err)
	}
	return path
}

const sampleYAML = `
logging:
  level: debug
  console: true
  file:
    enabled: false
    path: ""
roster:
  path: ./people.yaml
schedule:
  seed: 42
telegram:
  enabled: true
  token: "123:abc"
announce:
  enabled: true
  cron: "0 9 * * MON"
storage:
  driver: sqlite
  path: ./rondo.db
  busy_timeout: 2s
`

func TestParseYAMLConfig(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "config.yaml", sampleYAML)
	m := NewConfigManager(path)
	cfg, err := m.Parse()
	if err != nil {
		t.Fatalf("Parse() = %v", err)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Console {
		t.Fatalf("logging = %+v", cfg.Logging)
	}
	if cfg.Roster.Path != "./people.yaml" || cfg.Roster.Format != "" {
		t.Fatalf("roster = %+v", cfg.Roster)
	}
	if cfg.Schedule.Seed == nil || *cfg.Schedule.Seed != 42 {
		t.Fatalf("seed = %v, want 42", cfg.Schedule.Seed)
	}
	if !cfg.Telegram.Enabled || cfg.Telegram.Token != "123:abc" {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
	if cfg.Notify != nil {
		t.Fatalf("notify = %+v, want nil when omitted", cfg.Notify)
	}
	if cfg.Announce.Cron != "0 9 * * MON" {
		t.Fatalf("announce.cron = %q", cfg.Announce.Cron)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" || cfg.Storage.BusyTimeout != "2s" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "config.yaml", "roster:\n  path: x\n  colour: red\n")
	if _, err := NewConfigManager(path).Parse(); err == nil {
		t.Fatalf("Parse() accepted unknown field")
	}
}

func TestParseRejectsTrailingJSON(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "config.json", `{"roster":{"path":"x"}}{"extra":1}`)
	if _, err := NewConfigManager(path).Parse(); err == nil {
		t.Fatalf("Parse() accepted trailing data")
	}
}

func TestLoadCommitsAndGet(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "config.yaml", sampleYAML)
	m := NewConfigManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if got := m.Get(); got != cfg {
		t.Fatalf("Get() = %p, want committed %p", got, cfg)
	}
}

func TestPublishDropsOldest(t *testing.T) {
	t.Parallel()

	m := NewConfigManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{App: AppConfig{Timezone: "UTC"}}
	second := &Config{App: AppConfig{Timezone: "Europe/Berlin"}}
	third := &Config{App: AppConfig{Timezone: "Asia/Tokyo"}}
	m.publish(first)
	m.publish(second)
	m.publish(third)

	select {
	case got := <-ch:
		if got != third {
			t.Fatalf("subscriber got %v, want latest", got.App.Timezone)
		}
	default:
		t.Fatalf("subscriber got nothing")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()

	m := NewConfigManager("unused")
	ch := m.Subscribe(1)
	m.Unsubscribe(ch)
	if _, open := <-ch; open {
		t.Fatalf("channel still open after Unsubscribe")
	}
	// Second call must be a no-op.
	m.Unsubscribe(ch)
}

func TestReloadIsTransactional(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", sampleYAML)
	m := NewConfigManager(path)
	initial, err := m.Load()
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	// Unchanged content: reload keeps the committed pointer.
	m.reload(context.Background())
	if m.Get() != initial {
		t.Fatalf("reload replaced config despite unchanged content")
	}

	// Rejected content: validator failure keeps the old config.
	writeFile(t, dir, "config.yaml", sampleYAML+"\nexport:\n  dir: ./out\n")
	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		return errors.New("nope")
	})
	m.reload(context.Background())
	if m.Get() != initial {
		t.Fatalf("reload committed a rejected config")
	}

	// Accepted content: commit and publish.
	m.SetValidator(nil)
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)
	m.reload(context.Background())
	got := m.Get()
	if got == initial || got.Export.Dir != "./out" {
		t.Fatalf("reload did not commit new config: %+v", got.Export)
	}
	select {
	case pub := <-ch:
		if pub != got {
			t.Fatalf("published config differs from committed")
		}
	case <-time.After(time.Second):
		t.Fatalf("no publish after successful reload")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{name: "empty", raw: "", want: 0},
		{name: "spaces", raw: "  ", want: 0},
		{name: "valid", raw: "1m30s", want: 90 * time.Second},
		{name: "negative", raw: "-1s", wantErr: true},
		{name: "garbage", raw: "soon", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDurationField("x.y", tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDurationField(%q) = %v, want error", tt.raw, got)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ParseDurationField(%q) = %v, %v, want %v", tt.raw, got, err, tt.want)
			}
		})
	}

	if d, err := ParseDurationOrDefault("x.y", "", 5*time.Second); err != nil || d != 5*time.Second {
		t.Fatalf("ParseDurationOrDefault(empty) = %v, %v", d, err)
	}
	if d, err := ParseDurationOrDefault("x.y", "2s", 5*time.Second); err != nil || d != 2*time.Second {
		t.Fatalf("ParseDurationOrDefault(2s) = %v, %v", d, err)
	}
}

func TestParseLocation(t *testing.T) {
	t.Parallel()

	if loc, err := ParseLocation("app.timezone", ""); err != nil || loc != time.Local {
		t.Fatalf("ParseLocation(empty) = %v, %v", loc, err)
	}
	if loc, err := ParseLocation("app.timezone", "UTC"); err != nil || loc.String() != "UTC" {
		t.Fatalf("ParseLocation(UTC) = %v, %v", loc, err)
	}
	if _, err := ParseLocation("app.timezone", "Mars/Olympus"); err == nil {
		t.Fatalf("ParseLocation accepted bogus zone")
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()

	oldCfg := &Config{
		Logging:  LoggingConfig{Level: "info"},
		Roster:   RosterConfig{Path: "a.yaml"},
		Telegram: TelegramConfig{Enabled: true, Token: "t1"},
		Announce: AnnounceConfig{Enabled: true, Cron: "@weekly"},
	}
	newCfg := &Config{
		Logging:  LoggingConfig{Level: "debug"},
		Roster:   RosterConfig{Path: "b.yaml"},
		Telegram: TelegramConfig{Enabled: true, Token: "t2"},
		Announce: AnnounceConfig{Enabled: true, Cron: "@weekly"},
		Storage:  &StorageConfig{Driver: "file", Path: "./st"},
	}

	changed, _ := SummarizeConfigChange(oldCfg, newCfg)
	want := []string{"logging", "roster", "storage"}
	if len(changed) != len(want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	for i := range want {
		if changed[i] != want[i] {
			t.Fatalf("changed = %v, want %v", changed, want)
		}
	}

	if c, _ := SummarizeConfigChange(newCfg, newCfg); len(c) != 0 {
		t.Fatalf("self-diff = %v, want empty", c)
	}
}
