package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"rondo/internal/config"
	"rondo/internal/eventbus"
	"rondo/internal/export"
	"rondo/internal/notifier"
	"rondo/internal/observability/diag"
	rtsup "rondo/internal/runtime/supervisor"
	"rondo/internal/services/announcer"
	"rondo/internal/storage"
	kit "rondo/internal/transport"
	"rondo/internal/transport/telegram"
	logx "rondo/pkg/logx"
)

// App wires the long-running service: config manager, storage, telegram
// sender, notifier pipeline, cron announcer and the diagnostics server.
type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	sender *telegram.Sender

	notif *notifier.Service
	ann   *announcer.Service
	diag  *diag.Service
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	bus := eventbus.New()

	// Storage (optional)
	var store storage.Store
	if sc, enabled, err := mapStorageConfig(cfg); err != nil {
		return nil, err
	} else if enabled {
		st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, err
		}
		store = st
		log.Info("storage enabled", logx.String("driver", sc.Driver))
	}

	// Telegram sender (optional). New verifies the token against the API,
	// so a bad token fails here rather than on the first announcement.
	var sender *telegram.Sender
	if cfg.Telegram.Enabled {
		sender, err = telegram.New(telegram.Config{Token: cfg.Telegram.Token},
			log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	if ncfg.Enabled && sender == nil {
		log.Warn("notifier requires telegram.enabled; forcing notify.enabled=false")
		ncfg.Enabled = false
	}
	// Assign through a local so a nil *Sender doesn't become a non-nil
	// interface inside the notifier.
	var snd kit.Sender
	if sender != nil {
		snd = sender
	}
	notif := notifier.New(ncfg, snd, log.With(logx.String("comp", "notifier")), bus, store)

	anncfg, err := mapAnnouncerConfig(cfg)
	if err != nil {
		return nil, err
	}
	if anncfg.Enabled && !ncfg.Enabled {
		log.Warn("announcer requires the notifier; forcing announce.enabled=false")
		anncfg.Enabled = false
	}
	ann := announcer.New(anncfg, store, notif, log.With(logx.String("comp", "announcer")), bus)

	dcfg, err := mapDiagConfig(cfg)
	if err != nil {
		return nil, err
	}
	diagSvc := diag.New(dcfg, log.With(logx.String("comp", "diag")))

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		sender:  sender,
		notif:   notif,
		ann:     ann,
		diag:    diagSvc,
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(a.validateConfig)

	if a.notif.Enabled() {
		a.notif.Start(a.sup.Context())
	}
	// Start is a no-op when the announcer is disabled; a misconfigured
	// announcer (no store, bad cron) is fatal at startup.
	if err := a.ann.Start(a.sup.Context()); err != nil {
		return fmt.Errorf("announcer: %w", err)
	}
	if a.diag.Enabled() {
		a.diag.Start(a.sup.Context())
	}

	// Event bridge: one subscriber feeds metrics and debug logs.
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("metrics.bridge", func(c context.Context) {
		defer unsub()
		a.bridgeLoop(c, events)
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				sections, attrs := config.SummarizeConfigChange(lastApplied, newCfg)
				if len(sections) > 0 {
					fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
					a.log.Debug("config change summary", fields...)
				} else {
					a.log.Debug("config reload received, but no effective changes detected")
				}
				lastApplied = newCfg

				for _, s := range sections {
					if s == "storage" || s == "telegram" {
						a.log.Warn("config section changed; restart required for changes to take effect",
							logx.String("section", s))
					}
				}

				a.logs.Apply(mapLoggingConfig(newCfg))

				// apply notifier updates (live)
				prevNotifEnabled := a.notif.Enabled()
				ncfg, err := mapNotifierConfig(newCfg)
				if err != nil {
					a.log.Warn("invalid notify config; keeping previous", logx.Err(err))
				} else {
					if ncfg.Enabled && a.sender == nil {
						a.log.Warn("notifier requires telegram.enabled; keeping notifier disabled")
						ncfg.Enabled = false
					}
					a.notif.Apply(ncfg)
					if prevNotifEnabled && !ncfg.Enabled {
						a.log.Info("notifier disabled via config")
						stopCtx, cancel := context.WithTimeout(c, 3*time.Second)
						a.notif.Stop(stopCtx)
						cancel()
					} else if !prevNotifEnabled && ncfg.Enabled {
						a.log.Info("notifier enabled via config")
						a.notif.Start(c)
					}
				}

				// apply announcer updates (live)
				prevAnnEnabled := a.ann.Enabled()
				anncfg, err := mapAnnouncerConfig(newCfg)
				if err != nil {
					a.log.Warn("invalid announce config; keeping previous", logx.Err(err))
				} else {
					if anncfg.Enabled && !a.notif.Enabled() {
						a.log.Warn("announcer requires the notifier; keeping announcer disabled")
						anncfg.Enabled = false
					}
					a.ann.Apply(anncfg)
					if prevAnnEnabled && !anncfg.Enabled {
						a.log.Info("announcer disabled via config")
						stopCtx, cancel := context.WithTimeout(c, 3*time.Second)
						a.ann.Stop(stopCtx)
						cancel()
					} else if !prevAnnEnabled && anncfg.Enabled {
						a.log.Info("announcer enabled via config")
						if err := a.ann.Start(c); err != nil {
							a.log.Error("announcer start failed", logx.Err(err))
						}
					}
				}

				// apply diag updates (live)
				if dcfg, err := mapDiagConfig(newCfg); err != nil {
					a.log.Warn("invalid observability config; keeping previous", logx.Err(err))
				} else {
					a.diag.Reconfigure(c, dcfg)
				}

				a.bus.Publish(eventbus.Event{Type: "config.reloaded", Time: time.Now()})

				if len(sections) > 0 {
					fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
					a.log.Info("config reloaded", fields...)
				} else {
					a.log.Info("config reloaded (no changes)")
				}
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	// Tell systemd we're up; a missing NOTIFY_SOCKET is not an error.
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify: ready")
	}

	a.log.Info("app started")
	return nil
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err == nil && sent {
		a.log.Debug("sd_notify: stopping")
	}

	// First, cancel the app run context so background loops start unwinding immediately.
	a.sup.Cancel()

	// Helper: run a shutdown step with an upper bound so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.String("err", err.Error()))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			// Contract: fn MUST honor stepCtx and return promptly. If it doesn't, log a leak signal.
			elapsed := time.Since(start)
			a.log.Warn(
				"stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.String("err", stepCtx.Err().Error()),
				logx.Duration("elapsed", elapsed),
			)
			// Leak logging: observe when/if the step eventually finishes.
			go func() {
				err := <-done
				took := time.Since(start)
				if err != nil {
					a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.String("err", err.Error()), logx.Duration("took", took))
				} else {
					a.log.Info("stop step finished after deadline", logx.String("name", name), logx.Duration("took", took))
				}
			}()
		}
	}

	// Announcer first so no new weeks get queued, then drain the notifier.
	step("announcer", 2*time.Second, func(c context.Context) error { a.ann.Stop(c); return nil })
	step("notifier", 3*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("diag", 1*time.Second, func(c context.Context) error { a.diag.Stop(c); return nil })
	step("telegram", 1*time.Second, func(c context.Context) error {
		if a.sender != nil {
			return a.sender.Stop(c)
		}
		return nil
	})
	step("storage", 1*time.Second, func(c context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	// Finally, wait for supervised goroutines (config watch/reload, event bridge).
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		a.logs.Close()
	}
	return nil
}

// validateConfig guards hot reloads: a config that fails here is rejected
// before commit, and the running services keep their previous settings.
func (a *App) validateConfig(_ context.Context, cfg *config.Config) error {
	if strings.TrimSpace(cfg.Roster.Path) == "" {
		return fmt.Errorf("roster.path is required")
	}
	if _, err := parseRosterFormat(cfg.Roster.Format); err != nil {
		return err
	}
	if tz := strings.TrimSpace(cfg.App.Timezone); tz != "" {
		if _, err := config.ParseLocation("app.timezone", tz); err != nil {
			return err
		}
	}
	if _, err := export.ParseFormats(cfg.Export.Formats); err != nil {
		return err
	}
	if cfg.Notify != nil {
		if cfg.Notify.Workers < 0 {
			return fmt.Errorf("notify.workers must be >= 0")
		}
		if cfg.Notify.QueueSize < 0 {
			return fmt.Errorf("notify.queue_size must be >= 0")
		}
		if cfg.Notify.RatePerSec < 0 {
			return fmt.Errorf("notify.rate_per_sec must be >= 0")
		}
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	if _, err := mapAnnouncerConfig(cfg); err != nil {
		return err
	}
	if _, err := mapDiagConfig(cfg); err != nil {
		return err
	}
	_, storeEnabled, err := mapStorageConfig(cfg)
	if err != nil {
		return err
	}
	if cfg.Announce.Enabled && !storeEnabled {
		return fmt.Errorf("announce.enabled requires a storage section")
	}
	return nil
}
