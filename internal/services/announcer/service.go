// Package announcer drives the weekly announcement cadence: on every cron
// tick it announces the active run's next week through the notifier and
// advances the cursor in storage.
package announcer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rondo/internal/eventbus"
	"rondo/internal/notifier"
	"rondo/internal/roster"
	"rondo/internal/roulette"
	"rondo/internal/storage"
	logx "rondo/pkg/logx"
)

var (
	ErrNoStore = errors.New("announcer: storage is required")
)

// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
var specParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ValidateSpec reports whether spec parses as a cron expression.
func ValidateSpec(spec string) error {
	if strings.TrimSpace(spec) == "" {
		return errors.New("empty cron spec")
	}
	_, err := specParser.Parse(spec)
	return err
}

type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger

	store storage.Store
	sink  Enqueuer
	bus   eventbus.Bus

	c         *cron.Cron
	entry     cron.EntryID
	runCtx    context.Context
	runCancel context.CancelFunc
	stopDone  chan struct{}

	// tickMu serializes ticks; an overlapping fire is skipped rather than
	// queued so one week is never announced twice back to back.
	tickMu sync.Mutex
}

func New(cfg Config, store storage.Store, sink Enqueuer, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, store: store, sink: sink, log: log, bus: bus}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Start begins firing on the configured cron spec. It returns an error for a
// bad spec or timezone, and when storage is missing; the caller decides
// whether that is fatal.
func (s *Service) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// If a Stop() is in progress, wait for it to complete first.
	for {
		s.mu.Lock()
		if s.stopDone == nil {
			break
		}
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
			// loop
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer s.mu.Unlock()

	if s.c != nil {
		return nil
	}
	if !s.cfg.Enabled {
		return nil
	}
	if s.store == nil {
		return ErrNoStore
	}

	loc, err := loadLocation(s.cfg.Timezone)
	if err != nil {
		return fmt.Errorf("announcer: timezone: %w", err)
	}

	c := cron.New(cron.WithParser(specParser), cron.WithLocation(loc))
	runCtx, cancel := context.WithCancel(ctx)
	id, err := c.AddFunc(s.cfg.Spec, func() { s.tick(runCtx) })
	if err != nil {
		cancel()
		return fmt.Errorf("announcer: cron spec %q: %w", s.cfg.Spec, err)
	}

	s.c = c
	s.entry = id
	s.runCtx = runCtx
	s.runCancel = cancel
	c.Start()

	s.log.Info("announcer started",
		logx.String("spec", s.cfg.Spec),
		logx.String("tz", loc.String()),
		logx.Bool("regenerate", s.cfg.Regenerate),
	)
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if s.c == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}
	done := make(chan struct{})
	s.stopDone = done
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.runCtx = nil
	s.runCancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	go func() {
		// cron.Stop's context completes only after in-flight jobs return.
		<-c.Stop().Done()

		s.mu.Lock()
		s.stopDone = nil
		s.mu.Unlock()
		close(done)
		s.log.Info("announcer stopped")
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Apply swaps the config. When the cadence (spec or timezone) changes while
// running, the cron is rebuilt in place; enable/disable transitions are the
// caller's job.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cfg
	s.cfg = cfg

	if s.c == nil {
		return
	}
	if old.Spec == cfg.Spec && strings.TrimSpace(old.Timezone) == strings.TrimSpace(cfg.Timezone) {
		return
	}

	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		s.log.Error("announcer keeps old cadence: bad timezone", logx.String("tz", cfg.Timezone), logx.Err(err))
		return
	}
	c := cron.New(cron.WithParser(specParser), cron.WithLocation(loc))
	runCtx := s.runCtx
	id, err := c.AddFunc(cfg.Spec, func() { s.tick(runCtx) })
	if err != nil {
		s.log.Error("announcer keeps old cadence: bad cron spec", logx.String("spec", cfg.Spec), logx.Err(err))
		return
	}

	oldCron := s.c
	s.c = c
	s.entry = id
	c.Start()
	go func() { <-oldCron.Stop().Done() }()

	s.log.Info("announcer cadence changed", logx.String("spec", cfg.Spec), logx.String("tz", loc.String()))
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Enabled:  s.cfg.Enabled,
		Running:  s.c != nil,
		Spec:     s.cfg.Spec,
		Timezone: s.cfg.Timezone,
	}
	if s.c != nil {
		e := s.c.Entry(s.entry)
		if !e.Next.IsZero() {
			snap.Next = e.Next.Format(time.RFC3339)
		}
		if !e.Prev.IsZero() {
			snap.Prev = e.Prev.Format(time.RFC3339)
		}
	}
	return snap
}

// tick announces the next unannounced week of the latest run, regenerating a
// fresh run first when configured to and the previous one is used up. Every
// tick announces at most one week.
func (s *Service) tick(ctx context.Context) {
	if !s.tickMu.TryLock() {
		s.log.Warn("announcer tick overlapped, skipping")
		return
	}
	defer s.tickMu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()

	started := time.Now()

	run, ok, err := s.store.LatestRun(ctx)
	if err != nil {
		s.log.Error("announcer: load latest run", logx.Err(err))
		return
	}
	if !ok {
		if !cfg.Regenerate {
			s.log.Info("announcer: no run to announce")
			return
		}
		run, err = s.regenerate(ctx, cfg)
		if err != nil {
			s.log.Error("announcer: regenerate", logx.Err(err))
			return
		}
	}
	if run.Exhausted() {
		s.publish("announce.exhausted", ExhaustedEvent{RunID: run.ID})
		if !cfg.Regenerate {
			s.log.Info("announcer: run exhausted", logx.String("run_id", run.ID))
			return
		}
		run, err = s.regenerate(ctx, cfg)
		if err != nil {
			s.log.Error("announcer: regenerate", logx.Err(err))
			return
		}
	}

	week := run.NextWeek
	conns := run.Weeks[week-1]

	anns := notifier.Plan(conns, run.ID, week, notifier.PlanOptions{HTML: cfg.HTML})
	if cfg.Digest.ChatID != 0 {
		anns = append(anns, notifier.Digest(conns, run.ID, week, cfg.Digest, notifier.PlanOptions{HTML: cfg.HTML}))
	}

	queued, failed := 0, 0
	for _, a := range anns {
		if err := s.sink.Enqueue(ctx, a); err != nil {
			failed++
			s.log.Warn("announcer: enqueue failed",
				logx.String("run_id", a.RunID), logx.Int("week", a.Week), logx.Err(err))
			continue
		}
		queued++
	}

	// The cursor moves regardless of enqueue failures: delivery retries live
	// in the notifier, and a stuck cursor would re-spam the whole week.
	if err := s.store.AdvanceWeek(ctx, run.ID, week+1); err != nil {
		s.log.Error("announcer: advance week", logx.String("run_id", run.ID), logx.Err(err))
	}

	if err := s.store.AppendAudit(ctx, storage.AuditEntry{
		At:     time.Now(),
		Actor:  "announcer",
		Action: "week.announce",
		RunID:  run.ID,
		Week:   week,
		OK:     queued,
		Fail:   failed,
		TookMS: time.Since(started).Milliseconds(),
	}); err != nil {
		s.log.Warn("announcer: audit append failed", logx.Err(err))
	}

	s.publish("announce.week", WeekEvent{RunID: run.ID, Week: week, Queued: queued, Failed: failed})
	s.log.Info("week announced",
		logx.String("run_id", run.ID),
		logx.Int("week", week),
		logx.Int("of", len(run.Weeks)),
		logx.Int("queued", queued),
		logx.Int("failed", failed),
	)
}

func (s *Service) regenerate(ctx context.Context, cfg Config) (storage.Run, error) {
	ros, err := roster.LoadFormat(cfg.RosterPath, cfg.RosterFormat)
	if err != nil {
		return storage.Run{}, err
	}
	sched, err := roulette.Generate(ros)
	if err != nil {
		return storage.Run{}, err
	}
	run, err := storage.NewRun(nil, sched)
	if err != nil {
		return storage.Run{}, err
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		return storage.Run{}, err
	}
	if err := s.store.AppendAudit(ctx, storage.AuditEntry{
		At:     time.Now(),
		Actor:  "announcer",
		Action: "run.generate",
		RunID:  run.ID,
		OK:     len(run.Weeks),
	}); err != nil {
		s.log.Warn("announcer: audit append failed", logx.Err(err))
	}
	s.publish("run.generated", RunEvent{RunID: run.ID, Weeks: len(run.Weeks)})
	s.log.Info("run generated",
		logx.String("run_id", run.ID),
		logx.Int("participants", ros.Len()),
		logx.Int("weeks", len(run.Weeks)),
	)
	return run, nil
}

func (s *Service) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: time.Now(), Data: data})
}

func loadLocation(tz string) (*time.Location, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}
