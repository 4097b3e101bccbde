package announcer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"rondo/internal/eventbus"
	"rondo/internal/notifier"
	"rondo/internal/roulette"
	"rondo/internal/storage"
	kit "rondo/internal/transport"
	logx "rondo/pkg/logx"
)

type stubStore struct {
	mu       sync.Mutex
	runs     map[string]storage.Run
	latest   string
	audits   []storage.AuditEntry
	advanced []int
}

func newStubStore(runs ...storage.Run) *stubStore {
	st := &stubStore{runs: map[string]storage.Run{}}
	for _, r := range runs {
		st.runs[r.ID] = r
		st.latest = r.ID
	}
	return st
}

func (s *stubStore) SaveRun(_ context.Context, run storage.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	s.latest = run.ID
	return nil
}

func (s *stubStore) LatestRun(context.Context) (storage.Run, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == "" {
		return storage.Run{}, false, nil
	}
	return s.runs[s.latest], true, nil
}

func (s *stubStore) GetRun(_ context.Context, id string) (storage.Run, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	return r, ok, nil
}

func (s *stubStore) WeekConnections(ctx context.Context, runID string, week int) ([]roulette.Connection, error) {
	r, ok, _ := s.GetRun(ctx, runID)
	if !ok || week < 1 || week > len(r.Weeks) {
		return nil, storage.ErrNotFound
	}
	return r.Weeks[week-1], nil
}

func (s *stubStore) AdvanceWeek(_ context.Context, runID string, nextWeek int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return storage.ErrNotFound
	}
	r.NextWeek = nextWeek
	s.runs[runID] = r
	s.advanced = append(s.advanced, nextWeek)
	return nil
}

func (s *stubStore) AppendAudit(_ context.Context, e storage.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits = append(s.audits, e)
	return nil
}

func (s *stubStore) PutDedup(context.Context, string, time.Time) error { return nil }
func (s *stubStore) GetDedup(context.Context, string) (time.Time, bool, error) {
	return time.Time{}, false, nil
}
func (s *stubStore) Close() error { return nil }

type stubSink struct {
	mu   sync.Mutex
	got  []notifier.Announcement
	fail bool
}

func (s *stubSink) Enqueue(_ context.Context, a notifier.Announcement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return notifier.ErrQueueFull
	}
	s.got = append(s.got, a)
	return nil
}

func (s *stubSink) Enabled() bool { return true }

func (s *stubSink) announcements() []notifier.Announcement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notifier.Announcement(nil), s.got...)
}

func p(name string) roulette.Participant {
	return roulette.Participant{Name: name, Contact: "@" + name}
}

func twoWeekRun(id string) storage.Run {
	return storage.Run{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		NextWeek:  1,
		Weeks: [][]roulette.Connection{
			{roulette.Pair(p("alice"), p("bob")), roulette.Pair(p("carol"), p("dave"))},
			{roulette.Pair(p("alice"), p("carol")), roulette.Pair(p("bob"), p("dave"))},
		},
	}
}

func drainEvents(ch <-chan eventbus.Event) []eventbus.Event {
	var out []eventbus.Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func eventTypes(events []eventbus.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

func hasEvent(events []eventbus.Event, typ string) bool {
	for _, e := range events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func TestTickAnnouncesNextWeek(t *testing.T) {
	t.Parallel()

	st := newStubStore(twoWeekRun("run-1"))
	sink := &stubSink{}
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(16)
	defer unsub()

	s := New(Config{Enabled: true}, st, sink, logx.Nop(), bus)
	s.tick(context.Background())

	got := sink.announcements()
	// Four participants, one personal message each, no digest.
	if len(got) != 4 {
		t.Fatalf("enqueued %d announcements, want 4", len(got))
	}
	for _, a := range got {
		if a.RunID != "run-1" || a.Week != 1 {
			t.Fatalf("announcement = %+v, want run-1 week 1", a)
		}
		if a.Contact == "" {
			t.Fatalf("personal announcement without contact: %+v", a)
		}
	}

	if len(st.advanced) != 1 || st.advanced[0] != 2 {
		t.Fatalf("advanced = %v, want [2]", st.advanced)
	}
	if len(st.audits) != 1 || st.audits[0].Action != "week.announce" || st.audits[0].OK != 4 {
		t.Fatalf("audits = %+v", st.audits)
	}

	events := drainEvents(ch)
	if !hasEvent(events, "announce.week") {
		t.Fatalf("events = %v, want announce.week", eventTypes(events))
	}
}

func TestTickIncludesDigest(t *testing.T) {
	t.Parallel()

	st := newStubStore(twoWeekRun("run-1"))
	sink := &stubSink{}

	s := New(Config{Enabled: true, Digest: kit.ChatTarget{ChatID: -100123}}, st, sink, logx.Nop(), nil)
	s.tick(context.Background())

	got := sink.announcements()
	if len(got) != 5 {
		t.Fatalf("enqueued %d announcements, want 4 personal + 1 digest", len(got))
	}
	digest := got[len(got)-1]
	if digest.Contact != "" || digest.Target.ChatID != -100123 {
		t.Fatalf("digest = %+v", digest)
	}
}

func TestTickSkipsWhenNoRun(t *testing.T) {
	t.Parallel()

	st := newStubStore()
	sink := &stubSink{}

	s := New(Config{Enabled: true}, st, sink, logx.Nop(), nil)
	s.tick(context.Background())

	if n := len(sink.announcements()); n != 0 {
		t.Fatalf("enqueued %d announcements from empty storage", n)
	}
	if len(st.advanced) != 0 {
		t.Fatalf("advanced = %v, want none", st.advanced)
	}
}

func TestTickExhaustedWithoutRegenerate(t *testing.T) {
	t.Parallel()

	run := twoWeekRun("run-1")
	run.NextWeek = 3
	st := newStubStore(run)
	sink := &stubSink{}
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(16)
	defer unsub()

	s := New(Config{Enabled: true}, st, sink, logx.Nop(), bus)
	s.tick(context.Background())

	if n := len(sink.announcements()); n != 0 {
		t.Fatalf("enqueued %d announcements from an exhausted run", n)
	}
	if len(st.advanced) != 0 {
		t.Fatalf("advanced = %v, want none", st.advanced)
	}
	events := drainEvents(ch)
	if !hasEvent(events, "announce.exhausted") {
		t.Fatalf("events = %v, want announce.exhausted", eventTypes(events))
	}
}

func writeRoster(t *testing.T, names ...string) string {
	t.Helper()
	doc := "participants:\n"
	for _, n := range names {
		doc += "  - name: " + n + "\n    contact: \"@" + n + "\"\n"
	}
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	return path
}

func TestTickRegeneratesWhenExhausted(t *testing.T) {
	t.Parallel()

	run := twoWeekRun("run-1")
	run.NextWeek = 3
	st := newStubStore(run)
	sink := &stubSink{}
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(16)
	defer unsub()

	cfg := Config{
		Enabled:    true,
		Regenerate: true,
		RosterPath: writeRoster(t, "alice", "bob", "carol", "dave"),
	}
	s := New(cfg, st, sink, logx.Nop(), bus)
	s.tick(context.Background())

	got := sink.announcements()
	if len(got) == 0 {
		t.Fatal("nothing announced after regeneration")
	}
	newID := got[0].RunID
	if newID == "run-1" {
		t.Fatal("announced the exhausted run instead of a fresh one")
	}
	for _, a := range got {
		if a.Week != 1 {
			t.Fatalf("announced week %d of the fresh run, want 1", a.Week)
		}
	}

	fresh, ok, err := st.GetRun(context.Background(), newID)
	if err != nil || !ok {
		t.Fatalf("fresh run not saved: ok=%v err=%v", ok, err)
	}
	// Four participants: four weeks, cursor already past week 1.
	if len(fresh.Weeks) != 4 {
		t.Fatalf("fresh run has %d weeks, want 4", len(fresh.Weeks))
	}
	if fresh.NextWeek != 2 {
		t.Fatalf("fresh run cursor = %d, want 2", fresh.NextWeek)
	}
	if fresh.Seed != nil {
		t.Fatalf("regenerated run should have no fixed seed, got %v", *fresh.Seed)
	}

	events := drainEvents(ch)
	for _, typ := range []string{"announce.exhausted", "run.generated", "announce.week"} {
		if !hasEvent(events, typ) {
			t.Fatalf("events = %v, want %s", eventTypes(events), typ)
		}
	}
}

func TestTickRegeneratesWhenStoreEmpty(t *testing.T) {
	t.Parallel()

	st := newStubStore()
	sink := &stubSink{}

	cfg := Config{
		Enabled:    true,
		Regenerate: true,
		RosterPath: writeRoster(t, "alice", "bob"),
	}
	s := New(cfg, st, sink, logx.Nop(), nil)
	s.tick(context.Background())

	// Two participants: two weeks of one pair, two personal messages.
	if n := len(sink.announcements()); n != 2 {
		t.Fatalf("enqueued %d announcements, want 2", n)
	}
}

func TestTickCountsEnqueueFailures(t *testing.T) {
	t.Parallel()

	st := newStubStore(twoWeekRun("run-1"))
	sink := &stubSink{fail: true}
	bus := eventbus.New()
	ch, unsub := bus.Subscribe(16)
	defer unsub()

	s := New(Config{Enabled: true}, st, sink, logx.Nop(), bus)
	s.tick(context.Background())

	if len(st.audits) != 1 || st.audits[0].Fail != 4 || st.audits[0].OK != 0 {
		t.Fatalf("audits = %+v, want 4 failures", st.audits)
	}
	// The cursor still moves; redelivery is the notifier's concern.
	if len(st.advanced) != 1 || st.advanced[0] != 2 {
		t.Fatalf("advanced = %v, want [2]", st.advanced)
	}

	events := drainEvents(ch)
	for _, e := range events {
		if e.Type != "announce.week" {
			continue
		}
		we, ok := e.Data.(WeekEvent)
		if !ok {
			t.Fatalf("announce.week data = %T", e.Data)
		}
		if we.Failed != 4 || we.Queued != 0 {
			t.Fatalf("week event = %+v", we)
		}
		return
	}
	t.Fatalf("events = %v, want announce.week", eventTypes(events))
}

func TestStartValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	s := New(Config{Enabled: true, Spec: "not a spec"}, newStubStore(), &stubSink{}, logx.Nop(), nil)
	if err := s.Start(ctx); err == nil {
		t.Fatal("Start with a bad spec succeeded")
	}

	s = New(Config{Enabled: true, Spec: "@weekly"}, nil, &stubSink{}, logx.Nop(), nil)
	if err := s.Start(ctx); !errors.Is(err, ErrNoStore) {
		t.Fatalf("Start without storage = %v, want ErrNoStore", err)
	}

	s = New(Config{Enabled: true, Spec: "@weekly", Timezone: "Mars/Olympus"}, newStubStore(), &stubSink{}, logx.Nop(), nil)
	if err := s.Start(ctx); err == nil {
		t.Fatal("Start with a bad timezone succeeded")
	}

	// Disabled service starts as a no-op even without storage.
	s = New(Config{Enabled: false}, nil, &stubSink{}, logx.Nop(), nil)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("disabled Start = %v", err)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(Config{Enabled: true, Spec: "@every 1h"}, newStubStore(twoWeekRun("run-1")), &stubSink{}, logx.Nop(), nil)

	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := s.Snapshot()
	if !snap.Running || snap.Next == "" {
		t.Fatalf("snapshot after start = %+v", snap)
	}

	// Idempotent.
	if err := s.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	s.Stop(ctx)
	snap = s.Snapshot()
	if snap.Running {
		t.Fatalf("snapshot after stop = %+v", snap)
	}

	// Stop again is a no-op.
	s.Stop(ctx)
}

func TestApplyRebuildsCadence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New(Config{Enabled: true, Spec: "@every 1h"}, newStubStore(), &stubSink{}, logx.Nop(), nil)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop(ctx)

	before := s.Snapshot()
	s.Apply(Config{Enabled: true, Spec: "@every 10m"})
	after := s.Snapshot()

	if after.Spec != "@every 10m" {
		t.Fatalf("spec after apply = %q", after.Spec)
	}
	if !after.Running {
		t.Fatal("apply stopped the announcer")
	}
	if before.Next == after.Next {
		t.Fatal("next fire time unchanged after cadence change")
	}
}

func TestValidateSpec(t *testing.T) {
	t.Parallel()

	valid := []string{"0 9 * * 1", "30 8 * * MON", "*/5 * * * * *", "@weekly", "@every 168h"}
	for _, spec := range valid {
		if err := ValidateSpec(spec); err != nil {
			t.Errorf("ValidateSpec(%q) = %v, want nil", spec, err)
		}
	}

	invalid := []string{"", "   ", "nonsense", "61 * * * *", "* * *"}
	for _, spec := range invalid {
		if err := ValidateSpec(spec); err == nil {
			t.Errorf("ValidateSpec(%q) = nil, want error", spec)
		}
	}
}
