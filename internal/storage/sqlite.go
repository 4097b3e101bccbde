package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"rondo/internal/roulette"
	logx "rondo/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger

	opCount    atomic.Uint64
	pruneEvery uint64
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, pruneEvery: 500}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) SaveRun(ctx context.Context, run Run) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("storage: run id is required")
	}
	sched, err := encodeSchedule(run.Weeks)
	if err != nil {
		return err
	}
	var seed any
	if run.Seed != nil {
		seed = *run.Seed
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs(id, created_at, seed, next_week, schedule) VALUES(?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET created_at=excluded.created_at, seed=excluded.seed,
		   next_week=excluded.next_week, schedule=excluded.schedule`,
		run.ID, run.CreatedAt.UTC().Format(time.RFC3339Nano), seed, run.NextWeek, string(sched),
	)
	return err
}

func (s *sqliteStore) LatestRun(ctx context.Context) (Run, bool, error) {
	if s == nil || s.db == nil {
		return Run{}, false, ErrDisabled
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, seed, next_week, schedule FROM runs ORDER BY created_at DESC, id DESC LIMIT 1`)
	return scanRun(row)
}

func (s *sqliteStore) GetRun(ctx context.Context, id string) (Run, bool, error) {
	if s == nil || s.db == nil {
		return Run{}, false, ErrDisabled
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, seed, next_week, schedule FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

func scanRun(row *sql.Row) (Run, bool, error) {
	var (
		run     Run
		created string
		seed    sql.NullInt64
		sched   string
	)
	err := row.Scan(&run.ID, &created, &seed, &run.NextWeek, &sched)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	at, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Run{}, false, fmt.Errorf("storage: run %s: bad created_at: %w", run.ID, err)
	}
	run.CreatedAt = at
	if seed.Valid {
		v := seed.Int64
		run.Seed = &v
	}
	weeks, err := decodeSchedule([]byte(sched))
	if err != nil {
		return Run{}, false, fmt.Errorf("storage: run %s: %w", run.ID, err)
	}
	run.Weeks = weeks
	return run, true, nil
}

func (s *sqliteStore) WeekConnections(ctx context.Context, runID string, week int) ([]roulette.Connection, error) {
	run, ok, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return weekOf(run, week)
}

func (s *sqliteStore) AdvanceWeek(ctx context.Context, runID string, nextWeek int) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET next_week = ? WHERE id = ?`, nextWeek, runID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, actor, action, run_id, week, ok, fail, err, took_ms, meta)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		e.At.UTC().Format(time.RFC3339Nano), e.Actor, e.Action, nullStr(e.RunID), e.Week,
		e.OK, e.Fail, nullStr(e.Error), e.TookMS, nullStr(e.MetaJSON),
	)
	return err
}

func (s *sqliteStore) PutDedup(ctx context.Context, key string, until time.Time) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if key == "" {
		return nil
	}
	ms := until.UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dedup(key, until) VALUES(?,?)
		 ON CONFLICT(key) DO UPDATE SET until=excluded.until`,
		key, ms,
	)
	if err == nil && s.opCount.Add(1)%s.pruneEvery == 0 {
		pctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		_ = s.pruneExpired(pctx)
		cancel()
	}
	return err
}

func (s *sqliteStore) GetDedup(ctx context.Context, key string) (time.Time, bool, error) {
	if s == nil || s.db == nil {
		return time.Time{}, false, ErrDisabled
	}
	if key == "" {
		return time.Time{}, false, nil
	}
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT until FROM dedup WHERE key = ?`, key).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(ms), true, nil
}

func (s *sqliteStore) pruneExpired(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `DELETE FROM dedup WHERE until < ?`, now)
	return err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
