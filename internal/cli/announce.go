package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rondo/internal/config"
	"rondo/internal/notifier"
	"rondo/internal/storage"
	kit "rondo/internal/transport"
	"rondo/internal/transport/telegram"
	logx "rondo/pkg/logx"
)

func newAnnounceCmd() *cobra.Command {
	var (
		week   int
		runID  string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "announce",
		Short: "Send one week's announcements now",
		Long: `Announce renders and delivers one week of a stored run through Telegram.
It does not move the run's announcement cursor; the serve-mode announcer
owns that. --dry-run prints the rendered messages instead of sending.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logx.NewConsole(cfg.Logging.Level)

			store, err := openStore(cfg, log)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("storage is not configured; nothing to announce")
			}
			defer store.Close()

			ctx := cmd.Context()
			run, err := findRun(ctx, store, runID)
			if err != nil {
				return err
			}
			conns, err := store.WeekConnections(ctx, run.ID, week)
			if err != nil {
				return fmt.Errorf("run %s week %d: %w", run.ID, week, err)
			}

			var html bool
			switch strings.ToLower(strings.TrimSpace(cfg.Announce.ParseMode)) {
			case "", "html":
				html = true
			case "plain":
			default:
				return fmt.Errorf("announce.parse_mode: unknown %q (want html or plain)", cfg.Announce.ParseMode)
			}

			anns := notifier.Plan(conns, run.ID, week, notifier.PlanOptions{HTML: html})
			if cfg.Announce.DigestChatID != 0 {
				anns = append(anns, notifier.Digest(conns, run.ID, week,
					kit.ChatTarget{ChatID: cfg.Announce.DigestChatID, ThreadID: cfg.Announce.DigestThreadID},
					notifier.PlanOptions{HTML: html}))
			}

			out := cmd.OutOrStdout()
			if dryRun {
				for i, a := range anns {
					if i > 0 {
						fmt.Fprintln(out, "---")
					}
					to := a.Contact
					if to == "" {
						to = fmt.Sprintf("chat %d", a.Target.ChatID)
					}
					fmt.Fprintf(out, "to %s:\n%s\n", to, a.Text)
				}
				fmt.Fprintf(out, "%d announcements (dry run, nothing sent)\n", len(anns))
				return nil
			}

			if !cfg.Telegram.Enabled {
				return errors.New("telegram.enabled must be true to announce (or use --dry-run)")
			}
			sender, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token},
				log.With(logx.String("comp", "telegram")))
			if err != nil {
				return err
			}

			ncfg, err := announceNotifierConfig(cfg, len(anns))
			if err != nil {
				return err
			}
			svc := notifier.New(ncfg, sender, log.With(logx.String("comp", "notifier")), nil, store)
			svc.Start(ctx)

			started := time.Now()
			for _, a := range anns {
				// Enqueue failures (bad contact, full queue) are already
				// counted in the run report.
				_ = svc.Enqueue(ctx, a)
			}

			// Stop drains the queue; budget for the rate limit plus retries.
			drain := time.Duration(len(anns)/ncfg.RatePerSec+15) * time.Second
			stopCtx, cancel := context.WithTimeout(ctx, drain)
			svc.Stop(stopCtx)
			cancel()
			stopErr := sender.Stop(ctx)

			rep, _ := svc.Report(run.ID)
			fmt.Fprintf(out, "week %d: sent %d, failed %d, deduped %d, dropped %d\n",
				week, rep.Sent, rep.Failed, rep.Deduped, rep.Dropped)

			if err := store.AppendAudit(ctx, storage.AuditEntry{
				At:     time.Now(),
				Actor:  "cli",
				Action: "week.announce",
				RunID:  run.ID,
				Week:   week,
				OK:     rep.Sent,
				Fail:   rep.Failed + rep.Dropped,
				TookMS: time.Since(started).Milliseconds(),
			}); err != nil {
				log.Warn("audit append failed", logx.Err(err))
			}

			if rep.Failed > 0 || rep.Dropped > 0 {
				return fmt.Errorf("%d of %d announcements not delivered", rep.Failed+rep.Dropped, len(anns))
			}
			return stopErr
		},
	}

	cmd.Flags().IntVar(&week, "week", 0, "Week to announce, 1-based")
	cmd.Flags().StringVar(&runID, "run", "", "Run ID (default: latest run)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print rendered messages without sending")
	_ = cmd.MarkFlagRequired("week")

	return cmd
}

// announceNotifierConfig builds the one-shot pipeline config: the configured
// notify tuning, forced enabled, with a queue big enough for the whole week.
func announceNotifierConfig(cfg *config.Config, queued int) (notifier.Config, error) {
	out := notifier.Config{Enabled: true}
	var err error
	if n := cfg.Notify; n != nil {
		out.Workers = n.Workers
		out.QueueSize = n.QueueSize
		out.RatePerSec = n.RatePerSec
		out.RetryMax = n.RetryMax
		out.DedupMaxEntries = n.DedupMaxEntries
		out.PersistDedup = n.PersistDedup
		if out.RetryBase, err = config.ParseDurationOrDefault("notify.retry_base", n.RetryBase, 0); err != nil {
			return notifier.Config{}, err
		}
		if out.RetryMaxDelay, err = config.ParseDurationOrDefault("notify.retry_max_delay", n.RetryMaxDelay, 0); err != nil {
			return notifier.Config{}, err
		}
		if out.DedupWindow, err = config.ParseDurationOrDefault("notify.dedup_window", n.DedupWindow, time.Minute); err != nil {
			return notifier.Config{}, err
		}
	} else {
		out.DedupWindow = time.Minute
	}
	if out.RatePerSec <= 0 {
		out.RatePerSec = 3
	}
	if out.QueueSize <= 0 {
		out.QueueSize = 512
	}
	if out.QueueSize < queued {
		out.QueueSize = queued
	}
	return out, nil
}
