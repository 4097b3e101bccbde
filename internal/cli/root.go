// Package cli implements the rondo command line: one-shot schedule commands
// (generate, show, announce) and the long-running serve mode.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"rondo/internal/config"
	"rondo/internal/storage"
	logx "rondo/pkg/logx"
)

var flagConfig string

// defaultConfigPath returns the default config location, checking the
// RONDO_CONFIG env var first.
func defaultConfigPath() string {
	if p := os.Getenv("RONDO_CONFIG"); p != "" {
		return p
	}
	return "./config.yaml"
}

// NewRootCmd creates the root cobra command for the rondo CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "rondo",
		Short: "Round-robin pairing scheduler",
		Long: `rondo generates round-robin pairing schedules from a roster and
announces them one week at a time over Telegram.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", defaultConfigPath(), "path to config file (or RONDO_CONFIG env)")

	root.AddCommand(
		newGenerateCmd(),
		newShowCmd(),
		newAnnounceCmd(),
		newServeCmd(),
	)

	return root
}

func loadConfig() (*config.Config, error) {
	return config.NewConfigManager(flagConfig).Load()
}

// openStore opens the configured store; nil when no storage section is set.
func openStore(cfg *config.Config, log logx.Logger) (storage.Store, error) {
	if cfg.Storage == nil {
		return nil, nil
	}
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, time.Second)
	if err != nil {
		return nil, err
	}
	return storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, log.With(logx.String("comp", "storage")))
}

// findRun resolves the run a command operates on: an explicit --run ID or
// the latest stored run.
func findRun(ctx context.Context, store storage.Store, runID string) (storage.Run, error) {
	if runID != "" {
		run, ok, err := store.GetRun(ctx, runID)
		if err != nil {
			return storage.Run{}, err
		}
		if !ok {
			return storage.Run{}, fmt.Errorf("run %s: %w", runID, storage.ErrNotFound)
		}
		return run, nil
	}
	run, ok, err := store.LatestRun(ctx)
	if err != nil {
		return storage.Run{}, err
	}
	if !ok {
		return storage.Run{}, errors.New("no runs stored yet; run `rondo generate` first")
	}
	return run, nil
}
