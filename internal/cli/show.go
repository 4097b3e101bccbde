package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"rondo/internal/export"
	logx "rondo/pkg/logx"
)

func newShowCmd() *cobra.Command {
	var (
		week  int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print one week of a stored run",
		Args:  cobra.NoArgs,
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
				return errors.New("storage is not configured; nothing to show")
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

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s week %d/%d\n", run.ID, week, len(run.Weeks))
			for _, c := range conns {
				fmt.Fprintf(out, "  %s\n", export.ConnectionLine(c))
			}
			if week == run.NextWeek {
				fmt.Fprintln(out, "  (next to announce)")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&week, "week", 0, "Week to show, 1-based")
	cmd.Flags().StringVar(&runID, "run", "", "Run ID (default: latest run)")
	_ = cmd.MarkFlagRequired("week")

	return cmd
}
