package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/letsur-dev/claude-peak/internal/activity"
	"github.com/letsur-dev/claude-peak/internal/config"
	"github.com/letsur-dev/claude-peak/internal/logging"
	"github.com/letsur-dev/claude-peak/internal/monitor"
	"github.com/letsur-dev/claude-peak/internal/output"
	"github.com/letsur-dev/claude-peak/internal/update"
)

func NewWatchCommand(version string) *cobra.Command {
	var (
		interval int
		noColor  bool
		dataPath string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live usage dashboard",
		Long:  `Poll usage on a cadence and render a live dashboard with quota windows, deltas and local token activity.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore()
			if err != nil {
				return err
			}

			if interval != 0 {
				if err := validateInterval(interval); err != nil {
					return err
				}
				c.poller.Restart(time.Duration(interval) * time.Second)
			}

			// The dashboard owns the terminal, so diagnostics go to the
			// debug log file instead of stderr.
			dir, err := config.Dir()
			if err != nil {
				return err
			}
			if err := logging.Setup(dir, c.cfg.LogLevel); err != nil {
				logging.Discard()
			}

			ctx := cmd.Context()
			c.poller.Start(ctx)

			if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				return watchPlain(ctx, c)
			}

			if dataPath == "" {
				dataPath = activity.DefaultDataPath()
			}

			opts := monitor.Options{
				Poller:   c.poller,
				Activity: activity.NewMonitor(dataPath),
				Version:  version,
				NoColor:  noColor,
			}

			// Best-effort; the dashboard just shows a notice when a
			// newer release exists.
			checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if res, err := update.NewChecker().Check(checkCtx, version); err == nil {
				opts.Update = &res
			}

			return monitor.New(opts).Start(ctx)
		},
	}

	cmd.Flags().IntVar(&interval, "interval", 0, "Polling interval in seconds (30, 60, 120 or 300)")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&dataPath, "data-path", "", "Path to local Claude transcript directory")

	return cmd
}

// watchPlain prints a table per poll when stdout is not a terminal,
// e.g. when piping into a status bar script.
func watchPlain(ctx context.Context, c *core) error {
	var last *time.Time
	for {
		st := c.poller.State()
		if st.Usage != nil && (last == nil || st.Usage.FetchedAt.After(*last)) {
			fetched := st.Usage.FetchedAt
			last = &fetched
			fmt.Print(output.FormatUsageTable(st.Usage, st.UsageDelta, time.Now(), true))
		} else if st.Err != "" {
			fmt.Fprintln(os.Stderr, st.Err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Second):
		}
	}
}
