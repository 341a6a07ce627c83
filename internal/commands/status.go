package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/letsur-dev/claude-peak/internal/logging"
	"github.com/letsur-dev/claude-peak/internal/output"
)

func NewStatusCommand() *cobra.Command {
	var (
		noColor  bool
		asJSON   bool
		logLevel string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Fetch and display current usage",
		Long:  `Fetch the account's quota windows once and print them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.SetupStderr(logLevel)

			c, err := buildCore()
			if err != nil {
				return err
			}

			c.poller.FetchNow(cmd.Context())
			st := c.poller.State()

			if st.NeedsLogin {
				if st.Err != "" {
					fmt.Fprintln(os.Stderr, st.Err)
				}
				return fmt.Errorf("not logged in, run `claude-peak login`")
			}
			if st.Usage == nil {
				return fmt.Errorf("fetch failed: %s", st.Err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(st.Usage)
			}

			if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
				noColor = true
			}
			fmt.Print(output.FormatUsageTable(st.Usage, st.UsageDelta, time.Now(), noColor))
			return nil
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw snapshot as JSON")
	cmd.Flags().StringVar(&logLevel, "log-level", "warning", "Log level for stderr diagnostics")

	return cmd
}
