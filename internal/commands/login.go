package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/letsur-dev/claude-peak/internal/auth"
	"github.com/letsur-dev/claude-peak/internal/logging"
)

func NewLoginCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Connect your account",
		Long:  `Run the browser authorization flow and store the resulting tokens locally.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.SetupStderr("warning")

			c, err := buildCore()
			if err != nil {
				return err
			}

			flow, err := auth.NewLoginFlow(c.cfg)
			if err != nil {
				return err
			}

			fmt.Println("Open this URL in your browser and authorize:")
			fmt.Println()
			fmt.Println("  " + flow.AuthURL())
			fmt.Println()
			fmt.Print("Paste the code shown after authorizing: ")

			reader := bufio.NewReader(os.Stdin)
			pasted, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("read code: %w", err)
			}

			ctx := cmd.Context()
			pair, err := flow.Exchange(ctx, strings.TrimSpace(pasted))
			c.poller.HandleLoginResult(ctx, pair, err)

			st := c.poller.State()
			if st.NeedsLogin || err != nil {
				if st.Err != "" {
					return fmt.Errorf("login failed: %s", st.Err)
				}
				return fmt.Errorf("login failed")
			}

			fmt.Println("Logged in.")
			if st.Usage != nil {
				fmt.Printf("Current 5-hour usage: %d%%\n", st.Usage.FiveHour.Percentage())
			}
			return nil
		},
	}

	return cmd
}
