package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/letsur-dev/claude-peak/internal/logging"
)

func NewLogoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			logging.SetupStderr("warning")

			c, err := buildCore()
			if err != nil {
				return err
			}
			if err := c.poller.Logout(); err != nil {
				return err
			}
			fmt.Println("Logged out.")
			return nil
		},
	}
}
