package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/letsur-dev/claude-peak/internal/update"
)

func NewVersionCommand(version string) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("claude-peak v%s\n", version)
			if !check {
				return nil
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			res, err := update.NewChecker().Check(ctx, version)
			if err != nil {
				return err
			}
			if res.UpdateAvailable {
				fmt.Printf("Update available: v%s\n", res.LatestVersion)
			} else {
				fmt.Println("Up to date.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Check GitHub for a newer release")
	return cmd
}
