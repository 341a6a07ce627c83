package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/letsur-dev/claude-peak/internal/config"
)

func NewIntervalCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "interval [seconds]",
		Short: "Show or set the polling cadence",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if len(args) == 0 {
				fmt.Printf("Polling interval: %ds (choices: %v)\n", cfg.PollingIntervalSeconds, config.IntervalChoices)
				return nil
			}

			seconds, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("not a number: %s", args[0])
			}
			if err := validateInterval(seconds); err != nil {
				return err
			}

			cfg.PollingIntervalSeconds = seconds
			if err := config.Save(cfg); err != nil {
				return err
			}
			fmt.Printf("Polling interval set to %ds.\n", seconds)
			return nil
		},
	}
}
