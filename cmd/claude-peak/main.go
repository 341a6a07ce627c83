package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/letsur-dev/claude-peak/internal/commands"
)

// version is overridden at release time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "claude-peak",
		Short: "Claude account usage meter",
		Long:  `Polls the Claude usage API and displays quota window utilization, refreshing tokens as needed.`,
	}

	rootCmd.AddCommand(
		commands.NewStatusCommand(),
		commands.NewWatchCommand(version),
		commands.NewLoginCommand(),
		commands.NewLogoutCommand(),
		commands.NewIntervalCommand(),
		commands.NewVersionCommand(version),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
