// Package cli holds the cobra commands of the savings-circle bot.
package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "savings-circle-bot",
	Short: "Rotating savings circles over Telegram",
	Long: `Runs savings circles where members contribute every period and one member
collects the pot each round. Configuration is read from the environment and an
optional .env file.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
