package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sweepCmd)
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one payout sweep and exit",
	Long: `Processes every community whose payout is due, the same pass the scheduler
runs on SWEEP_CRON. Useful from an external cron or after downtime.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.SweepTimeout)
	defer cancel()

	rt, err := openRuntime(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := rt.sweeper().Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "due: %d, processed: %d, failed: %d\n", result.Due, result.OK, result.Failed)
	return nil
}
