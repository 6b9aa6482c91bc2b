package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"savings_circle_bot/internal/infra/config"
	idb "savings_circle_bot/internal/infra/database"
	"savings_circle_bot/internal/infra/logger"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Manage the postgres schema",
	Long:      `Applies, rolls back or lists the embedded schema migrations. Defaults to up.`,
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down", "status"},
	RunE:      runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Storage != config.StoragePostgres {
		return fmt.Errorf("migrate needs STORAGE=%s, got %s", config.StoragePostgres, cfg.Storage)
	}

	ctx := cmd.Context()
	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}
	defer db.Close()

	direction := "up"
	if len(args) == 1 {
		direction = args[0]
	}
	log := logger.Component("migrations").WithField("direction", direction)
	switch direction {
	case "down":
		return idb.MigrateDown(ctx, db, log)
	case "status":
		return idb.MigrateStatus(ctx, db, log)
	default:
		return idb.MigrateUp(ctx, db, log)
	}
}
