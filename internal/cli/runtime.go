package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"savings_circle_bot/internal/app"
	"savings_circle_bot/internal/infra/config"
	idb "savings_circle_bot/internal/infra/database"
	"savings_circle_bot/internal/infra/logger"
	"savings_circle_bot/internal/infra/memstore"
	"savings_circle_bot/internal/infra/retry"
)

// runtime is the configured storage and the dependencies shared by every service.
type runtime struct {
	cfg  *config.AppConfig
	deps app.Deps
	db   *sql.DB // nil with in-memory storage
}

func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("could not load application configuration: %w", err)
	}
	logger.Init(cfg)
	return cfg, nil
}

// openRuntime connects storage, applying pending migrations for postgres, and fills the
// shared service dependencies. notifier may be nil, in which case notifications are logged.
func openRuntime(ctx context.Context, cfg *config.AppConfig, notifier app.Notifier) (*runtime, error) {
	log := logger.Component("main")
	rt := &runtime{cfg: cfg}
	rt.deps = app.Deps{
		Notifier: notifier,
		Locks:    app.NewWalletLocks(),
		Clock:    clockwork.NewRealClock(),
		Retry: retry.Config{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseBackoff: cfg.RetryBaseBackoff,
			MaxBackoff:  cfg.RetryMaxBackoff,
		},
		Log: logger.Component("app"),
	}
	if rt.deps.Notifier == nil {
		rt.deps.Notifier = app.LogNotifier{Log: logger.Component("notifications")}
	}

	switch cfg.Storage {
	case config.StorageMemory:
		store := memstore.New()
		rt.deps.Communities = store.Communities()
		rt.deps.Wallets = store.Wallets()
		rt.deps.Tx = store
		log.Warn("Using in-memory storage, state is lost on exit")
	default:
		db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("could not connect to database: %w", err)
		}
		log.Info("Database connection established successfully.")
		if err := idb.MigrateUp(ctx, db, logger.Component("migrations")); err != nil {
			db.Close()
			return nil, err
		}
		rt.db = db
		rt.deps.Communities = idb.NewPostgresCommunityRepository(db)
		rt.deps.Wallets = idb.NewPostgresWalletRepository(db)
		rt.deps.Tx = idb.NewTransactor(db)
	}
	return rt, nil
}

func (rt *runtime) Close() {
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			logger.Log.WithError(err).Warn("Closing database")
		}
	}
}

func (rt *runtime) sweeper() *app.PayoutSweeper {
	return app.NewPayoutSweeper(rt.deps, rt.cfg.SweepConcurrency)
}

func fields(cfg *config.AppConfig) logrus.Fields {
	return logrus.Fields{
		"environment": cfg.Environment,
		"storage":     cfg.Storage,
		"log_level":   cfg.LogLevel,
		"ops_addr":    cfg.OpsAddr,
		"sweep_cron":  cfg.SweepCronSpec,
		"telegram":    cfg.TelegramToken != "",
	}
}
