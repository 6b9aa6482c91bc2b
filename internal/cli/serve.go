package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/telebot.v3"

	"savings_circle_bot/internal/app"
	"savings_circle_bot/internal/infra/logger"
	"savings_circle_bot/internal/infra/metrics"
	"savings_circle_bot/internal/infra/scheduler"
	"savings_circle_bot/internal/infra/telegram"
)

const shutdownTimeout = 10 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot, the payout scheduler and the ops server",
	Long: `Starts the Telegram bot (when TELEGRAM_TOKEN is set), the cron-driven payout
sweep and the ops HTTP server with /health and /metrics. Pending database
migrations are applied on start.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mainLogger := logger.Component("main")
	mainLogger.WithFields(fields(cfg)).Info("Configuration loaded")

	var (
		bot      *telebot.Bot
		notifier app.Notifier
	)
	if cfg.TelegramToken != "" {
		bot, err = newBot(cfg.TelegramToken)
		if err != nil {
			return err
		}
		notifier = app.NewNotificationService(telegram.NewTelebotAdapter(bot), logger.Component("notifications"))
	} else {
		mainLogger.Warn("TELEGRAM_TOKEN is not set, running without the bot")
	}

	rt, err := openRuntime(ctx, cfg, notifier)
	if err != nil {
		return err
	}
	defer rt.Close()

	communityService := app.NewCommunityService(rt.deps, cfg.CommunityDefaults)
	adminService := app.NewAdminService(rt.deps)
	walletService := app.NewWalletService(rt.deps)

	payoutScheduler := scheduler.NewPayoutScheduler(rt.sweeper(), logger.Component("scheduler"), cfg.SweepCronSpec, cfg.SweepTimeout, cfg.Timezone)
	if err := payoutScheduler.Start(); err != nil {
		return err
	}
	defer payoutScheduler.Stop()

	ops := metrics.NewServer(cfg.OpsAddr, communityService, logger.Component("ops"))
	opsErr := make(chan error, 1)
	go func() { opsErr <- ops.Start() }()

	if bot != nil {
		handlers := telegram.NewHandlers(communityService, adminService, walletService, logger.Component("telegram"))
		handlers.Register(ctx, bot)
		go bot.Start()
		mainLogger.Info("Telegram bot started")
	}

	mainLogger.Info("Application setup complete")
	select {
	case <-ctx.Done():
	case err := <-opsErr:
		if err != nil {
			mainLogger.WithError(err).Error("Ops server stopped")
		}
	}

	mainLogger.Info("Shutting down application...")
	if bot != nil {
		bot.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := ops.Shutdown(shutdownCtx); err != nil {
		mainLogger.WithError(err).Warn("Ops server shutdown")
	}
	return nil
}

func newBot(token string) (*telebot.Bot, error) {
	botLogger := logger.Component("telebot")
	pref := telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := botLogger.WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID).WithField("text", c.Text())
			}
			entry.Error("Telegram handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("could not create Telegram bot: %w", err)
	}
	return bot, nil
}
