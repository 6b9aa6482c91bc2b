package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"savings_circle_bot/internal/app"
)

// Sweeper is the job the scheduler runs.
type Sweeper interface {
	Sweep(ctx context.Context) (app.SweepResult, error)
}

// PayoutScheduler runs the payout sweep on a cron schedule.
type PayoutScheduler struct {
	cronEngine *cron.Cron
	sweeper    Sweeper
	logger     *logrus.Entry
	spec       string
	timeout    time.Duration
}

func NewPayoutScheduler(sweeper Sweeper, logger *logrus.Entry, spec string, timeout time.Duration, loc *time.Location) *PayoutScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &PayoutScheduler{
		// a sweep still running when the next tick fires is not started twice
		cronEngine: cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		sweeper:    sweeper,
		logger:     logger,
		spec:       spec,
		timeout:    timeout,
	}
}

// Start registers the sweep job and starts the cron engine.
func (s *PayoutScheduler) Start() error {
	s.logger.WithField("spec", s.spec).Info("Starting payout scheduler")
	if _, err := s.cronEngine.AddFunc(s.spec, s.runSweep); err != nil {
		return fmt.Errorf("adding payout sweep job %q: %w", s.spec, err)
	}
	s.cronEngine.Start()
	return nil
}

func (s *PayoutScheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := s.sweeper.Sweep(ctx); err != nil {
		s.logger.WithError(err).Error("Payout sweep failed")
	}
}

func (s *PayoutScheduler) Stop() {
	s.logger.Info("Stopping payout scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()
	s.logger.Info("Payout scheduler gracefully stopped.")
}
