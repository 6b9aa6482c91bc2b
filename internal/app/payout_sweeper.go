// internal/app/payout_sweeper.go
package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"savings_circle_bot/internal/domain/community"
	"savings_circle_bot/internal/infra/metrics"
)

const defaultSweepConcurrency = 4

// PayoutSweeper advances every community whose payout time has come: it records missed
// contributions, moves past defaulting recipients, pays ready rounds and rolls completed
// cycles over. It is safe to run overlapping sweeps.
type PayoutSweeper struct {
	core
	concurrency int
}

func NewPayoutSweeper(d Deps, concurrency int) *PayoutSweeper {
	if concurrency < 1 {
		concurrency = defaultSweepConcurrency
	}
	return &PayoutSweeper{core: newCore(d), concurrency: concurrency}
}

// SweepResult counts the communities a sweep looked at.
type SweepResult struct {
	Due    int
	OK     int
	Failed int
}

// Sweep processes every due community. A failing community is logged and does not
// stop the others; only listing failures are returned.
func (s *PayoutSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	start := s.Clock.Now()
	ids, err := s.Communities.ListDue(ctx, start)
	if err != nil {
		return SweepResult{}, fmt.Errorf("listing due communities: %w", err)
	}
	if len(ids) == 0 {
		return SweepResult{}, nil
	}
	s.Log.WithField("due", len(ids)).Debug("Sweeping due communities")

	var ok, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := s.Process(gctx, id); err != nil {
				failed.Add(1)
				s.Log.WithError(err).WithField("community_id", id).Error("Failed to process community")
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res := SweepResult{Due: len(ids), OK: int(ok.Load()), Failed: int(failed.Load())}
	metrics.RecordSweep(s.Clock.Since(start), res.OK, res.Failed)
	s.Log.WithFields(logrus.Fields{"due": res.Due, "ok": res.OK, "failed": res.Failed}).Info("Payout sweep finished")
	return res, nil
}

// Process runs one scheduling pass over a single community.
func (s *PayoutSweeper) Process(ctx context.Context, id uuid.UUID) error {
	c, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !c.IsDue(s.now()) {
		return nil
	}

	if c.AwaitingNextCycle() {
		return s.finalize(ctx, id)
	}

	mc := c.OpenMidCycle()
	if mc == nil {
		return nil
	}
	if !mc.IsReady {
		if err := s.evaluate(ctx, id); err != nil {
			return err
		}
		if c, err = s.load(ctx, id); err != nil {
			return err
		}
		if mc = c.OpenMidCycle(); mc == nil || !mc.IsReady {
			return nil
		}
	}

	payout, err := distribute(ctx, &s.core, id, mc.NextInLine)
	switch {
	case errors.Is(err, community.ErrPayoutLocked):
		s.Log.WithField("community_id", id).Info("Payout locked, skipping distribution")
		return nil
	case errors.Is(err, community.ErrNoMidCycleReady):
		s.Log.WithError(err).WithField("community_id", id).Debug("Round no longer ready")
		return nil
	case err != nil:
		return err
	}
	if payout.CycleClosed {
		return s.finalize(ctx, id)
	}
	return nil
}

// evaluate handles a round that reached its payout time without being fully funded.
// The wallets of members who missed the round stay locked until the attempt commits.
func (s *PayoutSweeper) evaluate(ctx context.Context, id uuid.UUID) error {
	unlock := func() {}
	defer func() { unlock() }()

	return s.run(ctx, "evaluate", func(ctx context.Context, out *outbox) error {
		unlock()
		unlock = func() {}
		now := s.now()
		c, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		ready, err := c.UpdateReadiness(now)
		if err != nil {
			return err
		}
		if ready {
			return s.Communities.Save(ctx, c)
		}

		missed, err := c.RecordMissedContributions(now)
		if err != nil {
			return err
		}
		unlock = s.Locks.Lock(missed...)
		cid := c.ID
		for _, userID := range missed {
			w, err := s.optionalWallet(ctx, userID)
			if err != nil {
				return err
			}
			freeze, err := c.UpdateWalletForMissedContributions(userID, w, now)
			if err != nil {
				return err
			}
			if freeze {
				if err := s.Wallets.Save(ctx, w); err != nil {
					return err
				}
				metrics.WalletsFrozenTotal.Inc()
				out.add(userID, KindWalletFrozen, &cid,
					"%s: your wallet has been frozen after repeated missed contributions. Ask the admin to settle your penalties.", c.Name)
			}
			out.add(userID, KindMissedPayment, &cid,
				"%s: you missed the contribution for this round. A penalty of %s applies.", c.Name, c.Settings.PenaltyAmount.StringFixed(2))
		}

		if mc := c.OpenMidCycle(); mc != nil {
			skipped, err := c.SkipPayoutForDefaulters(mc.ID, now)
			if err != nil && !errors.Is(err, community.ErrNoEligibleMember) {
				return err
			}
			if skipped {
				s.announceMidCycle(out, c, mc)
			}
			if _, err := c.UpdateReadiness(now); err != nil {
				return err
			}
		}
		return s.Communities.Save(ctx, c)
	})
}

func (s *PayoutSweeper) finalize(ctx context.Context, id uuid.UUID) error {
	err := s.run(ctx, "finalize_cycle", func(ctx context.Context, out *outbox) error {
		c, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		mc, err := c.FinalizeCycle(s.now(), s.Shuffler)
		if err != nil {
			return err
		}
		s.announceMidCycle(out, c, mc)
		return s.Communities.Save(ctx, c)
	})
	if err != nil {
		return err
	}
	s.Log.WithField("community_id", id).Info("Cycle finalized, next cycle started")
	return nil
}
