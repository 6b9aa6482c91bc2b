package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"savings_circle_bot/internal/domain/community"
	"savings_circle_bot/internal/domain/errs"
	"savings_circle_bot/internal/infra/metrics"
)

// ErrAdminNotAuthorized is returned when the performing user does not administer the community.
var ErrAdminNotAuthorized = errs.New(errs.ErrIneligible, "performing user is not the community admin")

// AdminService runs operations reserved for a community's admin.
type AdminService struct {
	core
}

func NewAdminService(d Deps) *AdminService {
	return &AdminService{core: newCore(d)}
}

func authorize(c *community.Community, performingUserID string) error {
	if c.AdminID != performingUserID {
		return ErrAdminNotAuthorized
	}
	return nil
}

// StartFirstCycle assigns positions and opens the first round without waiting for the
// member threshold to be reached by a join.
func (s *AdminService) StartFirstCycle(ctx context.Context, performingUserID string, communityID uuid.UUID) (*community.MidCycle, error) {
	var started community.MidCycle
	err := s.run(ctx, "start_first_cycle", func(ctx context.Context, out *outbox) error {
		c, err := s.load(ctx, communityID)
		if err != nil {
			return err
		}
		if err := authorize(c, performingUserID); err != nil {
			return err
		}
		mc, err := c.StartFirstCycle(s.now(), s.Shuffler)
		if err != nil {
			return err
		}
		started = *mc
		s.announceMidCycle(out, c, mc)
		return s.Communities.Save(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	s.Log.WithFields(logrus.Fields{"community_id": communityID, "next_in_line": started.NextInLine}).Info("First cycle started")
	return &started, nil
}

// SkipDefaulters moves the open round past an inactive recipient.
func (s *AdminService) SkipDefaulters(ctx context.Context, performingUserID string, communityID uuid.UUID) (bool, error) {
	skipped := false
	err := s.run(ctx, "skip_defaulters", func(ctx context.Context, out *outbox) error {
		c, err := s.load(ctx, communityID)
		if err != nil {
			return err
		}
		if err := authorize(c, performingUserID); err != nil {
			return err
		}
		mc := c.OpenMidCycle()
		if mc == nil {
			return community.ErrNoActiveMidCycle
		}
		skipped, err = c.SkipPayoutForDefaulters(mc.ID, s.now())
		if err != nil || !skipped {
			return err
		}
		s.announceMidCycle(out, c, mc)
		return s.Communities.Save(ctx, c)
	})
	return skipped, err
}

// FinalizeCycle closes a fully paid cycle, applies resolved votes and opens the next cycle.
func (s *AdminService) FinalizeCycle(ctx context.Context, performingUserID string, communityID uuid.UUID) (*community.MidCycle, error) {
	var first community.MidCycle
	err := s.run(ctx, "finalize_cycle", func(ctx context.Context, out *outbox) error {
		c, err := s.load(ctx, communityID)
		if err != nil {
			return err
		}
		if err := authorize(c, performingUserID); err != nil {
			return err
		}
		mc, err := c.FinalizeCycle(s.now(), s.Shuffler)
		if err != nil {
			return err
		}
		first = *mc
		s.announceMidCycle(out, c, mc)
		return s.Communities.Save(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return &first, nil
}

// DeductPenalties collects what memberID owes for missed contributions from their wallet
// and returns them to active status.
func (s *AdminService) DeductPenalties(ctx context.Context, performingUserID string, communityID uuid.UUID, memberID string) (decimal.Decimal, error) {
	unlock := s.Locks.Lock(memberID)
	defer unlock()

	taken := decimal.Zero
	skipped := false
	err := s.run(ctx, "deduct_penalties", func(ctx context.Context, out *outbox) error {
		now := s.now()
		c, err := s.load(ctx, communityID)
		if err != nil {
			return err
		}
		if err := authorize(c, performingUserID); err != nil {
			return err
		}
		if c.Member(memberID) == nil {
			return community.ErrMemberNotFound
		}
		if !c.HasReceivedPayout(memberID) {
			// penalties are collected only from members who were paid out
			skipped = true
			return nil
		}
		skipped = false
		w, err := s.optionalWallet(ctx, memberID)
		if err != nil {
			return err
		}
		wasFrozen := w != nil && w.IsFrozen
		taken, err = c.DeductPenaltiesFromWallet(memberID, w, now)
		if err != nil {
			return err
		}
		if taken.IsPositive() || wasFrozen {
			if err := s.Wallets.Save(ctx, w); err != nil {
				return err
			}
		}
		if _, err := c.UpdateReadiness(now); err != nil && !errors.Is(err, community.ErrNoActiveMidCycle) {
			return err
		}
		id := c.ID
		out.add(memberID, KindPenaltyDeducted, &id, "%s: %s was deducted from your wallet for missed contributions.", c.Name, taken.StringFixed(2))
		return s.Communities.Save(ctx, c)
	})
	if err != nil {
		return decimal.Zero, err
	}
	logger := s.Log.WithFields(logrus.Fields{"community_id": communityID, "user_id": memberID})
	if skipped {
		logger.Debug("Member has no payout, nothing to deduct")
		return decimal.Zero, nil
	}
	logger.WithField("amount", taken.String()).Info("Penalties deducted")
	return taken, nil
}

// SetPayoutLock pauses or resumes payout distribution.
func (s *AdminService) SetPayoutLock(ctx context.Context, performingUserID string, communityID uuid.UUID, locked bool) error {
	return s.run(ctx, "set_payout_lock", func(ctx context.Context, out *outbox) error {
		c, err := s.load(ctx, communityID)
		if err != nil {
			return err
		}
		if err := authorize(c, performingUserID); err != nil {
			return err
		}
		if c.LockPayout == locked {
			return nil
		}
		c.LockPayout = locked
		c.UpdatedAt = s.now()
		return s.Communities.Save(ctx, c)
	})
}

// Distribute pays the ready round immediately instead of waiting for the sweep.
func (s *AdminService) Distribute(ctx context.Context, performingUserID string, communityID uuid.UUID) (*community.Payout, error) {
	c, err := s.load(ctx, communityID)
	if err != nil {
		return nil, err
	}
	if err := authorize(c, performingUserID); err != nil {
		return nil, err
	}
	mc := c.OpenMidCycle()
	if mc == nil || !mc.IsReady {
		return nil, community.ErrNoMidCycleReady
	}
	return distribute(ctx, &s.core, communityID, mc.NextInLine)
}

// distribute pays the ready round of communityID to recipientID, locking the recipient's
// wallet for the duration.
func distribute(ctx context.Context, s *core, communityID uuid.UUID, recipientID string) (*community.Payout, error) {
	unlock := s.Locks.Lock(recipientID)
	defer unlock()

	var payout *community.Payout
	err := s.run(ctx, "distribute", func(ctx context.Context, out *outbox) error {
		now := s.now()
		c, err := s.load(ctx, communityID)
		if err != nil {
			return err
		}
		mc := c.OpenMidCycle()
		if mc == nil || !mc.IsReady {
			return community.ErrNoMidCycleReady
		}
		if mc.NextInLine != recipientID {
			// recipient changed since the round was inspected; the next sweep picks it up
			return fmt.Errorf("recipient of %s moved to %s: %w", communityID, mc.NextInLine, community.ErrNoMidCycleReady)
		}
		w, err := s.walletFor(ctx, recipientID)
		if err != nil {
			return err
		}
		p, err := c.DistributePayouts(w, now)
		if err != nil {
			return err
		}
		c.UpdatePayoutInfo(now)

		id := c.ID
		out.add(p.RecipientID, KindPayoutReceived, &id, "%s: %s has been paid into your wallet.", c.Name, p.Amount.StringFixed(2))
		if p.CycleClosed {
			s.notifyMembers(out, c, KindCycleCompleted, "%s: cycle %d is complete. Everyone has been paid.", c.Name, p.CycleNumber)
		} else {
			s.announceMidCycle(out, c, p.NextMidCycle)
		}

		if err := s.Wallets.Save(ctx, w); err != nil {
			return err
		}
		if err := s.Communities.Save(ctx, c); err != nil {
			return err
		}
		payout = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordPayout(payout.Amount, payout.CycleClosed)
	s.Log.WithFields(logrus.Fields{
		"community_id": communityID,
		"recipient":    payout.RecipientID,
		"amount":       payout.Amount.String(),
		"cycle_closed": payout.CycleClosed,
	}).Info("Payout distributed")
	return payout, nil
}
