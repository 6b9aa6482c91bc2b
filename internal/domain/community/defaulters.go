package community

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"savings_circle_bot/internal/domain/wallet"
)

// SkipPayoutForDefaulters moves the mid-cycle's payout away from an inactive recipient.
// Contributions already aimed at the defaulter follow the payout to the new recipient.
// It reports whether the recipient changed.
func (c *Community) SkipPayoutForDefaulters(midCycleID uuid.UUID, now time.Time) (bool, error) {
	mc := c.MidCycle(midCycleID)
	if mc == nil {
		return false, ErrMidCycleNotFound
	}
	current := c.Member(mc.NextInLine)
	if current == nil || current.Status != StatusInactive {
		return false, nil
	}
	cycle := c.cycleByNumber(mc.CycleNumber)
	if cycle == nil {
		return false, ErrNoActiveCycle
	}

	mc.addDefaulter(current.UserID)
	next := c.nextEligible(cycle, current.Position+1, mc.isDefaulter)
	if next == "" {
		return false, ErrNoEligibleMember
	}
	mc.retarget(current.UserID, next, now)
	mc.NextInLine = next
	c.PayoutDetails = PayoutDetails{NextRecipient: next, CycleNumber: mc.CycleNumber, PayoutAmount: mc.PayoutAmount}
	c.touch(now)
	return true, nil
}

// RecordMissedContributions closes the contribution window of an overdue mid-cycle: every
// active member who has not funded the recipient gets a missed contribution and is listed
// as a defaulter. The payout time rolls forward one period. Returns the affected user ids.
func (c *Community) RecordMissedContributions(now time.Time) ([]string, error) {
	mc := c.OpenMidCycle()
	if mc == nil {
		return nil, ErrNoActiveMidCycle
	}
	if mc.IsReady {
		return nil, nil
	}

	var missed []string
	for _, m := range c.ActiveMembers() {
		if !ContributedTo(mc, m.UserID, mc.NextInLine).LessThan(c.Settings.MinContribution) {
			continue
		}
		m.MissedContributions = append(m.MissedContributions, MissedContribution{
			CycleNumber: mc.CycleNumber,
			MidCycleID:  mc.ID,
			Amount:      c.Settings.MinContribution,
			Date:        now,
		})
		mc.addDefaulter(m.UserID)
		missed = append(missed, m.UserID)
	}
	c.NextPayout = c.Settings.ContributionFrequency.Next(now)
	c.touch(now)
	return missed, nil
}

// UpdateWalletForMissedContributions deactivates a member who reached the missed
// contribution threshold and freezes w when the member was already paid out and still
// holds funds. Returns whether w was frozen. w may be nil when the member has no wallet.
func (c *Community) UpdateWalletForMissedContributions(userID string, w *wallet.Wallet, now time.Time) (bool, error) {
	m := c.Member(userID)
	if m == nil {
		return false, ErrMemberNotFound
	}
	if len(m.MissedContributions) < c.Settings.NumMissContribution {
		return false, nil
	}

	m.Status = StatusInactive
	c.touch(now)
	if w == nil || !c.HasReceivedPayout(userID) || !w.AvailableBalance.IsPositive() {
		return false, nil
	}
	w.Freeze(now)
	return true, nil
}

// DeductPenaltiesFromWallet collects owed penalties from a paid-out member. What the
// wallet cannot cover is carried on the member. The wallet is unfrozen and the member
// reactivated afterwards. Returns the amount collected.
func (c *Community) DeductPenaltiesFromWallet(userID string, w *wallet.Wallet, now time.Time) (decimal.Decimal, error) {
	m := c.Member(userID)
	if m == nil {
		return decimal.Zero, ErrMemberNotFound
	}
	if !c.HasReceivedPayout(userID) {
		return decimal.Zero, nil
	}
	if w == nil {
		return decimal.Zero, wallet.ErrWalletNotFound
	}

	owed := c.missedPenalty(m).Add(m.Penalty)
	taken := decimal.Zero
	if owed.IsPositive() {
		communityID := c.ID
		taken = w.DeductUpTo(wallet.Entry{
			Amount:      owed,
			Type:        wallet.TxPenalty,
			Description: "penalty for missed contributions to " + c.Name,
			CommunityID: &communityID,
		}, now)
	}

	m.Penalty = owed.Sub(taken)
	c.CollectedPenalties = c.CollectedPenalties.Add(taken)
	w.Unfreeze(now)
	m.MissedContributions = nil
	m.Status = StatusActive
	c.touch(now)
	return taken, nil
}

// CalculateTotalOwed is what a paid-out member owes back: each payout received beyond
// the member's own net minimum contribution, plus penalties for missed rounds.
func (c *Community) CalculateTotalOwed(userID string) (decimal.Decimal, error) {
	m := c.Member(userID)
	if m == nil {
		return decimal.Zero, ErrMemberNotFound
	}
	if !c.HasReceivedPayout(userID) {
		return decimal.Zero, ErrNoPayoutRecord
	}

	fair := c.Settings.MinNetContribution()
	owed := decimal.Zero
	for i := range c.MidCycles {
		mc := &c.MidCycles[i]
		if mc.IsComplete && mc.NextInLine == userID {
			owed = owed.Add(mc.PayoutAmount.Sub(fair))
		}
	}
	return owed.Add(c.missedPenalty(m)), nil
}

func (c *Community) missedPenalty(m *Member) decimal.Decimal {
	return c.Settings.PenaltyAmount.Mul(decimal.NewFromInt(int64(len(m.MissedContributions))))
}

func (c *Community) cycleByNumber(number int) *Cycle {
	for i := range c.Cycles {
		if c.Cycles[i].Number == number {
			return &c.Cycles[i]
		}
	}
	return nil
}
