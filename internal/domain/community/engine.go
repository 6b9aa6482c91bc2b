package community

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"savings_circle_bot/internal/domain/wallet"
)

// StartFirstCycle assigns first-cycle positions, creates cycle 1 and opens its first mid-cycle.
func (c *Community) StartFirstCycle(now time.Time, shuffler Shuffler) (*MidCycle, error) {
	if len(c.Cycles) > 0 {
		return nil, ErrCyclesExist
	}
	if len(c.ActiveMembers()) < c.Settings.FirstCycleMin {
		return nil, ErrInsufficientMembers
	}
	if err := c.AssignFirstCyclePositions(shuffler); err != nil {
		return nil, err
	}
	c.Cycles = append(c.Cycles, Cycle{Number: 1, StartDate: now})
	return c.StartMidCycle(now)
}

// StartMidCycle opens the next payout round of the active cycle. The recipient is the
// active member at position (rounds so far + 1); an inactive member holding that position
// is recorded as a defaulter and the next eligible position is used instead.
func (c *Community) StartMidCycle(now time.Time) (*MidCycle, error) {
	cycle := c.ActiveCycle()
	if cycle == nil {
		return nil, ErrNoActiveCycle
	}
	if c.OpenMidCycle() != nil {
		return nil, ErrMidCycleOpen
	}

	mc := MidCycle{
		ID:           uuid.New(),
		CycleNumber:  cycle.Number,
		PayoutAmount: decimal.Zero,
		CreatedAt:    now,
	}
	target := len(cycle.MidCycleIDs) + 1
	for i := range c.Members {
		m := &c.Members[i]
		if m.Position == target && m.Status == StatusInactive && !cycle.HasPaid(m.UserID) {
			mc.addDefaulter(m.UserID)
		}
	}
	recipient := c.nextEligible(cycle, target, mc.isDefaulter)
	if recipient == "" {
		return nil, ErrNoEligibleMember
	}
	mc.NextInLine = recipient
	for _, carried := range c.Carried {
		mc.contributor(carried.ContributorID).add(recipient, carried.Amount, carried.Date)
	}
	c.Carried = nil

	c.MidCycles = append(c.MidCycles, mc)
	cycle.MidCycleIDs = append(cycle.MidCycleIDs, mc.ID)
	c.NextPayout = c.Settings.ContributionFrequency.Next(now)
	c.PayoutDetails = PayoutDetails{NextRecipient: recipient, CycleNumber: cycle.Number, PayoutAmount: decimal.Zero}
	c.touch(now)
	return &c.MidCycles[len(c.MidCycles)-1], nil
}

// nextEligible picks the unpaid active member with the lowest position at or after from,
// wrapping to earlier positions that were skipped.
func (c *Community) nextEligible(cycle *Cycle, from int, skip func(string) bool) string {
	ahead, behind := "", ""
	aheadPos, behindPos := 0, 0
	for i := range c.Members {
		m := &c.Members[i]
		if m.Status != StatusActive || m.Position == 0 || cycle.HasPaid(m.UserID) {
			continue
		}
		if skip != nil && skip(m.UserID) {
			continue
		}
		if m.Position >= from {
			if ahead == "" || m.Position < aheadPos {
				ahead, aheadPos = m.UserID, m.Position
			}
		} else if behind == "" || m.Position < behindPos {
			behind, behindPos = m.UserID, m.Position
		}
	}
	if ahead != "" {
		return ahead
	}
	return behind
}

// UpdateReadiness marks the open mid-cycle ready once every active member has contributed.
// Readiness never reverts; the payout amount is the round's contributions net of the
// backup-fund share.
func (c *Community) UpdateReadiness(now time.Time) (bool, error) {
	mc := c.OpenMidCycle()
	if mc == nil {
		return false, ErrNoActiveMidCycle
	}
	if mc.IsReady {
		return true, nil
	}
	if !c.IsReady(mc, c.ActiveMembers()) {
		return false, nil
	}

	total := TotalFor(mc)
	mc.IsReady = true
	mc.PayoutAmount = total.Sub(c.backupDeduction(total))
	c.NextPayout = c.Settings.ContributionFrequency.Next(now)
	c.PayoutDetails = PayoutDetails{
		NextRecipient: mc.NextInLine,
		CycleNumber:   mc.CycleNumber,
		PayoutAmount:  mc.PayoutAmount,
	}
	c.touch(now)
	return true, nil
}

// DistributePayouts pays the ready mid-cycle into the recipient's wallet, closes the round
// and either opens the next one or completes the cycle. A second call for the same round
// finds no ready mid-cycle and changes nothing.
func (c *Community) DistributePayouts(w *wallet.Wallet, now time.Time) (*Payout, error) {
	if c.LockPayout {
		return nil, ErrPayoutLocked
	}
	cycle := c.ActiveCycle()
	mc := c.OpenMidCycle()
	if cycle == nil || mc == nil || !mc.IsReady {
		return nil, ErrNoMidCycleReady
	}
	recipient := c.Member(mc.NextInLine)
	if recipient == nil || recipient.Status != StatusActive {
		return nil, ErrIneligibleRecipient
	}
	if !mc.PayoutAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if w == nil || w.UserID != recipient.UserID {
		return nil, wallet.ErrWalletNotFound
	}

	communityID := c.ID
	err := w.Credit(wallet.Entry{
		Amount:      mc.PayoutAmount,
		Type:        wallet.TxPayout,
		Description: fmt.Sprintf("%s payout, cycle %d", c.Name, cycle.Number),
		CommunityID: &communityID,
	}, now)
	if err != nil {
		return nil, fmt.Errorf("crediting payout: %w", err)
	}

	mc.IsComplete = true
	mc.PayoutDate = now
	cycle.PaidMembers = append(cycle.PaidMembers, recipient.UserID)
	payout := &Payout{
		CommunityID: c.ID,
		MidCycleID:  mc.ID,
		CycleNumber: cycle.Number,
		RecipientID: recipient.UserID,
		Amount:      mc.PayoutAmount,
	}

	for i := range c.Members {
		m := &c.Members[i]
		m.ContributionPaid = false
		if m.Status == StatusWaiting {
			m.Status = StatusActive
			if m.Position == 0 {
				m.Position = c.maxPosition() + 1
			}
		}
	}

	if c.allActivePaid(cycle) {
		c.closeCycle(cycle, now)
		payout.CycleClosed = true
		c.touch(now)
		return payout, nil
	}

	next, err := c.StartMidCycle(now)
	if errors.Is(err, ErrNoEligibleMember) {
		// remaining unpaid members are all defaulters
		c.closeCycle(cycle, now)
		payout.CycleClosed = true
		c.touch(now)
		return payout, nil
	}
	if err != nil {
		return nil, err
	}
	payout.NextMidCycle = next
	return payout, nil
}

func (c *Community) allActivePaid(cycle *Cycle) bool {
	for _, m := range c.ActiveMembers() {
		if !cycle.HasPaid(m.UserID) {
			return false
		}
	}
	return true
}

func (c *Community) closeCycle(cycle *Cycle, now time.Time) {
	cycle.IsComplete = true
	cycle.EndDate = now
	c.PayoutDetails = PayoutDetails{CycleNumber: cycle.Number, PayoutAmount: decimal.Zero}
}

// UpdatePayoutInfo refreshes the payout snapshot for the open mid-cycle.
func (c *Community) UpdatePayoutInfo(now time.Time) {
	mc := c.OpenMidCycle()
	if mc == nil {
		return
	}
	amount := mc.PayoutAmount
	if !mc.IsReady {
		total := TotalFor(mc)
		amount = total.Sub(c.backupDeduction(total))
	}
	c.PayoutDetails = PayoutDetails{
		NextRecipient: mc.NextInLine,
		CycleNumber:   mc.CycleNumber,
		PayoutAmount:  amount,
	}
	if c.NextPayout.IsZero() {
		c.NextPayout = c.Settings.ContributionFrequency.Next(now)
	}
	c.touch(now)
}

// AwaitingNextCycle reports whether the last cycle closed and no successor was created.
func (c *Community) AwaitingNextCycle() bool {
	return len(c.Cycles) > 0 && c.ActiveCycle() == nil
}

// IsDue reports whether the payout sweep has work to do for this community.
func (c *Community) IsDue(now time.Time) bool {
	if c.AwaitingNextCycle() {
		return true
	}
	return !c.NextPayout.IsZero() && !c.NextPayout.After(now) && c.HasOpenMidCycle()
}

// FinalizeCycle closes the latest cycle once all its rounds are paid, applies resolved
// votes in the between-cycle window and starts the next cycle.
func (c *Community) FinalizeCycle(now time.Time, shuffler Shuffler) (*MidCycle, error) {
	latest := c.LatestCycle()
	if latest == nil {
		return nil, ErrNoActiveCycle
	}
	if !latest.IsComplete {
		for _, id := range latest.MidCycleIDs {
			if mc := c.MidCycle(id); mc == nil || !mc.IsComplete {
				return nil, ErrIncompleteMidCycles
			}
		}
		if !c.allActivePaid(latest) {
			return nil, ErrIncompleteMidCycles
		}
		c.closeCycle(latest, now)
	}

	if _, err := c.ApplyResolvedVotes(now); err != nil {
		return nil, err
	}
	return c.PrepareForNextCycle(now, shuffler)
}

// PrepareForNextCycle resets per-cycle member state, reorders positions according to the
// positioning mode and opens the first round of the next cycle.
func (c *Community) PrepareForNextCycle(now time.Time, shuffler Shuffler) (*MidCycle, error) {
	if c.ActiveCycle() != nil {
		return nil, ErrCycleActive
	}

	for i := range c.Members {
		m := &c.Members[i]
		m.ContributionPaid = false
		m.MissedContributions = nil
		m.Status = StatusActive
	}

	if c.PositioningMode == PositioningRandom {
		positions := make([]int, len(c.Members))
		for i := range positions {
			positions[i] = i + 1
		}
		shuffler.Shuffle(len(positions), func(i, j int) {
			positions[i], positions[j] = positions[j], positions[i]
		})
		for i := range c.Members {
			c.Members[i].Position = positions[i]
		}
	} else {
		c.compactPositions()
	}

	number := 1
	if latest := c.LatestCycle(); latest != nil {
		number = latest.Number + 1
	}
	c.Cycles = append(c.Cycles, Cycle{Number: number, StartDate: now})
	return c.StartMidCycle(now)
}

// compactPositions keeps the existing order, appends unpositioned members and renumbers 1..N.
func (c *Community) compactPositions() {
	order := make([]int, len(c.Members))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		pa, pb := c.Members[order[a]].Position, c.Members[order[b]].Position
		if pa == 0 || pb == 0 {
			return pb == 0 && pa != 0
		}
		return pa < pb
	})
	for rank, idx := range order {
		c.Members[idx].Position = rank + 1
	}
}
