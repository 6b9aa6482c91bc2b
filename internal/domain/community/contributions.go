package community

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordContribution adds contributions from contributorID to the mid-cycle. Entries for a
// recipient the contributor already funded in this mid-cycle are summed into one.
func (c *Community) RecordContribution(midCycleID uuid.UUID, contributorID string, contributions []Contribution, now time.Time) error {
	m := c.Member(contributorID)
	if m == nil {
		return ErrNotAMember
	}
	switch m.Status {
	case StatusWaiting:
		return ErrMemberWaiting
	case StatusInactive:
		return ErrMemberInactive
	}

	mc := c.MidCycle(midCycleID)
	if mc == nil || mc.IsComplete {
		return ErrNoActiveMidCycle
	}
	if len(contributions) == 0 {
		return ErrInvalidAmount
	}

	sum := decimal.Zero
	for _, in := range contributions {
		if !in.Amount.IsPositive() {
			return ErrInvalidAmount
		}
		if c.Member(in.RecipientID) == nil {
			return fmt.Errorf("recipient %s: %w", in.RecipientID, ErrNotAMember)
		}
		sum = sum.Add(in.Amount)
	}

	entry := mc.contributor(contributorID)
	for _, in := range contributions {
		entry.add(in.RecipientID, in.Amount, now)
	}

	c.TotalContribution = c.TotalContribution.Add(sum)
	c.BackupFund = c.BackupFund.Add(c.backupDeduction(sum))
	m.ContributionPaid = true
	if mc.IsReady {
		// late contributions still reach the recipient
		total := TotalFor(mc)
		mc.PayoutAmount = total.Sub(c.backupDeduction(total))
	}
	c.touch(now)
	return nil
}

// pool adds amount paid by contributorID outside the regular contribution flow to the
// open round's recipient, or carries it to the next round when none is open.
func (c *Community) pool(contributorID string, amount decimal.Decimal, now time.Time) {
	c.TotalContribution = c.TotalContribution.Add(amount)
	c.BackupFund = c.BackupFund.Add(c.backupDeduction(amount))

	mc := c.OpenMidCycle()
	if mc == nil {
		c.Carried = append(c.Carried, CarriedAmount{ContributorID: contributorID, Amount: amount, Date: now})
		return
	}
	mc.contributor(contributorID).add(mc.NextInLine, amount, now)
	if mc.IsReady {
		total := TotalFor(mc)
		mc.PayoutAmount = total.Sub(c.backupDeduction(total))
	}
}

// IsReady reports whether every active member has contributed at least the minimum
// to the mid-cycle's recipient.
func (c *Community) IsReady(mc *MidCycle, active []*Member) bool {
	if mc == nil || len(active) == 0 {
		return false
	}
	for _, m := range active {
		if ContributedTo(mc, m.UserID, mc.NextInLine).LessThan(c.Settings.MinContribution) {
			return false
		}
	}
	return true
}

// TotalFor sums every contribution recorded in the mid-cycle.
func TotalFor(mc *MidCycle) decimal.Decimal {
	total := decimal.Zero
	for _, ct := range mc.Contributors {
		for _, in := range ct.Contributions {
			total = total.Add(in.Amount)
		}
	}
	return total
}

// ContributedTo sums what contributorID gave recipientID in the mid-cycle.
func ContributedTo(mc *MidCycle, contributorID, recipientID string) decimal.Decimal {
	total := decimal.Zero
	for _, ct := range mc.Contributors {
		if ct.ContributorID != contributorID {
			continue
		}
		for _, in := range ct.Contributions {
			if in.RecipientID == recipientID {
				total = total.Add(in.Amount)
			}
		}
	}
	return total
}

func (mc *MidCycle) contributor(userID string) *Contributor {
	for i := range mc.Contributors {
		if mc.Contributors[i].ContributorID == userID {
			return &mc.Contributors[i]
		}
	}
	mc.Contributors = append(mc.Contributors, Contributor{ContributorID: userID})
	return &mc.Contributors[len(mc.Contributors)-1]
}

func (ct *Contributor) add(recipientID string, amount decimal.Decimal, now time.Time) {
	for i := range ct.Contributions {
		if ct.Contributions[i].RecipientID == recipientID {
			ct.Contributions[i].Amount = ct.Contributions[i].Amount.Add(amount)
			ct.Contributions[i].Date = now
			return
		}
	}
	ct.Contributions = append(ct.Contributions, Contribution{RecipientID: recipientID, Amount: amount, Date: now})
}

// retarget moves contributions aimed at from onto to.
func (mc *MidCycle) retarget(from, to string, now time.Time) {
	for i := range mc.Contributors {
		ct := &mc.Contributors[i]
		moved := decimal.Zero
		kept := ct.Contributions[:0]
		for _, in := range ct.Contributions {
			if in.RecipientID == from {
				moved = moved.Add(in.Amount)
				continue
			}
			kept = append(kept, in)
		}
		ct.Contributions = kept
		if moved.IsPositive() {
			ct.add(to, moved, now)
		}
	}
}
