package community

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shuffler permutes n elements in place; *math/rand/v2.Rand satisfies it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// underway reports whether payout rounds have begun.
func (c *Community) underway() bool {
	return len(c.Cycles) > 1 || len(c.MidCycles) > 0
}

// RequiredJoinContribution is the catch-up amount a new member owes once rounds have begun.
func (c *Community) RequiredJoinContribution() decimal.Decimal {
	minimum := c.Settings.MinContribution
	if !c.underway() {
		return decimal.Zero
	}
	missed := 0
	if cycle := c.ActiveCycle(); cycle != nil {
		missed = len(cycle.MidCycleIDs)
	}
	members := len(c.ActiveMembers())
	if missed == 0 || members == 0 {
		return minimum
	}

	missedAmount := minimum.Mul(decimal.NewFromInt(int64(missed)))
	if missed*2 <= members {
		return minimum.Add(missedAmount.Mul(decimal.NewFromFloat(0.5)))
	}
	fraction := decimal.NewFromInt(int64(missed)).Div(decimal.NewFromInt(int64(members)))
	return minimum.Add(fraction.Mul(missedAmount))
}

// AddMember admits a user. Before rounds begin the member is active without a position;
// afterwards the catch-up contribution is required and the member waits for the open
// mid-cycle to close with a position appended to the end of the order. The catch-up goes
// to the open round's recipient, or to the next round when none is open.
func (c *Community) AddMember(userID, name, email string, contribution decimal.Decimal, now time.Time) (*Member, error) {
	if c.Member(userID) != nil {
		return nil, ErrAlreadyMember
	}
	if len(c.Members) >= c.Settings.MaxMembers {
		return nil, ErrCommunityFull
	}

	m := Member{
		UserID:      userID,
		Name:        name,
		Email:       email,
		Status:      StatusActive,
		Penalty:     decimal.Zero,
		PaymentPlan: PaymentPlan{Type: PlanFull, RemainingAmount: decimal.Zero},
		JoinedAt:    now,
	}
	if c.HasOpenMidCycle() {
		m.Status = StatusWaiting
	}

	if c.underway() {
		required := c.RequiredJoinContribution()
		if contribution.LessThan(required) {
			return nil, ErrInsufficientContribution
		}
		m.Position = c.maxPosition() + 1
		if contribution.IsPositive() {
			c.pool(userID, contribution, now)
		}
	}

	c.Members = append(c.Members, m)
	c.touch(now)
	return &c.Members[len(c.Members)-1], nil
}

// AssignFirstCyclePositions puts the admin at position 1 and the remaining active
// members on a random permutation of 2..N.
func (c *Community) AssignFirstCyclePositions(shuffler Shuffler) error {
	admin := c.Member(c.AdminID)
	if admin == nil {
		return ErrAdminMissing
	}
	active := c.ActiveMembers()
	if len(active) < c.Settings.FirstCycleMin || admin.Status != StatusActive {
		return ErrInsufficientMembers
	}

	others := make([]*Member, 0, len(active)-1)
	for _, m := range active {
		if m.UserID != admin.UserID {
			others = append(others, m)
		}
	}
	positions := make([]int, len(others))
	for i := range positions {
		positions[i] = i + 2
	}
	shuffler.Shuffle(len(positions), func(i, j int) {
		positions[i], positions[j] = positions[j], positions[i]
	})

	for i := range c.Members {
		c.Members[i].Position = 0
	}
	admin.Position = 1
	for i, m := range others {
		m.Position = positions[i]
	}
	return nil
}

// Reactivate restores an inactive member who pays the reactivation amount. The payment
// is recorded against the open mid-cycle's recipient, or carried to the next round.
func (c *Community) Reactivate(userID string, contribution decimal.Decimal, now time.Time) error {
	m := c.Member(userID)
	if m == nil {
		return ErrMemberNotFound
	}
	if m.Status != StatusInactive {
		return ErrAlreadyActive
	}
	required := c.ReactivationAmount()
	if contribution.LessThan(required) {
		return ErrInsufficientContribution
	}

	m.Status = StatusActive
	m.Penalty = decimal.Zero
	m.MissedContributions = nil

	if mc := c.OpenMidCycle(); mc != nil {
		if err := c.RecordContribution(mc.ID, userID, []Contribution{{RecipientID: mc.NextInLine, Amount: contribution}}, now); err != nil {
			return err
		}
	} else {
		c.pool(userID, contribution, now)
	}
	m.ContributionPaid = true
	c.touch(now)
	return nil
}

// ReactivationAmount is what an inactive member pays to return.
func (c *Community) ReactivationAmount() decimal.Decimal {
	s := c.Settings
	return s.MinContribution.Add(s.PenaltyAmount.Mul(decimal.NewFromInt(int64(s.NumMissContribution))))
}

func (c *Community) maxPosition() int {
	highest := 0
	for i := range c.Members {
		if c.Members[i].Position > highest {
			highest = c.Members[i].Position
		}
	}
	return highest
}
