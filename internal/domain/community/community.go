// internal/domain/community/community.go
package community

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Community is the aggregate root. Cycles, mid-cycles, members and votes are owned
// by value and reference each other by cycle number, mid-cycle id and user id.
type Community struct {
	ID                 uuid.UUID       `json:"id"`
	Name               string          `json:"name"`
	Description        string          `json:"description,omitempty"`
	AdminID            string          `json:"adminId"`
	Settings           Settings        `json:"settings"`
	PositioningMode    PositioningMode `json:"positioningMode"`
	LockPayout         bool            `json:"lockPayout"`
	TotalContribution  decimal.Decimal `json:"totalContribution"`
	BackupFund         decimal.Decimal `json:"backupFund"`
	CollectedPenalties decimal.Decimal `json:"collectedPenalties"`
	NextPayout         time.Time       `json:"nextPayout"`
	PayoutDetails      PayoutDetails   `json:"payoutDetails"`
	Members            []Member        `json:"members"`
	Cycles             []Cycle         `json:"cycles"`
	MidCycles          []MidCycle      `json:"midCycles"`
	Carried            []CarriedAmount `json:"carried"`
	Votes              []Vote          `json:"votes"`
	Version            int64           `json:"version"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          time.Time       `json:"updatedAt"`
}

// PositioningMode controls how payout order is chosen for each new cycle.
type PositioningMode string

const (
	PositioningRandom PositioningMode = "Random"
	PositioningFixed  PositioningMode = "Fixed"
)

// MemberStatus is a member's participation state.
type MemberStatus string

const (
	StatusActive   MemberStatus = "active"
	StatusWaiting  MemberStatus = "waiting"
	StatusInactive MemberStatus = "inactive"
)

// PaymentPlanType is how a member settles contributions.
type PaymentPlanType string

const (
	PlanFull        PaymentPlanType = "Full"
	PlanIncremental PaymentPlanType = "Incremental"
	PlanShortfall   PaymentPlanType = "Shortfall"
)

// PaymentPlan tracks a member's contribution plan.
type PaymentPlan struct {
	Type            PaymentPlanType `json:"type"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	Installments    int             `json:"installments"`
}

// MissedContribution records a mid-cycle a member failed to fund.
type MissedContribution struct {
	CycleNumber int             `json:"cycleNumber"`
	MidCycleID  uuid.UUID       `json:"midCycleId"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
}

// Member is a participant of the community.
type Member struct {
	UserID              string               `json:"userId"`
	Name                string               `json:"name"`
	Email               string               `json:"email"`
	Position            int                  `json:"position"` // 0 until assigned
	Status              MemberStatus         `json:"status"`
	ContributionPaid    bool                 `json:"contributionPaid"`
	Penalty             decimal.Decimal      `json:"penalty"`
	MissedContributions []MissedContribution `json:"missedContributions"`
	PaymentPlan         PaymentPlan          `json:"paymentPlan"`
	JoinedAt            time.Time            `json:"joinedAt"`
}

// Cycle is one full rotation in which every active member is paid once.
type Cycle struct {
	Number      int         `json:"cycleNumber"`
	MidCycleIDs []uuid.UUID `json:"midCycleIds"`
	IsComplete  bool        `json:"isComplete"`
	StartDate   time.Time   `json:"startDate"`
	EndDate     time.Time   `json:"endDate"`
	PaidMembers []string    `json:"paidMembers"`
}

// HasPaid reports whether userID was paid in this cycle.
func (c *Cycle) HasPaid(userID string) bool {
	for _, id := range c.PaidMembers {
		if id == userID {
			return true
		}
	}
	return false
}

// Contribution is an amount directed at one recipient.
type Contribution struct {
	RecipientID string          `json:"recipientId"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
}

// Contributor groups the contributions one member made within a mid-cycle.
type Contributor struct {
	ContributorID string         `json:"contributorId"`
	Contributions []Contribution `json:"contributions"`
}

// CarriedAmount is money paid while no round was open. It joins the pot of the next round.
type CarriedAmount struct {
	ContributorID string          `json:"contributorId"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
}

// MidCycle is a single payout round within a cycle.
type MidCycle struct {
	ID           uuid.UUID       `json:"id"`
	CycleNumber  int             `json:"cycleNumber"`
	NextInLine   string          `json:"nextInLine"`
	Contributors []Contributor   `json:"contributors"`
	Defaulters   []string        `json:"defaulters"`
	IsReady      bool            `json:"isReady"`
	IsComplete   bool            `json:"isComplete"`
	PayoutAmount decimal.Decimal `json:"payoutAmount"`
	PayoutDate   time.Time       `json:"payoutDate"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func (mc *MidCycle) isDefaulter(userID string) bool {
	for _, id := range mc.Defaulters {
		if id == userID {
			return true
		}
	}
	return false
}

func (mc *MidCycle) addDefaulter(userID string) {
	if !mc.isDefaulter(userID) {
		mc.Defaulters = append(mc.Defaulters, userID)
	}
}

// PayoutDetails is the snapshot shown to members about the upcoming payout.
type PayoutDetails struct {
	NextRecipient string          `json:"nextRecipient"`
	CycleNumber   int             `json:"cycleNumber"`
	PayoutAmount  decimal.Decimal `json:"payoutAmount"`
}

// Payout is the effect of a distributed mid-cycle, applied to the recipient wallet by the caller.
type Payout struct {
	CommunityID  uuid.UUID
	MidCycleID   uuid.UUID
	CycleNumber  int
	RecipientID  string
	Amount       decimal.Decimal
	CycleClosed  bool
	NextMidCycle *MidCycle
}

// New creates a community whose admin is its first member.
func New(name, description string, admin Member, settings Settings, mode PositioningMode, now time.Time) (*Community, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	if admin.UserID == "" {
		return nil, ErrAdminMissing
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if mode == "" {
		mode = PositioningRandom
	}
	if mode != PositioningRandom && mode != PositioningFixed {
		return nil, ErrInvalidPositioningMode
	}

	c := &Community{
		ID:                 uuid.New(),
		Name:               name,
		Description:        description,
		AdminID:            admin.UserID,
		Settings:           settings,
		PositioningMode:    mode,
		TotalContribution:  decimal.Zero,
		BackupFund:         decimal.Zero,
		CollectedPenalties: decimal.Zero,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	admin.Status = StatusActive
	admin.Penalty = decimal.Zero
	admin.PaymentPlan = PaymentPlan{Type: PlanFull, RemainingAmount: decimal.Zero}
	admin.JoinedAt = now
	c.Members = append(c.Members, admin)
	return c, nil
}

// Member returns the member with userID, or nil.
func (c *Community) Member(userID string) *Member {
	for i := range c.Members {
		if c.Members[i].UserID == userID {
			return &c.Members[i]
		}
	}
	return nil
}

// ActiveMembers returns the members whose status is active.
func (c *Community) ActiveMembers() []*Member {
	active := make([]*Member, 0, len(c.Members))
	for i := range c.Members {
		if c.Members[i].Status == StatusActive {
			active = append(active, &c.Members[i])
		}
	}
	return active
}

// MidCycle returns the mid-cycle with id, or nil.
func (c *Community) MidCycle(id uuid.UUID) *MidCycle {
	for i := range c.MidCycles {
		if c.MidCycles[i].ID == id {
			return &c.MidCycles[i]
		}
	}
	return nil
}

// ActiveCycle returns the cycle that is not complete, or nil.
func (c *Community) ActiveCycle() *Cycle {
	for i := range c.Cycles {
		if !c.Cycles[i].IsComplete {
			return &c.Cycles[i]
		}
	}
	return nil
}

// LatestCycle returns the cycle with the highest number, or nil.
func (c *Community) LatestCycle() *Cycle {
	if len(c.Cycles) == 0 {
		return nil
	}
	return &c.Cycles[len(c.Cycles)-1]
}

// OpenMidCycle returns the incomplete mid-cycle of the active cycle, or nil.
func (c *Community) OpenMidCycle() *MidCycle {
	cycle := c.ActiveCycle()
	if cycle == nil {
		return nil
	}
	for i := range c.MidCycles {
		mc := &c.MidCycles[i]
		if mc.CycleNumber == cycle.Number && !mc.IsComplete {
			return mc
		}
	}
	return nil
}

// HasOpenMidCycle reports whether a payout round is in progress.
func (c *Community) HasOpenMidCycle() bool {
	return c.OpenMidCycle() != nil
}

// HasReceivedPayout reports whether userID has been paid by this community in any cycle.
func (c *Community) HasReceivedPayout(userID string) bool {
	for i := range c.Cycles {
		if c.Cycles[i].HasPaid(userID) {
			return true
		}
	}
	return false
}

func (c *Community) backupDeduction(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(c.Settings.BackupFundPercentage).Div(hundred)
}

func (c *Community) touch(now time.Time) {
	c.UpdatedAt = now
}

var hundred = decimal.NewFromInt(100)
