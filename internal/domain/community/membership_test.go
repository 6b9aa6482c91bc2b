package community

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savings_circle_bot/internal/domain/wallet"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cname   string
		admin   Member
		mutate  func(*Settings)
		mode    PositioningMode
		wantErr error
	}{
		{name: "missing name", admin: Member{UserID: "u1"}, wantErr: ErrNameRequired},
		{name: "missing admin", cname: "c", wantErr: ErrAdminMissing},
		{name: "bad frequency", cname: "c", admin: Member{UserID: "u1"}, mutate: func(s *Settings) { s.ContributionFrequency = "Yearly" }, wantErr: ErrInvalidFrequency},
		{name: "zero minimum", cname: "c", admin: Member{UserID: "u1"}, mutate: func(s *Settings) { s.MinContribution = decimal.Zero }, wantErr: ErrInvalidAmount},
		{name: "first cycle above max", cname: "c", admin: Member{UserID: "u1"}, mutate: func(s *Settings) { s.FirstCycleMin = 11 }, wantErr: ErrInvalidSettings},
		{name: "backup at 100", cname: "c", admin: Member{UserID: "u1"}, mutate: func(s *Settings) { s.BackupFundPercentage = dec(100) }, wantErr: ErrInvalidSettings},
		{name: "bad mode", cname: "c", admin: Member{UserID: "u1"}, mode: "Alphabetical", wantErr: ErrInvalidPositioningMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings()
			if tt.mutate != nil {
				tt.mutate(&s)
			}
			_, err := New(tt.cname, "", tt.admin, s, tt.mode, t0)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNew_AdminIsFirstActiveMember(t *testing.T) {
	c, err := New("Circle", "weekly savers", Member{UserID: "u1", Name: "Ada"}, testSettings(), "", t0)
	require.NoError(t, err)
	assert.Equal(t, PositioningRandom, c.PositioningMode)
	require.Len(t, c.Members, 1)
	assert.Equal(t, StatusActive, c.Members[0].Status)
	assert.Equal(t, "u1", c.AdminID)
}

func TestAddMember(t *testing.T) {
	s := testSettings()
	s.MaxMembers = 5
	c := newCircle(t, s, 5)

	_, err := c.AddMember("u2", "dup", "", decimal.Zero, t0)
	assert.ErrorIs(t, err, ErrAlreadyMember)

	_, err = c.AddMember("u6", "late", "", decimal.Zero, t0)
	assert.ErrorIs(t, err, ErrCommunityFull)

	for _, m := range c.Members {
		assert.Equal(t, StatusActive, m.Status)
		assert.Zero(t, m.Position)
	}
}

func TestAddMember_CatchUpContribution(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	payRound(t, c, map[string]*wallet.Wallet{})

	// two rounds opened out of five members: 50 + 0.5 * 100
	assert.True(t, c.RequiredJoinContribution().Equal(dec(100)))

	_, err := c.AddMember("u6", "late", "", dec(99), t0)
	assert.ErrorIs(t, err, ErrInsufficientContribution)

	m, err := c.AddMember("u6", "late", "", dec(100), t0)
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, m.Status)
	assert.Equal(t, 6, m.Position)
	assert.True(t, c.TotalContribution.Equal(dec(350)))

	// waiting members cannot contribute until the round closes
	err = c.RecordContribution(c.OpenMidCycle().ID, "u6", []Contribution{{RecipientID: "u2", Amount: dec(50)}}, t0)
	assert.ErrorIs(t, err, ErrMemberWaiting)

	payRound(t, c, map[string]*wallet.Wallet{})
	assert.Equal(t, StatusActive, c.Member("u6").Status)
}

func TestAddMember_CatchUpIsPaidOut(t *testing.T) {
	tests := []struct {
		name       string
		backupPct  int64
		wantPayout []int64
	}{
		{name: "no backup fund", backupPct: 0, wantPayout: []int64{100, 250, 150}},
		{name: "ten percent backup", backupPct: 10, wantPayout: []int64{90, 225, 135}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings()
			s.FirstCycleMin = 2
			s.BackupFundPercentage = dec(tt.backupPct)
			c := startedCircle(t, s, 2)
			wallets := map[string]*wallet.Wallet{}

			paid := decimal.Zero
			p := payRound(t, c, wallets)
			paid = paid.Add(p.Amount)

			// two rounds opened with two members: 50 + 2/2 * 100
			required := c.RequiredJoinContribution()
			require.True(t, required.Equal(dec(150)))
			_, err := c.AddMember("u3", "late", "", required, t0)
			require.NoError(t, err)
			mc := c.OpenMidCycle()
			assert.True(t, ContributedTo(mc, "u3", mc.NextInLine).Equal(dec(150)))

			var got []int64
			got = append(got, p.Amount.IntPart())
			for !p.CycleClosed {
				p = payRound(t, c, wallets)
				paid = paid.Add(p.Amount)
				got = append(got, p.Amount.IntPart())
			}
			assert.Equal(t, tt.wantPayout, got)
			assert.True(t, c.TotalContribution.Equal(dec(500)))
			assert.True(t, paid.Equal(c.TotalContribution.Sub(c.BackupFund)),
				"paid %s, pooled %s, backup %s", paid, c.TotalContribution, c.BackupFund)
		})
	}
}

func TestAddMember_BetweenCyclesCarriesToNextRound(t *testing.T) {
	s := testSettings()
	s.FirstCycleMin = 3
	c := startedCircle(t, s, 3)
	wallets := map[string]*wallet.Wallet{}
	for !payRound(t, c, wallets).CycleClosed {
	}
	require.True(t, c.AwaitingNextCycle())

	m, err := c.AddMember("u4", "late", "", dec(50), t0)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, m.Status)
	require.Len(t, c.Carried, 1)

	mc, err := c.FinalizeCycle(t0, keepOrder{})
	require.NoError(t, err)
	assert.Empty(t, c.Carried)
	assert.True(t, ContributedTo(mc, "u4", mc.NextInLine).Equal(dec(50)))

	p := payRound(t, c, wallets)
	// four members fund the round on top of the carried 50
	assert.True(t, p.Amount.Equal(dec(250)))
}

func TestRequiredJoinContribution_LateInCycle(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	wallets := map[string]*wallet.Wallet{}
	for i := 0; i < 2; i++ {
		payRound(t, c, wallets)
	}
	// three rounds opened out of five: 50 + 3/5 * 150
	assert.True(t, c.RequiredJoinContribution().Equal(dec(140)))
}

func TestReactivate(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	c.Member("u3").Status = StatusInactive
	c.Member("u3").MissedContributions = []MissedContribution{{CycleNumber: 1, Amount: dec(50)}}

	err := c.Reactivate("u3", dec(79), t0)
	assert.ErrorIs(t, err, ErrInsufficientContribution)
	assert.Equal(t, StatusInactive, c.Member("u3").Status)

	require.NoError(t, c.Reactivate("u3", dec(80), t0))
	m := c.Member("u3")
	assert.Equal(t, StatusActive, m.Status)
	assert.True(t, m.ContributionPaid)
	assert.Empty(t, m.MissedContributions)
	assert.True(t, ContributedTo(c.OpenMidCycle(), "u3", "u1").Equal(dec(80)))

	assert.ErrorIs(t, c.Reactivate("u3", dec(80), t0), ErrAlreadyActive)
	assert.ErrorIs(t, c.Reactivate("ghost", dec(80), t0), ErrMemberNotFound)
}

func TestRecordContribution(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	mc := c.OpenMidCycle()

	tests := []struct {
		name        string
		midCycle    uuid.UUID
		contributor string
		in          []Contribution
		wantErr     error
	}{
		{"not a member", mc.ID, "ghost", []Contribution{{RecipientID: "u1", Amount: dec(50)}}, ErrNotAMember},
		{"unknown mid-cycle", uuid.New(), "u2", []Contribution{{RecipientID: "u1", Amount: dec(50)}}, ErrNoActiveMidCycle},
		{"empty", mc.ID, "u2", nil, ErrInvalidAmount},
		{"zero amount", mc.ID, "u2", []Contribution{{RecipientID: "u1", Amount: decimal.Zero}}, ErrInvalidAmount},
		{"unknown recipient", mc.ID, "u2", []Contribution{{RecipientID: "ghost", Amount: dec(5)}}, ErrNotAMember},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.RecordContribution(tt.midCycle, tt.contributor, tt.in, t0)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.True(t, c.TotalContribution.IsZero())

	c.Member("u4").Status = StatusInactive
	err := c.RecordContribution(mc.ID, "u4", []Contribution{{RecipientID: "u1", Amount: dec(50)}}, t0)
	assert.ErrorIs(t, err, ErrMemberInactive)
}

func TestRecordContribution_MergesSameRecipient(t *testing.T) {
	s := testSettings()
	s.BackupFundPercentage = dec(10)
	c := startedCircle(t, s, 5)
	mc := c.OpenMidCycle()

	require.NoError(t, c.RecordContribution(mc.ID, "u2", []Contribution{{RecipientID: "u1", Amount: dec(20)}}, t0))
	require.NoError(t, c.RecordContribution(mc.ID, "u2", []Contribution{
		{RecipientID: "u1", Amount: dec(30)},
		{RecipientID: "u3", Amount: dec(10)},
	}, t0))

	require.Len(t, mc.Contributors, 1)
	assert.Len(t, mc.Contributors[0].Contributions, 2)
	assert.True(t, ContributedTo(mc, "u2", "u1").Equal(dec(50)))
	assert.True(t, TotalFor(mc).Equal(dec(60)))
	assert.True(t, c.TotalContribution.Equal(dec(60)))
	assert.True(t, c.BackupFund.Equal(dec(6)))
	assert.True(t, c.Member("u2").ContributionPaid)
}
