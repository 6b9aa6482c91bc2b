package community

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savings_circle_bot/internal/domain/wallet"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type keepOrder struct{}

func (keepOrder) Shuffle(int, func(i, j int)) {}

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func testSettings() Settings {
	return Settings{
		ContributionFrequency: FrequencyDaily,
		MaxMembers:            10,
		BackupFundPercentage:  decimal.Zero,
		MinContribution:       dec(50),
		PenaltyAmount:         dec(10),
		NumMissContribution:   3,
		FirstCycleMin:         5,
	}
}

// newCircle builds a community of n members u1..un with u1 as admin.
func newCircle(t *testing.T, s Settings, n int) *Community {
	t.Helper()
	c, err := New("Circle", "", Member{UserID: "u1", Name: "Admin"}, s, PositioningRandom, t0)
	require.NoError(t, err)
	for i := 2; i <= n; i++ {
		_, err := c.AddMember(fmt.Sprintf("u%d", i), fmt.Sprintf("Member %d", i), "", decimal.Zero, t0)
		require.NoError(t, err)
	}
	return c
}

func startedCircle(t *testing.T, s Settings, n int) *Community {
	t.Helper()
	c := newCircle(t, s, n)
	_, err := c.StartFirstCycle(t0, keepOrder{})
	require.NoError(t, err)
	return c
}

// fundRound has every active member contribute the minimum to the open mid-cycle's recipient.
func fundRound(t *testing.T, c *Community) *MidCycle {
	t.Helper()
	mc := c.OpenMidCycle()
	require.NotNil(t, mc)
	for _, m := range c.ActiveMembers() {
		err := c.RecordContribution(mc.ID, m.UserID, []Contribution{{RecipientID: mc.NextInLine, Amount: c.Settings.MinContribution}}, t0)
		require.NoError(t, err)
	}
	ready, err := c.UpdateReadiness(t0)
	require.NoError(t, err)
	require.True(t, ready)
	return mc
}

func payRound(t *testing.T, c *Community, wallets map[string]*wallet.Wallet) *Payout {
	t.Helper()
	mc := fundRound(t, c)
	w, ok := wallets[mc.NextInLine]
	if !ok {
		w = wallet.New(mc.NextInLine, t0)
		wallets[mc.NextInLine] = w
	}
	p, err := c.DistributePayouts(w, t0)
	require.NoError(t, err)
	return p
}

func TestStartFirstCycle_FirstRoundPaysAdmin(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)

	mc := c.OpenMidCycle()
	require.NotNil(t, mc)
	assert.Equal(t, "u1", mc.NextInLine)
	assert.Equal(t, 1, c.Member("u1").Position)

	_, err := c.StartMidCycle(t0)
	assert.ErrorIs(t, err, ErrMidCycleOpen)

	fundRound(t, c)
	assert.True(t, mc.IsReady)
	assert.True(t, mc.PayoutAmount.Equal(dec(250)))

	admin := wallet.New("u1", t0)
	p, err := c.DistributePayouts(admin, t0)
	require.NoError(t, err)
	assert.True(t, admin.AvailableBalance.Equal(dec(250)))
	assert.True(t, mc.IsComplete)
	assert.False(t, p.CycleClosed)
	require.NotNil(t, p.NextMidCycle)
	assert.Equal(t, "u2", p.NextMidCycle.NextInLine)
	assert.Equal(t, 2, c.Member("u2").Position)
}

func TestStartFirstCycle_Preconditions(t *testing.T) {
	c := newCircle(t, testSettings(), 4)
	_, err := c.StartFirstCycle(t0, keepOrder{})
	assert.ErrorIs(t, err, ErrInsufficientMembers)

	_, err = c.AddMember("u5", "Member 5", "", decimal.Zero, t0)
	require.NoError(t, err)
	_, err = c.StartFirstCycle(t0, keepOrder{})
	require.NoError(t, err)

	_, err = c.StartFirstCycle(t0, keepOrder{})
	assert.ErrorIs(t, err, ErrCyclesExist)
}

func TestDistributePayouts_Idempotent(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	fundRound(t, c)

	admin := wallet.New("u1", t0)
	_, err := c.DistributePayouts(admin, t0)
	require.NoError(t, err)
	txs := len(admin.Transactions)

	_, err = c.DistributePayouts(admin, t0)
	assert.ErrorIs(t, err, ErrNoMidCycleReady)
	assert.True(t, admin.AvailableBalance.Equal(dec(250)))
	assert.Len(t, admin.Transactions, txs)
	assert.Len(t, c.Cycles[0].PaidMembers, 1)
}

func TestDistributePayouts_Errors(t *testing.T) {
	t.Run("locked", func(t *testing.T) {
		c := startedCircle(t, testSettings(), 5)
		fundRound(t, c)
		c.LockPayout = true
		_, err := c.DistributePayouts(wallet.New("u1", t0), t0)
		assert.ErrorIs(t, err, ErrPayoutLocked)
	})
	t.Run("not ready", func(t *testing.T) {
		c := startedCircle(t, testSettings(), 5)
		_, err := c.DistributePayouts(wallet.New("u1", t0), t0)
		assert.ErrorIs(t, err, ErrNoMidCycleReady)
	})
	t.Run("recipient inactive", func(t *testing.T) {
		c := startedCircle(t, testSettings(), 5)
		fundRound(t, c)
		c.Member("u1").Status = StatusInactive
		_, err := c.DistributePayouts(wallet.New("u1", t0), t0)
		assert.ErrorIs(t, err, ErrIneligibleRecipient)
	})
	t.Run("missing wallet", func(t *testing.T) {
		c := startedCircle(t, testSettings(), 5)
		fundRound(t, c)
		_, err := c.DistributePayouts(nil, t0)
		assert.ErrorIs(t, err, wallet.ErrWalletNotFound)
		assert.False(t, c.OpenMidCycle().IsComplete)
	})
}

func TestBackupFundAccounting(t *testing.T) {
	s := testSettings()
	s.BackupFundPercentage = dec(10)
	c := startedCircle(t, s, 5)
	wallets := map[string]*wallet.Wallet{}

	p := payRound(t, c, wallets)
	assert.True(t, p.Amount.Equal(dec(225)))
	assert.True(t, wallets["u1"].AvailableBalance.Equal(dec(225)))
	assert.True(t, c.BackupFund.Equal(dec(25)))
	assert.True(t, c.TotalContribution.Equal(dec(250)))

	// second round is paid from its own contributions only
	p = payRound(t, c, wallets)
	assert.Equal(t, "u2", p.RecipientID)
	assert.True(t, p.Amount.Equal(dec(225)))
	assert.True(t, c.BackupFund.Equal(dec(50)))
}

func TestFullCycleClosesAndNextCycleStarts(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	wallets := map[string]*wallet.Wallet{}

	var last *Payout
	for i := 0; i < 5; i++ {
		last = payRound(t, c, wallets)
	}
	require.True(t, last.CycleClosed)
	assert.True(t, c.Cycles[0].IsComplete)
	assert.Len(t, c.Cycles[0].PaidMembers, 5)
	assert.True(t, c.AwaitingNextCycle())
	assert.True(t, c.IsDue(t0))
	for id, w := range wallets {
		assert.True(t, w.AvailableBalance.Equal(dec(250)), id)
	}

	_, err := c.StartMidCycle(t0)
	assert.ErrorIs(t, err, ErrNoActiveCycle)

	mc, err := c.FinalizeCycle(t0, rand.New(rand.NewPCG(7, 11)))
	require.NoError(t, err)
	assert.Len(t, c.Cycles, 2)
	assert.Equal(t, 2, mc.CycleNumber)
	assert.Equal(t, 1, c.Member(mc.NextInLine).Position)
	assertPermutation(t, c)
}

func TestFinalizeCycle_IncompleteMidCycles(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	_, err := c.FinalizeCycle(t0, keepOrder{})
	assert.ErrorIs(t, err, ErrIncompleteMidCycles)

	empty := newCircle(t, testSettings(), 5)
	_, err = empty.FinalizeCycle(t0, keepOrder{})
	assert.ErrorIs(t, err, ErrNoActiveCycle)
}

func TestPrepareForNextCycle_CycleActive(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	_, err := c.PrepareForNextCycle(t0, keepOrder{})
	assert.ErrorIs(t, err, ErrCycleActive)
}

func TestAssignFirstCyclePositions_Permutation(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		c := newCircle(t, testSettings(), 8)
		require.NoError(t, c.AssignFirstCyclePositions(rand.New(rand.NewPCG(seed, seed*31))))
		assert.Equal(t, 1, c.Member("u1").Position)
		assertPermutation(t, c)
	}
}

func TestAssignFirstCyclePositions_AdminMissing(t *testing.T) {
	c := newCircle(t, testSettings(), 5)
	c.AdminID = "nobody"
	assert.ErrorIs(t, c.AssignFirstCyclePositions(keepOrder{}), ErrAdminMissing)
}

func TestPrepareForNextCycle_FixedModeKeepsOrder(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	c.PositioningMode = PositioningFixed
	wallets := map[string]*wallet.Wallet{}
	for i := 0; i < 5; i++ {
		payRound(t, c, wallets)
	}
	before := map[string]int{}
	for _, m := range c.Members {
		before[m.UserID] = m.Position
	}

	_, err := c.PrepareForNextCycle(t0, rand.New(rand.NewPCG(3, 4)))
	require.NoError(t, err)
	for _, m := range c.Members {
		assert.Equal(t, before[m.UserID], m.Position, m.UserID)
	}
}

func TestUpdateReadiness_Monotonic(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	mc := fundRound(t, c)

	// a member dropping out after readiness does not un-ready the round
	c.Member("u5").Status = StatusInactive
	ready, err := c.UpdateReadiness(t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ready)
	assert.True(t, mc.IsReady)

	err = c.RecordContribution(mc.ID, "u2", []Contribution{{RecipientID: "u1", Amount: dec(10)}}, t0)
	require.NoError(t, err)
	assert.True(t, mc.IsReady)
	assert.True(t, mc.PayoutAmount.Equal(dec(260)))
}

func TestUpdateReadiness_PartialFunding(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	mc := c.OpenMidCycle()
	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		require.NoError(t, c.RecordContribution(mc.ID, id, []Contribution{{RecipientID: "u1", Amount: dec(50)}}, t0))
	}
	// u5 funds the wrong recipient
	require.NoError(t, c.RecordContribution(mc.ID, "u5", []Contribution{{RecipientID: "u2", Amount: dec(50)}}, t0))

	ready, err := c.UpdateReadiness(t0)
	require.NoError(t, err)
	assert.False(t, ready)
	assert.True(t, mc.PayoutAmount.IsZero())
}

func TestUpdatePayoutInfo(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	mc := c.OpenMidCycle()
	require.NoError(t, c.RecordContribution(mc.ID, "u2", []Contribution{{RecipientID: "u1", Amount: dec(50)}}, t0))
	c.NextPayout = time.Time{}

	c.UpdatePayoutInfo(t0)
	assert.Equal(t, "u1", c.PayoutDetails.NextRecipient)
	assert.Equal(t, 1, c.PayoutDetails.CycleNumber)
	assert.True(t, c.PayoutDetails.PayoutAmount.Equal(dec(50)))
	assert.Equal(t, t0.AddDate(0, 0, 1), c.NextPayout)
}

func TestIsDue(t *testing.T) {
	c := newCircle(t, testSettings(), 5)
	assert.False(t, c.IsDue(t0))

	_, err := c.StartFirstCycle(t0, keepOrder{})
	require.NoError(t, err)
	assert.False(t, c.IsDue(t0))
	assert.True(t, c.IsDue(t0.AddDate(0, 0, 1)))
}

func TestFrequencyNext(t *testing.T) {
	tests := []struct {
		freq Frequency
		want time.Time
	}{
		{FrequencyHourly, t0.Add(time.Hour)},
		{FrequencyDaily, t0.AddDate(0, 0, 1)},
		{FrequencyWeekly, t0.AddDate(0, 0, 7)},
		{FrequencyMonthly, t0.AddDate(0, 1, 0)},
	}
	for _, tt := range tests {
		t.Run(string(tt.freq), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.freq.Next(t0))
		})
	}
}

func assertPermutation(t *testing.T, c *Community) {
	t.Helper()
	positions := make([]int, 0, len(c.Members))
	for _, m := range c.Members {
		positions = append(positions, m.Position)
	}
	sort.Ints(positions)
	for i, p := range positions {
		assert.Equal(t, i+1, p)
	}
}
