package community

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savings_circle_bot/internal/domain/wallet"
)

// missRounds closes the open round's contribution window n times and expects userID among the missed.
func missRounds(t *testing.T, c *Community, userID string, n int) {
	t.Helper()
	mc := c.OpenMidCycle()
	require.NotNil(t, mc)
	for i := 0; i < n; i++ {
		missed, err := c.RecordMissedContributions(t0)
		require.NoError(t, err)
		assert.Contains(t, missed, userID)
	}
}

func TestFreezeAndUnfreezeAfterMissedContributions(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	wallets := map[string]*wallet.Wallet{}
	payRound(t, c, wallets)
	admin := wallets["u1"]

	mc := c.OpenMidCycle()
	for _, id := range []string{"u2", "u3", "u4", "u5"} {
		require.NoError(t, c.RecordContribution(mc.ID, id, []Contribution{{RecipientID: mc.NextInLine, Amount: dec(50)}}, t0))
	}

	missRounds(t, c, "u1", 2)
	frozen, err := c.UpdateWalletForMissedContributions("u1", admin, t0)
	require.NoError(t, err)
	assert.False(t, frozen)
	assert.Equal(t, StatusActive, c.Member("u1").Status)

	missRounds(t, c, "u1", 1)
	frozen, err = c.UpdateWalletForMissedContributions("u1", admin, t0)
	require.NoError(t, err)
	assert.True(t, frozen)
	assert.True(t, admin.IsFrozen)
	assert.Equal(t, StatusInactive, c.Member("u1").Status)
	assert.Len(t, c.Member("u1").MissedContributions, 3)

	taken, err := c.DeductPenaltiesFromWallet("u1", admin, t0)
	require.NoError(t, err)
	assert.True(t, taken.Equal(dec(30)))
	assert.False(t, admin.IsFrozen)
	assert.True(t, admin.AvailableBalance.Equal(dec(220)))
	assert.Empty(t, c.Member("u1").MissedContributions)
	assert.Equal(t, StatusActive, c.Member("u1").Status)
	assert.True(t, c.Member("u1").Penalty.IsZero())
	assert.True(t, c.CollectedPenalties.Equal(dec(30)))
}

func TestUpdateWalletForMissedContributions_NoPayoutNoFreeze(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	w := wallet.New("u3", t0)
	require.NoError(t, w.Credit(wallet.Entry{Amount: dec(100), Type: wallet.TxDeposit}, t0))

	missRounds(t, c, "u3", 3)
	frozen, err := c.UpdateWalletForMissedContributions("u3", w, t0)
	require.NoError(t, err)
	assert.False(t, frozen)
	assert.False(t, w.IsFrozen)
	assert.Equal(t, StatusInactive, c.Member("u3").Status)
}

func TestDeductPenaltiesFromWallet_CarriesShortfall(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	wallets := map[string]*wallet.Wallet{}
	payRound(t, c, wallets)
	admin := wallets["u1"]
	require.NoError(t, admin.Debit(wallet.Entry{Amount: dec(240), Type: wallet.TxWithdrawal}, t0))

	missRounds(t, c, "u1", 3)
	taken, err := c.DeductPenaltiesFromWallet("u1", admin, t0)
	require.NoError(t, err)
	assert.True(t, taken.Equal(dec(10)))
	assert.True(t, admin.AvailableBalance.IsZero())
	assert.True(t, c.Member("u1").Penalty.Equal(dec(20)))
}

func TestDeductPenaltiesFromWallet_Errors(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	_, err := c.DeductPenaltiesFromWallet("ghost", nil, t0)
	assert.ErrorIs(t, err, ErrMemberNotFound)

	// never paid out: nothing to collect
	taken, err := c.DeductPenaltiesFromWallet("u2", nil, t0)
	require.NoError(t, err)
	assert.True(t, taken.IsZero())

	payRound(t, c, map[string]*wallet.Wallet{})
	_, err = c.DeductPenaltiesFromWallet("u1", nil, t0)
	assert.ErrorIs(t, err, wallet.ErrWalletNotFound)
}

func TestSkipPayoutForDefaulters(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	mc := c.OpenMidCycle()
	require.NoError(t, c.RecordContribution(mc.ID, "u2", []Contribution{{RecipientID: "u1", Amount: dec(50)}}, t0))

	skipped, err := c.SkipPayoutForDefaulters(mc.ID, t0)
	require.NoError(t, err)
	assert.False(t, skipped)

	c.Member("u1").Status = StatusInactive
	skipped, err = c.SkipPayoutForDefaulters(mc.ID, t0)
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Equal(t, "u2", mc.NextInLine)
	assert.Contains(t, mc.Defaulters, "u1")
	assert.Equal(t, "u2", c.PayoutDetails.NextRecipient)
	assert.True(t, ContributedTo(mc, "u2", "u2").Equal(dec(50)))
	assert.True(t, ContributedTo(mc, "u2", "u1").IsZero())

	skipped, err = c.SkipPayoutForDefaulters(mc.ID, t0)
	require.NoError(t, err)
	assert.False(t, skipped)
}

func TestSkipPayoutForDefaulters_Errors(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	_, err := c.SkipPayoutForDefaulters(uuid.New(), t0)
	assert.ErrorIs(t, err, ErrMidCycleNotFound)

	for _, m := range c.Members {
		c.Member(m.UserID).Status = StatusInactive
	}
	_, err = c.SkipPayoutForDefaulters(c.OpenMidCycle().ID, t0)
	assert.ErrorIs(t, err, ErrNoEligibleMember)
}

func TestStartMidCycle_SkipsInactivePosition(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	c.Member("u2").Status = StatusInactive
	mc := fundRound(t, c)
	_, err := c.DistributePayouts(wallet.New(mc.NextInLine, t0), t0)
	require.NoError(t, err)

	next := c.OpenMidCycle()
	require.NotNil(t, next)
	assert.Equal(t, "u3", next.NextInLine)
	assert.Contains(t, next.Defaulters, "u2")
}

func TestCalculateTotalOwed(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)
	_, err := c.CalculateTotalOwed("ghost")
	assert.ErrorIs(t, err, ErrMemberNotFound)

	payRound(t, c, map[string]*wallet.Wallet{})
	_, err = c.CalculateTotalOwed("u2")
	assert.ErrorIs(t, err, ErrNoPayoutRecord)

	owed, err := c.CalculateTotalOwed("u1")
	require.NoError(t, err)
	assert.True(t, owed.Equal(dec(200)))

	missRounds(t, c, "u1", 2)
	owed, err = c.CalculateTotalOwed("u1")
	require.NoError(t, err)
	assert.True(t, owed.Equal(dec(220)))
}
