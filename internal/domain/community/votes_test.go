package community

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savings_circle_bot/internal/domain/wallet"
)

func TestVotes_AppliedBetweenCycles(t *testing.T) {
	c := startedCircle(t, testSettings(), 5)

	v, err := c.ProposeVote(TopicPositioningMode, t0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Random", "Fixed"}, v.Options)

	choices := map[string]string{"u1": "Fixed", "u2": "Fixed", "u3": "Random", "u4": "Fixed", "u5": "Random"}
	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		v, err = c.CastVote(v.ID, id, choices[id], t0)
		require.NoError(t, err)
		assert.False(t, v.Resolved)
	}
	v, err = c.CastVote(v.ID, "u5", choices["u5"], t0)
	require.NoError(t, err)
	assert.True(t, v.Resolved)
	assert.Equal(t, "Fixed", v.Resolution)

	_, err = c.ApplyResolvedVotes(t0)
	assert.ErrorIs(t, err, ErrCycleActive)

	wallets := map[string]*wallet.Wallet{}
	for i := 0; i < 5; i++ {
		payRound(t, c, wallets)
	}
	_, err = c.FinalizeCycle(t0, keepOrder{})
	require.NoError(t, err)
	assert.Equal(t, PositioningFixed, c.PositioningMode)
	assert.Empty(t, c.Votes)
}

func TestVotes_LockPayoutAndPaymentPlan(t *testing.T) {
	c := newCircle(t, testSettings(), 3)

	lock, err := c.ProposeVote(TopicLockPayout, t0)
	require.NoError(t, err)
	plan, err := c.ProposeVote(TopicPaymentPlan, t0)
	require.NoError(t, err)
	for _, id := range []string{"u1", "u2", "u3"} {
		_, err = c.CastVote(lock.ID, id, "true", t0)
		require.NoError(t, err)
	}
	_, err = c.CastVote(plan.ID, "u1", "Incremental", t0)
	require.NoError(t, err)

	applied, err := c.ApplyResolvedVotes(t0)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.True(t, c.LockPayout)
	require.Len(t, c.Votes, 1)
	assert.Equal(t, TopicPaymentPlan, c.Votes[0].Topic)

	for _, id := range []string{"u2", "u3"} {
		_, err = c.CastVote(plan.ID, id, "Shortfall", t0)
		require.NoError(t, err)
	}
	_, err = c.ApplyResolvedVotes(t0)
	require.NoError(t, err)
	for _, m := range c.Members {
		assert.Equal(t, PlanShortfall, m.PaymentPlan.Type)
	}
}

func TestCastVote_Errors(t *testing.T) {
	c := newCircle(t, testSettings(), 3)
	v, err := c.ProposeVote(TopicLockPayout, t0)
	require.NoError(t, err)

	_, err = c.CastVote(uuid.New(), "u1", "true", t0)
	assert.ErrorIs(t, err, ErrVoteNotFound)
	_, err = c.CastVote(v.ID, "ghost", "true", t0)
	assert.ErrorIs(t, err, ErrNotAMember)
	_, err = c.CastVote(v.ID, "u1", "maybe", t0)
	assert.ErrorIs(t, err, ErrInvalidVoteChoice)

	_, err = c.CastVote(v.ID, "u1", "true", t0)
	require.NoError(t, err)
	_, err = c.CastVote(v.ID, "u1", "false", t0)
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	c.Member("u3").Status = StatusInactive
	_, err = c.CastVote(v.ID, "u3", "true", t0)
	assert.ErrorIs(t, err, ErrMemberInactive)

	// u3 is inactive, so u2 completes the vote with a tie broken by option order
	v, err = c.CastVote(v.ID, "u2", "false", t0)
	require.NoError(t, err)
	assert.True(t, v.Resolved)
	assert.Equal(t, "false", v.Resolution)
	_, err = c.CastVote(v.ID, "u2", "true", t0)
	assert.ErrorIs(t, err, ErrVoteResolved)

	_, err = c.ProposeVote("colour", t0)
	assert.ErrorIs(t, err, ErrInvalidVoteChoice)
}
