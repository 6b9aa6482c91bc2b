package app

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"savings_circle_bot/internal/domain/wallet"
)

func TestWalletService_DepositWithdrawFix(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	w, err := h.wallets.Deposit(ctx, "u1", decimal.NewFromInt(100), "card")
	require.NoError(t, err)
	assert.True(t, w.AvailableBalance.Equal(decimal.NewFromInt(100)))

	_, err = h.wallets.Withdraw(ctx, "u1", decimal.NewFromInt(150), "bank")
	assert.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	w, err = h.wallets.Withdraw(ctx, "u1", decimal.NewFromInt(30), "bank")
	require.NoError(t, err)
	assert.True(t, w.AvailableBalance.Equal(decimal.NewFromInt(70)))

	w, err = h.wallets.Fix(ctx, "u1", decimal.NewFromInt(40), 7)
	require.NoError(t, err)
	assert.True(t, w.AvailableBalance.Equal(decimal.NewFromInt(30)))
	assert.True(t, w.FixedBalance.Equal(decimal.NewFromInt(40)))
	assert.True(t, w.TotalBalance.Equal(decimal.NewFromInt(70)))

	released, err := h.wallets.ReleaseMatured(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, released.IsZero())

	h.clock.Advance(7 * day)
	released, err = h.wallets.ReleaseMatured(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, released.Equal(decimal.NewFromInt(40)))
	assert.True(t, h.available(t, "u1").Equal(decimal.NewFromInt(70)))
}

func TestWalletService_OpposingTransfersConserveMoney(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	for _, u := range []string{"a", "b"} {
		_, err := h.wallets.Deposit(ctx, u, decimal.NewFromInt(1000), "seed")
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.wallets.Transfer(ctx, "a", "b", decimal.NewFromInt(3), "a to b"))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, h.wallets.Transfer(ctx, "b", "a", decimal.NewFromInt(1), "b to a"))
		}()
	}
	wg.Wait()

	assert.True(t, h.available(t, "a").Equal(decimal.NewFromInt(960)))
	assert.True(t, h.available(t, "b").Equal(decimal.NewFromInt(1040)))
	assert.Equal(t, 20, h.notes.count("b", KindTransferReceived))
}

func TestWalletService_TransferIsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.wallets.Deposit(ctx, "a", decimal.NewFromInt(100), "seed")
	require.NoError(t, err)
	_, err = h.wallets.Open(ctx, "b")
	require.NoError(t, err)

	tests := []struct {
		name    string
		to      string
		amount  int64
		wantErr error
	}{
		{"to self", "a", 10, wallet.ErrSelfTransfer},
		{"unknown recipient", "nobody", 10, wallet.ErrWalletNotFound},
		{"more than available", "b", 101, wallet.ErrInsufficientFunds},
		{"zero", "b", 0, wallet.ErrInvalidAmount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.wallets.Transfer(ctx, "a", tt.to, decimal.NewFromInt(tt.amount), "test")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, h.available(t, "a").Equal(decimal.NewFromInt(100)))
			assert.True(t, h.available(t, "b").IsZero())
		})
	}
}
