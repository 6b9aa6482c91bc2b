package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"savings_circle_bot/internal/domain/wallet"
)

// WalletService runs wallet operations, each serialized per user.
type WalletService struct {
	core
}

func NewWalletService(d Deps) *WalletService {
	return &WalletService{core: newCore(d)}
}

// Open returns userID's wallet, creating an empty one on first use.
func (s *WalletService) Open(ctx context.Context, userID string) (*wallet.Wallet, error) {
	unlock := s.Locks.Lock(userID)
	defer unlock()

	var w *wallet.Wallet
	err := s.run(ctx, "open_wallet", func(ctx context.Context, out *outbox) error {
		var err error
		w, err = s.walletFor(ctx, userID)
		return err
	})
	return w, err
}

func (s *WalletService) Balance(ctx context.Context, userID string) (*wallet.Wallet, error) {
	w, err := s.Wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading wallet for %s: %w", userID, err)
	}
	return w, nil
}

// Deposit credits an amount already settled by the payment provider.
func (s *WalletService) Deposit(ctx context.Context, userID string, amount decimal.Decimal, description string) (*wallet.Wallet, error) {
	return s.mutate(ctx, "deposit", userID, func(w *wallet.Wallet) error {
		return w.Credit(wallet.Entry{Amount: amount, Type: wallet.TxDeposit, Description: description}, s.now())
	})
}

func (s *WalletService) Withdraw(ctx context.Context, userID string, amount decimal.Decimal, description string) (*wallet.Wallet, error) {
	return s.mutate(ctx, "withdraw", userID, func(w *wallet.Wallet) error {
		return w.Debit(wallet.Entry{Amount: amount, Type: wallet.TxWithdrawal, Description: description}, s.now())
	})
}

// Fix time-locks amount for durationDays.
func (s *WalletService) Fix(ctx context.Context, userID string, amount decimal.Decimal, durationDays int) (*wallet.Wallet, error) {
	return s.mutate(ctx, "fix_funds", userID, func(w *wallet.Wallet) error {
		_, err := w.Fix(amount, durationDays, s.now())
		return err
	})
}

// ReleaseMatured returns matured fixed funds to the available balance.
func (s *WalletService) ReleaseMatured(ctx context.Context, userID string) (decimal.Decimal, error) {
	released := decimal.Zero
	_, err := s.mutate(ctx, "release_funds", userID, func(w *wallet.Wallet) error {
		released = w.ReleaseMatured(s.now())
		return nil
	})
	return released, err
}

// Transfer moves amount between two wallets in one atomic write. Both wallets are
// locked in a fixed order so opposing transfers cannot deadlock.
func (s *WalletService) Transfer(ctx context.Context, fromUserID, toUserID string, amount decimal.Decimal, description string) error {
	if fromUserID == toUserID {
		return wallet.ErrSelfTransfer
	}
	unlock := s.Locks.Lock(fromUserID, toUserID)
	defer unlock()

	err := s.run(ctx, "transfer", func(ctx context.Context, out *outbox) error {
		from, err := s.Wallets.GetByUserID(ctx, fromUserID)
		if err != nil {
			return fmt.Errorf("loading wallet for %s: %w", fromUserID, err)
		}
		to, err := s.Wallets.GetByUserID(ctx, toUserID)
		if err != nil {
			return fmt.Errorf("loading wallet for %s: %w", toUserID, err)
		}
		if err := from.Transfer(to, amount, description, s.now()); err != nil {
			return err
		}
		if err := s.Wallets.Save(ctx, from); err != nil {
			return err
		}
		if err := s.Wallets.Save(ctx, to); err != nil {
			return err
		}
		out.add(toUserID, KindTransferReceived, nil, "You received %s from %s.", amount.StringFixed(2), fromUserID)
		return nil
	})
	if err != nil {
		return err
	}
	s.Log.WithFields(logrus.Fields{"from": fromUserID, "to": toUserID, "amount": amount.String()}).Info("Transfer completed")
	return nil
}

func (s *WalletService) mutate(ctx context.Context, op, userID string, fn func(w *wallet.Wallet) error) (*wallet.Wallet, error) {
	unlock := s.Locks.Lock(userID)
	defer unlock()

	var result *wallet.Wallet
	err := s.run(ctx, op, func(ctx context.Context, out *outbox) error {
		w, err := s.walletFor(ctx, userID)
		if err != nil {
			return err
		}
		if err := fn(w); err != nil {
			return err
		}
		if err := s.Wallets.Save(ctx, w); err != nil {
			return err
		}
		result = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
