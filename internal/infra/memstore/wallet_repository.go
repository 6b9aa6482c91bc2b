package memstore

import (
	"context"
	"errors"
	"fmt"

	"savings_circle_bot/internal/domain/errs"
	"savings_circle_bot/internal/domain/wallet"
)

// WalletRepository implements wallet.Repository on a Store.
type WalletRepository struct {
	s *Store
}

func (s *Store) Wallets() *WalletRepository {
	return &WalletRepository{s: s}
}

func walletArea(tx *txState) map[string]staged { return tx.wallets }

func (r *WalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	w.Version = 1
	data, err := encode(w)
	if err == nil {
		err = put(ctx, r.s, r.s.wallets, walletArea, w.UserID, 0, true, data)
	}
	if err != nil {
		w.Version = 0
		if errors.Is(err, errs.ErrVersionConflict) {
			return wallet.ErrWalletExists
		}
		return err
	}
	return nil
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID string) (*wallet.Wallet, error) {
	data, ok := get(ctx, r.s, r.s.wallets, walletArea, userID)
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	var w wallet.Wallet
	if err := decode(data, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) Save(ctx context.Context, w *wallet.Wallet) error {
	expected := w.Version
	w.Version = expected + 1
	data, err := encode(w)
	if err == nil {
		err = put(ctx, r.s, r.s.wallets, walletArea, w.UserID, expected, false, data)
	}
	if err != nil {
		w.Version = expected
		return fmt.Errorf("saving wallet %s: %w", w.UserID, err)
	}
	return nil
}
