package wallet

import "context"

// Repository persists Wallet aggregates. Save must fail with errs.ErrVersionConflict
// when w.Version no longer matches the stored version, and bumps w.Version on success.
type Repository interface {
	Create(ctx context.Context, w *Wallet) error
	GetByUserID(ctx context.Context, userID string) (*Wallet, error)
	Save(ctx context.Context, w *Wallet) error
}
