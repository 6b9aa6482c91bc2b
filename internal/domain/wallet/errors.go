package wallet

import "savings_circle_bot/internal/domain/errs"

var (
	ErrWalletNotFound    = errs.New(errs.ErrNotFound, "wallet not found")
	ErrWalletExists      = errs.New(errs.ErrValidation, "wallet already exists")
	ErrWalletFrozen      = errs.New(errs.ErrWalletFrozen, "wallet is frozen")
	ErrInsufficientFunds = errs.New(errs.ErrInsufficientFunds, "amount exceeds available balance")
	ErrInvalidAmount     = errs.New(errs.ErrValidation, "amount must be greater than zero")
	ErrInvalidDuration   = errs.New(errs.ErrValidation, "duration must be at least one day")
	ErrSelfTransfer      = errs.New(errs.ErrValidation, "cannot transfer to the same wallet")
)
