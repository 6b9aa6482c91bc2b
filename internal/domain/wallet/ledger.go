package wallet

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Credit adds e.Amount to the available balance.
func (w *Wallet) Credit(e Entry, now time.Time) error {
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if w.IsFrozen {
		return ErrWalletFrozen
	}
	w.AvailableBalance = w.AvailableBalance.Add(e.Amount)
	w.record(e, now)
	return nil
}

// Debit removes e.Amount from the available balance. The balance never goes negative.
func (w *Wallet) Debit(e Entry, now time.Time) error {
	if err := w.canDebit(e.Amount); err != nil {
		return err
	}
	w.AvailableBalance = w.AvailableBalance.Sub(e.Amount)
	w.record(e, now)
	return nil
}

func (w *Wallet) canDebit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if w.IsFrozen {
		return ErrWalletFrozen
	}
	if amount.GreaterThan(w.AvailableBalance) {
		return ErrInsufficientFunds
	}
	return nil
}

// DeductUpTo takes min(e.Amount, available) regardless of the frozen flag and returns
// the amount actually taken. Used for penalty collection on frozen wallets.
func (w *Wallet) DeductUpTo(e Entry, now time.Time) decimal.Decimal {
	taken := decimal.Min(e.Amount, w.AvailableBalance)
	if !taken.IsPositive() {
		return decimal.Zero
	}
	w.AvailableBalance = w.AvailableBalance.Sub(taken)
	e.Amount = taken
	w.record(e, now)
	return taken
}

// Transfer moves amount from w to to. Both legs are validated before either is applied.
func (w *Wallet) Transfer(to *Wallet, amount decimal.Decimal, description string, now time.Time) error {
	if to == nil || to.UserID == w.UserID {
		return ErrSelfTransfer
	}
	if err := w.canDebit(amount); err != nil {
		return err
	}
	if to.IsFrozen {
		return fmt.Errorf("recipient %s: %w", to.UserID, ErrWalletFrozen)
	}

	// outgoing leg is logged negative so both sides share the transfer type; each leg
	// names the other party
	w.AvailableBalance = w.AvailableBalance.Sub(amount)
	w.record(Entry{Amount: amount.Neg(), Type: TxTransfer, Description: description, Recipient: to.UserID}, now)
	to.AvailableBalance = to.AvailableBalance.Add(amount)
	to.record(Entry{Amount: amount, Type: TxTransfer, Description: description, Recipient: w.UserID}, now)
	return nil
}

// Fix locks amount for durationDays.
func (w *Wallet) Fix(amount decimal.Decimal, durationDays int, now time.Time) (*FixedFund, error) {
	if durationDays < 1 {
		return nil, ErrInvalidDuration
	}
	if err := w.canDebit(amount); err != nil {
		return nil, err
	}
	fund := FixedFund{
		ID:        uuid.New(),
		Amount:    amount,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, durationDays),
	}
	w.FixedFunds = append(w.FixedFunds, fund)
	w.AvailableBalance = w.AvailableBalance.Sub(amount)
	w.FixedBalance = w.FixedBalance.Add(amount)
	w.record(Entry{Amount: amount, Type: TxFixed, Description: fmt.Sprintf("fixed for %d days", durationDays)}, now)
	return &fund, nil
}

// ReleaseMatured moves every fixed fund whose end date has passed back to the
// available balance and returns the released total.
func (w *Wallet) ReleaseMatured(now time.Time) decimal.Decimal {
	released := decimal.Zero
	for i := range w.FixedFunds {
		f := &w.FixedFunds[i]
		if f.IsMatured || now.Before(f.EndDate) {
			continue
		}
		f.IsMatured = true
		released = released.Add(f.Amount)
	}
	if !released.IsPositive() {
		return decimal.Zero
	}
	w.FixedBalance = w.FixedBalance.Sub(released)
	w.AvailableBalance = w.AvailableBalance.Add(released)
	w.record(Entry{Amount: released, Type: TxRelease, Description: "matured fixed funds released"}, now)
	return released
}

// Freeze blocks credits and debits.
func (w *Wallet) Freeze(now time.Time) {
	w.IsFrozen = true
	w.UpdatedAt = now
}

// Unfreeze lifts a freeze.
func (w *Wallet) Unfreeze(now time.Time) {
	w.IsFrozen = false
	w.UpdatedAt = now
}

func (w *Wallet) record(e Entry, now time.Time) {
	w.Transactions = append(w.Transactions, Transaction{
		ID:          uuid.New(),
		Amount:      e.Amount,
		Type:        e.Type,
		Description: e.Description,
		Recipient:   e.Recipient,
		CommunityID: e.CommunityID,
		Date:        now,
	})
	w.TotalBalance = w.AvailableBalance.Add(w.FixedBalance)
	w.UpdatedAt = now
}
