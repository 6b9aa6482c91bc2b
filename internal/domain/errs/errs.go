// Package errs holds the error taxonomy shared by the community and wallet aggregates.
// Concrete errors wrap exactly one kind sentinel so callers can branch with errors.Is.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and retry decisions.
type Kind string

const (
	KindUnknown                  Kind = "UNKNOWN"
	KindNotFound                 Kind = "NOT_FOUND"
	KindValidation               Kind = "VALIDATION"
	KindStateConflict            Kind = "STATE_CONFLICT"
	KindInsufficientFunds        Kind = "INSUFFICIENT_FUNDS"
	KindInsufficientContribution Kind = "INSUFFICIENT_CONTRIBUTION"
	KindWalletFrozen             Kind = "WALLET_FROZEN"
	KindVersionConflict          Kind = "VERSION_CONFLICT"
	KindIneligible               Kind = "INELIGIBLE"
)

var (
	ErrNotFound                 = errors.New("not found")
	ErrValidation               = errors.New("validation failed")
	ErrStateConflict            = errors.New("operation not allowed in current state")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrInsufficientContribution = errors.New("insufficient contribution")
	ErrWalletFrozen             = errors.New("wallet is frozen")
	ErrVersionConflict          = errors.New("version conflict")
	ErrIneligible               = errors.New("ineligible")
)

var kinds = []struct {
	sentinel error
	kind     Kind
}{
	{ErrNotFound, KindNotFound},
	{ErrValidation, KindValidation},
	{ErrStateConflict, KindStateConflict},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrInsufficientContribution, KindInsufficientContribution},
	{ErrWalletFrozen, KindWalletFrozen},
	{ErrVersionConflict, KindVersionConflict},
	{ErrIneligible, KindIneligible},
}

// New builds a concrete error of the given kind.
func New(kind error, msg string) error {
	return fmt.Errorf("%w: %s", kind, msg)
}

// KindOf returns the kind of err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	return KindUnknown
}

// IsVersionConflict reports whether err is a recoverable concurrent-write race.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
