// internal/domain/wallet/wallet.go
package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the business reason for a wallet movement.
type TransactionType string

const (
	TxDeposit      TransactionType = "deposit"
	TxWithdrawal   TransactionType = "withdrawal"
	TxContribution TransactionType = "contribution"
	TxPenalty      TransactionType = "penalty"
	TxTransfer     TransactionType = "transfer"
	TxPayout       TransactionType = "payout"
	TxFixed        TransactionType = "fixed"
	TxRelease      TransactionType = "release"
)

// Transaction is one entry of a wallet's append-only log.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        TransactionType `json:"type"`
	Description string          `json:"description"`
	Recipient   string          `json:"recipient,omitempty"` // other party of the movement
	CommunityID *uuid.UUID      `json:"communityId,omitempty"`
	Date        time.Time       `json:"date"`
}

// FixedFund is an amount time-locked out of the available balance.
type FixedFund struct {
	ID        uuid.UUID       `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	StartDate time.Time       `json:"startDate"`
	EndDate   time.Time       `json:"endDate"`
	IsMatured bool            `json:"isMatured"`
}

// Wallet is the per-user balance aggregate.
type Wallet struct {
	UserID           string          `json:"userId"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	FixedBalance     decimal.Decimal `json:"fixedBalance"`
	TotalBalance     decimal.Decimal `json:"totalBalance"`
	IsFrozen         bool            `json:"isFrozen"`
	Transactions     []Transaction   `json:"transactions"`
	FixedFunds       []FixedFund     `json:"fixedFunds"`
	Version          int64           `json:"version"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// New creates an empty wallet for userID.
func New(userID string, now time.Time) *Wallet {
	return &Wallet{
		UserID:           userID,
		AvailableBalance: decimal.Zero,
		FixedBalance:     decimal.Zero,
		TotalBalance:     decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Entry describes a movement to apply; Recipient and CommunityID are optional.
type Entry struct {
	Amount      decimal.Decimal
	Type        TransactionType
	Description string
	Recipient   string
	CommunityID *uuid.UUID
}
