package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"savings_circle_bot/internal/domain/errs"
	"savings_circle_bot/internal/domain/wallet"
)

// PostgresWalletRepository keeps balances on the wallets row and the transaction log as
// append-only wallet_transactions rows.
type PostgresWalletRepository struct {
	db *sql.DB
}

func NewPostgresWalletRepository(db *sql.DB) *PostgresWalletRepository {
	return &PostgresWalletRepository{db: db}
}

func (r *PostgresWalletRepository) Create(ctx context.Context, w *wallet.Wallet) error {
	funds, err := json.Marshal(fixedFunds(w))
	if err != nil {
		return fmt.Errorf("error encoding fixed funds: %w", err)
	}

	query := `INSERT INTO wallets (user_id, available_balance, fixed_balance, total_balance, is_frozen, fixed_funds, version, created_at, updated_at)
               VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8)`
	_, err = conn(ctx, r.db).ExecContext(ctx, query,
		w.UserID, w.AvailableBalance, w.FixedBalance, w.TotalBalance, w.IsFrozen, funds, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return wallet.ErrWalletExists
		}
		return fmt.Errorf("error creating wallet: %w", classify(err))
	}
	if err := r.appendTransactions(ctx, w, 0); err != nil {
		return err
	}
	w.Version = 1
	return nil
}

func (r *PostgresWalletRepository) Save(ctx context.Context, w *wallet.Wallet) error {
	funds, err := json.Marshal(fixedFunds(w))
	if err != nil {
		return fmt.Errorf("error encoding fixed funds: %w", err)
	}

	db := conn(ctx, r.db)
	query := `UPDATE wallets
               SET available_balance = $1, fixed_balance = $2, total_balance = $3, is_frozen = $4, fixed_funds = $5, version = version + 1, updated_at = $6
               WHERE user_id = $7 AND version = $8`
	res, err := db.ExecContext(ctx, query,
		w.AvailableBalance, w.FixedBalance, w.TotalBalance, w.IsFrozen, funds, w.UpdatedAt, w.UserID, w.Version)
	if err != nil {
		return fmt.Errorf("error saving wallet %s: %w", w.UserID, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error saving wallet %s: %w", w.UserID, err)
	}
	if n == 0 {
		return fmt.Errorf("wallet %s at version %d: %w", w.UserID, w.Version, errs.ErrVersionConflict)
	}

	// the row is locked by the update, so the stored log cannot grow underneath us
	var stored int
	err = db.QueryRowContext(ctx, `SELECT count(*) FROM wallet_transactions WHERE user_id = $1`, w.UserID).Scan(&stored)
	if err != nil {
		return fmt.Errorf("error counting wallet transactions: %w", err)
	}
	if err := r.appendTransactions(ctx, w, stored); err != nil {
		return err
	}
	w.Version++
	return nil
}

func (r *PostgresWalletRepository) appendTransactions(ctx context.Context, w *wallet.Wallet, from int) error {
	if from >= len(w.Transactions) {
		return nil
	}
	query := `INSERT INTO wallet_transactions (id, user_id, amount, type, description, recipient, community_id, date)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	db := conn(ctx, r.db)
	for _, t := range w.Transactions[from:] {
		var communityID uuid.NullUUID
		if t.CommunityID != nil {
			communityID = uuid.NullUUID{UUID: *t.CommunityID, Valid: true}
		}
		_, err := db.ExecContext(ctx, query, t.ID, w.UserID, t.Amount, string(t.Type), t.Description, t.Recipient, communityID, t.Date)
		if err != nil {
			return fmt.Errorf("error appending wallet transaction: %w", classify(err))
		}
	}
	return nil
}

func (r *PostgresWalletRepository) GetByUserID(ctx context.Context, userID string) (*wallet.Wallet, error) {
	db := conn(ctx, r.db)
	query := `SELECT user_id, available_balance, fixed_balance, total_balance, is_frozen, fixed_funds, version, created_at, updated_at
               FROM wallets WHERE user_id = $1`
	w := &wallet.Wallet{}
	var funds []byte
	err := db.QueryRowContext(ctx, query, userID).Scan(
		&w.UserID, &w.AvailableBalance, &w.FixedBalance, &w.TotalBalance, &w.IsFrozen, &funds, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, wallet.ErrWalletNotFound
		}
		return nil, fmt.Errorf("error getting wallet by user ID: %w", err)
	}
	if err := json.Unmarshal(funds, &w.FixedFunds); err != nil {
		return nil, fmt.Errorf("error decoding fixed funds: %w", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT id, amount, type, description, recipient, community_id, date
               FROM wallet_transactions WHERE user_id = $1 ORDER BY seq`, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing wallet transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t           wallet.Transaction
			txType      string
			communityID uuid.NullUUID
		)
		if err := rows.Scan(&t.ID, &t.Amount, &txType, &t.Description, &t.Recipient, &communityID, &t.Date); err != nil {
			return nil, fmt.Errorf("error scanning wallet transaction: %w", err)
		}
		t.Type = wallet.TransactionType(txType)
		if communityID.Valid {
			id := communityID.UUID
			t.CommunityID = &id
		}
		w.Transactions = append(w.Transactions, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet transactions: %w", err)
	}
	return w, nil
}

func fixedFunds(w *wallet.Wallet) []wallet.FixedFund {
	if w.FixedFunds == nil {
		return []wallet.FixedFund{}
	}
	return w.FixedFunds
}
