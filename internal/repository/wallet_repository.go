package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/towlink/dispatch-backend/internal/models"
	"github.com/towlink/dispatch-backend/internal/repository/common"
)

var (
	ErrWalletNotFound      = common.NotFound("wallet not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNonPositiveAmount   = common.InvalidInput("amount must be positive")
)

// WalletRepository owns the operator_wallets and wallet_transactions tables.
// Credit and Debit are the only balance primitives in the codebase; every
// higher-level operation (capture, withdrawal, repayment) composes through
// them, so the non-negative balance invariant is enforced here and nowhere
// else. Both lock the wallet row with SELECT ... FOR UPDATE, which serializes
// concurrent mutations per wallet.
type WalletRepository struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetOrCreateByOperator returns the operator's wallet, creating it with zero
// balances on first use.
func (r *WalletRepository) GetOrCreateByOperator(ctx context.Context, operatorID uuid.UUID) (*models.OperatorWallet, error) {
	var wallet models.OperatorWallet
	query := `
		INSERT INTO operator_wallets (operator_id)
		VALUES ($1)
		ON CONFLICT (operator_id) DO UPDATE SET updated_at = NOW()
		RETURNING *
	`
	if err := r.db.GetContext(ctx, &wallet, query, operatorID); err != nil {
		return nil, fmt.Errorf("wallet repository: get or create %w", err)
	}
	return &wallet, nil
}

// GetByID returns a wallet by its identifier.
func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.OperatorWallet, error) {
	return common.GetByID[models.OperatorWallet](ctx, r.db, "operator_wallets", id, ErrWalletNotFound)
}

// GetByOperator returns a wallet by its owner.
func (r *WalletRepository) GetByOperator(ctx context.Context, operatorID uuid.UUID) (*models.OperatorWallet, error) {
	return common.GetByField[models.OperatorWallet](ctx, r.db, "operator_wallets", "operator_id", operatorID, ErrWalletNotFound)
}

// Credit adds amount to the wallet's available balance in its own transaction.
func (r *WalletRepository) Credit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, entry models.WalletTransaction) (*models.WalletTransaction, error) {
	var result *models.WalletTransaction
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		result, err = r.CreditTx(ctx, tx, walletID, amount, entry)
		return err
	})
	return result, err
}

// Debit removes amount from the wallet's available balance in its own
// transaction. Fails with ErrInsufficientBalance when the balance is short.
func (r *WalletRepository) Debit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, entry models.WalletTransaction) (*models.WalletTransaction, error) {
	var result *models.WalletTransaction
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		result, err = r.DebitTx(ctx, tx, walletID, amount, entry)
		return err
	})
	return result, err
}

// CreditTx applies a credit inside the caller's transaction.
func (r *WalletRepository) CreditTx(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, amount decimal.Decimal, entry models.WalletTransaction) (*models.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	before, err := lockBalance(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	after := before.Add(amount)

	if _, err := tx.ExecContext(ctx, `
		UPDATE operator_wallets SET balance_available = $2, updated_at = NOW() WHERE id = $1
	`, walletID, after); err != nil {
		return nil, fmt.Errorf("wallet repository: credit %w", err)
	}

	return insertJournal(ctx, tx, walletID, models.WalletTxTypeCredit, amount, before, after, entry)
}

// DebitTx applies a debit inside the caller's transaction. The balance check
// runs under the row lock taken above, so two concurrent debits can never
// both pass it against a stale balance.
func (r *WalletRepository) DebitTx(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, amount decimal.Decimal, entry models.WalletTransaction) (*models.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	before, err := lockBalance(ctx, tx, walletID)
	if err != nil {
		return nil, err
	}
	if before.LessThan(amount) {
		return nil, ErrInsufficientBalance
	}
	after := before.Sub(amount)

	if _, err := tx.ExecContext(ctx, `
		UPDATE operator_wallets SET balance_available = $2, updated_at = NOW() WHERE id = $1
	`, walletID, after); err != nil {
		return nil, fmt.Errorf("wallet repository: debit %w", err)
	}

	return insertJournal(ctx, tx, walletID, models.WalletTxTypeDebit, amount, before, after, entry)
}

// ListEligibleForPayout returns every wallet with a positive available
// balance, ordered by owner for stable sweep output.
func (r *WalletRepository) ListEligibleForPayout(ctx context.Context) ([]models.OperatorWallet, error) {
	var wallets []models.OperatorWallet
	err := r.db.SelectContext(ctx, &wallets, `
		SELECT * FROM operator_wallets WHERE balance_available > 0 ORDER BY operator_id
	`)
	if err != nil {
		return nil, fmt.Errorf("wallet repository: list eligible %w", err)
	}
	return wallets, nil
}

// ListTransactions returns the wallet's journal, newest first.
func (r *WalletRepository) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	var txs []models.WalletTransaction
	err := r.db.SelectContext(ctx, &txs, `
		SELECT * FROM wallet_transactions WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet repository: list transactions %w", err)
	}
	return txs, nil
}

// lockBalance reads the available balance under FOR UPDATE.
func lockBalance(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.GetContext(ctx, &balance, `
		SELECT balance_available FROM operator_wallets WHERE id = $1 FOR UPDATE
	`, walletID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrWalletNotFound
		}
		return decimal.Zero, fmt.Errorf("wallet repository: lock balance %w", err)
	}
	return balance, nil
}

// insertJournal records one audit row for a balance mutation.
func insertJournal(ctx context.Context, tx *sqlx.Tx, walletID uuid.UUID, txType string, amount, before, after decimal.Decimal, entry models.WalletTransaction) (*models.WalletTransaction, error) {
	var row models.WalletTransaction
	err := tx.GetContext(ctx, &row, `
		INSERT INTO wallet_transactions (wallet_id, service_id, withdrawal_id, type, reason, amount, balance_before, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING *
	`, walletID, entry.ServiceID, entry.WithdrawalID, txType, entry.Reason, amount, before, after)
	if err != nil {
		return nil, fmt.Errorf("wallet repository: insert journal %w", err)
	}
	return &row, nil
}
