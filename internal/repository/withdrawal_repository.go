package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/towlink/dispatch-backend/internal/models"
	"github.com/towlink/dispatch-backend/internal/repository/common"
)

var (
	ErrWithdrawalNotFound = common.NotFound("withdrawal not found")
	ErrWithdrawalConflict = errors.New("withdrawal is not in the expected state")
)

// WithdrawalRepository owns the withdrawals table. A withdrawal follows the
// reserve-then-confirm protocol: Reserve debits the wallet and commits before
// any gateway call, so a slow payout can never hold the wallet lock.
type WithdrawalRepository struct {
	db      *sqlx.DB
	wallets *WalletRepository
}

func NewWithdrawalRepository(db *sqlx.DB, wallets *WalletRepository) *WithdrawalRepository {
	return &WithdrawalRepository{db: db, wallets: wallets}
}

// Reserve inserts the withdrawal in processing state and debits the gross
// requested amount in one transaction. Fails with ErrInsufficientBalance
// without inserting anything when the balance is short.
func (r *WithdrawalRepository) Reserve(ctx context.Context, w *models.Withdrawal) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, w, `
			INSERT INTO withdrawals (wallet_id, batch_id, type, requested_amount, fee_amount, net_amount, status)
			VALUES ($1, $2, $3, $4, $5, $6, 'processing')
			RETURNING *
		`, w.WalletID, w.BatchID, w.Type, w.RequestedAmount, w.FeeAmount, w.NetAmount); err != nil {
			return fmt.Errorf("withdrawal repository: insert %w", err)
		}

		withdrawalID := w.ID
		if _, err := r.wallets.DebitTx(ctx, tx, w.WalletID, w.RequestedAmount, models.WalletTransaction{
			WithdrawalID: &withdrawalID,
			Reason:       models.WalletTxReasonWithdrawalReserve,
		}); err != nil {
			return err
		}
		return nil
	})
}

// ReserveExisting moves a pending batch item into processing and debits the
// recorded amount under the wallet lock. Fails with ErrInsufficientBalance
// (leaving the row pending) when the balance dropped since the sweep
// collected it.
func (r *WithdrawalRepository) ReserveExisting(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &w, `
			UPDATE withdrawals SET status = 'processing'
			WHERE id = $1 AND status = 'pending'
			RETURNING *
		`, id)
		if err != nil {
			if isNoRows(err) {
				return ErrWithdrawalConflict
			}
			return fmt.Errorf("withdrawal repository: reserve existing %w", err)
		}

		withdrawalID := w.ID
		if _, err := r.wallets.DebitTx(ctx, tx, w.WalletID, w.RequestedAmount, models.WalletTransaction{
			WithdrawalID: &withdrawalID,
			Reason:       models.WalletTxReasonWithdrawalReserve,
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// MarkFailedUnreserved fails a pending item whose funds were never debited.
// No compensating credit is written.
func (r *WithdrawalRepository) MarkFailedUnreserved(ctx context.Context, id uuid.UUID, reason string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE withdrawals SET status = 'failed', failure_reason = $2, processed_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, reason)
	if err != nil {
		return fmt.Errorf("withdrawal repository: mark failed unreserved %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("withdrawal repository: mark failed unreserved rows affected %w", err)
	}
	if rows == 0 {
		return ErrWithdrawalConflict
	}
	return nil
}

// MarkCompleted finalizes a processing withdrawal after a confirmed payout.
func (r *WithdrawalRepository) MarkCompleted(ctx context.Context, id uuid.UUID, payoutID string) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := r.db.GetContext(ctx, &w, `
		UPDATE withdrawals SET status = 'completed', payout_id = $2, processed_at = NOW()
		WHERE id = $1 AND status = 'processing'
		RETURNING *
	`, id, payoutID)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrWithdrawalConflict
		}
		return nil, fmt.Errorf("withdrawal repository: mark completed %w", err)
	}
	return &w, nil
}

// Compensate fails a processing withdrawal and credits the reserved amount
// back. The status predicate lets the transition happen at most once, so a
// retried compensation is a no-op instead of a double credit.
func (r *WithdrawalRepository) Compensate(ctx context.Context, id uuid.UUID, reason string) (*models.Withdrawal, error) {
	var w models.Withdrawal
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &w, `
			UPDATE withdrawals SET status = 'failed', failure_reason = $2, processed_at = NOW()
			WHERE id = $1 AND status = 'processing'
			RETURNING *
		`, id, reason)
		if err != nil {
			if isNoRows(err) {
				// Already resolved by a previous attempt; do not credit again.
				if err := tx.GetContext(ctx, &w, `SELECT * FROM withdrawals WHERE id = $1`, id); err != nil {
					if isNoRows(err) {
						return ErrWithdrawalNotFound
					}
					return fmt.Errorf("withdrawal repository: compensate %w", err)
				}
				return nil
			}
			return fmt.Errorf("withdrawal repository: compensate %w", err)
		}

		withdrawalID := w.ID
		if _, err := r.wallets.CreditTx(ctx, tx, w.WalletID, w.RequestedAmount, models.WalletTransaction{
			WithdrawalID: &withdrawalID,
			Reason:       models.WalletTxReasonWithdrawalRefund,
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetByID returns a withdrawal by its identifier.
func (r *WithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	return common.GetByID[models.Withdrawal](ctx, r.db, "withdrawals", id, ErrWithdrawalNotFound)
}

// ListByWallet returns a wallet's withdrawals, newest first.
func (r *WithdrawalRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	err := r.db.SelectContext(ctx, &withdrawals, `
		SELECT * FROM withdrawals WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("withdrawal repository: list by wallet %w", err)
	}
	return withdrawals, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// ListStuckProcessing returns withdrawals that have been waiting on the
// gateway for longer than maxAge. Feeds the reconciliation listing.
func (r *WithdrawalRepository) ListStuckProcessing(ctx context.Context, maxAge time.Duration) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	err := r.db.SelectContext(ctx, &withdrawals, `
		SELECT * FROM withdrawals WHERE status = 'processing' AND created_at < $1 ORDER BY created_at
	`, time.Now().Add(-maxAge))
	if err != nil {
		return nil, fmt.Errorf("withdrawal repository: list stuck %w", err)
	}
	return withdrawals, nil
}
