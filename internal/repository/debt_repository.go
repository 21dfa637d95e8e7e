package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/towlink/dispatch-backend/internal/models"
	"github.com/towlink/dispatch-backend/internal/repository/common"
)

var ErrDebtNotFound = common.NotFound("debt not found")

// DebtRepository owns the pending_debts table and the wallet's debt standing
// (total_debt, cash_services_blocked).
type DebtRepository struct {
	db *sqlx.DB
}

func NewDebtRepository(db *sqlx.DB) *DebtRepository {
	return &DebtRepository{db: db}
}

// Create inserts a new pending debt and bumps the wallet's total_debt.
func (r *DebtRepository) Create(ctx context.Context, walletID uuid.UUID, serviceID *uuid.UUID, amount decimal.Decimal, dueDate time.Time) (*models.PendingDebt, error) {
	var debt models.PendingDebt
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &debt, `
			INSERT INTO pending_debts (wallet_id, service_id, original_amount, remaining_amount, due_date, status)
			VALUES ($1, $2, $3, $3, $4, 'pending')
			RETURNING *
		`, walletID, serviceID, amount, dueDate); err != nil {
			return fmt.Errorf("debt repository: create %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE operator_wallets SET total_debt = total_debt + $2, updated_at = NOW() WHERE id = $1
		`, walletID, amount); err != nil {
			return fmt.Errorf("debt repository: bump total debt %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &debt, nil
}

// GetByID returns a debt by its identifier.
func (r *DebtRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PendingDebt, error) {
	return common.GetByID[models.PendingDebt](ctx, r.db, "pending_debts", id, ErrDebtNotFound)
}

// ListByWallet returns every debt of a wallet, oldest due first.
func (r *DebtRepository) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]models.PendingDebt, error) {
	var debts []models.PendingDebt
	err := r.db.SelectContext(ctx, &debts, `
		SELECT * FROM pending_debts WHERE wallet_id = $1 ORDER BY due_date, created_at
	`, walletID)
	if err != nil {
		return nil, fmt.Errorf("debt repository: list by wallet %w", err)
	}
	return debts, nil
}

// ApplyRepayment distributes a payment across the wallet's open debts,
// oldest due date first. Returns the amount actually applied; any excess
// beyond the open debt total is left unapplied for the caller to return.
// A debt's remaining amount never goes below zero.
func (r *DebtRepository) ApplyRepayment(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}

	applied := decimal.Zero
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var debts []models.PendingDebt
		if err := tx.SelectContext(ctx, &debts, `
			SELECT * FROM pending_debts
			WHERE wallet_id = $1 AND remaining_amount > 0
			ORDER BY due_date, created_at
			FOR UPDATE
		`, walletID); err != nil {
			return fmt.Errorf("debt repository: lock open debts %w", err)
		}

		left := amount
		now := time.Now()
		for i := range debts {
			if !left.IsPositive() {
				break
			}
			debt := &debts[i]

			portion := decimal.Min(left, debt.RemainingAmount)
			remaining := debt.RemainingAmount.Sub(portion)

			status := models.DebtStatusPartial
			switch {
			case remaining.IsZero():
				status = models.DebtStatusPaid
			case debt.DueDate.Before(now):
				status = models.DebtStatusOverdue
			}

			if _, err := tx.ExecContext(ctx, `
				UPDATE pending_debts SET remaining_amount = $2, status = $3, updated_at = NOW() WHERE id = $1
			`, debt.ID, remaining, status); err != nil {
				return fmt.Errorf("debt repository: apply repayment %w", err)
			}

			left = left.Sub(portion)
			applied = applied.Add(portion)
		}

		if applied.IsPositive() {
			if _, err := tx.ExecContext(ctx, `
				UPDATE operator_wallets SET total_debt = total_debt - $2, updated_at = NOW() WHERE id = $1
			`, walletID, applied); err != nil {
				return fmt.Errorf("debt repository: reduce total debt %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return applied, nil
}

// RefreshBlockStatus marks past-due debts overdue and recomputes the
// wallet's cash_services_blocked flag. This is the authoritative block
// query; callers must invoke it before any cash acceptance decision.
func (r *DebtRepository) RefreshBlockStatus(ctx context.Context, walletID uuid.UUID) (bool, error) {
	blocked := false
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE pending_debts SET status = 'overdue', updated_at = NOW()
			WHERE wallet_id = $1 AND remaining_amount > 0 AND due_date < NOW() AND status <> 'overdue'
		`, walletID); err != nil {
			return fmt.Errorf("debt repository: mark overdue %w", err)
		}

		if err := tx.GetContext(ctx, &blocked, `
			SELECT EXISTS (
				SELECT 1 FROM pending_debts
				WHERE wallet_id = $1 AND status = 'overdue' AND remaining_amount > 0
			)
		`, walletID); err != nil {
			return fmt.Errorf("debt repository: check overdue %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE operator_wallets SET cash_services_blocked = $2, updated_at = NOW() WHERE id = $1
		`, walletID, blocked); err != nil {
			return fmt.Errorf("debt repository: set block flag %w", err)
		}
		return nil
	})
	return blocked, err
}

// SweepOverdue marks every past-due debt overdue and blocks the affected
// wallets. Returns the wallets that transitioned to blocked so the caller
// can notify their owners.
func (r *DebtRepository) SweepOverdue(ctx context.Context) ([]uuid.UUID, error) {
	var newlyBlocked []uuid.UUID
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE pending_debts SET status = 'overdue', updated_at = NOW()
			WHERE remaining_amount > 0 AND due_date < NOW() AND status <> 'overdue'
		`); err != nil {
			return fmt.Errorf("debt repository: sweep overdue %w", err)
		}

		if err := tx.SelectContext(ctx, &newlyBlocked, `
			UPDATE operator_wallets w SET cash_services_blocked = TRUE, updated_at = NOW()
			WHERE cash_services_blocked = FALSE AND EXISTS (
				SELECT 1 FROM pending_debts d
				WHERE d.wallet_id = w.id AND d.status = 'overdue' AND d.remaining_amount > 0
			)
			RETURNING w.id
		`); err != nil {
			return fmt.Errorf("debt repository: block wallets %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return newlyBlocked, nil
}
