package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/towlink/dispatch-backend/internal/config"
	"github.com/towlink/dispatch-backend/internal/logger"
	"github.com/towlink/dispatch-backend/internal/models"
)

var (
	ErrCashServicesBlocked = errors.New("cash services are blocked until overdue debt is repaid")
	ErrNoOutstandingDebt   = errors.New("no outstanding debt")
)

// WalletNotifier pushes wallet events to the operator. Implemented by the
// WebSocket hub; nil disables pushes without touching the money flow.
type WalletNotifier interface {
	BroadcastToOperator(operatorID uuid.UUID, event string, data any) error
}

// DebtRepo describes DebtService's storage dependency.
type DebtRepo interface {
	Create(ctx context.Context, walletID uuid.UUID, serviceID *uuid.UUID, amount decimal.Decimal, dueDate time.Time) (*models.PendingDebt, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]models.PendingDebt, error)
	ApplyRepayment(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	RefreshBlockStatus(ctx context.Context, walletID uuid.UUID) (bool, error)
	SweepOverdue(ctx context.Context) ([]uuid.UUID, error)
}

// DebtWalletRepo is the slice of the wallet repository the debt flow needs.
type DebtWalletRepo interface {
	GetOrCreateByOperator(ctx context.Context, operatorID uuid.UUID) (*models.OperatorWallet, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.OperatorWallet, error)
	Debit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, entry models.WalletTransaction) (*models.WalletTransaction, error)
	Credit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, entry models.WalletTransaction) (*models.WalletTransaction, error)
}

// DebtService tracks cash-service commission owed to the platform and the
// block that overdue debt places on new cash jobs.
type DebtService struct {
	debts    DebtRepo
	wallets  DebtWalletRepo
	rates    config.Rates
	notifier WalletNotifier
}

func NewDebtService(debts DebtRepo, wallets DebtWalletRepo, rates config.Rates, notifier WalletNotifier) *DebtService {
	return &DebtService{
		debts:    debts,
		wallets:  wallets,
		rates:    rates,
		notifier: notifier,
	}
}

// Accrue records a new commission debt against a wallet. The due date is
// the accrual moment plus the configured grace period.
func (s *DebtService) Accrue(ctx context.Context, walletID uuid.UUID, serviceID *uuid.UUID, amount decimal.Decimal) (*models.PendingDebt, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	dueDate := time.Now().AddDate(0, 0, s.rates.DebtDueDays)
	return s.debts.Create(ctx, walletID, serviceID, amount, dueDate)
}

// EnsureCanAcceptCash rejects new cash jobs for operators with an overdue
// debt. The block flag is recomputed from the debts on every call; a debt
// that passed its due date since the last sweep blocks the operator right
// here, not at the next payroll window. Card and insurer jobs are never
// gated.
func (s *DebtService) EnsureCanAcceptCash(ctx context.Context, operatorID uuid.UUID) error {
	wallet, err := s.wallets.GetOrCreateByOperator(ctx, operatorID)
	if err != nil {
		return err
	}

	blocked, err := s.debts.RefreshBlockStatus(ctx, wallet.ID)
	if err != nil {
		return err
	}
	if blocked {
		return ErrCashServicesBlocked
	}
	return nil
}

// ListDebts returns the operator's debts, oldest due first.
func (s *DebtService) ListDebts(ctx context.Context, operatorID uuid.UUID) ([]models.PendingDebt, error) {
	wallet, err := s.wallets.GetOrCreateByOperator(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	return s.debts.ListByWallet(ctx, wallet.ID)
}

// Repay pays down the operator's debt from the available balance,
// oldest-due-first. An amount above the total outstanding debt is clipped;
// the operator is never charged more than they owe.
func (s *DebtService) Repay(ctx context.Context, operatorID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Decimal{}, ErrInvalidAmount
	}

	wallet, err := s.wallets.GetOrCreateByOperator(ctx, operatorID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !wallet.TotalDebt.IsPositive() {
		return decimal.Decimal{}, ErrNoOutstandingDebt
	}

	toPay := decimal.Min(amount, wallet.TotalDebt)

	if _, err := s.wallets.Debit(ctx, wallet.ID, toPay, models.WalletTransaction{
		Reason: models.WalletTxReasonDebtRepayment,
	}); err != nil {
		return decimal.Decimal{}, err
	}

	applied, err := s.debts.ApplyRepayment(ctx, wallet.ID, toPay)
	if err != nil {
		return decimal.Decimal{}, err
	}

	// A concurrent repayment may have shrunk the debt between the read and
	// the application; return the unapplied remainder to the balance.
	if applied.LessThan(toPay) {
		excess := toPay.Sub(applied)
		if _, err := s.wallets.Credit(ctx, wallet.ID, excess, models.WalletTransaction{
			Reason: models.WalletTxReasonDebtRepayment,
		}); err != nil {
			return decimal.Decimal{}, err
		}
	}

	if _, err := s.debts.RefreshBlockStatus(ctx, wallet.ID); err != nil {
		return decimal.Decimal{}, err
	}

	return applied, nil
}

// SweepOverdue marks debts past their due date and blocks cash services on
// the affected wallets. Returns how many wallets were newly blocked.
func (s *DebtService) SweepOverdue(ctx context.Context) (int, error) {
	blockedWallets, err := s.debts.SweepOverdue(ctx)
	if err != nil {
		return 0, err
	}

	for _, walletID := range blockedWallets {
		wallet, err := s.wallets.GetByID(ctx, walletID)
		if err != nil {
			logger.Log.WithFields(map[string]interface{}{
				"wallet_id": walletID,
				"error":     err.Error(),
			}).Warn("debt service: failed to load newly blocked wallet")
			continue
		}

		s.notify(wallet.OperatorID, models.EventCashServicesBlocked, map[string]any{
			"wallet_id":  wallet.ID,
			"total_debt": wallet.TotalDebt,
		})
	}

	return len(blockedWallets), nil
}

func (s *DebtService) notify(operatorID uuid.UUID, event string, data any) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.BroadcastToOperator(operatorID, event, data); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"operator_id": operatorID,
			"event":       event,
			"error":       err.Error(),
		}).Warn("debt service: failed to push notification")
	}
}
