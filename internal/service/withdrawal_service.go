package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/towlink/dispatch-backend/internal/config"
	"github.com/towlink/dispatch-backend/internal/gateway"
	"github.com/towlink/dispatch-backend/internal/logger"
	"github.com/towlink/dispatch-backend/internal/models"
	"github.com/towlink/dispatch-backend/internal/repository"
)

var (
	ErrBelowMinimum             = errors.New("amount is below the minimum withdrawal")
	ErrPayoutAccountMissing     = errors.New("no payout account on file")
	ErrPayoutAccountNotVerified = errors.New("payout account is not verified")
)

// WithdrawalRepo describes WithdrawalService's storage dependency.
type WithdrawalRepo interface {
	Reserve(ctx context.Context, w *models.Withdrawal) error
	ReserveExisting(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	MarkFailedUnreserved(ctx context.Context, id uuid.UUID, reason string) error
	MarkCompleted(ctx context.Context, id uuid.UUID, payoutID string) (*models.Withdrawal, error)
	Compensate(ctx context.Context, id uuid.UUID, reason string) (*models.Withdrawal, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.Withdrawal, error)
	ListStuckProcessing(ctx context.Context, maxAge time.Duration) ([]models.Withdrawal, error)
}

// PayoutAccountRepo is the slice of the payout account repository the
// withdrawal flow needs.
type PayoutAccountRepo interface {
	GetByOperator(ctx context.Context, operatorID uuid.UUID) (*models.PayoutAccount, error)
}

// WithdrawalWalletRepo is the slice of the wallet repository the
// withdrawal flow needs.
type WithdrawalWalletRepo interface {
	GetOrCreateByOperator(ctx context.Context, operatorID uuid.UUID) (*models.OperatorWallet, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.OperatorWallet, error)
}

// WithdrawalService runs the reserve-then-confirm payout flow. Funds leave
// the balance before the gateway is called; a gateway failure credits them
// back. The journal therefore never shows money at the provider that is
// still counted as available.
type WithdrawalService struct {
	withdrawals WithdrawalRepo
	wallets     WithdrawalWalletRepo
	accounts    PayoutAccountRepo
	commission  *CommissionService
	gateway     gateway.PaymentGateway
	rates       config.Rates
	notifier    WalletNotifier
}

func NewWithdrawalService(
	withdrawals WithdrawalRepo,
	wallets WithdrawalWalletRepo,
	accounts PayoutAccountRepo,
	commission *CommissionService,
	gw gateway.PaymentGateway,
	rates config.Rates,
	notifier WalletNotifier,
) *WithdrawalService {
	return &WithdrawalService{
		withdrawals: withdrawals,
		wallets:     wallets,
		accounts:    accounts,
		commission:  commission,
		gateway:     gw,
		rates:       rates,
		notifier:    notifier,
	}
}

// RequestImmediate withdraws funds right away for a fee. The gross amount
// is debited up front; the operator receives the net at the bank.
func (s *WithdrawalService) RequestImmediate(ctx context.Context, operatorID uuid.UUID, amount decimal.Decimal) (*models.Withdrawal, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if amount.LessThan(s.rates.MinWithdrawal) {
		return nil, ErrBelowMinimum
	}

	account, err := s.verifiedAccount(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	fee, net, err := s.commission.ComputeWithdrawalFee(amount)
	if err != nil {
		return nil, err
	}

	wallet, err := s.wallets.GetOrCreateByOperator(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	w := &models.Withdrawal{
		WalletID:        wallet.ID,
		Type:            models.WithdrawalTypeImmediate,
		RequestedAmount: amount,
		FeeAmount:       fee,
		NetAmount:       net,
	}

	if err := s.withdrawals.Reserve(ctx, w); err != nil {
		return nil, err
	}

	return s.settle(ctx, w, account, operatorID)
}

// ProcessScheduled reserves and settles one batch item. Returns the settled
// withdrawal; callers inspect its status for the batch tallies.
func (s *WithdrawalService) ProcessScheduled(ctx context.Context, item *models.Withdrawal) (*models.Withdrawal, error) {
	wallet, err := s.wallets.GetByID(ctx, item.WalletID)
	if err != nil {
		return nil, err
	}

	account, err := s.verifiedAccount(ctx, wallet.OperatorID)
	if err != nil {
		// No funds were reserved yet; fail the item without compensation.
		if markErr := s.withdrawals.MarkFailedUnreserved(ctx, item.ID, err.Error()); markErr != nil {
			return nil, markErr
		}
		failed, getErr := s.withdrawals.GetByID(ctx, item.ID)
		if getErr != nil {
			return nil, getErr
		}
		s.notifyOutcome(wallet.OperatorID, failed)
		return failed, nil
	}

	reserved, err := s.withdrawals.ReserveExisting(ctx, item.ID)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			// The balance shrank between collection and processing.
			if markErr := s.withdrawals.MarkFailedUnreserved(ctx, item.ID, "insufficient balance"); markErr != nil {
				return nil, markErr
			}
			failed, getErr := s.withdrawals.GetByID(ctx, item.ID)
			if getErr != nil {
				return nil, getErr
			}
			s.notifyOutcome(wallet.OperatorID, failed)
			return failed, nil
		}
		return nil, err
	}

	return s.settle(ctx, reserved, account, wallet.OperatorID)
}

// GetWithdrawal returns one of the operator's withdrawals.
func (s *WithdrawalService) GetWithdrawal(ctx context.Context, operatorID, id uuid.UUID) (*models.Withdrawal, error) {
	w, err := s.withdrawals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	wallet, err := s.wallets.GetOrCreateByOperator(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	if w.WalletID != wallet.ID {
		return nil, repository.ErrWithdrawalNotFound
	}

	return w, nil
}

// ListWithdrawals returns the operator's withdrawals, newest first.
func (s *WithdrawalService) ListWithdrawals(ctx context.Context, operatorID uuid.UUID, limit, offset int) ([]models.Withdrawal, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	wallet, err := s.wallets.GetOrCreateByOperator(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	return s.withdrawals.ListByWallet(ctx, wallet.ID, limit, offset)
}

// ListStuck returns withdrawals waiting on the gateway beyond maxAge.
// Admin reconciliation surface; the rows are reported, not auto-resolved.
func (s *WithdrawalService) ListStuck(ctx context.Context, maxAge time.Duration) ([]models.Withdrawal, error) {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return s.withdrawals.ListStuckProcessing(ctx, maxAge)
}

// settle sends the payout for a reserved withdrawal and records the outcome.
func (s *WithdrawalService) settle(ctx context.Context, w *models.Withdrawal, account *models.PayoutAccount, operatorID uuid.UUID) (*models.Withdrawal, error) {
	payoutID, err := s.gateway.Payout(ctx, gateway.PayoutRequest{
		Reference:     w.ID.String(),
		BankName:      account.BankName,
		AccountNumber: account.AccountNumber,
		AccountHolder: account.AccountHolder,
		Amount:        w.NetAmount,
	})
	if err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"withdrawal_id": w.ID,
			"error":         err.Error(),
		}).Warn("withdrawal service: payout failed, compensating")

		failed, compErr := s.withdrawals.Compensate(ctx, w.ID, err.Error())
		if compErr != nil {
			return nil, fmt.Errorf("withdrawal service: compensate after payout failure: %w", compErr)
		}
		s.notifyOutcome(operatorID, failed)
		return failed, nil
	}

	completed, err := s.withdrawals.MarkCompleted(ctx, w.ID, payoutID)
	if err != nil {
		return nil, err
	}
	s.notifyOutcome(operatorID, completed)
	return completed, nil
}

func (s *WithdrawalService) verifiedAccount(ctx context.Context, operatorID uuid.UUID) (*models.PayoutAccount, error) {
	account, err := s.accounts.GetByOperator(ctx, operatorID)
	if err != nil {
		if errors.Is(err, repository.ErrPayoutAccountNotFound) {
			return nil, ErrPayoutAccountMissing
		}
		return nil, err
	}
	if !account.IsVerified() {
		return nil, ErrPayoutAccountNotVerified
	}
	return account, nil
}

func (s *WithdrawalService) notifyOutcome(operatorID uuid.UUID, w *models.Withdrawal) {
	if s.notifier == nil {
		return
	}

	event := models.EventWithdrawalCompleted
	if w.Status == models.WithdrawalStatusFailed {
		event = models.EventWithdrawalFailed
	}

	data := map[string]any{
		"withdrawal_id":    w.ID,
		"requested_amount": w.RequestedAmount,
		"net_amount":       w.NetAmount,
		"status":           w.Status,
	}
	if w.FailureReason != nil {
		data["failure_reason"] = *w.FailureReason
	}

	if err := s.notifier.BroadcastToOperator(operatorID, event, data); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"operator_id": operatorID,
			"event":       event,
			"error":       err.Error(),
		}).Warn("withdrawal service: failed to push notification")
	}
}
