package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/towlink/dispatch-backend/internal/logger"
	"github.com/towlink/dispatch-backend/internal/models"
	"github.com/towlink/dispatch-backend/internal/repository"
)

// BatchRepo describes PayrollService's batch storage dependency.
type BatchRepo interface {
	CreateForWindow(ctx context.Context, windowStart, windowEnd time.Time) (*models.PayoutBatch, error)
	InsertItems(ctx context.Context, batchID uuid.UUID, items []models.Withdrawal) error
	ListItems(ctx context.Context, batchID uuid.UUID) ([]models.Withdrawal, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	Finalize(ctx context.Context, id uuid.UUID, status string, totalAmount decimal.Decimal, itemCount, failedCount int) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PayoutBatch, error)
	List(ctx context.Context, limit, offset int) ([]models.PayoutBatch, error)
}

// PayrollWalletRepo is the slice of the wallet repository the payroll sweep
// needs.
type PayrollWalletRepo interface {
	ListEligibleForPayout(ctx context.Context) ([]models.OperatorWallet, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.OperatorWallet, error)
}

// ScheduledProcessor settles one collected batch item.
type ScheduledProcessor interface {
	ProcessScheduled(ctx context.Context, item *models.Withdrawal) (*models.Withdrawal, error)
}

// OverdueSweeper marks overdue debts before a payroll run.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context) (int, error)
}

// PayrollService sweeps every positive wallet balance into a payout batch
// during the configured weekly windows. Scheduled payouts carry no fee.
//
// A batch is keyed by its window start; the second scheduler that wakes for
// the same window hits the unique constraint and walks away, so a window is
// swept exactly once no matter how many instances run.
type PayrollService struct {
	batches   BatchRepo
	wallets   PayrollWalletRepo
	processor ScheduledProcessor
	sweeper   OverdueSweeper
	notifier  WalletNotifier
}

func NewPayrollService(
	batches BatchRepo,
	wallets PayrollWalletRepo,
	processor ScheduledProcessor,
	sweeper OverdueSweeper,
	notifier WalletNotifier,
) *PayrollService {
	return &PayrollService{
		batches:   batches,
		wallets:   wallets,
		processor: processor,
		sweeper:   sweeper,
		notifier:  notifier,
	}
}

// RunWindow executes one payroll window end to end. Running it again for
// the same window is a no-op.
func (s *PayrollService) RunWindow(ctx context.Context, windowStart, windowEnd time.Time) (*models.PayoutBatch, error) {
	// Overdue debts are settled state before money leaves the platform.
	if s.sweeper != nil {
		if blocked, err := s.sweeper.SweepOverdue(ctx); err != nil {
			logger.Log.WithField("error", err.Error()).Error("payroll: overdue sweep failed")
		} else if blocked > 0 {
			logger.Log.WithField("blocked_wallets", blocked).Info("payroll: wallets blocked for overdue debt")
		}
	}

	batch, err := s.batches.CreateForWindow(ctx, windowStart, windowEnd)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateBatchWindow) {
			logger.Log.WithField("window_start", windowStart).Info("payroll: window already swept")
			return nil, nil
		}
		return nil, err
	}

	log := logger.Log.WithField("batch_id", batch.ID)
	log.WithField("window_start", windowStart).Info("payroll: batch opened")

	eligible, err := s.wallets.ListEligibleForPayout(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]models.Withdrawal, 0, len(eligible))
	for _, wallet := range eligible {
		items = append(items, models.Withdrawal{
			WalletID:        wallet.ID,
			RequestedAmount: wallet.BalanceAvailable,
		})
	}

	if err := s.batches.InsertItems(ctx, batch.ID, items); err != nil {
		return nil, err
	}
	if err := s.batches.SetStatus(ctx, batch.ID, models.BatchStatusProcessing); err != nil {
		return nil, err
	}

	inserted, err := s.batches.ListItems(ctx, batch.ID)
	if err != nil {
		return nil, err
	}

	var (
		total  = decimal.Zero
		failed int
	)
	for i := range inserted {
		settled, err := s.processor.ProcessScheduled(ctx, &inserted[i])
		if err != nil {
			log.WithFields(map[string]interface{}{
				"withdrawal_id": inserted[i].ID,
				"error":         err.Error(),
			}).Error("payroll: item processing failed")
			failed++
			continue
		}

		if settled.Status == models.WithdrawalStatusCompleted {
			total = total.Add(settled.NetAmount)
			s.notifySettled(ctx, batch, settled)
		} else {
			failed++
		}
	}

	status := models.BatchStatusCompleted
	if failed > 0 {
		status = models.BatchStatusCompletedWithErrors
	}
	if err := s.batches.Finalize(ctx, batch.ID, status, total, len(inserted), failed); err != nil {
		return nil, err
	}

	log.WithFields(map[string]interface{}{
		"status":       status,
		"item_count":   len(inserted),
		"failed_count": failed,
		"total_amount": total,
	}).Info("payroll: batch finished")

	return s.batches.GetByID(ctx, batch.ID)
}

// GetBatch returns a batch by id.
func (s *PayrollService) GetBatch(ctx context.Context, id uuid.UUID) (*models.PayoutBatch, error) {
	return s.batches.GetByID(ctx, id)
}

// ListBatches returns batches, newest window first.
func (s *PayrollService) ListBatches(ctx context.Context, limit, offset int) ([]models.PayoutBatch, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.batches.List(ctx, limit, offset)
}

// ListBatchItems returns the withdrawals of one batch.
func (s *PayrollService) ListBatchItems(ctx context.Context, batchID uuid.UUID) ([]models.Withdrawal, error) {
	return s.batches.ListItems(ctx, batchID)
}

func (s *PayrollService) notifySettled(ctx context.Context, batch *models.PayoutBatch, w *models.Withdrawal) {
	if s.notifier == nil {
		return
	}

	wallet, err := s.wallets.GetByID(ctx, w.WalletID)
	if err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"wallet_id": w.WalletID,
			"error":     err.Error(),
		}).Warn("payroll: failed to load wallet for notification")
		return
	}

	if err := s.notifier.BroadcastToOperator(wallet.OperatorID, models.EventPayoutBatchSettled, map[string]any{
		"batch_id":     batch.ID,
		"window_start": batch.WindowStart,
		"amount":       w.NetAmount,
	}); err != nil {
		logger.Log.WithFields(map[string]interface{}{
			"operator_id": wallet.OperatorID,
			"error":       err.Error(),
		}).Warn("payroll: failed to push notification")
	}
}
