package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/towlink/dispatch-backend/internal/models"
	"github.com/towlink/dispatch-backend/internal/repository/common"
)

var (
	ErrBatchNotFound        = common.NotFound("payout batch not found")
	ErrDuplicateBatchWindow = common.AlreadyExists("payout batch already exists for this window")
)

// BatchRepository owns the payout_batches table. The unique constraint on
// window_start is the idempotency guard: two schedulers waking for the same
// window race on the insert and exactly one wins.
type BatchRepository struct {
	db *sqlx.DB
}

func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// CreateForWindow opens a batch for the given window in collecting state.
func (r *BatchRepository) CreateForWindow(ctx context.Context, windowStart, windowEnd time.Time) (*models.PayoutBatch, error) {
	var batch models.PayoutBatch
	err := r.db.GetContext(ctx, &batch, `
		INSERT INTO payout_batches (window_start, window_end, status)
		VALUES ($1, $2, 'collecting')
		RETURNING *
	`, windowStart, windowEnd)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicateBatchWindow
		}
		return nil, fmt.Errorf("batch repository: create %w", err)
	}
	return &batch, nil
}

// InsertItems writes the collected scheduled withdrawals in pending state.
// The funds are not reserved yet; that happens per item during processing.
func (r *BatchRepository) InsertItems(ctx context.Context, batchID uuid.UUID, items []models.Withdrawal) error {
	if len(items) == 0 {
		return nil
	}
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		inserter := common.NewBatchInserter(tx, `
			INSERT INTO withdrawals (wallet_id, batch_id, type, requested_amount, fee_amount, net_amount, status)
		`, 7, 100)
		for _, item := range items {
			if err := inserter.Add(ctx, item.WalletID, batchID, models.WithdrawalTypeScheduled,
				item.RequestedAmount, decimal.Zero, item.RequestedAmount, models.WithdrawalStatusPending); err != nil {
				return err
			}
		}
		return inserter.Flush(ctx)
	})
}

// GetByID returns a batch by its identifier.
func (r *BatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PayoutBatch, error) {
	return common.GetByID[models.PayoutBatch](ctx, r.db, "payout_batches", id, ErrBatchNotFound)
}

// GetByWindowStart returns the batch for a window, if one was created.
func (r *BatchRepository) GetByWindowStart(ctx context.Context, windowStart time.Time) (*models.PayoutBatch, error) {
	return common.GetByField[models.PayoutBatch](ctx, r.db, "payout_batches", "window_start", windowStart, ErrBatchNotFound)
}

// List returns batches, newest window first.
func (r *BatchRepository) List(ctx context.Context, limit, offset int) ([]models.PayoutBatch, error) {
	var batches []models.PayoutBatch
	err := r.db.SelectContext(ctx, &batches, `
		SELECT * FROM payout_batches ORDER BY window_start DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("batch repository: list %w", err)
	}
	return batches, nil
}

// ListItems returns the withdrawals belonging to a batch.
func (r *BatchRepository) ListItems(ctx context.Context, batchID uuid.UUID) ([]models.Withdrawal, error) {
	var items []models.Withdrawal
	err := r.db.SelectContext(ctx, &items, `
		SELECT * FROM withdrawals WHERE batch_id = $1 ORDER BY created_at
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("batch repository: list items %w", err)
	}
	return items, nil
}

// SetStatus moves a batch between lifecycle states.
func (r *BatchRepository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE payout_batches SET status = $2 WHERE id = $1
	`, id, status); err != nil {
		return fmt.Errorf("batch repository: set status %w", err)
	}
	return nil
}

// Finalize records the batch outcome after every item resolved.
func (r *BatchRepository) Finalize(ctx context.Context, id uuid.UUID, status string, totalAmount decimal.Decimal, itemCount, failedCount int) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE payout_batches
		SET status = $2, total_amount = $3, item_count = $4, failed_count = $5, completed_at = NOW()
		WHERE id = $1
	`, id, status, totalAmount, itemCount, failedCount); err != nil {
		return fmt.Errorf("batch repository: finalize %w", err)
	}
	return nil
}
