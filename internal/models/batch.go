package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayoutBatch statuses.
const (
	BatchStatusCollecting          = "collecting"
	BatchStatusProcessing          = "processing"
	BatchStatusCompleted           = "completed"
	BatchStatusCompletedWithErrors = "completed_with_errors"
)

// PayoutBatch groups the scheduled withdrawals swept in one payout window.
// WindowStart carries a unique constraint, so a window can never be swept
// twice even if two scheduler instances wake at the same moment.
type PayoutBatch struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	WindowStart time.Time       `db:"window_start" json:"window_start"`
	WindowEnd   time.Time       `db:"window_end" json:"window_end"`
	Status      string          `db:"status" json:"status"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"total_amount"`
	ItemCount   int             `db:"item_count" json:"item_count"`
	FailedCount int             `db:"failed_count" json:"failed_count"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}
