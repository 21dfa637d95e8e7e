package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Withdrawal types.
const (
	WithdrawalTypeImmediate = "immediate"
	WithdrawalTypeScheduled = "scheduled"
)

// Withdrawal statuses. Completed and failed are terminal; a withdrawal left
// in processing is waiting on the payment gateway and surfaces in the
// reconciliation listing.
const (
	WithdrawalStatusPending    = "pending"
	WithdrawalStatusProcessing = "processing"
	WithdrawalStatusCompleted  = "completed"
	WithdrawalStatusFailed     = "failed"
)

// Withdrawal is one payout of wallet funds to the operator's bank account.
// The gross RequestedAmount is debited when the row enters processing; a
// gateway failure credits it back before the row turns failed.
type Withdrawal struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	WalletID        uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	BatchID         *uuid.UUID      `db:"batch_id" json:"batch_id,omitempty"`
	Type            string          `db:"type" json:"type"`
	RequestedAmount decimal.Decimal `db:"requested_amount" json:"requested_amount"`
	FeeAmount       decimal.Decimal `db:"fee_amount" json:"fee_amount"`
	NetAmount       decimal.Decimal `db:"net_amount" json:"net_amount"`
	Status          string          `db:"status" json:"status"`
	PayoutID        *string         `db:"payout_id" json:"payout_id,omitempty"`
	FailureReason   *string         `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt     *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}
