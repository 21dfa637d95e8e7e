package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PendingDebt statuses.
const (
	DebtStatusPending = "pending"
	DebtStatusPartial = "partial"
	DebtStatusPaid    = "paid"
	DebtStatusOverdue = "overdue"
)

// PendingDebt is one unit of cash-service commission owed to the platform.
// A wallet can carry several debts; repayments are applied oldest-due-first.
type PendingDebt struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	WalletID        uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	ServiceID       *uuid.UUID      `db:"service_id" json:"service_id,omitempty"`
	OriginalAmount  decimal.Decimal `db:"original_amount" json:"original_amount"`
	RemainingAmount decimal.Decimal `db:"remaining_amount" json:"remaining_amount"`
	DueDate         time.Time       `db:"due_date" json:"due_date"`
	Status          string          `db:"status" json:"status"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// IsOverdue reports whether the debt is past due with money still owed.
func (d *PendingDebt) IsOverdue(now time.Time) bool {
	return d.RemainingAmount.IsPositive() && d.DueDate.Before(now)
}
