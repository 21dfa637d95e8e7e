package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment methods accepted for a service.
const (
	PaymentMethodCard    = "card"
	PaymentMethodInsurer = "insurer"
	PaymentMethodCash    = "cash"
)

// PaymentCapture statuses.
const (
	CaptureStatusAuthorized = "authorized"
	CaptureStatusCaptured   = "captured"
	CaptureStatusRefunded   = "refunded"
	CaptureStatusFailed     = "failed"
)

// PaymentCapture records one service payment and its operator/platform split.
// Immutable once captured, except for the refund reversal.
// Invariant: OperatorAmount + CommissionAmount == GrossAmount, exactly.
type PaymentCapture struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	ServiceID        uuid.UUID       `db:"service_id" json:"service_id"`
	WalletID         uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	PaymentMethod    string          `db:"payment_method" json:"payment_method"`
	GrossAmount      decimal.Decimal `db:"gross_amount" json:"gross_amount"`
	CommissionAmount decimal.Decimal `db:"commission_amount" json:"commission_amount"`
	OperatorAmount   decimal.Decimal `db:"operator_amount" json:"operator_amount"`
	Status           string          `db:"status" json:"status"`
	AuthorizationID  *string         `db:"authorization_id" json:"authorization_id,omitempty"`
	CapturedAt       *time.Time      `db:"captured_at" json:"captured_at,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}
