package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ServiceRequest statuses.
const (
	ServiceStatusRequested = "requested"
	ServiceStatusAccepted  = "accepted"
	ServiceStatusCompleted = "completed"
	ServiceStatusCancelled = "cancelled"
)

// ServiceRequest is one tow/roadside job. Only the fields the money flow
// needs live here; dispatch and matching are handled elsewhere.
type ServiceRequest struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	ClientID      uuid.UUID       `db:"client_id" json:"client_id"`
	OperatorID    *uuid.UUID      `db:"operator_id" json:"operator_id,omitempty"`
	Description   *string         `db:"description" json:"description,omitempty"`
	GrossAmount   decimal.Decimal `db:"gross_amount" json:"gross_amount"`
	PaymentMethod string          `db:"payment_method" json:"payment_method"`
	Status        string          `db:"status" json:"status"`
	AcceptedAt    *time.Time      `db:"accepted_at" json:"accepted_at,omitempty"`
	CompletedAt   *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}
