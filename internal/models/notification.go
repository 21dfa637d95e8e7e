package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Wallet event names pushed over WebSocket and stored as notifications.
const (
	EventWithdrawalCompleted = "withdrawal_completed"
	EventWithdrawalFailed    = "withdrawal_failed"
	EventPayoutBatchSettled  = "payout_batch_settled"
	EventCashServicesBlocked = "cash_services_blocked"
)

// Notification is an event delivered to an operator.
type Notification struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	OperatorID uuid.UUID       `db:"operator_id" json:"operator_id"`
	Payload    json.RawMessage `db:"payload" json:"payload"`
	IsRead     bool            `db:"is_read" json:"is_read"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
