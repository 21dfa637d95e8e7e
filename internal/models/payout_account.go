package models

import (
	"time"

	"github.com/google/uuid"
)

// PayoutAccount verification states.
const (
	PayoutAccountStatusPending  = "pending"
	PayoutAccountStatusVerified = "verified"
	PayoutAccountStatusRejected = "rejected"
)

// PayoutAccount is the operator's destination bank account for withdrawals.
// Withdrawals are rejected until the account is verified by an admin.
type PayoutAccount struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	OperatorID    uuid.UUID  `db:"operator_id" json:"operator_id"`
	BankName      string     `db:"bank_name" json:"bank_name"`
	AccountNumber string     `db:"account_number" json:"account_number"`
	AccountHolder string     `db:"account_holder" json:"account_holder"`
	Status        string     `db:"status" json:"status"`
	VerifiedAt    *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// IsVerified reports whether withdrawals may target this account.
func (a *PayoutAccount) IsVerified() bool {
	return a.Status == PayoutAccountStatusVerified
}

// VerificationDocument is an uploaded bank statement or ID backing a
// payout account verification request.
type VerificationDocument struct {
	ID           uuid.UUID `db:"id" json:"id"`
	AccountID    uuid.UUID `db:"account_id" json:"account_id"`
	FilePath     string    `db:"file_path" json:"file_path"`
	OriginalName string    `db:"original_name" json:"original_name"`
	ContentType  string    `db:"content_type" json:"content_type"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
