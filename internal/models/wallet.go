package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet transaction types.
const (
	WalletTxTypeCredit = "credit"
	WalletTxTypeDebit  = "debit"
)

// Wallet transaction reasons recorded in the audit journal.
const (
	WalletTxReasonServicePayment     = "service_payment"
	WalletTxReasonWithdrawalReserve  = "withdrawal_reserve"
	WalletTxReasonWithdrawalRefund   = "withdrawal_refund"
	WalletTxReasonDebtRepayment      = "debt_repayment"
	WalletTxReasonCaptureReversal    = "capture_reversal"
)

// OperatorWallet holds an operator's balances and cash-debt standing.
// Created lazily on the first completed service and never deleted while
// the operator account exists.
type OperatorWallet struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	OperatorID          uuid.UUID       `db:"operator_id" json:"operator_id"`
	BalanceAvailable    decimal.Decimal `db:"balance_available" json:"balance_available"`
	BalancePending      decimal.Decimal `db:"balance_pending" json:"balance_pending"`
	TotalDebt           decimal.Decimal `db:"total_debt" json:"total_debt"`
	CashServicesBlocked bool            `db:"cash_services_blocked" json:"cash_services_blocked"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// WalletTransaction is one journal row in the wallet's audit history.
// Every credit/debit primitive writes exactly one row.
type WalletTransaction struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	WalletID      uuid.UUID       `db:"wallet_id" json:"wallet_id"`
	ServiceID     *uuid.UUID      `db:"service_id" json:"service_id,omitempty"`
	WithdrawalID  *uuid.UUID      `db:"withdrawal_id" json:"withdrawal_id,omitempty"`
	Type          string          `db:"type" json:"type"`
	Reason        string          `db:"reason" json:"reason"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	BalanceBefore decimal.Decimal `db:"balance_before" json:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after" json:"balance_after"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
