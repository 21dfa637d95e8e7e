// Package gateway talks to the external payment provider. The ledger never
// moves real money itself; it records the outcome of what the provider did.
package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnavailable means the provider could not be reached or answered
	// with a server error. The caller should compensate and retry later.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrDeclined means the provider rejected the operation outright.
	ErrDeclined = errors.New("payment gateway declined the operation")
)

// AuthorizeRequest holds a card/insurer hold against a service.
type AuthorizeRequest struct {
	Reference string          `json:"reference"`
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
}

// PayoutRequest sends funds to an operator's bank account.
type PayoutRequest struct {
	Reference     string          `json:"reference"`
	BankName      string          `json:"bank_name"`
	AccountNumber string          `json:"account_number"`
	AccountHolder string          `json:"account_holder"`
	Amount        decimal.Decimal `json:"amount"`
}

// PaymentGateway is the provider-side counterpart of the wallet ledger.
type PaymentGateway interface {
	// Authorize places a hold and returns the provider's authorization id.
	Authorize(ctx context.Context, req AuthorizeRequest) (string, error)
	// Capture settles a previously placed hold.
	Capture(ctx context.Context, authorizationID string, amount decimal.Decimal) error
	// Refund releases or reverses a hold.
	Refund(ctx context.Context, authorizationID string, amount decimal.Decimal) error
	// Payout transfers funds out to a bank account and returns the
	// provider's payout id.
	Payout(ctx context.Context, req PayoutRequest) (string, error)
}
