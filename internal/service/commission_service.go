package service

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/towlink/dispatch-backend/internal/config"
	"github.com/towlink/dispatch-backend/internal/models"
)

var (
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	ErrInvalidAmount        = errors.New("amount must be positive")
)

// Split is the outcome of dividing a service payment between the operator
// and the platform. OperatorAmount + CommissionAmount == Gross, always:
// the operator share is rounded down to cents and the platform absorbs
// the remainder, so no fraction of a cent is ever created or lost.
type Split struct {
	Gross            decimal.Decimal
	OperatorAmount   decimal.Decimal
	CommissionAmount decimal.Decimal
	Rate             decimal.Decimal
}

// CommissionService computes the platform's cut for every payment method.
// It is pure math over the configured rate table and holds no state.
type CommissionService struct {
	rates config.Rates
}

func NewCommissionService(rates config.Rates) *CommissionService {
	return &CommissionService{rates: rates}
}

// RateFor returns the commission rate for a payment method.
func (s *CommissionService) RateFor(method string) (decimal.Decimal, error) {
	switch method {
	case models.PaymentMethodCard:
		return s.rates.CommissionCard, nil
	case models.PaymentMethodInsurer:
		return s.rates.CommissionInsurer, nil
	case models.PaymentMethodCash:
		return s.rates.CommissionCash, nil
	default:
		return decimal.Decimal{}, ErrUnknownPaymentMethod
	}
}

// ComputeSplit divides a gross card/insurer payment into operator and
// platform shares.
func (s *CommissionService) ComputeSplit(gross decimal.Decimal, method string) (Split, error) {
	if !gross.IsPositive() {
		return Split{}, ErrInvalidAmount
	}

	rate, err := s.RateFor(method)
	if err != nil {
		return Split{}, err
	}

	one := decimal.NewFromInt(1)
	operator := gross.Mul(one.Sub(rate)).RoundFloor(2)
	commission := gross.Sub(operator)

	return Split{
		Gross:            gross,
		OperatorAmount:   operator,
		CommissionAmount: commission,
		Rate:             rate,
	}, nil
}

// ComputeCashCommission returns the commission owed on a cash service.
// The operator already holds the gross in hand; the platform's share is
// rounded up, same direction as the split remainder.
func (s *CommissionService) ComputeCashCommission(gross decimal.Decimal) (decimal.Decimal, error) {
	if !gross.IsPositive() {
		return decimal.Decimal{}, ErrInvalidAmount
	}

	return gross.Mul(s.rates.CommissionCash).RoundCeil(2), nil
}

// ComputeWithdrawalFee returns the fee and net amount for an immediate
// withdrawal. The fee is rounded up so the rounding remainder goes to the
// platform, never to the operator.
func (s *CommissionService) ComputeWithdrawalFee(requested decimal.Decimal) (fee, net decimal.Decimal, err error) {
	if !requested.IsPositive() {
		return decimal.Decimal{}, decimal.Decimal{}, ErrInvalidAmount
	}

	fee = requested.Mul(s.rates.WithdrawalFee).RoundCeil(2)
	net = requested.Sub(fee)
	return fee, net, nil
}
