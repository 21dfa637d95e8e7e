package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/towlink/dispatch-backend/internal/gateway"
	"github.com/towlink/dispatch-backend/internal/logger"
	"github.com/towlink/dispatch-backend/internal/models"
	"github.com/towlink/dispatch-backend/internal/repository"
)

var ErrNotServiceOperator = errors.New("service request belongs to another operator")

// ServiceRepo describes the service-request storage dependency.
type ServiceRepo interface {
	Create(ctx context.Context, svc *models.ServiceRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error)
	Accept(ctx context.Context, id, operatorID uuid.UUID) (*models.ServiceRequest, error)
	Complete(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error)
	Cancel(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error)
	ListByOperator(ctx context.Context, operatorID uuid.UUID, limit, offset int) ([]models.ServiceRequest, error)
}

// CaptureRepo describes the payment-capture storage dependency.
type CaptureRepo interface {
	Create(ctx context.Context, capture *models.PaymentCapture) error
	GetByServiceID(ctx context.Context, serviceID uuid.UUID) (*models.PaymentCapture, error)
	MarkCaptured(ctx context.Context, id uuid.UUID) (*models.PaymentCapture, error)
	MarkRefunded(ctx context.Context, id uuid.UUID) (*models.PaymentCapture, error)
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

// PaymentWalletRepo is the slice of the wallet repository the payment flow
// needs.
type PaymentWalletRepo interface {
	GetOrCreateByOperator(ctx context.Context, operatorID uuid.UUID) (*models.OperatorWallet, error)
}

// PaymentService drives the money side of the service lifecycle: the
// authorization hold at accept, the capture and split at completion, the
// debt accrual on cash jobs, and the reversal on cancellation.
//
// Card and insurer payments flow through the gateway and leave a capture
// row. Cash never touches the gateway: the operator holds the gross in
// hand and the platform's share accrues as debt at completion.
type PaymentService struct {
	services   ServiceRepo
	captures   CaptureRepo
	wallets    PaymentWalletRepo
	commission *CommissionService
	debts      *DebtService
	gateway    gateway.PaymentGateway
}

func NewPaymentService(
	services ServiceRepo,
	captures CaptureRepo,
	wallets PaymentWalletRepo,
	commission *CommissionService,
	debts *DebtService,
	gw gateway.PaymentGateway,
) *PaymentService {
	return &PaymentService{
		services:   services,
		captures:   captures,
		wallets:    wallets,
		commission: commission,
		debts:      debts,
		gateway:    gw,
	}
}

// CreateService registers a new service request.
func (s *PaymentService) CreateService(ctx context.Context, clientID uuid.UUID, description string, gross decimal.Decimal, method string) (*models.ServiceRequest, error) {
	if !gross.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if _, err := s.commission.RateFor(method); err != nil {
		return nil, err
	}

	svc := &models.ServiceRequest{
		ClientID:      clientID,
		GrossAmount:   gross,
		PaymentMethod: method,
	}
	if description != "" {
		svc.Description = &description
	}

	if err := s.services.Create(ctx, svc); err != nil {
		return nil, err
	}

	return svc, nil
}

// GetService returns a service request by id.
func (s *PaymentService) GetService(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	return s.services.GetByID(ctx, id)
}

// ListOperatorServices returns the operator's jobs.
func (s *PaymentService) ListOperatorServices(ctx context.Context, operatorID uuid.UUID, limit, offset int) ([]models.ServiceRequest, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.services.ListByOperator(ctx, operatorID, limit, offset)
}

// AcceptService assigns the job to the operator. Cash jobs are gated on the
// debt block; card and insurer jobs place an authorization hold.
func (s *PaymentService) AcceptService(ctx context.Context, serviceID, operatorID uuid.UUID) (*models.ServiceRequest, error) {
	svc, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	if svc.PaymentMethod == models.PaymentMethodCash {
		if err := s.debts.EnsureCanAcceptCash(ctx, operatorID); err != nil {
			return nil, err
		}
	}

	// The accept transition is the race arbiter: only one operator can
	// move requested -> accepted.
	svc, err = s.services.Accept(ctx, serviceID, operatorID)
	if err != nil {
		return nil, err
	}

	if svc.PaymentMethod == models.PaymentMethodCash {
		return svc, nil
	}

	split, err := s.commission.ComputeSplit(svc.GrossAmount, svc.PaymentMethod)
	if err != nil {
		return nil, err
	}

	wallet, err := s.wallets.GetOrCreateByOperator(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	authID, err := s.gateway.Authorize(ctx, gateway.AuthorizeRequest{
		Reference: svc.ID.String(),
		Method:    svc.PaymentMethod,
		Amount:    svc.GrossAmount,
	})
	if err != nil {
		// Without a hold the job cannot proceed; release it.
		if _, cancelErr := s.services.Cancel(ctx, serviceID); cancelErr != nil {
			logger.Log.WithFields(map[string]interface{}{
				"service_id": serviceID,
				"error":      cancelErr.Error(),
			}).Error("payment service: failed to cancel after authorization failure")
		}
		return nil, fmt.Errorf("payment service: authorize: %w", err)
	}

	capture := &models.PaymentCapture{
		ServiceID:        svc.ID,
		WalletID:         wallet.ID,
		PaymentMethod:    svc.PaymentMethod,
		GrossAmount:      split.Gross,
		CommissionAmount: split.CommissionAmount,
		OperatorAmount:   split.OperatorAmount,
		Status:           models.CaptureStatusAuthorized,
		AuthorizationID:  &authID,
	}
	if err := s.captures.Create(ctx, capture); err != nil {
		return nil, err
	}

	return svc, nil
}

// CompleteService settles the job. Card/insurer captures the hold and
// credits the operator's share; cash accrues the commission as debt.
// A gateway failure leaves the job accepted so completion can be retried.
func (s *PaymentService) CompleteService(ctx context.Context, serviceID, operatorID uuid.UUID) (*models.ServiceRequest, error) {
	svc, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if svc.OperatorID == nil || *svc.OperatorID != operatorID {
		return nil, ErrNotServiceOperator
	}

	switch svc.PaymentMethod {
	case models.PaymentMethodCash:
		commission, err := s.commission.ComputeCashCommission(svc.GrossAmount)
		if err != nil {
			return nil, err
		}

		wallet, err := s.wallets.GetOrCreateByOperator(ctx, operatorID)
		if err != nil {
			return nil, err
		}

		sid := svc.ID
		if _, err := s.debts.Accrue(ctx, wallet.ID, &sid, commission); err != nil {
			return nil, err
		}

	default:
		capture, err := s.captures.GetByServiceID(ctx, serviceID)
		if err != nil {
			return nil, err
		}
		if capture.AuthorizationID == nil {
			return nil, repository.ErrCaptureConflict
		}

		if err := s.gateway.Capture(ctx, *capture.AuthorizationID, capture.GrossAmount); err != nil {
			return nil, fmt.Errorf("payment service: capture: %w", err)
		}

		if _, err := s.captures.MarkCaptured(ctx, capture.ID); err != nil {
			return nil, err
		}
	}

	return s.services.Complete(ctx, serviceID)
}

// CancelService aborts a job and releases any authorization hold.
func (s *PaymentService) CancelService(ctx context.Context, serviceID uuid.UUID) (*models.ServiceRequest, error) {
	svc, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	cancelled, err := s.services.Cancel(ctx, serviceID)
	if err != nil {
		return nil, err
	}

	if svc.PaymentMethod == models.PaymentMethodCash {
		return cancelled, nil
	}

	capture, err := s.captures.GetByServiceID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, repository.ErrCaptureNotFound) {
			// Cancelled before any hold was placed.
			return cancelled, nil
		}
		return nil, err
	}

	if capture.Status == models.CaptureStatusAuthorized && capture.AuthorizationID != nil {
		if err := s.gateway.Refund(ctx, *capture.AuthorizationID, capture.GrossAmount); err != nil {
			logger.Log.WithFields(map[string]interface{}{
				"service_id": serviceID,
				"capture_id": capture.ID,
				"error":      err.Error(),
			}).Error("payment service: failed to release hold on cancel")
		}
		if err := s.captures.MarkFailed(ctx, capture.ID); err != nil {
			return nil, err
		}
	}

	return cancelled, nil
}
