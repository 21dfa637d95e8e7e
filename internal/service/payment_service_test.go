package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/towlink/dispatch-backend/internal/gateway"
	"github.com/towlink/dispatch-backend/internal/models"
	"github.com/towlink/dispatch-backend/internal/repository"
)

type mockServiceRepo struct {
	mock.Mock
}

func (m *mockServiceRepo) Create(ctx context.Context, svc *models.ServiceRequest) error {
	args := m.Called(ctx, svc)
	if args.Error(0) == nil && svc.ID == uuid.Nil {
		svc.ID = uuid.New()
		svc.Status = models.ServiceStatusRequested
	}
	return args.Error(0)
}

func (m *mockServiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ServiceRequest), args.Error(1)
}

func (m *mockServiceRepo) Accept(ctx context.Context, id, operatorID uuid.UUID) (*models.ServiceRequest, error) {
	args := m.Called(ctx, id, operatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ServiceRequest), args.Error(1)
}

func (m *mockServiceRepo) Complete(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ServiceRequest), args.Error(1)
}

func (m *mockServiceRepo) Cancel(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ServiceRequest), args.Error(1)
}

func (m *mockServiceRepo) ListByOperator(ctx context.Context, operatorID uuid.UUID, limit, offset int) ([]models.ServiceRequest, error) {
	args := m.Called(ctx, operatorID, limit, offset)
	return args.Get(0).([]models.ServiceRequest), args.Error(1)
}

type mockCaptureRepo struct {
	mock.Mock
}

func (m *mockCaptureRepo) Create(ctx context.Context, capture *models.PaymentCapture) error {
	args := m.Called(ctx, capture)
	return args.Error(0)
}

func (m *mockCaptureRepo) GetByServiceID(ctx context.Context, serviceID uuid.UUID) (*models.PaymentCapture, error) {
	args := m.Called(ctx, serviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentCapture), args.Error(1)
}

func (m *mockCaptureRepo) MarkCaptured(ctx context.Context, id uuid.UUID) (*models.PaymentCapture, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentCapture), args.Error(1)
}

func (m *mockCaptureRepo) MarkRefunded(ctx context.Context, id uuid.UUID) (*models.PaymentCapture, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentCapture), args.Error(1)
}

func (m *mockCaptureRepo) MarkFailed(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newPaymentTestService(
	services *mockServiceRepo,
	captures *mockCaptureRepo,
	wallets *mockDebtWalletRepo,
	debts *mockDebtRepo,
	gw *mockGateway,
) *PaymentService {
	commission := NewCommissionService(testRates())
	debtService := NewDebtService(debts, wallets, testRates(), nil)
	return NewPaymentService(services, captures, wallets, commission, debtService, gw)
}

func TestPaymentService_CreateService_Validation(t *testing.T) {
	svc := newPaymentTestService(new(mockServiceRepo), new(mockCaptureRepo), new(mockDebtWalletRepo), new(mockDebtRepo), new(mockGateway))
	ctx := context.Background()

	_, err := svc.CreateService(ctx, uuid.New(), "", decimal.Zero, models.PaymentMethodCard)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.CreateService(ctx, uuid.New(), "", decimal.NewFromInt(100), "check")
	assert.ErrorIs(t, err, ErrUnknownPaymentMethod)
}

func TestPaymentService_AcceptService_CardPlacesHold(t *testing.T) {
	services := new(mockServiceRepo)
	captures := new(mockCaptureRepo)
	wallets := new(mockDebtWalletRepo)
	gw := new(mockGateway)
	svc := newPaymentTestService(services, captures, wallets, new(mockDebtRepo), gw)
	ctx := context.Background()
	serviceID := uuid.New()
	operatorID := uuid.New()
	walletID := uuid.New()

	requested := &models.ServiceRequest{
		ID:            serviceID,
		GrossAmount:   decimal.NewFromInt(100),
		PaymentMethod: models.PaymentMethodCard,
		Status:        models.ServiceStatusRequested,
	}
	services.On("GetByID", ctx, serviceID).Return(requested, nil)

	accepted := *requested
	accepted.Status = models.ServiceStatusAccepted
	accepted.OperatorID = &operatorID
	services.On("Accept", ctx, serviceID, operatorID).Return(&accepted, nil)

	wallets.On("GetOrCreateByOperator", ctx, operatorID).Return(&models.OperatorWallet{ID: walletID, OperatorID: operatorID}, nil)
	gw.On("Authorize", ctx, mock.MatchedBy(func(req gateway.AuthorizeRequest) bool {
		return req.Reference == serviceID.String() && req.Amount.Equal(decimal.NewFromInt(100))
	})).Return("auth_42", nil)

	captures.On("Create", ctx, mock.MatchedBy(func(c *models.PaymentCapture) bool {
		return c.ServiceID == serviceID &&
			c.WalletID == walletID &&
			c.Status == models.CaptureStatusAuthorized &&
			c.OperatorAmount.Equal(decimal.NewFromInt(80)) &&
			c.CommissionAmount.Equal(decimal.NewFromInt(20)) &&
			c.AuthorizationID != nil && *c.AuthorizationID == "auth_42"
	})).Return(nil)

	got, err := svc.AcceptService(ctx, serviceID, operatorID)
	require.NoError(t, err)
	assert.Equal(t, models.ServiceStatusAccepted, got.Status)
	captures.AssertExpectations(t)
	gw.AssertExpectations(t)
}

func TestPaymentService_AcceptService_AuthFailureReleasesJob(t *testing.T) {
	services := new(mockServiceRepo)
	captures := new(mockCaptureRepo)
	wallets := new(mockDebtWalletRepo)
	gw := new(mockGateway)
	svc := newPaymentTestService(services, captures, wallets, new(mockDebtRepo), gw)
	ctx := context.Background()
	serviceID := uuid.New()
	operatorID := uuid.New()

	requested := &models.ServiceRequest{
		ID:            serviceID,
		GrossAmount:   decimal.NewFromInt(100),
		PaymentMethod: models.PaymentMethodCard,
	}
	services.On("GetByID", ctx, serviceID).Return(requested, nil)
	services.On("Accept", ctx, serviceID, operatorID).Return(requested, nil)
	wallets.On("GetOrCreateByOperator", ctx, operatorID).Return(&models.OperatorWallet{ID: uuid.New()}, nil)
	gw.On("Authorize", ctx, mock.Anything).Return("", gateway.ErrDeclined)
	services.On("Cancel", ctx, serviceID).Return(requested, nil)

	_, err := svc.AcceptService(ctx, serviceID, operatorID)
	assert.ErrorIs(t, err, gateway.ErrDeclined)
	services.AssertCalled(t, "Cancel", ctx, serviceID)
	captures.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPaymentService_AcceptService_CashBlockedByDebt(t *testing.T) {
	services := new(mockServiceRepo)
	wallets := new(mockDebtWalletRepo)
	debts := new(mockDebtRepo)
	svc := newPaymentTestService(services, new(mockCaptureRepo), wallets, debts, new(mockGateway))
	ctx := context.Background()
	serviceID := uuid.New()
	operatorID := uuid.New()
	walletID := uuid.New()

	services.On("GetByID", ctx, serviceID).Return(&models.ServiceRequest{
		ID:            serviceID,
		GrossAmount:   decimal.NewFromInt(100),
		PaymentMethod: models.PaymentMethodCash,
	}, nil)
	wallets.On("GetOrCreateByOperator", ctx, operatorID).Return(&models.OperatorWallet{
		ID: walletID,
	}, nil)
	debts.On("RefreshBlockStatus", ctx, walletID).Return(true, nil)

	_, err := svc.AcceptService(ctx, serviceID, operatorID)
	assert.ErrorIs(t, err, ErrCashServicesBlocked)
	services.AssertNotCalled(t, "Accept", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_CompleteService_CashAccruesDebt(t *testing.T) {
	services := new(mockServiceRepo)
	wallets := new(mockDebtWalletRepo)
	debts := new(mockDebtRepo)
	svc := newPaymentTestService(services, new(mockCaptureRepo), wallets, debts, new(mockGateway))
	ctx := context.Background()
	serviceID := uuid.New()
	operatorID := uuid.New()
	walletID := uuid.New()

	services.On("GetByID", ctx, serviceID).Return(&models.ServiceRequest{
		ID:            serviceID,
		OperatorID:    &operatorID,
		GrossAmount:   decimal.NewFromInt(200),
		PaymentMethod: models.PaymentMethodCash,
		Status:        models.ServiceStatusAccepted,
	}, nil)
	wallets.On("GetOrCreateByOperator", ctx, operatorID).Return(&models.OperatorWallet{ID: walletID}, nil)

	// 15% of the 200 held in hand becomes debt owed to the platform.
	debts.On("Create", ctx, walletID, mock.Anything, mock.MatchedBy(func(a decimal.Decimal) bool {
		return a.Equal(decimal.NewFromInt(30))
	}), mock.Anything).Return(&models.PendingDebt{WalletID: walletID}, nil)

	services.On("Complete", ctx, serviceID).Return(&models.ServiceRequest{
		ID:     serviceID,
		Status: models.ServiceStatusCompleted,
	}, nil)

	got, err := svc.CompleteService(ctx, serviceID, operatorID)
	require.NoError(t, err)
	assert.Equal(t, models.ServiceStatusCompleted, got.Status)
	debts.AssertExpectations(t)
}

func TestPaymentService_CompleteService_CardCapturesHold(t *testing.T) {
	services := new(mockServiceRepo)
	captures := new(mockCaptureRepo)
	gw := new(mockGateway)
	svc := newPaymentTestService(services, captures, new(mockDebtWalletRepo), new(mockDebtRepo), gw)
	ctx := context.Background()
	serviceID := uuid.New()
	operatorID := uuid.New()
	captureID := uuid.New()
	authID := "auth_7"

	services.On("GetByID", ctx, serviceID).Return(&models.ServiceRequest{
		ID:            serviceID,
		OperatorID:    &operatorID,
		GrossAmount:   decimal.NewFromInt(100),
		PaymentMethod: models.PaymentMethodCard,
	}, nil)
	captures.On("GetByServiceID", ctx, serviceID).Return(&models.PaymentCapture{
		ID:              captureID,
		ServiceID:       serviceID,
		GrossAmount:     decimal.NewFromInt(100),
		Status:          models.CaptureStatusAuthorized,
		AuthorizationID: &authID,
	}, nil)
	gw.On("Capture", ctx, authID, mock.MatchedBy(func(a decimal.Decimal) bool {
		return a.Equal(decimal.NewFromInt(100))
	})).Return(nil)
	captures.On("MarkCaptured", ctx, captureID).Return(&models.PaymentCapture{
		ID:     captureID,
		Status: models.CaptureStatusCaptured,
	}, nil)
	services.On("Complete", ctx, serviceID).Return(&models.ServiceRequest{
		ID:     serviceID,
		Status: models.ServiceStatusCompleted,
	}, nil)

	got, err := svc.CompleteService(ctx, serviceID, operatorID)
	require.NoError(t, err)
	assert.Equal(t, models.ServiceStatusCompleted, got.Status)
	captures.AssertExpectations(t)
}

func TestPaymentService_CompleteService_GatewayFailureLeavesJobRetryable(t *testing.T) {
	services := new(mockServiceRepo)
	captures := new(mockCaptureRepo)
	gw := new(mockGateway)
	svc := newPaymentTestService(services, captures, new(mockDebtWalletRepo), new(mockDebtRepo), gw)
	ctx := context.Background()
	serviceID := uuid.New()
	operatorID := uuid.New()
	authID := "auth_8"

	services.On("GetByID", ctx, serviceID).Return(&models.ServiceRequest{
		ID:            serviceID,
		OperatorID:    &operatorID,
		GrossAmount:   decimal.NewFromInt(100),
		PaymentMethod: models.PaymentMethodCard,
	}, nil)
	captures.On("GetByServiceID", ctx, serviceID).Return(&models.PaymentCapture{
		ID:              uuid.New(),
		GrossAmount:     decimal.NewFromInt(100),
		AuthorizationID: &authID,
	}, nil)
	gw.On("Capture", ctx, authID, mock.Anything).Return(gateway.ErrUnavailable)

	_, err := svc.CompleteService(ctx, serviceID, operatorID)
	assert.ErrorIs(t, err, gateway.ErrUnavailable)
	services.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestPaymentService_CompleteService_WrongOperator(t *testing.T) {
	services := new(mockServiceRepo)
	svc := newPaymentTestService(services, new(mockCaptureRepo), new(mockDebtWalletRepo), new(mockDebtRepo), new(mockGateway))
	ctx := context.Background()
	serviceID := uuid.New()
	otherOperator := uuid.New()

	services.On("GetByID", ctx, serviceID).Return(&models.ServiceRequest{
		ID:         serviceID,
		OperatorID: &otherOperator,
	}, nil)

	_, err := svc.CompleteService(ctx, serviceID, uuid.New())
	assert.ErrorIs(t, err, ErrNotServiceOperator)
}

func TestPaymentService_CancelService_ReleasesAuthorizedHold(t *testing.T) {
	services := new(mockServiceRepo)
	captures := new(mockCaptureRepo)
	gw := new(mockGateway)
	svc := newPaymentTestService(services, captures, new(mockDebtWalletRepo), new(mockDebtRepo), gw)
	ctx := context.Background()
	serviceID := uuid.New()
	captureID := uuid.New()
	authID := "auth_9"

	services.On("GetByID", ctx, serviceID).Return(&models.ServiceRequest{
		ID:            serviceID,
		GrossAmount:   decimal.NewFromInt(100),
		PaymentMethod: models.PaymentMethodCard,
		Status:        models.ServiceStatusAccepted,
	}, nil)
	services.On("Cancel", ctx, serviceID).Return(&models.ServiceRequest{
		ID:     serviceID,
		Status: models.ServiceStatusCancelled,
	}, nil)
	captures.On("GetByServiceID", ctx, serviceID).Return(&models.PaymentCapture{
		ID:              captureID,
		GrossAmount:     decimal.NewFromInt(100),
		Status:          models.CaptureStatusAuthorized,
		AuthorizationID: &authID,
	}, nil)
	gw.On("Refund", ctx, authID, mock.Anything).Return(nil)
	captures.On("MarkFailed", ctx, captureID).Return(nil)

	got, err := svc.CancelService(ctx, serviceID)
	require.NoError(t, err)
	assert.Equal(t, models.ServiceStatusCancelled, got.Status)
	gw.AssertExpectations(t)
	captures.AssertExpectations(t)
}

func TestPaymentService_CancelService_CashNoGatewayCalls(t *testing.T) {
	services := new(mockServiceRepo)
	captures := new(mockCaptureRepo)
	gw := new(mockGateway)
	svc := newPaymentTestService(services, captures, new(mockDebtWalletRepo), new(mockDebtRepo), gw)
	ctx := context.Background()
	serviceID := uuid.New()

	services.On("GetByID", ctx, serviceID).Return(&models.ServiceRequest{
		ID:            serviceID,
		PaymentMethod: models.PaymentMethodCash,
	}, nil)
	services.On("Cancel", ctx, serviceID).Return(&models.ServiceRequest{
		ID:     serviceID,
		Status: models.ServiceStatusCancelled,
	}, nil)

	_, err := svc.CancelService(ctx, serviceID)
	require.NoError(t, err)
	captures.AssertNotCalled(t, "GetByServiceID", mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentService_CancelService_NoHoldYet(t *testing.T) {
	services := new(mockServiceRepo)
	captures := new(mockCaptureRepo)
	svc := newPaymentTestService(services, captures, new(mockDebtWalletRepo), new(mockDebtRepo), new(mockGateway))
	ctx := context.Background()
	serviceID := uuid.New()

	services.On("GetByID", ctx, serviceID).Return(&models.ServiceRequest{
		ID:            serviceID,
		PaymentMethod: models.PaymentMethodCard,
	}, nil)
	services.On("Cancel", ctx, serviceID).Return(&models.ServiceRequest{
		ID:     serviceID,
		Status: models.ServiceStatusCancelled,
	}, nil)
	captures.On("GetByServiceID", ctx, serviceID).Return(nil, repository.ErrCaptureNotFound)

	got, err := svc.CancelService(ctx, serviceID)
	require.NoError(t, err)
	assert.Equal(t, models.ServiceStatusCancelled, got.Status)
}
