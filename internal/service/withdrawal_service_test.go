package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/towlink/dispatch-backend/internal/gateway"
	"github.com/towlink/dispatch-backend/internal/models"
	"github.com/towlink/dispatch-backend/internal/repository"
)

type mockWithdrawalRepo struct {
	mock.Mock
}

func (m *mockWithdrawalRepo) Reserve(ctx context.Context, w *models.Withdrawal) error {
	args := m.Called(ctx, w)
	if args.Error(0) == nil && w.ID == uuid.Nil {
		w.ID = uuid.New()
		w.Status = models.WithdrawalStatusProcessing
	}
	return args.Error(0)
}

func (m *mockWithdrawalRepo) ReserveExisting(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *mockWithdrawalRepo) MarkFailedUnreserved(ctx context.Context, id uuid.UUID, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *mockWithdrawalRepo) MarkCompleted(ctx context.Context, id uuid.UUID, payoutID string) (*models.Withdrawal, error) {
	args := m.Called(ctx, id, payoutID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *mockWithdrawalRepo) Compensate(ctx context.Context, id uuid.UUID, reason string) (*models.Withdrawal, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *mockWithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Withdrawal), args.Error(1)
}

func (m *mockWithdrawalRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.Withdrawal, error) {
	args := m.Called(ctx, walletID, limit, offset)
	return args.Get(0).([]models.Withdrawal), args.Error(1)
}

func (m *mockWithdrawalRepo) ListStuckProcessing(ctx context.Context, maxAge time.Duration) ([]models.Withdrawal, error) {
	args := m.Called(ctx, maxAge)
	return args.Get(0).([]models.Withdrawal), args.Error(1)
}

type mockAccountRepo struct {
	mock.Mock
}

func (m *mockAccountRepo) GetByOperator(ctx context.Context, operatorID uuid.UUID) (*models.PayoutAccount, error) {
	args := m.Called(ctx, operatorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PayoutAccount), args.Error(1)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Authorize(ctx context.Context, req gateway.AuthorizeRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) Capture(ctx context.Context, authorizationID string, amount decimal.Decimal) error {
	args := m.Called(ctx, authorizationID, amount)
	return args.Error(0)
}

func (m *mockGateway) Refund(ctx context.Context, authorizationID string, amount decimal.Decimal) error {
	args := m.Called(ctx, authorizationID, amount)
	return args.Error(0)
}

func (m *mockGateway) Payout(ctx context.Context, req gateway.PayoutRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func verifiedTestAccount(operatorID uuid.UUID) *models.PayoutAccount {
	return &models.PayoutAccount{
		ID:            uuid.New(),
		OperatorID:    operatorID,
		BankName:      "First Bank",
		AccountNumber: "12345678",
		AccountHolder: "Jane Driver",
		Status:        models.PayoutAccountStatusVerified,
	}
}

func newWithdrawalService(
	withdrawals *mockWithdrawalRepo,
	wallets *mockDebtWalletRepo,
	accounts *mockAccountRepo,
	gw *mockGateway,
) *WithdrawalService {
	return NewWithdrawalService(withdrawals, wallets, accounts, NewCommissionService(testRates()), gw, testRates(), nil)
}

func TestWithdrawalService_RequestImmediate_Success(t *testing.T) {
	withdrawals := new(mockWithdrawalRepo)
	wallets := new(mockDebtWalletRepo)
	accounts := new(mockAccountRepo)
	gw := new(mockGateway)
	svc := newWithdrawalService(withdrawals, wallets, accounts, gw)
	ctx := context.Background()
	operatorID := uuid.New()
	walletID := uuid.New()

	accounts.On("GetByOperator", ctx, operatorID).Return(verifiedTestAccount(operatorID), nil)
	wallets.On("GetOrCreateByOperator", ctx, operatorID).Return(&models.OperatorWallet{
		ID:               walletID,
		OperatorID:       operatorID,
		BalanceAvailable: decimal.NewFromInt(4000),
	}, nil)

	withdrawals.On("Reserve", ctx, mock.MatchedBy(func(w *models.Withdrawal) bool {
		return w.WalletID == walletID &&
			w.Type == models.WithdrawalTypeImmediate &&
			w.RequestedAmount.Equal(decimal.NewFromInt(500)) &&
			w.FeeAmount.Equal(decimal.NewFromInt(100)) &&
			w.NetAmount.Equal(decimal.NewFromInt(400))
	})).Return(nil)

	gw.On("Payout", ctx, mock.MatchedBy(func(req gateway.PayoutRequest) bool {
		return req.Amount.Equal(decimal.NewFromInt(400)) && req.BankName == "First Bank"
	})).Return("pay_123", nil)

	payoutID := "pay_123"
	withdrawals.On("MarkCompleted", ctx, mock.Anything, "pay_123").Return(&models.Withdrawal{
		WalletID:        walletID,
		Status:          models.WithdrawalStatusCompleted,
		RequestedAmount: decimal.NewFromInt(500),
		NetAmount:       decimal.NewFromInt(400),
		PayoutID:        &payoutID,
	}, nil)

	w, err := svc.RequestImmediate(ctx, operatorID, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusCompleted, w.Status)
	withdrawals.AssertExpectations(t)
	gw.AssertExpectations(t)
}

func TestWithdrawalService_RequestImmediate_BelowMinimum(t *testing.T) {
	svc := newWithdrawalService(new(mockWithdrawalRepo), new(mockDebtWalletRepo), new(mockAccountRepo), new(mockGateway))

	_, err := svc.RequestImmediate(context.Background(), uuid.New(), decimal.NewFromInt(99))
	assert.ErrorIs(t, err, ErrBelowMinimum)

	_, err = svc.RequestImmediate(context.Background(), uuid.New(), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestWithdrawalService_RequestImmediate_AccountMissing(t *testing.T) {
	withdrawals := new(mockWithdrawalRepo)
	accounts := new(mockAccountRepo)
	svc := newWithdrawalService(withdrawals, new(mockDebtWalletRepo), accounts, new(mockGateway))
	ctx := context.Background()
	operatorID := uuid.New()

	accounts.On("GetByOperator", ctx, operatorID).Return(nil, repository.ErrPayoutAccountNotFound)

	_, err := svc.RequestImmediate(ctx, operatorID, decimal.NewFromInt(500))
	assert.ErrorIs(t, err, ErrPayoutAccountMissing)
}

func TestWithdrawalService_RequestImmediate_AccountNotVerified(t *testing.T) {
	accounts := new(mockAccountRepo)
	svc := newWithdrawalService(new(mockWithdrawalRepo), new(mockDebtWalletRepo), accounts, new(mockGateway))
	ctx := context.Background()
	operatorID := uuid.New()

	account := verifiedTestAccount(operatorID)
	account.Status = models.PayoutAccountStatusPending
	accounts.On("GetByOperator", ctx, operatorID).Return(account, nil)

	_, err := svc.RequestImmediate(ctx, operatorID, decimal.NewFromInt(500))
	assert.ErrorIs(t, err, ErrPayoutAccountNotVerified)
}

func TestWithdrawalService_RequestImmediate_GatewayFailureCompensates(t *testing.T) {
	withdrawals := new(mockWithdrawalRepo)
	wallets := new(mockDebtWalletRepo)
	accounts := new(mockAccountRepo)
	gw := new(mockGateway)
	svc := newWithdrawalService(withdrawals, wallets, accounts, gw)
	ctx := context.Background()
	operatorID := uuid.New()
	walletID := uuid.New()

	accounts.On("GetByOperator", ctx, operatorID).Return(verifiedTestAccount(operatorID), nil)
	wallets.On("GetOrCreateByOperator", ctx, operatorID).Return(&models.OperatorWallet{
		ID:         walletID,
		OperatorID: operatorID,
	}, nil)
	withdrawals.On("Reserve", ctx, mock.Anything).Return(nil)
	gw.On("Payout", ctx, mock.Anything).Return("", gateway.ErrUnavailable)

	reason := gateway.ErrUnavailable.Error()
	withdrawals.On("Compensate", ctx, mock.Anything, mock.Anything).Return(&models.Withdrawal{
		WalletID:      walletID,
		Status:        models.WithdrawalStatusFailed,
		FailureReason: &reason,
	}, nil)

	w, err := svc.RequestImmediate(ctx, operatorID, decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusFailed, w.Status)
	withdrawals.AssertCalled(t, "Compensate", ctx, mock.Anything, mock.Anything)
	withdrawals.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything)
}

func TestWithdrawalService_ProcessScheduled_InsufficientBalance(t *testing.T) {
	withdrawals := new(mockWithdrawalRepo)
	wallets := new(mockDebtWalletRepo)
	accounts := new(mockAccountRepo)
	svc := newWithdrawalService(withdrawals, wallets, accounts, new(mockGateway))
	ctx := context.Background()
	operatorID := uuid.New()
	walletID := uuid.New()
	itemID := uuid.New()

	item := &models.Withdrawal{
		ID:              itemID,
		WalletID:        walletID,
		Type:            models.WithdrawalTypeScheduled,
		RequestedAmount: decimal.NewFromInt(300),
		Status:          models.WithdrawalStatusPending,
	}

	wallets.On("GetByID", ctx, walletID).Return(&models.OperatorWallet{ID: walletID, OperatorID: operatorID}, nil)
	accounts.On("GetByOperator", ctx, operatorID).Return(verifiedTestAccount(operatorID), nil)

	// The balance shrank between collection and processing.
	withdrawals.On("ReserveExisting", ctx, itemID).Return(nil, repository.ErrInsufficientBalance)
	withdrawals.On("MarkFailedUnreserved", ctx, itemID, "insufficient balance").Return(nil)
	withdrawals.On("GetByID", ctx, itemID).Return(&models.Withdrawal{
		ID:       itemID,
		WalletID: walletID,
		Status:   models.WithdrawalStatusFailed,
	}, nil)

	w, err := svc.ProcessScheduled(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusFailed, w.Status)
	withdrawals.AssertExpectations(t)
}

func TestWithdrawalService_ProcessScheduled_UnverifiedAccountFailsWithoutReserve(t *testing.T) {
	withdrawals := new(mockWithdrawalRepo)
	wallets := new(mockDebtWalletRepo)
	accounts := new(mockAccountRepo)
	svc := newWithdrawalService(withdrawals, wallets, accounts, new(mockGateway))
	ctx := context.Background()
	operatorID := uuid.New()
	walletID := uuid.New()
	itemID := uuid.New()

	wallets.On("GetByID", ctx, walletID).Return(&models.OperatorWallet{ID: walletID, OperatorID: operatorID}, nil)
	accounts.On("GetByOperator", ctx, operatorID).Return(nil, repository.ErrPayoutAccountNotFound)
	withdrawals.On("MarkFailedUnreserved", ctx, itemID, mock.Anything).Return(nil)
	withdrawals.On("GetByID", ctx, itemID).Return(&models.Withdrawal{
		ID:       itemID,
		WalletID: walletID,
		Status:   models.WithdrawalStatusFailed,
	}, nil)

	w, err := svc.ProcessScheduled(ctx, &models.Withdrawal{ID: itemID, WalletID: walletID})
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusFailed, w.Status)
	withdrawals.AssertNotCalled(t, "ReserveExisting", mock.Anything, mock.Anything)
	withdrawals.AssertNotCalled(t, "Compensate", mock.Anything, mock.Anything, mock.Anything)
}

func TestWithdrawalService_GetWithdrawal_OtherOperator(t *testing.T) {
	withdrawals := new(mockWithdrawalRepo)
	wallets := new(mockDebtWalletRepo)
	svc := newWithdrawalService(withdrawals, wallets, new(mockAccountRepo), new(mockGateway))
	ctx := context.Background()
	operatorID := uuid.New()
	id := uuid.New()

	withdrawals.On("GetByID", ctx, id).Return(&models.Withdrawal{
		ID:       id,
		WalletID: uuid.New(),
	}, nil)
	wallets.On("GetOrCreateByOperator", ctx, operatorID).Return(&models.OperatorWallet{ID: uuid.New()}, nil)

	_, err := svc.GetWithdrawal(ctx, operatorID, id)
	assert.ErrorIs(t, err, repository.ErrWithdrawalNotFound)
}
