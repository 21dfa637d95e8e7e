package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/towlink/dispatch-backend/internal/gateway"
	"github.com/towlink/dispatch-backend/internal/models"
	"github.com/towlink/dispatch-backend/internal/repository"
)

// memWithdrawalStore backs the concurrency test with a single mutex-guarded
// wallet, standing in for the row lock the SQL store takes.
type memWithdrawalStore struct {
	mu            sync.Mutex
	operatorID    uuid.UUID
	wallet        models.OperatorWallet
	withdrawals   map[uuid.UUID]models.Withdrawal
	wentBelowZero bool
}

func newMemWithdrawalStore(operatorID uuid.UUID, balance decimal.Decimal) *memWithdrawalStore {
	return &memWithdrawalStore{
		operatorID: operatorID,
		wallet: models.OperatorWallet{
			ID:               uuid.New(),
			OperatorID:       operatorID,
			BalanceAvailable: balance,
		},
		withdrawals: make(map[uuid.UUID]models.Withdrawal),
	}
}

func (s *memWithdrawalStore) Reserve(_ context.Context, w *models.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wallet.BalanceAvailable.LessThan(w.RequestedAmount) {
		return repository.ErrInsufficientBalance
	}
	s.wallet.BalanceAvailable = s.wallet.BalanceAvailable.Sub(w.RequestedAmount)
	if s.wallet.BalanceAvailable.IsNegative() {
		s.wentBelowZero = true
	}

	w.ID = uuid.New()
	w.Status = models.WithdrawalStatusProcessing
	w.CreatedAt = time.Now()
	s.withdrawals[w.ID] = *w
	return nil
}

func (s *memWithdrawalStore) MarkCompleted(_ context.Context, id uuid.UUID, payoutID string) (*models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.withdrawals[id]
	if !ok {
		return nil, repository.ErrWithdrawalNotFound
	}
	if w.Status != models.WithdrawalStatusProcessing {
		return nil, repository.ErrWithdrawalConflict
	}
	w.Status = models.WithdrawalStatusCompleted
	w.PayoutID = &payoutID
	s.withdrawals[id] = w
	return &w, nil
}

func (s *memWithdrawalStore) Compensate(_ context.Context, id uuid.UUID, reason string) (*models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.withdrawals[id]
	if !ok {
		return nil, repository.ErrWithdrawalNotFound
	}
	// Second call finds the row already failed and changes nothing.
	if w.Status == models.WithdrawalStatusProcessing {
		s.wallet.BalanceAvailable = s.wallet.BalanceAvailable.Add(w.RequestedAmount)
		w.Status = models.WithdrawalStatusFailed
		w.FailureReason = &reason
		s.withdrawals[id] = w
	}
	return &w, nil
}

func (s *memWithdrawalStore) ReserveExisting(_ context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	return nil, repository.ErrWithdrawalNotFound
}

func (s *memWithdrawalStore) MarkFailedUnreserved(_ context.Context, id uuid.UUID, reason string) error {
	return repository.ErrWithdrawalNotFound
}

func (s *memWithdrawalStore) GetByID(_ context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.withdrawals[id]
	if !ok {
		return nil, repository.ErrWithdrawalNotFound
	}
	return &w, nil
}

func (s *memWithdrawalStore) ListByWallet(_ context.Context, walletID uuid.UUID, limit, offset int) ([]models.Withdrawal, error) {
	return nil, nil
}

func (s *memWithdrawalStore) ListStuckProcessing(_ context.Context, maxAge time.Duration) ([]models.Withdrawal, error) {
	return nil, nil
}

func (s *memWithdrawalStore) GetOrCreateByOperator(_ context.Context, operatorID uuid.UUID) (*models.OperatorWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.wallet
	return &w, nil
}

func (s *memWithdrawalStore) GetWalletByID(_ context.Context, id uuid.UUID) (*models.OperatorWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.wallet
	return &w, nil
}

// memWalletView adapts the store to the wallet interface without colliding
// with the withdrawal GetByID method.
type memWalletView struct {
	store *memWithdrawalStore
}

func (v memWalletView) GetOrCreateByOperator(ctx context.Context, operatorID uuid.UUID) (*models.OperatorWallet, error) {
	return v.store.GetOrCreateByOperator(ctx, operatorID)
}

func (v memWalletView) GetByID(ctx context.Context, id uuid.UUID) (*models.OperatorWallet, error) {
	return v.store.GetWalletByID(ctx, id)
}

type memAccountRepo struct {
	account *models.PayoutAccount
}

func (r memAccountRepo) GetByOperator(_ context.Context, operatorID uuid.UUID) (*models.PayoutAccount, error) {
	return r.account, nil
}

// flakyGateway fails every third payout so the compensation path runs under
// contention too.
type flakyGateway struct {
	calls     atomic.Int64
	succeeded atomic.Int64
}

func (g *flakyGateway) Authorize(_ context.Context, req gateway.AuthorizeRequest) (string, error) {
	return "", errors.New("not used")
}

func (g *flakyGateway) Capture(_ context.Context, authorizationID string, amount decimal.Decimal) error {
	return errors.New("not used")
}

func (g *flakyGateway) Refund(_ context.Context, authorizationID string, amount decimal.Decimal) error {
	return errors.New("not used")
}

func (g *flakyGateway) Payout(_ context.Context, req gateway.PayoutRequest) (string, error) {
	if g.calls.Add(1)%3 == 0 {
		return "", gateway.ErrUnavailable
	}
	g.succeeded.Add(1)
	return "pay_" + req.Reference, nil
}

func TestWithdrawalService_ConcurrentRequests(t *testing.T) {
	operatorID := uuid.New()
	store := newMemWithdrawalStore(operatorID, decimal.NewFromInt(8000))
	gw := &flakyGateway{}
	svc := NewWithdrawalService(
		store,
		memWalletView{store: store},
		memAccountRepo{account: verifiedTestAccount(operatorID)},
		NewCommissionService(testRates()),
		gw,
		testRates(),
		nil,
	)

	const workers = 40
	amount := decimal.NewFromInt(500)

	var wg sync.WaitGroup
	results := make([]*models.Withdrawal, workers)
	failures := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w, err := svc.RequestImmediate(context.Background(), operatorID, amount)
			results[i] = w
			failures[i] = err
		}(i)
	}
	wg.Wait()

	assert.False(t, store.wentBelowZero, "balance must never go negative")

	var completed, failed int
	for i := 0; i < workers; i++ {
		if failures[i] != nil {
			require.ErrorIs(t, failures[i], repository.ErrInsufficientBalance)
			continue
		}
		require.NotNil(t, results[i])
		switch results[i].Status {
		case models.WithdrawalStatusCompleted:
			completed++
		case models.WithdrawalStatusFailed:
			failed++
		default:
			t.Fatalf("withdrawal left in status %q", results[i].Status)
		}
	}

	// Only completed withdrawals keep their debit; failed ones were credited
	// back, so the books close against the completed count alone.
	wantBalance := decimal.NewFromInt(8000).Sub(amount.Mul(decimal.NewFromInt(int64(completed))))
	assert.True(t, store.wallet.BalanceAvailable.Equal(wantBalance),
		"final balance %s, want %s", store.wallet.BalanceAvailable, wantBalance)
	assert.Equal(t, int64(completed), gw.succeeded.Load())

	store.mu.Lock()
	defer store.mu.Unlock()
	for _, w := range store.withdrawals {
		assert.NotEqual(t, models.WithdrawalStatusProcessing, w.Status, "no row may stay reserved")
	}
}
