package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/towlink/dispatch-backend/internal/models"
)

// WalletRepo describes WalletService's storage dependency.
type WalletRepo interface {
	GetOrCreateByOperator(ctx context.Context, operatorID uuid.UUID) (*models.OperatorWallet, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.OperatorWallet, error)
	GetByOperator(ctx context.Context, operatorID uuid.UUID) (*models.OperatorWallet, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error)
}

// BlockRefresher recomputes a wallet's cash-block flag from its debts.
type BlockRefresher interface {
	RefreshBlockStatus(ctx context.Context, walletID uuid.UUID) (bool, error)
}

// WalletService exposes read access to wallets and their journals. All
// balance mutations go through the capture, withdrawal and debt flows;
// nothing here ever moves money.
type WalletService struct {
	repo   WalletRepo
	blocks BlockRefresher
}

func NewWalletService(repo WalletRepo, blocks BlockRefresher) *WalletService {
	return &WalletService{repo: repo, blocks: blocks}
}

// GetWallet returns the operator's wallet, creating it on first use. The
// cash-block flag is recomputed on every read so clients always see the
// current standing, not the one from the last overdue sweep.
func (s *WalletService) GetWallet(ctx context.Context, operatorID uuid.UUID) (*models.OperatorWallet, error) {
	wallet, err := s.repo.GetOrCreateByOperator(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	blocked, err := s.blocks.RefreshBlockStatus(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}
	wallet.CashServicesBlocked = blocked

	return wallet, nil
}

// ListTransactions returns the wallet's journal, newest first.
func (s *WalletService) ListTransactions(ctx context.Context, operatorID uuid.UUID, limit, offset int) ([]models.WalletTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	wallet, err := s.repo.GetOrCreateByOperator(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	return s.repo.ListTransactions(ctx, wallet.ID, limit, offset)
}
