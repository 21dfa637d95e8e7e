package service

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/towlink/dispatch-backend/internal/models"
	"github.com/towlink/dispatch-backend/internal/storage"
	"github.com/towlink/dispatch-backend/internal/validation"
)

// PayoutAccountRepository describes the full payout account storage surface.
type PayoutAccountRepository interface {
	Upsert(ctx context.Context, account *models.PayoutAccount) error
	GetByOperator(ctx context.Context, operatorID uuid.UUID) (*models.PayoutAccount, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.PayoutAccount, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) error
	AddDocument(ctx context.Context, doc *models.VerificationDocument) error
	ListDocuments(ctx context.Context, accountID uuid.UUID) ([]models.VerificationDocument, error)
	ListPendingVerification(ctx context.Context, limit, offset int) ([]models.PayoutAccount, error)
}

// PayoutAccountService manages bank account details and their verification
// lifecycle. Changing the details always resets the account to pending.
type PayoutAccountService struct {
	repo    PayoutAccountRepository
	storage *storage.DocumentStorage
}

func NewPayoutAccountService(repo PayoutAccountRepository, store *storage.DocumentStorage) *PayoutAccountService {
	return &PayoutAccountService{repo: repo, storage: store}
}

// SubmitAccount creates or replaces the operator's bank details.
func (s *PayoutAccountService) SubmitAccount(ctx context.Context, operatorID uuid.UUID, bankName, accountNumber, accountHolder string) (*models.PayoutAccount, error) {
	if err := validation.ValidateLength("bank name", bankName, 1, validation.MaxBankNameLength); err != nil {
		return nil, fmt.Errorf("payout account service: %w", err)
	}
	if err := validation.ValidateAccountNumber(accountNumber); err != nil {
		return nil, fmt.Errorf("payout account service: %w", err)
	}
	if err := validation.ValidateLength("account holder", accountHolder, 1, validation.MaxAccountHolderLength); err != nil {
		return nil, fmt.Errorf("payout account service: %w", err)
	}

	account := &models.PayoutAccount{
		OperatorID:    operatorID,
		BankName:      bankName,
		AccountNumber: accountNumber,
		AccountHolder: accountHolder,
	}
	if err := s.repo.Upsert(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

// GetAccount returns the operator's payout account.
func (s *PayoutAccountService) GetAccount(ctx context.Context, operatorID uuid.UUID) (*models.PayoutAccount, error) {
	return s.repo.GetByOperator(ctx, operatorID)
}

// UploadDocument stores a verification document for the operator's account.
func (s *PayoutAccountService) UploadDocument(ctx context.Context, operatorID uuid.UUID, originalName, contentType string, r io.Reader) (*models.VerificationDocument, error) {
	account, err := s.repo.GetByOperator(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	path, size, err := s.storage.Save(ctx, operatorID, originalName, r)
	if err != nil {
		return nil, err
	}

	doc := &models.VerificationDocument{
		AccountID:    account.ID,
		FilePath:     path,
		OriginalName: originalName,
		ContentType:  contentType,
		SizeBytes:    size,
	}
	if err := s.repo.AddDocument(ctx, doc); err != nil {
		// Orphaned files are worse than a failed upload.
		_ = s.storage.Delete(ctx, path)
		return nil, err
	}

	return doc, nil
}

// ListDocuments returns the documents of the operator's account.
func (s *PayoutAccountService) ListDocuments(ctx context.Context, operatorID uuid.UUID) ([]models.VerificationDocument, error) {
	account, err := s.repo.GetByOperator(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListDocuments(ctx, account.ID)
}

// Verify marks an account as verified. Admin only.
func (s *PayoutAccountService) Verify(ctx context.Context, accountID uuid.UUID) error {
	return s.repo.SetStatus(ctx, accountID, models.PayoutAccountStatusVerified)
}

// Reject marks an account as rejected. Admin only.
func (s *PayoutAccountService) Reject(ctx context.Context, accountID uuid.UUID) error {
	return s.repo.SetStatus(ctx, accountID, models.PayoutAccountStatusRejected)
}

// ListPendingVerification returns accounts awaiting review. Admin only.
func (s *PayoutAccountService) ListPendingVerification(ctx context.Context, limit, offset int) ([]models.PayoutAccount, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListPendingVerification(ctx, limit, offset)
}
