package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/towlink/dispatch-backend/internal/models"
	"github.com/towlink/dispatch-backend/internal/repository/common"
)

// ErrPayoutAccountNotFound is returned when an operator has no payout account.
var ErrPayoutAccountNotFound = common.NotFound("payout account not found")

// PayoutAccountRepository owns the payout_accounts and
// verification_documents tables. One account per operator; resubmitting
// details resets the verification status back to pending.
type PayoutAccountRepository struct {
	db *sqlx.DB
}

func NewPayoutAccountRepository(db *sqlx.DB) *PayoutAccountRepository {
	return &PayoutAccountRepository{db: db}
}

// Upsert creates or replaces the operator's payout account details.
// Any change to the details requires a fresh verification.
func (r *PayoutAccountRepository) Upsert(ctx context.Context, account *models.PayoutAccount) error {
	query := `
		INSERT INTO payout_accounts (operator_id, bank_name, account_number, account_holder, status)
		VALUES ($1, $2, $3, $4, 'pending')
		ON CONFLICT (operator_id) DO UPDATE
		SET bank_name = EXCLUDED.bank_name,
			account_number = EXCLUDED.account_number,
			account_holder = EXCLUDED.account_holder,
			status = 'pending',
			verified_at = NULL,
			updated_at = NOW()
		RETURNING id, status, verified_at, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		account.OperatorID, account.BankName, account.AccountNumber, account.AccountHolder,
	).Scan(&account.ID, &account.Status, &account.VerifiedAt, &account.CreatedAt, &account.UpdatedAt); err != nil {
		return fmt.Errorf("payout account repository: upsert %w", err)
	}

	return nil
}

// GetByOperator returns the operator's payout account.
func (r *PayoutAccountRepository) GetByOperator(ctx context.Context, operatorID uuid.UUID) (*models.PayoutAccount, error) {
	return common.GetByField[models.PayoutAccount](ctx, r.db, "payout_accounts", "operator_id", operatorID, ErrPayoutAccountNotFound)
}

// GetByID returns a payout account by identifier.
func (r *PayoutAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PayoutAccount, error) {
	return common.GetByID[models.PayoutAccount](ctx, r.db, "payout_accounts", id, ErrPayoutAccountNotFound)
}

// SetStatus moves the account through the verification lifecycle.
func (r *PayoutAccountRepository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	query := `
		UPDATE payout_accounts
		SET status = $2,
			verified_at = CASE WHEN $2 = 'verified' THEN NOW() ELSE NULL END,
			updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("payout account repository: set status %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("payout account repository: set status rows affected %w", err)
	}
	if rows == 0 {
		return ErrPayoutAccountNotFound
	}

	return nil
}

// AddDocument attaches an uploaded verification document to an account.
func (r *PayoutAccountRepository) AddDocument(ctx context.Context, doc *models.VerificationDocument) error {
	query := `
		INSERT INTO verification_documents (account_id, file_path, original_name, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		doc.AccountID, doc.FilePath, doc.OriginalName, doc.ContentType, doc.SizeBytes,
	).Scan(&doc.ID, &doc.CreatedAt); err != nil {
		return fmt.Errorf("payout account repository: add document %w", err)
	}

	return nil
}

// ListDocuments returns the documents uploaded for an account.
func (r *PayoutAccountRepository) ListDocuments(ctx context.Context, accountID uuid.UUID) ([]models.VerificationDocument, error) {
	var docs []models.VerificationDocument
	query := `SELECT * FROM verification_documents WHERE account_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &docs, query, accountID); err != nil {
		return nil, fmt.Errorf("payout account repository: list documents %w", err)
	}

	return docs, nil
}

// ListPendingVerification returns accounts awaiting admin review.
func (r *PayoutAccountRepository) ListPendingVerification(ctx context.Context, limit, offset int) ([]models.PayoutAccount, error) {
	var accounts []models.PayoutAccount
	query := `
		SELECT * FROM payout_accounts
		WHERE status = 'pending'
		ORDER BY updated_at
		LIMIT $1 OFFSET $2
	`
	if err := r.db.SelectContext(ctx, &accounts, query, limit, offset); err != nil {
		return nil, fmt.Errorf("payout account repository: list pending %w", err)
	}

	return accounts, nil
}
