package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/towlink/dispatch-backend/internal/models"
	"github.com/towlink/dispatch-backend/internal/repository/common"
)

var (
	ErrCaptureNotFound  = common.NotFound("capture not found")
	ErrCaptureConflict  = errors.New("capture is not in the expected state")
	ErrDuplicateCapture = common.AlreadyExists("service already has a payment capture")
)

// CaptureRepository owns the payment_captures table. Committing a capture
// credits the operator's wallet in the same transaction, so the ledger can
// never show a captured payment without the matching credit.
type CaptureRepository struct {
	db      *sqlx.DB
	wallets *WalletRepository
}

func NewCaptureRepository(db *sqlx.DB, wallets *WalletRepository) *CaptureRepository {
	return &CaptureRepository{db: db, wallets: wallets}
}

// Create inserts a capture row. One capture per service is enforced by the
// unique constraint on service_id.
func (r *CaptureRepository) Create(ctx context.Context, capture *models.PaymentCapture) error {
	err := r.db.GetContext(ctx, capture, `
		INSERT INTO payment_captures (service_id, wallet_id, payment_method, gross_amount, commission_amount, operator_amount, status, authorization_id, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING *
	`, capture.ServiceID, capture.WalletID, capture.PaymentMethod, capture.GrossAmount,
		capture.CommissionAmount, capture.OperatorAmount, capture.Status, capture.AuthorizationID, capture.CapturedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateCapture
		}
		return fmt.Errorf("capture repository: create %w", err)
	}
	return nil
}

// GetByID returns a capture by its identifier.
func (r *CaptureRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PaymentCapture, error) {
	return common.GetByID[models.PaymentCapture](ctx, r.db, "payment_captures", id, ErrCaptureNotFound)
}

// GetByServiceID returns the capture for a service.
func (r *CaptureRepository) GetByServiceID(ctx context.Context, serviceID uuid.UUID) (*models.PaymentCapture, error) {
	return common.GetByField[models.PaymentCapture](ctx, r.db, "payment_captures", "service_id", serviceID, ErrCaptureNotFound)
}

// MarkCaptured finalizes an authorized capture and credits the operator's
// share to the wallet atomically.
func (r *CaptureRepository) MarkCaptured(ctx context.Context, id uuid.UUID) (*models.PaymentCapture, error) {
	var capture models.PaymentCapture
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockCapture(ctx, tx, id, &capture); err != nil {
			return err
		}
		if capture.Status != models.CaptureStatusAuthorized {
			return ErrCaptureConflict
		}

		serviceID := capture.ServiceID
		if _, err := r.wallets.CreditTx(ctx, tx, capture.WalletID, capture.OperatorAmount, models.WalletTransaction{
			ServiceID: &serviceID,
			Reason:    models.WalletTxReasonServicePayment,
		}); err != nil {
			return err
		}

		if err := tx.GetContext(ctx, &capture, `
			UPDATE payment_captures SET status = 'captured', captured_at = NOW(), updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, id); err != nil {
			return fmt.Errorf("capture repository: mark captured %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &capture, nil
}

// MarkRefunded reverses a captured payment, debiting the previously credited
// operator share back out of the wallet.
func (r *CaptureRepository) MarkRefunded(ctx context.Context, id uuid.UUID) (*models.PaymentCapture, error) {
	var capture models.PaymentCapture
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockCapture(ctx, tx, id, &capture); err != nil {
			return err
		}
		if capture.Status != models.CaptureStatusCaptured {
			return ErrCaptureConflict
		}

		serviceID := capture.ServiceID
		if _, err := r.wallets.DebitTx(ctx, tx, capture.WalletID, capture.OperatorAmount, models.WalletTransaction{
			ServiceID: &serviceID,
			Reason:    models.WalletTxReasonCaptureReversal,
		}); err != nil {
			return err
		}

		if err := tx.GetContext(ctx, &capture, `
			UPDATE payment_captures SET status = 'refunded', updated_at = NOW()
			WHERE id = $1
			RETURNING *
		`, id); err != nil {
			return fmt.Errorf("capture repository: mark refunded %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &capture, nil
}

// MarkFailed flags an authorized capture that the gateway declined.
func (r *CaptureRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE payment_captures SET status = 'failed', updated_at = NOW()
		WHERE id = $1 AND status = 'authorized'
	`, id)
	if err != nil {
		return fmt.Errorf("capture repository: mark failed %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("capture repository: mark failed rows affected %w", err)
	}
	if rows == 0 {
		return ErrCaptureConflict
	}
	return nil
}

func lockCapture(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, dest *models.PaymentCapture) error {
	err := tx.GetContext(ctx, dest, `SELECT * FROM payment_captures WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCaptureNotFound
		}
		return fmt.Errorf("capture repository: lock %w", err)
	}
	return nil
}
