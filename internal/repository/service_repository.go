package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/towlink/dispatch-backend/internal/models"
	"github.com/towlink/dispatch-backend/internal/repository/common"
)

var (
	// ErrServiceNotFound is returned when no service request matches.
	ErrServiceNotFound = common.NotFound("service request not found")
	// ErrServiceConflict is returned when a status transition is attempted
	// from the wrong state (e.g. completing a cancelled job).
	ErrServiceConflict = errors.New("service request is in the wrong state")
)

// ServiceRepository owns the service_requests table. Status transitions are
// guarded by predicates in the UPDATE so a stale caller loses cleanly.
type ServiceRepository struct {
	db *sqlx.DB
}

func NewServiceRepository(db *sqlx.DB) *ServiceRepository {
	return &ServiceRepository{db: db}
}

// Create registers a new service request in requested state.
func (r *ServiceRepository) Create(ctx context.Context, svc *models.ServiceRequest) error {
	query := `
		INSERT INTO service_requests (client_id, description, gross_amount, payment_method, status)
		VALUES ($1, $2, $3, $4, 'requested')
		RETURNING id, status, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		svc.ClientID, svc.Description, svc.GrossAmount, svc.PaymentMethod,
	).Scan(&svc.ID, &svc.Status, &svc.CreatedAt, &svc.UpdatedAt); err != nil {
		return fmt.Errorf("service repository: create %w", err)
	}

	return nil
}

// GetByID returns a service request by identifier.
func (r *ServiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	return common.GetByID[models.ServiceRequest](ctx, r.db, "service_requests", id, ErrServiceNotFound)
}

// Accept assigns an operator to a requested job.
func (r *ServiceRepository) Accept(ctx context.Context, id, operatorID uuid.UUID) (*models.ServiceRequest, error) {
	return r.transition(ctx, `
		UPDATE service_requests
		SET status = 'accepted', operator_id = $2, accepted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'requested'
		RETURNING *
	`, id, operatorID)
}

// Complete marks an accepted job as done.
func (r *ServiceRepository) Complete(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	return r.transition(ctx, `
		UPDATE service_requests
		SET status = 'completed', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'accepted'
		RETURNING *
	`, id)
}

// Cancel aborts a job that has not completed yet.
func (r *ServiceRepository) Cancel(ctx context.Context, id uuid.UUID) (*models.ServiceRequest, error) {
	return r.transition(ctx, `
		UPDATE service_requests
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status IN ('requested', 'accepted')
		RETURNING *
	`, id)
}

// ListByOperator returns the operator's jobs, newest first.
func (r *ServiceRepository) ListByOperator(ctx context.Context, operatorID uuid.UUID, limit, offset int) ([]models.ServiceRequest, error) {
	var services []models.ServiceRequest
	query := `
		SELECT * FROM service_requests
		WHERE operator_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	if err := r.db.SelectContext(ctx, &services, query, operatorID, limit, offset); err != nil {
		return nil, fmt.Errorf("service repository: list by operator %w", err)
	}

	return services, nil
}

func (r *ServiceRepository) transition(ctx context.Context, query string, args ...interface{}) (*models.ServiceRequest, error) {
	var svc models.ServiceRequest
	if err := r.db.GetContext(ctx, &svc, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish missing row from wrong state.
			var exists bool
			if checkErr := r.db.GetContext(ctx, &exists,
				`SELECT EXISTS (SELECT 1 FROM service_requests WHERE id = $1)`, args[0]); checkErr == nil && exists {
				return nil, ErrServiceConflict
			}
			return nil, ErrServiceNotFound
		}
		return nil, fmt.Errorf("service repository: transition %w", err)
	}

	return &svc, nil
}
