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
	// ErrOperatorNotFound is returned when no operator record matches.
	ErrOperatorNotFound = common.NotFound("operator not found")
	// ErrOperatorExists is returned on an email collision during registration.
	ErrOperatorExists = common.AlreadyExists("operator already exists")
)

// OperatorRepository owns the operators and operator_sessions tables.
type OperatorRepository struct {
	db *sqlx.DB
}

func NewOperatorRepository(db *sqlx.DB) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// Create registers a new operator account.
func (r *OperatorRepository) Create(ctx context.Context, op *models.Operator) error {
	query := `
		INSERT INTO operators (email, full_name, phone, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id, created_at, updated_at
	`

	if err := r.db.QueryRowxContext(
		ctx, query,
		op.Email, op.FullName, op.Phone, op.PasswordHash, op.Role,
	).Scan(&op.ID, &op.CreatedAt, &op.UpdatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrOperatorExists
		}
		return fmt.Errorf("operator repository: create %w", err)
	}

	return nil
}

// GetByEmail returns an operator by email.
func (r *OperatorRepository) GetByEmail(ctx context.Context, email string) (*models.Operator, error) {
	var op models.Operator
	query := `SELECT * FROM operators WHERE email = $1`
	if err := r.db.GetContext(ctx, &op, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOperatorNotFound
		}
		return nil, fmt.Errorf("operator repository: get by email %w", err)
	}

	return &op, nil
}

// GetByID returns an operator by identifier.
func (r *OperatorRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Operator, error) {
	var op models.Operator
	query := `SELECT * FROM operators WHERE id = $1`
	if err := r.db.GetContext(ctx, &op, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOperatorNotFound
		}
		return nil, fmt.Errorf("operator repository: get by id %w", err)
	}

	return &op, nil
}

// UpdateLastLoginAt stamps the time of the operator's last login.
func (r *OperatorRepository) UpdateLastLoginAt(ctx context.Context, operatorID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE operators SET last_login_at = NOW() WHERE id = $1`, operatorID); err != nil {
		return fmt.Errorf("operator repository: update last login at %w", err)
	}

	return nil
}

// CreateSession stores a new refresh-token session.
func (r *OperatorRepository) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO operator_sessions (operator_id, refresh_token, user_agent, ip_address, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	if err := r.db.QueryRowxContext(
		ctx,
		query,
		session.OperatorID,
		session.RefreshToken,
		session.UserAgent,
		session.IPAddress,
		session.ExpiresAt,
	).Scan(&session.ID, &session.CreatedAt); err != nil {
		return fmt.Errorf("operator repository: create session %w", err)
	}

	return nil
}

// GetSessionByToken returns a live session by refresh token.
func (r *OperatorRepository) GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	var session models.Session
	query := `
		SELECT * FROM operator_sessions
		WHERE refresh_token = $1 AND expires_at > NOW()
	`
	if err := r.db.GetContext(ctx, &session, query, refreshToken); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOperatorNotFound
		}
		return nil, fmt.Errorf("operator repository: get session %w", err)
	}

	return &session, nil
}

// DeleteSession removes a session by refresh token.
func (r *OperatorRepository) DeleteSession(ctx context.Context, refreshToken string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM operator_sessions WHERE refresh_token = $1`, refreshToken); err != nil {
		return fmt.Errorf("operator repository: delete session %w", err)
	}

	return nil
}

// DeleteAllSessions removes every session of an operator (logout everywhere).
func (r *OperatorRepository) DeleteAllSessions(ctx context.Context, operatorID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM operator_sessions WHERE operator_id = $1`, operatorID); err != nil {
		return fmt.Errorf("operator repository: delete all sessions %w", err)
	}

	return nil
}

// ListSessions returns the operator's live sessions, newest first.
func (r *OperatorRepository) ListSessions(ctx context.Context, operatorID uuid.UUID) ([]models.Session, error) {
	query := `
		SELECT * FROM operator_sessions
		WHERE operator_id = $1 AND expires_at > NOW()
		ORDER BY created_at DESC
	`

	var sessions []models.Session
	if err := r.db.SelectContext(ctx, &sessions, query, operatorID); err != nil {
		return nil, fmt.Errorf("operator repository: list sessions %w", err)
	}

	return sessions, nil
}
