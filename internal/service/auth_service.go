package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"

	"github.com/towlink/dispatch-backend/internal/logger"
	"github.com/towlink/dispatch-backend/internal/models"
	"github.com/towlink/dispatch-backend/internal/repository"
	"github.com/towlink/dispatch-backend/internal/validation"
)

var (
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is disabled")
)

// AuthRepository describes AuthService's storage dependencies.
type AuthRepository interface {
	Create(ctx context.Context, op *models.Operator) error
	GetByEmail(ctx context.Context, email string) (*models.Operator, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Operator, error)
	UpdateLastLoginAt(ctx context.Context, operatorID uuid.UUID) error
	CreateSession(ctx context.Context, session *models.Session) error
	GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error)
	DeleteSession(ctx context.Context, refreshToken string) error
	DeleteAllSessions(ctx context.Context, operatorID uuid.UUID) error
	ListSessions(ctx context.Context, operatorID uuid.UUID) ([]models.Session, error)
}

// AuthService encapsulates registration and authentication.
type AuthService struct {
	repo         AuthRepository
	tokenManager *TokenManager
}

// RegisterInput carries operator data at registration.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

// LoginInput carries login credentials.
type LoginInput struct {
	Email    string
	Password string
}

// AuthResult is the outcome of registration or login.
type AuthResult struct {
	Operator  *models.Operator
	TokenPair *TokenPair
}

// NewAuthService creates the auth service.
func NewAuthService(repo AuthRepository, tokenManager *TokenManager) *AuthService {
	return &AuthService{
		repo:         repo,
		tokenManager: tokenManager,
	}
}

// Register creates a new operator account and opens a session.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, meta map[string]string) (*AuthResult, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}
	if err := validation.ValidateLength("full name", in.FullName, validation.MinFullNameLength, validation.MaxFullNameLength); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrOperatorNotFound) {
		return nil, err
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth service: hash password: %w", err)
	}

	op := &models.Operator{
		Email:        strings.ToLower(in.Email),
		FullName:     in.FullName,
		PasswordHash: string(passHash),
		Role:         models.RoleOperator,
	}
	if in.Phone != "" {
		op.Phone = &in.Phone
	}

	if err := s.repo.Create(ctx, op); err != nil {
		if errors.Is(err, repository.ErrOperatorExists) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	tokenPair, err := s.openSession(ctx, op, meta)
	if err != nil {
		return nil, err
	}

	return &AuthResult{Operator: op, TokenPair: tokenPair}, nil
}

// Login verifies credentials and returns tokens.
func (s *AuthService) Login(ctx context.Context, in LoginInput, meta map[string]string) (*AuthResult, error) {
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	op, err := s.repo.GetByEmail(ctx, strings.ToLower(in.Email))
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !op.IsActive {
		return nil, ErrAccountDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(in.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.repo.UpdateLastLoginAt(ctx, op.ID); err != nil {
		// Not worth failing the login over.
		if logger.Log != nil {
			logger.Log.WithFields(map[string]interface{}{
				"operator_id": op.ID,
				"error":       err.Error(),
			}).Warn("auth service: failed to update last_login_at")
		}
	}

	tokenPair, err := s.openSession(ctx, op, meta)
	if err != nil {
		return nil, err
	}

	return &AuthResult{Operator: op, TokenPair: tokenPair}, nil
}

// Refresh rotates the token pair.
func (s *AuthService) Refresh(ctx context.Context, oldToken string, meta map[string]string) (*TokenPair, error) {
	claims, err := s.tokenManager.ParseRefresh(oldToken)
	if err != nil {
		return nil, fmt.Errorf("auth service: invalid refresh token: %w", err)
	}

	// The token must still be backed by a stored session; a deleted session
	// means logout or rotation already happened.
	if _, err := s.repo.GetSessionByToken(ctx, oldToken); err != nil {
		return nil, fmt.Errorf("auth service: session not found: %w", ErrInvalidCredentials)
	}

	operatorID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("auth service: invalid subject: %w", err)
	}

	op, err := s.repo.GetByID(ctx, operatorID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.DeleteSession(ctx, oldToken); err != nil {
		return nil, err
	}

	return s.openSession(ctx, op, meta)
}

// Logout deletes the session behind a refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.repo.DeleteSession(ctx, refreshToken)
}

// LogoutAll deletes every session of an operator.
func (s *AuthService) LogoutAll(ctx context.Context, operatorID uuid.UUID) error {
	return s.repo.DeleteAllSessions(ctx, operatorID)
}

// ListSessions returns the operator's live sessions.
func (s *AuthService) ListSessions(ctx context.Context, operatorID uuid.UUID) ([]models.Session, error) {
	return s.repo.ListSessions(ctx, operatorID)
}

// GetOperator returns an operator by id.
func (s *AuthService) GetOperator(ctx context.Context, operatorID uuid.UUID) (*models.Operator, error) {
	return s.repo.GetByID(ctx, operatorID)
}

func (s *AuthService) openSession(ctx context.Context, op *models.Operator, meta map[string]string) (*TokenPair, error) {
	tokenPair, _, refreshExp, err := s.tokenManager.GeneratePair(op)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		OperatorID:   op.ID,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    refreshExp,
	}

	if meta != nil {
		if ua, ok := meta["user_agent"]; ok {
			session.UserAgent = &ua
		}
		if ip, ok := meta["ip"]; ok {
			session.IPAddress = &ip
		}
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return tokenPair, nil
}
