package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/towlink/dispatch-backend/internal/models"
	"github.com/towlink/dispatch-backend/internal/repository"
)

type mockAuthRepo struct {
	mock.Mock
}

func (m *mockAuthRepo) Create(ctx context.Context, op *models.Operator) error {
	args := m.Called(ctx, op)
	if args.Error(0) == nil && op.ID == uuid.Nil {
		op.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockAuthRepo) GetByEmail(ctx context.Context, email string) (*models.Operator, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Operator), args.Error(1)
}

func (m *mockAuthRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Operator, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Operator), args.Error(1)
}

func (m *mockAuthRepo) UpdateLastLoginAt(ctx context.Context, operatorID uuid.UUID) error {
	args := m.Called(ctx, operatorID)
	return args.Error(0)
}

func (m *mockAuthRepo) CreateSession(ctx context.Context, session *models.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockAuthRepo) GetSessionByToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *mockAuthRepo) DeleteSession(ctx context.Context, refreshToken string) error {
	args := m.Called(ctx, refreshToken)
	return args.Error(0)
}

func (m *mockAuthRepo) DeleteAllSessions(ctx context.Context, operatorID uuid.UUID) error {
	args := m.Called(ctx, operatorID)
	return args.Error(0)
}

func (m *mockAuthRepo) ListSessions(ctx context.Context, operatorID uuid.UUID) ([]models.Session, error) {
	args := m.Called(ctx, operatorID)
	return args.Get(0).([]models.Session), args.Error(1)
}

func testTokenManager() *TokenManager {
	return NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 720*time.Hour)
}

func TestAuthService_Register_Success(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, testTokenManager())
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "driver@example.com").Return(nil, repository.ErrOperatorNotFound)
	repo.On("Create", ctx, mock.MatchedBy(func(op *models.Operator) bool {
		return op.Email == "driver@example.com" && op.Role == models.RoleOperator && op.PasswordHash != ""
	})).Return(nil)
	repo.On("CreateSession", ctx, mock.Anything).Return(nil)

	result, err := svc.Register(ctx, RegisterInput{
		Email:    "driver@example.com",
		Password: "Password1",
		FullName: "Jane Driver",
	}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, result.TokenPair.AccessToken)
	assert.NotEmpty(t, result.TokenPair.RefreshToken)
	assert.Equal(t, models.RoleOperator, result.Operator.Role)
	repo.AssertExpectations(t)
}

func TestAuthService_Register_EmailTaken(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, testTokenManager())
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "taken@example.com").Return(&models.Operator{ID: uuid.New()}, nil)

	_, err := svc.Register(ctx, RegisterInput{
		Email:    "taken@example.com",
		Password: "Password1",
		FullName: "Jane Driver",
	}, nil)
	assert.ErrorIs(t, err, ErrEmailTaken)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthService_Register_WeakPassword(t *testing.T) {
	svc := NewAuthService(new(mockAuthRepo), testTokenManager())

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "driver@example.com",
		Password: "short",
		FullName: "Jane Driver",
	}, nil)
	assert.Error(t, err)
}

func TestAuthService_Login_Success(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, testTokenManager())
	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("Password1"), bcrypt.MinCost)
	require.NoError(t, err)

	op := &models.Operator{
		ID:           uuid.New(),
		Email:        "driver@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleOperator,
		IsActive:     true,
	}
	repo.On("GetByEmail", ctx, "driver@example.com").Return(op, nil)
	repo.On("UpdateLastLoginAt", ctx, op.ID).Return(nil)
	repo.On("CreateSession", ctx, mock.Anything).Return(nil)

	result, err := svc.Login(ctx, LoginInput{Email: "driver@example.com", Password: "Password1"}, nil)
	require.NoError(t, err)
	assert.Equal(t, op.ID, result.Operator.ID)
	assert.NotEmpty(t, result.TokenPair.AccessToken)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, testTokenManager())
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("Password1"), bcrypt.MinCost)
	repo.On("GetByEmail", ctx, "driver@example.com").Return(&models.Operator{
		ID:           uuid.New(),
		PasswordHash: string(hash),
		IsActive:     true,
	}, nil)

	_, err := svc.Login(ctx, LoginInput{Email: "driver@example.com", Password: "Password2"}, nil)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Login_DisabledAccount(t *testing.T) {
	repo := new(mockAuthRepo)
	svc := NewAuthService(repo, testTokenManager())
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "driver@example.com").Return(&models.Operator{
		ID:       uuid.New(),
		IsActive: false,
	}, nil)

	_, err := svc.Login(ctx, LoginInput{Email: "driver@example.com", Password: "Password1"}, nil)
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestAuthService_Refresh_RotatesSession(t *testing.T) {
	repo := new(mockAuthRepo)
	tokens := testTokenManager()
	svc := NewAuthService(repo, tokens)
	ctx := context.Background()

	op := &models.Operator{ID: uuid.New(), Role: models.RoleOperator}
	pair, _, _, err := tokens.GeneratePair(op)
	require.NoError(t, err)

	repo.On("GetSessionByToken", ctx, pair.RefreshToken).Return(&models.Session{
		OperatorID:   op.ID,
		RefreshToken: pair.RefreshToken,
	}, nil)
	repo.On("GetByID", ctx, op.ID).Return(op, nil)
	repo.On("DeleteSession", ctx, pair.RefreshToken).Return(nil)
	repo.On("CreateSession", ctx, mock.Anything).Return(nil)

	rotated, err := svc.Refresh(ctx, pair.RefreshToken, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.RefreshToken)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	repo.AssertCalled(t, "DeleteSession", ctx, pair.RefreshToken)
}

func TestAuthService_Refresh_DeadSessionRejected(t *testing.T) {
	repo := new(mockAuthRepo)
	tokens := testTokenManager()
	svc := NewAuthService(repo, tokens)
	ctx := context.Background()

	pair, _, _, err := tokens.GeneratePair(&models.Operator{ID: uuid.New(), Role: models.RoleOperator})
	require.NoError(t, err)

	repo.On("GetSessionByToken", ctx, pair.RefreshToken).Return(nil, repository.ErrOperatorNotFound)

	_, err = svc.Refresh(ctx, pair.RefreshToken, nil)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokenManager_AccessRoundTrip(t *testing.T) {
	tokens := testTokenManager()
	op := &models.Operator{ID: uuid.New(), Role: models.RoleAdmin}

	pair, _, _, err := tokens.GeneratePair(op)
	require.NoError(t, err)

	operatorID, role, err := tokens.ParseAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, op.ID, operatorID)
	assert.Equal(t, models.RoleAdmin, role)

	// A refresh token is not a valid access token.
	_, _, err = tokens.ParseAccess(pair.RefreshToken)
	assert.Error(t, err)
}
