package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/towlink/dispatch-backend/internal/models"
	"github.com/towlink/dispatch-backend/internal/service"
)

func setupAuthRouter(tokens *service.TokenManager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", AuthMiddleware(tokens), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/admin", AuthMiddleware(tokens), RequireRole(models.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	tokens := service.NewTokenManager("access", "refresh", time.Minute, time.Hour)
	router := setupAuthRouter(tokens)

	op := &models.Operator{Role: models.RoleOperator}
	op.ID = uuid.New()
	pair, _, _, err := tokens.GeneratePair(op)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer " + pair.AccessToken, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"malformed header", pair.AccessToken, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized},
		{"refresh token rejected", "Bearer " + pair.RefreshToken, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	tokens := service.NewTokenManager("access", "refresh", time.Minute, time.Hour)
	router := setupAuthRouter(tokens)

	operator := &models.Operator{Role: models.RoleOperator}
	operator.ID = uuid.New()
	operatorPair, _, _, err := tokens.GeneratePair(operator)
	require.NoError(t, err)

	admin := &models.Operator{Role: models.RoleAdmin}
	admin.ID = uuid.New()
	adminPair, _, _, err := tokens.GeneratePair(admin)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+operatorPair.AccessToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminPair.AccessToken)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
