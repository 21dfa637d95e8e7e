package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/towlink/dispatch-backend/internal/service"
)

const (
	// ContextOperatorIDKey is the gin context key holding the authenticated operator ID.
	ContextOperatorIDKey = "operatorID"
	// ContextRoleKey is the gin context key holding the authenticated operator role.
	ContextRoleKey = "role"
)

// AuthMiddleware validates the Bearer access token and stores the operator
// identity in the request context.
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header must be in the form 'Bearer <token>'"})
			return
		}

		operatorID, role, err := tokens.ParseAccess(parts[1])
		if err != nil || operatorID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired access token"})
			return
		}

		c.Set(ContextOperatorIDKey, operatorID)
		c.Set(ContextRoleKey, role)
		c.Next()
	}
}

// RequireRole rejects requests whose authenticated role does not match.
// It must be installed after AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, exists := c.Get(ContextRoleKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		role, ok := raw.(string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
	}
}
