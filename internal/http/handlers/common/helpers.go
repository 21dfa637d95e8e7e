package common

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/towlink/dispatch-backend/internal/http/middleware"
)

var (
	// ErrOperatorNotFound is returned when no operator identity is present in the context.
	ErrOperatorNotFound = errors.New("operator not found in context")

	// ErrInvalidUUID is returned when UUID parsing fails.
	ErrInvalidUUID = errors.New("invalid UUID format")
)

// CurrentOperatorID extracts the authenticated operator ID from the gin context.
func CurrentOperatorID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextOperatorIDKey)
	if !exists {
		return uuid.Nil, ErrOperatorNotFound
	}

	operatorID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrOperatorNotFound
	}

	return operatorID, nil
}

// CurrentOperatorRole extracts the authenticated operator role from the gin context.
func CurrentOperatorRole(c *gin.Context) (string, error) {
	raw, exists := c.Get(middleware.ContextRoleKey)
	if !exists {
		return "", ErrOperatorNotFound
	}

	role, ok := raw.(string)
	if !ok {
		return "", ErrOperatorNotFound
	}

	return role, nil
}

// ParseUUIDParam parses a UUID from a URL parameter.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	param := c.Param(paramName)
	if param == "" {
		return uuid.Nil, fmt.Errorf("parameter %s is missing", paramName)
	}

	parsed, err := uuid.Parse(param)
	if err != nil {
		return uuid.Nil, ErrInvalidUUID
	}

	return parsed, nil
}

// QueryInt reads an integer query parameter, falling back to def when
// absent or malformed.
func QueryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// RespondError sends a standardized error response.
func RespondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{"error": message})
}

// RespondUnauthorized sends a 401 Unauthorized response.
func RespondUnauthorized(c *gin.Context, message string) {
	if message == "" {
		message = "authentication required"
	}
	RespondError(c, http.StatusUnauthorized, message)
}

// RespondBadRequest sends a 400 Bad Request response.
func RespondBadRequest(c *gin.Context, message string) {
	if message == "" {
		message = "invalid request"
	}
	RespondError(c, http.StatusBadRequest, message)
}

// Fail records the error on the gin context so the error handler
// middleware can map it to a status code.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
