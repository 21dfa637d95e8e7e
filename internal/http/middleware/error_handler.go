package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/towlink/dispatch-backend/internal/gateway"
	"github.com/towlink/dispatch-backend/internal/logger"
	"github.com/towlink/dispatch-backend/internal/repository"
	"github.com/towlink/dispatch-backend/internal/repository/common"
	"github.com/towlink/dispatch-backend/internal/service"
)

// errorStatus maps known sentinel errors to HTTP status codes.
var errorStatus = []struct {
	err    error
	status int
}{
	{repository.ErrWalletNotFound, http.StatusNotFound},
	{repository.ErrDebtNotFound, http.StatusNotFound},
	{repository.ErrCaptureNotFound, http.StatusNotFound},
	{repository.ErrWithdrawalNotFound, http.StatusNotFound},
	{repository.ErrBatchNotFound, http.StatusNotFound},
	{repository.ErrOperatorNotFound, http.StatusNotFound},
	{repository.ErrPayoutAccountNotFound, http.StatusNotFound},
	{repository.ErrServiceNotFound, http.StatusNotFound},
	{repository.ErrNotificationNotFound, http.StatusNotFound},

	{repository.ErrServiceConflict, http.StatusConflict},
	{repository.ErrWithdrawalConflict, http.StatusConflict},
	{repository.ErrDuplicateCapture, http.StatusConflict},
	{repository.ErrDuplicateBatchWindow, http.StatusConflict},
	{repository.ErrOperatorExists, http.StatusConflict},
	{service.ErrEmailTaken, http.StatusConflict},
	{service.ErrCashServicesBlocked, http.StatusConflict},

	{repository.ErrInsufficientBalance, http.StatusUnprocessableEntity},
	{service.ErrBelowMinimum, http.StatusUnprocessableEntity},
	{service.ErrPayoutAccountMissing, http.StatusUnprocessableEntity},
	{service.ErrPayoutAccountNotVerified, http.StatusUnprocessableEntity},
	{service.ErrNoOutstandingDebt, http.StatusUnprocessableEntity},

	{repository.ErrNonPositiveAmount, http.StatusBadRequest},
	{service.ErrInvalidAmount, http.StatusBadRequest},
	{service.ErrUnknownPaymentMethod, http.StatusBadRequest},

	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrAccountDisabled, http.StatusForbidden},
	{service.ErrNotServiceOperator, http.StatusForbidden},

	{gateway.ErrUnavailable, http.StatusBadGateway},
	{gateway.ErrDeclined, http.StatusUnprocessableEntity},

	// Kind fallbacks: a repository sentinel built on the common bases maps
	// here even without a dedicated entry above.
	{common.ErrNotFound, http.StatusNotFound},
	{common.ErrAlreadyExists, http.StatusConflict},
	{common.ErrInvalidInput, http.StatusBadRequest},
}

// ErrorHandler turns errors attached to the gin context into JSON responses.
// Internal errors are masked; known sentinels map to their status codes.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last()

		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("Request error")
		}

		statusCode := http.StatusInternalServerError
		message := "internal server error"

		matched := false
		for _, m := range errorStatus {
			if errors.Is(err.Err, m.err) {
				statusCode = m.status
				message = m.err.Error()
				matched = true
				break
			}
		}

		if !matched && err.Error() != "" && !containsInternalKeywords(err.Error()) {
			message = err.Error()
			statusCode = http.StatusBadRequest
		}

		c.JSON(statusCode, gin.H{"error": message})
	}
}

func containsInternalKeywords(s string) bool {
	keywords := []string{
		"sql:",
		"database",
		"connection",
		"timeout",
		"internal",
		"panic",
		"runtime",
	}

	lower := strings.ToLower(s)
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}
