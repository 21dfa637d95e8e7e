package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/towlink/dispatch-backend/internal/http/handlers/common"
	"github.com/towlink/dispatch-backend/internal/service"
)

// WithdrawalHandler exposes immediate withdrawals.
type WithdrawalHandler struct {
	withdrawals *service.WithdrawalService
}

// NewWithdrawalHandler creates the handler.
func NewWithdrawalHandler(withdrawals *service.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals}
}

// CreateWithdrawal handles POST /withdrawals.
func (h *WithdrawalHandler) CreateWithdrawal(c *gin.Context) {
	operatorID, err := common.CurrentOperatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		Amount decimal.Decimal `json:"amount" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	w, err := h.withdrawals.RequestImmediate(c.Request.Context(), operatorID, req.Amount)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, w)
}

// ListWithdrawals handles GET /withdrawals.
func (h *WithdrawalHandler) ListWithdrawals(c *gin.Context) {
	operatorID, err := common.CurrentOperatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit := common.QueryInt(c, "limit", 20)
	offset := common.QueryInt(c, "offset", 0)

	list, err := h.withdrawals.ListWithdrawals(c.Request.Context(), operatorID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"withdrawals": list})
}

// GetWithdrawal handles GET /withdrawals/:id.
func (h *WithdrawalHandler) GetWithdrawal(c *gin.Context) {
	operatorID, err := common.CurrentOperatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	w, err := h.withdrawals.GetWithdrawal(c.Request.Context(), operatorID, id)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, w)
}

// ListStuck handles GET /admin/withdrawals/stuck - payouts that have been
// in processing longer than max_age (seconds, default one hour).
func (h *WithdrawalHandler) ListStuck(c *gin.Context) {
	maxAge := time.Duration(common.QueryInt(c, "max_age", 3600)) * time.Second

	list, err := h.withdrawals.ListStuck(c.Request.Context(), maxAge)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"withdrawals": list})
}
