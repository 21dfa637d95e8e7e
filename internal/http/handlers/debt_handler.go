package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/towlink/dispatch-backend/internal/http/handlers/common"
	"github.com/towlink/dispatch-backend/internal/service"
)

// DebtHandler exposes cash commission debt operations.
type DebtHandler struct {
	debts *service.DebtService
}

// NewDebtHandler creates the handler.
func NewDebtHandler(debts *service.DebtService) *DebtHandler {
	return &DebtHandler{debts: debts}
}

// ListDebts handles GET /wallet/debts.
func (h *DebtHandler) ListDebts(c *gin.Context) {
	operatorID, err := common.CurrentOperatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	debts, err := h.debts.ListDebts(c.Request.Context(), operatorID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"debts": debts})
}

// Repay handles POST /wallet/debts/repay. Repayment is applied to the
// oldest due debt first; any excess stays on the wallet.
func (h *DebtHandler) Repay(c *gin.Context) {
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

	applied, err := h.debts.Repay(c.Request.Context(), operatorID, req.Amount)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"applied": applied})
}
