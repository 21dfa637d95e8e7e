package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/towlink/dispatch-backend/internal/http/handlers/common"
	"github.com/towlink/dispatch-backend/internal/service"
)

// WalletHandler exposes the operator wallet.
type WalletHandler struct {
	wallets *service.WalletService
}

// NewWalletHandler creates the handler.
func NewWalletHandler(wallets *service.WalletService) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

// GetWallet handles GET /wallet.
func (h *WalletHandler) GetWallet(c *gin.Context) {
	operatorID, err := common.CurrentOperatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	wallet, err := h.wallets.GetWallet(c.Request.Context(), operatorID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, wallet)
}

// ListTransactions handles GET /wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	operatorID, err := common.CurrentOperatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit := common.QueryInt(c, "limit", 20)
	offset := common.QueryInt(c, "offset", 0)

	transactions, err := h.wallets.ListTransactions(c.Request.Context(), operatorID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}
