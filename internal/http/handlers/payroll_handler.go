package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/towlink/dispatch-backend/internal/http/handlers/common"
	"github.com/towlink/dispatch-backend/internal/service"
)

// PayrollHandler exposes scheduled payout batches. Admin only.
type PayrollHandler struct {
	payroll *service.PayrollService
}

// NewPayrollHandler creates the handler.
func NewPayrollHandler(payroll *service.PayrollService) *PayrollHandler {
	return &PayrollHandler{payroll: payroll}
}

// RunWindow handles POST /admin/payroll/run. It triggers a payroll run for
// an explicit window, mainly for backfills; the scheduler covers normal
// operation. A window that was already swept is a no-op.
func (h *PayrollHandler) RunWindow(c *gin.Context) {
	var req struct {
		WindowStart time.Time `json:"window_start" binding:"required"`
		WindowEnd   time.Time `json:"window_end" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if !req.WindowEnd.After(req.WindowStart) {
		common.RespondBadRequest(c, "window_end must be after window_start")
		return
	}

	batch, err := h.payroll.RunWindow(c.Request.Context(), req.WindowStart, req.WindowEnd)
	if err != nil {
		common.Fail(c, err)
		return
	}

	if batch == nil {
		c.JSON(http.StatusOK, gin.H{"message": "window already swept"})
		return
	}

	c.JSON(http.StatusCreated, batch)
}

// ListBatches handles GET /admin/payroll/batches.
func (h *PayrollHandler) ListBatches(c *gin.Context) {
	limit := common.QueryInt(c, "limit", 20)
	offset := common.QueryInt(c, "offset", 0)

	batches, err := h.payroll.ListBatches(c.Request.Context(), limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

// GetBatch handles GET /admin/payroll/batches/:id.
func (h *PayrollHandler) GetBatch(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	batch, err := h.payroll.GetBatch(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

// ListBatchItems handles GET /admin/payroll/batches/:id/items.
func (h *PayrollHandler) ListBatchItems(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	items, err := h.payroll.ListBatchItems(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}
