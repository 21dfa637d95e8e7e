package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/towlink/dispatch-backend/internal/http/handlers/common"
	"github.com/towlink/dispatch-backend/internal/service"
	"github.com/towlink/dispatch-backend/internal/validation"
)

// ServiceHandler exposes the money side of tow jobs: creation, accept,
// completion and cancellation.
type ServiceHandler struct {
	payments *service.PaymentService
}

// NewServiceHandler creates the handler.
func NewServiceHandler(payments *service.PaymentService) *ServiceHandler {
	return &ServiceHandler{payments: payments}
}

// CreateService handles POST /services.
func (h *ServiceHandler) CreateService(c *gin.Context) {
	var req struct {
		ClientID      uuid.UUID       `json:"client_id" binding:"required"`
		Description   string          `json:"description"`
		GrossAmount   decimal.Decimal `json:"gross_amount" binding:"required"`
		PaymentMethod string          `json:"payment_method" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if req.Description != "" {
		if err := validation.ValidateLength("description", req.Description, 0, validation.MaxDescriptionLength); err != nil {
			common.RespondBadRequest(c, err.Error())
			return
		}
	}

	svc, err := h.payments.CreateService(c.Request.Context(), req.ClientID, req.Description, req.GrossAmount, req.PaymentMethod)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, svc)
}

// GetService handles GET /services/:id.
func (h *ServiceHandler) GetService(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	svc, err := h.payments.GetService(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, svc)
}

// ListMyServices handles GET /services/my.
func (h *ServiceHandler) ListMyServices(c *gin.Context) {
	operatorID, err := common.CurrentOperatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit := common.QueryInt(c, "limit", 20)
	offset := common.QueryInt(c, "offset", 0)

	services, err := h.payments.ListOperatorServices(c.Request.Context(), operatorID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"services": services})
}

// AcceptService handles POST /services/:id/accept.
func (h *ServiceHandler) AcceptService(c *gin.Context) {
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

	svc, err := h.payments.AcceptService(c.Request.Context(), id, operatorID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, svc)
}

// CompleteService handles POST /services/:id/complete.
func (h *ServiceHandler) CompleteService(c *gin.Context) {
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

	svc, err := h.payments.CompleteService(c.Request.Context(), id, operatorID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, svc)
}

// CancelService handles POST /services/:id/cancel.
func (h *ServiceHandler) CancelService(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	svc, err := h.payments.CancelService(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, svc)
}
