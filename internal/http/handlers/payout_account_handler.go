package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"

	"github.com/towlink/dispatch-backend/internal/http/handlers/common"
	"github.com/towlink/dispatch-backend/internal/service"
)

// Accepted verification document types.
var allowedDocumentMimeTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
}

var allowedDocumentExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// PayoutAccountHandler manages bank accounts for payouts and their
// verification documents.
type PayoutAccountHandler struct {
	accounts *service.PayoutAccountService
}

// NewPayoutAccountHandler creates the handler.
func NewPayoutAccountHandler(accounts *service.PayoutAccountService) *PayoutAccountHandler {
	return &PayoutAccountHandler{accounts: accounts}
}

// SubmitAccount handles PUT /payout-account. Resubmitting resets the
// account to pending verification.
func (h *PayoutAccountHandler) SubmitAccount(c *gin.Context) {
	operatorID, err := common.CurrentOperatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		BankName      string `json:"bank_name" binding:"required"`
		AccountNumber string `json:"account_number" binding:"required"`
		AccountHolder string `json:"account_holder" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	account, err := h.accounts.SubmitAccount(c.Request.Context(), operatorID, req.BankName, req.AccountNumber, req.AccountHolder)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

// GetAccount handles GET /payout-account.
func (h *PayoutAccountHandler) GetAccount(c *gin.Context) {
	operatorID, err := common.CurrentOperatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	account, err := h.accounts.GetAccount(c.Request.Context(), operatorID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, account)
}

// UploadDocument handles POST /payout-account/documents.
func (h *PayoutAccountHandler) UploadDocument(c *gin.Context) {
	operatorID, err := common.CurrentOperatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "field file is required")
		return
	}

	if file.Size == 0 {
		common.RespondBadRequest(c, "file must not be empty")
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedDocumentExtensions[ext] {
		common.RespondBadRequest(c, "unsupported file format, allowed: pdf, jpg, jpeg, png, webp")
		return
	}

	src, err := file.Open()
	if err != nil {
		common.Fail(c, err)
		return
	}
	defer src.Close()

	// Sniff magic bytes so a renamed executable does not slip through.
	buffer := make([]byte, 512)
	n, err := src.Read(buffer)
	if err != nil && n == 0 {
		common.RespondBadRequest(c, "could not read the file")
		return
	}

	kind, err := filetype.Match(buffer[:n])
	if err != nil || kind == filetype.Unknown || !allowedDocumentMimeTypes[kind.MIME.Value] {
		common.RespondBadRequest(c, "file contents do not match an allowed document type")
		return
	}

	if _, err := src.Seek(0, 0); err != nil {
		common.Fail(c, err)
		return
	}

	doc, err := h.accounts.UploadDocument(c.Request.Context(), operatorID, file.Filename, kind.MIME.Value, src)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// ListDocuments handles GET /payout-account/documents.
func (h *PayoutAccountHandler) ListDocuments(c *gin.Context) {
	operatorID, err := common.CurrentOperatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	docs, err := h.accounts.ListDocuments(c.Request.Context(), operatorID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// Verify handles POST /admin/payout-accounts/:id/verify.
func (h *PayoutAccountHandler) Verify(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.accounts.Verify(c.Request.Context(), id); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "account verified"})
}

// Reject handles POST /admin/payout-accounts/:id/reject.
func (h *PayoutAccountHandler) Reject(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.accounts.Reject(c.Request.Context(), id); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "account rejected"})
}

// ListPending handles GET /admin/payout-accounts/pending.
func (h *PayoutAccountHandler) ListPending(c *gin.Context) {
	limit := common.QueryInt(c, "limit", 20)
	offset := common.QueryInt(c, "offset", 0)

	accounts, err := h.accounts.ListPendingVerification(c.Request.Context(), limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}
