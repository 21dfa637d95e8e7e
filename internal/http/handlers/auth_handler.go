package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/towlink/dispatch-backend/internal/http/handlers/common"
	"github.com/towlink/dispatch-backend/internal/service"
	"github.com/towlink/dispatch-backend/internal/validation"
)

// AuthHandler provides the HTTP layer for registration and login.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler creates the handler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
		FullName string `json:"full_name" binding:"required"`
		Phone    string `json:"phone"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidateEmail(req.Email); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidatePassword(req.Password); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	meta := map[string]string{
		"user_agent": c.GetHeader("User-Agent"),
		"ip":         c.ClientIP(),
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
	}, meta)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"operator": result.Operator,
		"tokens":   result.TokenPair,
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidateEmail(req.Email); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if strings.TrimSpace(req.Password) == "" {
		common.RespondBadRequest(c, "password is required")
		return
	}

	meta := map[string]string{
		"user_agent": c.GetHeader("User-Agent"),
		"ip":         c.ClientIP(),
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	}, meta)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"operator": result.Operator,
		"tokens":   result.TokenPair,
	})
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	meta := map[string]string{
		"user_agent": c.GetHeader("User-Agent"),
		"ip":         c.ClientIP(),
	}

	tokenPair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, meta)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"tokens": tokenPair})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// LogoutAll handles POST /auth/logout-all - revokes every session.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	operatorID, err := common.CurrentOperatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	if err := h.auth.LogoutAll(c.Request.Context(), operatorID); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "all sessions revoked"})
}

// ListSessions handles GET /auth/sessions - active sessions for the operator.
func (h *AuthHandler) ListSessions(c *gin.Context) {
	operatorID, err := common.CurrentOperatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	sessions, err := h.auth.ListSessions(c.Request.Context(), operatorID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, sessions)
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	operatorID, err := common.CurrentOperatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	op, err := h.auth.GetOperator(c.Request.Context(), operatorID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"operator": op})
}
