package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/towlink/dispatch-backend/internal/http/handlers/common"
	"github.com/towlink/dispatch-backend/internal/service"
)

// NotificationHandler exposes the operator notification feed.
type NotificationHandler struct {
	notifications *service.NotificationService
}

// NewNotificationHandler creates the handler.
func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ListNotifications handles GET /notifications.
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	operatorID, err := common.CurrentOperatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit := common.QueryInt(c, "limit", 20)
	offset := common.QueryInt(c, "offset", 0)
	unreadOnly := c.Query("unread") == "true"

	list, err := h.notifications.ListNotifications(c.Request.Context(), operatorID, limit, offset, unreadOnly)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// CountUnread handles GET /notifications/unread/count.
func (h *NotificationHandler) CountUnread(c *gin.Context) {
	operatorID, err := common.CurrentOperatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	count, err := h.notifications.CountUnread(c.Request.Context(), operatorID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

// MarkAsRead handles PUT /notifications/:id/read.
func (h *NotificationHandler) MarkAsRead(c *gin.Context) {
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

	if err := h.notifications.MarkAsRead(c.Request.Context(), id, operatorID); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "notification marked as read"})
}

// MarkAllAsRead handles PUT /notifications/read-all.
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
	operatorID, err := common.CurrentOperatorID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	if err := h.notifications.MarkAllAsRead(c.Request.Context(), operatorID); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "all notifications marked as read"})
}

// DeleteNotification handles DELETE /notifications/:id.
func (h *NotificationHandler) DeleteNotification(c *gin.Context) {
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

	if err := h.notifications.DeleteNotification(c.Request.Context(), id, operatorID); err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "notification deleted"})
}
