package ws

import (
	"context"

	"github.com/google/uuid"
)

// NotificationServiceAdapter adapts the notification service to the
// NotificationSaver interface used by the hub.
type NotificationServiceAdapter struct {
	service interface {
		CreateNotificationForWS(ctx context.Context, operatorID uuid.UUID, event string, data interface{}) error
	}
}

// NewNotificationServiceAdapter creates the adapter.
func NewNotificationServiceAdapter(service interface {
	CreateNotificationForWS(ctx context.Context, operatorID uuid.UUID, event string, data interface{}) error
}) *NotificationServiceAdapter {
	return &NotificationServiceAdapter{service: service}
}

// CreateNotification implements NotificationSaver.
func (a *NotificationServiceAdapter) CreateNotification(ctx context.Context, operatorID uuid.UUID, event string, data interface{}) error {
	return a.service.CreateNotificationForWS(ctx, operatorID, event, data)
}
