package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/towlink/dispatch-backend/internal/models"
)

// NotificationRepository describes the notification storage dependency.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	List(ctx context.Context, operatorID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	MarkAllAsRead(ctx context.Context, operatorID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	CountUnread(ctx context.Context, operatorID uuid.UUID) (int, error)
}

// NotificationService owns stored notifications and their read state.
type NotificationService struct {
	repo NotificationRepository
}

// NewNotificationService creates the notification service.
func NewNotificationService(repo NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// CreateNotification stores a new event notification.
func (s *NotificationService) CreateNotification(ctx context.Context, operatorID uuid.UUID, event string, data interface{}) (*models.Notification, error) {
	payload := map[string]interface{}{
		"event": event,
		"data":  data,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("notification service: marshal payload %w", err)
	}

	notification := &models.Notification{
		OperatorID: operatorID,
		Payload:    payloadBytes,
		IsRead:     false,
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}

	return notification, nil
}

// ListNotifications returns the operator's notifications.
func (s *NotificationService) ListNotifications(ctx context.Context, operatorID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	return s.repo.List(ctx, operatorID, limit, offset, unreadOnly)
}

// MarkAsRead flags one of the operator's notifications as read.
func (s *NotificationService) MarkAsRead(ctx context.Context, id uuid.UUID, operatorID uuid.UUID) error {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if notification.OperatorID != operatorID {
		return fmt.Errorf("notification service: notification belongs to another operator")
	}

	return s.repo.MarkAsRead(ctx, id)
}

// MarkAllAsRead flags all of the operator's notifications as read.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, operatorID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, operatorID)
}

// DeleteNotification removes one of the operator's notifications.
func (s *NotificationService) DeleteNotification(ctx context.Context, id uuid.UUID, operatorID uuid.UUID) error {
	notification, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if notification.OperatorID != operatorID {
		return fmt.Errorf("notification service: notification belongs to another operator")
	}

	return s.repo.Delete(ctx, id)
}

// CreateNotificationForWS stores a notification without returning it,
// for the WebSocket hub's saver interface.
func (s *NotificationService) CreateNotificationForWS(ctx context.Context, operatorID uuid.UUID, event string, data interface{}) error {
	_, err := s.CreateNotification(ctx, operatorID, event, data)
	return err
}

// CountUnread returns the operator's unread notification count.
func (s *NotificationService) CountUnread(ctx context.Context, operatorID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, operatorID)
}
