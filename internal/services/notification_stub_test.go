package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

type sentNotification struct {
	Type        models.NotificationType
	RecipientID uuid.UUID
	ActorID     uuid.UUID
	ReferenceID uuid.UUID
}

type stubNotificationService struct {
	mu         sync.Mutex
	sent       []sentNotification
	NotifyFunc func(ctx context.Context, notificationType models.NotificationType, recipientID, actorID, referenceID uuid.UUID) error
}

func (s *stubNotificationService) Notify(ctx context.Context, notificationType models.NotificationType, recipientID, actorID, referenceID uuid.UUID) error {
	s.mu.Lock()
	s.sent = append(s.sent, sentNotification{notificationType, recipientID, actorID, referenceID})
	s.mu.Unlock()
	if s.NotifyFunc != nil {
		return s.NotifyFunc(ctx, notificationType, recipientID, actorID, referenceID)
	}
	return nil
}

func (s *stubNotificationService) List(ctx context.Context, userID uuid.UUID, params NotificationListParams) ([]models.Notification, error) {
	return []models.Notification{}, nil
}

func (s *stubNotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (s *stubNotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func (s *stubNotificationService) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (s *stubNotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return 0, nil
}

func (s *stubNotificationService) types() []models.NotificationType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.NotificationType, 0, len(s.sent))
	for _, n := range s.sent {
		out = append(out, n.Type)
	}
	return out
}
