package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campuslink/internal/logging"
	"github.com/HammerMeetNail/campuslink/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

const (
	notificationRetention  = 90 * 24 * time.Hour
	defaultNotificationCap = 50
	maxNotificationCap     = 100
)

type NotificationListParams struct {
	Limit      int
	Before     *time.Time
	UnreadOnly bool
}

type NotificationServiceInterface interface {
	Notify(ctx context.Context, notificationType models.NotificationType, recipientID, actorID, referenceID uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID, params NotificationListParams) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) error
	Delete(ctx context.Context, userID, notificationID uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

type NotificationService struct {
	db       DBConn
	email    EmailServiceInterface
	baseURL  string
	async    func(func())
	asyncCtx context.Context
}

func NewNotificationService(db DBConn, email EmailServiceInterface, baseURL string) *NotificationService {
	return &NotificationService{
		db:       db,
		email:    email,
		baseURL:  baseURL,
		async:    func(fn func()) { go fn() },
		asyncCtx: context.Background(),
	}
}

// SetAsync replaces the goroutine launcher used for email delivery.
func (s *NotificationService) SetAsync(fn func(func())) {
	if fn != nil {
		s.async = fn
	}
}

func emailsFor(t models.NotificationType) bool {
	switch t {
	case models.NotificationConnectionRequestReceived, models.NotificationMentoringRequestReceived:
		return true
	}
	return false
}

func (s *NotificationService) Notify(ctx context.Context, notificationType models.NotificationType, recipientID, actorID, referenceID uuid.UUID) error {
	if recipientID == actorID {
		return nil
	}

	var actor *uuid.UUID
	if actorID != uuid.Nil {
		actor = &actorID
	}
	var ref *uuid.UUID
	if referenceID != uuid.Nil {
		ref = &referenceID
	}

	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`INSERT INTO notifications (user_id, type, actor_id, reference_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		recipientID, string(notificationType), actor, ref,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}

	if s.email != nil && emailsFor(notificationType) {
		s.async(func() { s.dispatchEmail(id) })
	}
	return nil
}

func (s *NotificationService) dispatchEmail(notificationID uuid.UUID) {
	ctx := s.asyncCtx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var (
		notificationType string
		toEmail          string
		actorName        *string
	)
	err := s.db.QueryRow(ctx,
		`SELECT n.type, p.email, a.full_name
		 FROM notifications n
		 JOIN profiles p ON p.id = n.user_id
		 LEFT JOIN profiles a ON a.id = n.actor_id
		 WHERE n.id = $1 AND p.deleted_at IS NULL`,
		notificationID,
	).Scan(&notificationType, &toEmail, &actorName)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			logging.Error("Failed to load notification for email", map[string]interface{}{
				"notification_id": notificationID.String(),
				"error":           err.Error(),
			})
		}
		return
	}

	subject, htmlBody, text := s.buildNotificationEmail(models.NotificationType(notificationType), actorName)
	if err := s.email.SendNotificationEmail(ctx, toEmail, subject, htmlBody, text); err != nil {
		logging.Error("Failed to send notification email", map[string]interface{}{
			"notification_id": notificationID.String(),
			"error":           err.Error(),
		})
	}
}

func (s *NotificationService) buildNotificationEmail(t models.NotificationType, actorName *string) (string, string, string) {
	actor := "Someone"
	if actorName != nil && *actorName != "" {
		actor = *actorName
	}

	var subject, body, label, link string
	switch t {
	case models.NotificationMentoringRequestReceived:
		subject = fmt.Sprintf("%s asked you to be their mentor", actor)
		body = "Open your mentoring requests to accept or decline."
		label = "View mentoring requests"
		link = s.baseURL + "/#mentoring"
	default:
		subject = fmt.Sprintf("%s wants to connect with you", actor)
		body = "Open your connection requests to accept or decline."
		label = "View connection requests"
		link = s.baseURL + "/#connections"
	}
	htmlBody, text := renderEmail(subject, body, label, link)
	return subject, htmlBody, text
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, params NotificationListParams) ([]models.Notification, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultNotificationCap
	}
	if limit > maxNotificationCap {
		limit = maxNotificationCap
	}

	query := `SELECT n.id, n.user_id, n.type, n.actor_id, a.full_name, n.reference_id, n.read_at, n.created_at
		FROM notifications n
		LEFT JOIN profiles a ON a.id = n.actor_id
		WHERE n.user_id = $1`
	args := []any{userID}
	if params.UnreadOnly {
		query += " AND n.read_at IS NULL"
	}
	if params.Before != nil {
		args = append(args, *params.Before)
		query += fmt.Sprintf(" AND n.created_at < $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY n.created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		var notificationType string
		if err := rows.Scan(&n.ID, &n.UserID, &notificationType, &n.ActorID, &n.ActorName, &n.ReferenceID, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		n.Type = models.NotificationType(notificationType)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notifications: %w", err)
	}
	return notifications, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, NOW()) WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("marking notification read: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx,
		`UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, notificationID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`DELETE FROM notifications WHERE id = $1 AND user_id = $2`,
		notificationID, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting notification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`,
		userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}

// CleanupOld purges notifications past the retention window.
func (s *NotificationService) CleanupOld(ctx context.Context) error {
	result, err := s.db.Exec(ctx,
		`DELETE FROM notifications WHERE created_at < $1`,
		time.Now().Add(-notificationRetention),
	)
	if err != nil {
		return fmt.Errorf("cleaning up notifications: %w", err)
	}
	if n := result.RowsAffected(); n > 0 {
		logging.Info("Purged old notifications", map[string]interface{}{"count": n})
	}
	return nil
}

// sendNotification delivers a notification and logs failures; the caller's
// write has already committed.
func sendNotification(ctx context.Context, n NotificationServiceInterface, t models.NotificationType, recipientID, actorID, refID uuid.UUID) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, t, recipientID, actorID, refID); err != nil {
		logging.Error("Failed to send notification", map[string]interface{}{
			"type":         string(t),
			"recipient_id": recipientID.String(),
			"actor_id":     actorID.String(),
			"error":        err.Error(),
		})
	}
}
