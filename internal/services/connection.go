package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

var (
	ErrCannotConnectSelf         = errors.New("cannot send a connection request to yourself")
	ErrConnectionRequestExists   = errors.New("a connection request already exists between these users")
	ErrConnectionRequestNotFound = errors.New("connection request not found")
	ErrRequestNotPending         = errors.New("connection request is no longer pending")
	ErrNotConnected              = errors.New("users are not connected")
	ErrMessageTooLong            = errors.New("message is too long")
)

const connectionRequestColumns = `id, sender_id, receiver_id, status, message, created_at, responded_at`

type ConnectionServiceInterface interface {
	SendRequest(ctx context.Context, senderID, receiverID uuid.UUID, message *string) (*models.ConnectionRequest, error)
	Respond(ctx context.Context, receiverID, requestID uuid.UUID, accept bool) (*models.ConnectionRequest, error)
	Cancel(ctx context.Context, senderID, requestID uuid.UUID) error
	Remove(ctx context.Context, userID, otherID uuid.UUID) error
	ListConnections(ctx context.Context, userID uuid.UUID) ([]models.Connection, error)
	ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.ConnectionRequestWithProfile, error)
	ListOutgoing(ctx context.Context, userID uuid.UUID) ([]models.ConnectionRequestWithProfile, error)
	Status(ctx context.Context, userID, otherID uuid.UUID) (*models.ConnectionStatusResult, error)
}

type ConnectionService struct {
	db                  DB
	notificationService NotificationServiceInterface
}

func NewConnectionService(db DB) *ConnectionService {
	return &ConnectionService{db: db}
}

func (s *ConnectionService) SetNotificationService(notificationService NotificationServiceInterface) {
	s.notificationService = notificationService
}

func scanConnectionRequest(row Row) (*models.ConnectionRequest, error) {
	req := &models.ConnectionRequest{}
	var status string
	if err := row.Scan(&req.ID, &req.SenderID, &req.ReceiverID, &status, &req.Message, &req.CreatedAt, &req.RespondedAt); err != nil {
		return nil, err
	}
	req.Status = models.ConnectionStatus(status)
	return req, nil
}

func normalizeMessage(message *string, max int) (*string, error) {
	if message == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*message)
	if trimmed == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(trimmed) > max {
		return nil, ErrMessageTooLong
	}
	return &trimmed, nil
}

// hasActiveRequest reports whether a pending or accepted request exists in either direction.
func hasActiveRequest(ctx context.Context, q DBConn, a, b uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM connection_requests
			WHERE status IN ('pending', 'accepted')
			  AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		)`,
		a, b,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking existing request: %w", err)
	}
	return exists, nil
}

func areConnected(ctx context.Context, q DBConn, a, b uuid.UUID) (bool, error) {
	var connected bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM connection_requests
			WHERE status = 'accepted'
			  AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		)`,
		a, b,
	).Scan(&connected)
	if err != nil {
		return false, fmt.Errorf("checking connection: %w", err)
	}
	return connected, nil
}

func bumpConnectionCounts(ctx context.Context, q DBConn, a, b uuid.UUID, delta int) error {
	_, err := q.Exec(ctx,
		`UPDATE profiles
		 SET connections_count = GREATEST(connections_count + $3, 0), updated_at = NOW()
		 WHERE id IN ($1, $2)`,
		a, b, delta,
	)
	if err != nil {
		return fmt.Errorf("updating connection counts: %w", err)
	}
	return nil
}

func (s *ConnectionService) SendRequest(ctx context.Context, senderID, receiverID uuid.UUID, message *string) (*models.ConnectionRequest, error) {
	if senderID == receiverID {
		return nil, ErrCannotConnectSelf
	}
	message, err := normalizeMessage(message, models.MaxConnectionMessageLength)
	if err != nil {
		return nil, err
	}

	var req *models.ConnectionRequest
	err = withTx(ctx, s.db, func(tx Tx) error {
		if err := lockProfilePairForUpdate(ctx, tx, senderID, receiverID); err != nil {
			return err
		}

		exists, err := hasActiveRequest(ctx, tx, senderID, receiverID)
		if err != nil {
			return err
		}
		if exists {
			return ErrConnectionRequestExists
		}

		req, err = scanConnectionRequest(tx.QueryRow(ctx,
			`INSERT INTO connection_requests (sender_id, receiver_id, status, message)
			 VALUES ($1, $2, 'pending', $3)
			 RETURNING `+connectionRequestColumns,
			senderID, receiverID, message,
		))
		if isUniqueViolation(err) {
			return ErrConnectionRequestExists
		}
		if err != nil {
			return fmt.Errorf("creating connection request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sendNotification(ctx, s.notificationService, models.NotificationConnectionRequestReceived, receiverID, senderID, req.ID)
	return req, nil
}

// Respond lets the receiver accept or reject a pending request. Both profiles
// are locked before the status is re-read, so a second accept sees the
// accepted row and leaves the counters alone.
func (s *ConnectionService) Respond(ctx context.Context, receiverID, requestID uuid.UUID, accept bool) (*models.ConnectionRequest, error) {
	var req *models.ConnectionRequest
	err := withTx(ctx, s.db, func(tx Tx) error {
		var senderID, recipient uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT sender_id, receiver_id FROM connection_requests WHERE id = $1`,
			requestID,
		).Scan(&senderID, &recipient)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrConnectionRequestNotFound
		}
		if err != nil {
			return fmt.Errorf("loading connection request: %w", err)
		}
		if recipient != receiverID {
			return ErrConnectionRequestNotFound
		}

		if err := lockProfilePairForUpdate(ctx, tx, senderID, receiverID); err != nil {
			return err
		}

		var status string
		err = tx.QueryRow(ctx,
			`SELECT status FROM connection_requests WHERE id = $1 FOR UPDATE`,
			requestID,
		).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrConnectionRequestNotFound
		}
		if err != nil {
			return fmt.Errorf("locking connection request: %w", err)
		}
		if models.ConnectionStatus(status) != models.ConnectionStatusPending {
			return ErrRequestNotPending
		}

		newStatus := models.ConnectionStatusRejected
		if accept {
			newStatus = models.ConnectionStatusAccepted
		}
		req, err = scanConnectionRequest(tx.QueryRow(ctx,
			`UPDATE connection_requests SET status = $2, responded_at = NOW()
			 WHERE id = $1
			 RETURNING `+connectionRequestColumns,
			requestID, string(newStatus),
		))
		if isUniqueViolation(err) {
			return ErrConnectionRequestExists
		}
		if err != nil {
			return fmt.Errorf("updating connection request: %w", err)
		}

		if accept {
			return bumpConnectionCounts(ctx, tx, senderID, receiverID, 1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if accept {
		sendNotification(ctx, s.notificationService, models.NotificationConnectionRequestAccepted, req.SenderID, receiverID, req.ID)
	}
	return req, nil
}

func (s *ConnectionService) Cancel(ctx context.Context, senderID, requestID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`DELETE FROM connection_requests WHERE id = $1 AND sender_id = $2 AND status = 'pending'`,
		requestID, senderID,
	)
	if err != nil {
		return fmt.Errorf("cancelling connection request: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var owner uuid.UUID
	err = s.db.QueryRow(ctx,
		`SELECT sender_id FROM connection_requests WHERE id = $1`,
		requestID,
	).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && owner != senderID) {
		return ErrConnectionRequestNotFound
	}
	if err != nil {
		return fmt.Errorf("loading connection request: %w", err)
	}
	return ErrRequestNotPending
}

func (s *ConnectionService) Remove(ctx context.Context, userID, otherID uuid.UUID) error {
	if userID == otherID {
		return ErrNotConnected
	}
	return withTx(ctx, s.db, func(tx Tx) error {
		if err := lockProfilePairForUpdate(ctx, tx, userID, otherID); err != nil {
			return err
		}
		result, err := tx.Exec(ctx,
			`DELETE FROM connection_requests
			 WHERE status = 'accepted'
			   AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))`,
			userID, otherID,
		)
		if err != nil {
			return fmt.Errorf("removing connection: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrNotConnected
		}
		return bumpConnectionCounts(ctx, tx, userID, otherID, -1)
	})
}

func (s *ConnectionService) ListConnections(ctx context.Context, userID uuid.UUID) ([]models.Connection, error) {
	rows, err := s.db.Query(ctx,
		`SELECT cr.id, COALESCE(cr.responded_at, cr.created_at), p.id, p.full_name, p.role, p.department, p.avatar_url
		 FROM connection_requests cr
		 JOIN profiles p ON p.id = CASE WHEN cr.sender_id = $1 THEN cr.receiver_id ELSE cr.sender_id END
		 WHERE cr.status = 'accepted' AND (cr.sender_id = $1 OR cr.receiver_id = $1) AND p.deleted_at IS NULL
		 ORDER BY p.full_name`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	defer rows.Close()

	connections := []models.Connection{}
	for rows.Next() {
		var c models.Connection
		var id uuid.UUID
		var name, role, department string
		var avatar *string
		if err := rows.Scan(&c.RequestID, &c.ConnectedAt, &id, &name, &role, &department, &avatar); err != nil {
			return nil, fmt.Errorf("scanning connection: %w", err)
		}
		c.Profile = summaryFromRow(id, name, role, department, avatar)
		connections = append(connections, c)
	}
	return connections, rows.Err()
}

func (s *ConnectionService) ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.ConnectionRequestWithProfile, error) {
	return s.listPending(ctx, userID, true)
}

func (s *ConnectionService) ListOutgoing(ctx context.Context, userID uuid.UUID) ([]models.ConnectionRequestWithProfile, error) {
	return s.listPending(ctx, userID, false)
}

func (s *ConnectionService) listPending(ctx context.Context, userID uuid.UUID, incoming bool) ([]models.ConnectionRequestWithProfile, error) {
	mine, other := "cr.sender_id", "cr.receiver_id"
	if incoming {
		mine, other = "cr.receiver_id", "cr.sender_id"
	}
	rows, err := s.db.Query(ctx,
		`SELECT cr.id, cr.sender_id, cr.receiver_id, cr.status, cr.message, cr.created_at, cr.responded_at,
		        p.id, p.full_name, p.role, p.department, p.avatar_url
		 FROM connection_requests cr
		 JOIN profiles p ON p.id = `+other+`
		 WHERE `+mine+` = $1 AND cr.status = 'pending' AND p.deleted_at IS NULL
		 ORDER BY cr.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing connection requests: %w", err)
	}
	defer rows.Close()

	requests := []models.ConnectionRequestWithProfile{}
	for rows.Next() {
		var r models.ConnectionRequestWithProfile
		var status, role, name, department string
		var id uuid.UUID
		var avatar *string
		if err := rows.Scan(&r.ID, &r.SenderID, &r.ReceiverID, &status, &r.Message, &r.CreatedAt, &r.RespondedAt,
			&id, &name, &role, &department, &avatar); err != nil {
			return nil, fmt.Errorf("scanning connection request: %w", err)
		}
		r.Status = models.ConnectionStatus(status)
		r.Other = summaryFromRow(id, name, role, department, avatar)
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func (s *ConnectionService) Status(ctx context.Context, userID, otherID uuid.UUID) (*models.ConnectionStatusResult, error) {
	if userID == otherID {
		return &models.ConnectionStatusResult{State: models.ConnectionStateSelf}, nil
	}

	var id, senderID uuid.UUID
	var status string
	err := s.db.QueryRow(ctx,
		`SELECT id, sender_id, status FROM connection_requests
		 WHERE status IN ('pending', 'accepted')
		   AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID, otherID,
	).Scan(&id, &senderID, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.ConnectionStatusResult{State: models.ConnectionStateNone}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting connection status: %w", err)
	}

	result := &models.ConnectionStatusResult{RequestID: &id}
	switch {
	case models.ConnectionStatus(status) == models.ConnectionStatusAccepted:
		result.State = models.ConnectionStateConnected
	case senderID == userID:
		result.State = models.ConnectionStatePendingOutgoing
	default:
		result.State = models.ConnectionStatePendingIncoming
	}
	return result, nil
}
