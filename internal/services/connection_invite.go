package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

var (
	ErrInviteNotFound         = errors.New("invite not found")
	ErrInviteExpiryOutOfRange = errors.New("invite expiry out of range")
	ErrInviteLimitReached     = errors.New("invite limit reached")
)

const (
	InviteExpiryMinDays     = 1
	InviteExpiryMaxDays     = 365
	InviteExpiryDefaultDays = 14
	InviteMaxActive         = 5
)

const inviteColumns = `id, inviter_id, expires_at, accepted_at, created_at`

const activeInviteFilter = `revoked_at IS NULL
		   AND accepted_at IS NULL
		   AND (expires_at IS NULL OR expires_at > NOW())`

type ConnectionInviteServiceInterface interface {
	CreateInvite(ctx context.Context, inviterID uuid.UUID, expiresInDays int) (*models.ConnectionInvite, string, error)
	ListInvites(ctx context.Context, inviterID uuid.UUID) ([]models.ConnectionInvite, error)
	RevokeInvite(ctx context.Context, inviterID, inviteID uuid.UUID) error
	AcceptInvite(ctx context.Context, recipientID uuid.UUID, token string) (*models.ProfileSummary, error)
}

type ConnectionInviteService struct {
	db                  DB
	notificationService NotificationServiceInterface
}

func NewConnectionInviteService(db DB) *ConnectionInviteService {
	return &ConnectionInviteService{db: db}
}

func (s *ConnectionInviteService) SetNotificationService(notificationService NotificationServiceInterface) {
	s.notificationService = notificationService
}

func scanInvite(row Row) (*models.ConnectionInvite, error) {
	invite := &models.ConnectionInvite{}
	if err := row.Scan(&invite.ID, &invite.InviterID, &invite.ExpiresAt, &invite.AcceptedAt, &invite.CreatedAt); err != nil {
		return nil, err
	}
	return invite, nil
}

func (s *ConnectionInviteService) CreateInvite(ctx context.Context, inviterID uuid.UUID, expiresInDays int) (*models.ConnectionInvite, string, error) {
	if expiresInDays == 0 {
		expiresInDays = InviteExpiryDefaultDays
	}
	if expiresInDays < InviteExpiryMinDays || expiresInDays > InviteExpiryMaxDays {
		return nil, "", ErrInviteExpiryOutOfRange
	}

	var activeCount int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM connection_invites WHERE inviter_id = $1 AND `+activeInviteFilter,
		inviterID,
	).Scan(&activeCount)
	if err != nil {
		return nil, "", fmt.Errorf("counting invites: %w", err)
	}
	if activeCount >= InviteMaxActive {
		return nil, "", ErrInviteLimitReached
	}

	token, err := generateInviteToken()
	if err != nil {
		return nil, "", err
	}
	expiresAt := time.Now().Add(time.Duration(expiresInDays) * 24 * time.Hour)

	invite, err := scanInvite(s.db.QueryRow(ctx,
		`INSERT INTO connection_invites (inviter_id, invite_token_hash, expires_at)
		 VALUES ($1, $2, $3)
		 RETURNING `+inviteColumns,
		inviterID, hashToken(token), expiresAt,
	))
	if err != nil {
		return nil, "", fmt.Errorf("creating invite: %w", err)
	}
	return invite, token, nil
}

func (s *ConnectionInviteService) ListInvites(ctx context.Context, inviterID uuid.UUID) ([]models.ConnectionInvite, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+inviteColumns+`
		 FROM connection_invites
		 WHERE inviter_id = $1 AND `+activeInviteFilter+`
		 ORDER BY created_at DESC`,
		inviterID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing invites: %w", err)
	}
	defer rows.Close()

	invites := []models.ConnectionInvite{}
	for rows.Next() {
		invite, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invite: %w", err)
		}
		invites = append(invites, *invite)
	}
	return invites, rows.Err()
}

func (s *ConnectionInviteService) RevokeInvite(ctx context.Context, inviterID, inviteID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`UPDATE connection_invites SET revoked_at = NOW()
		 WHERE id = $1 AND inviter_id = $2 AND revoked_at IS NULL AND accepted_at IS NULL`,
		inviteID, inviterID,
	)
	if err != nil {
		return fmt.Errorf("revoking invite: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInviteNotFound
	}
	return nil
}

// AcceptInvite connects the recipient with the inviter immediately.
func (s *ConnectionInviteService) AcceptInvite(ctx context.Context, recipientID uuid.UUID, token string) (*models.ProfileSummary, error) {
	var (
		inviter   models.ProfileSummary
		requestID uuid.UUID
	)
	err := withTx(ctx, s.db, func(tx Tx) error {
		var inviteID uuid.UUID
		var role string
		err := tx.QueryRow(ctx,
			`SELECT ci.id, p.id, p.full_name, p.role, p.department, p.avatar_url
			 FROM connection_invites ci
			 JOIN profiles p ON p.id = ci.inviter_id AND p.deleted_at IS NULL
			 WHERE ci.invite_token_hash = $1
			   AND ci.revoked_at IS NULL
			   AND ci.accepted_at IS NULL
			   AND (ci.expires_at IS NULL OR ci.expires_at > NOW())
			 FOR UPDATE OF ci`,
			hashToken(token),
		).Scan(&inviteID, &inviter.ID, &inviter.FullName, &role, &inviter.Department, &inviter.AvatarURL)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInviteNotFound
		}
		if err != nil {
			return fmt.Errorf("loading invite: %w", err)
		}
		inviter.Role = models.Role(role)

		if inviter.ID == recipientID {
			return ErrCannotConnectSelf
		}
		if err := lockProfilePairForUpdate(ctx, tx, inviter.ID, recipientID); err != nil {
			return err
		}

		exists, err := hasActiveRequest(ctx, tx, inviter.ID, recipientID)
		if err != nil {
			return err
		}
		if exists {
			return ErrConnectionRequestExists
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO connection_requests (sender_id, receiver_id, status, responded_at)
			 VALUES ($1, $2, 'accepted', NOW())
			 RETURNING id`,
			inviter.ID, recipientID,
		).Scan(&requestID)
		if isUniqueViolation(err) {
			return ErrConnectionRequestExists
		}
		if err != nil {
			return fmt.Errorf("creating connection: %w", err)
		}

		if err := bumpConnectionCounts(ctx, tx, inviter.ID, recipientID, 1); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE connection_invites SET accepted_by_id = $1, accepted_at = NOW() WHERE id = $2`,
			recipientID, inviteID,
		)
		if err != nil {
			return fmt.Errorf("accepting invite: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sendNotification(ctx, s.notificationService, models.NotificationConnectionRequestAccepted, inviter.ID, recipientID, requestID)
	return &inviter, nil
}

func generateInviteToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating invite token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
