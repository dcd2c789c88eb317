package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

var (
	ErrNotAMentor          = errors.New("profile does not accept mentees")
	ErrCannotMentorSelf    = errors.New("cannot mentor yourself")
	ErrMentoringExists     = errors.New("a mentoring relationship already exists")
	ErrMentoringNotFound   = errors.New("mentoring relationship not found")
	ErrMentoringNotPending = errors.New("mentoring request is no longer pending")
	ErrMentoringNotActive  = errors.New("mentoring relationship is not active")
)

const mentoringColumns = `id, mentor_id, mentee_id, status, message, created_at, responded_at`

type MentoringServiceInterface interface {
	Request(ctx context.Context, menteeID, mentorID uuid.UUID, message *string) (*models.MentoringRelationship, error)
	Respond(ctx context.Context, mentorID, relationshipID uuid.UUID, accept bool) (*models.MentoringRelationship, error)
	Cancel(ctx context.Context, menteeID, relationshipID uuid.UUID) error
	End(ctx context.Context, userID, relationshipID uuid.UUID) error
	ListMentees(ctx context.Context, mentorID uuid.UUID) ([]models.MentoringWithProfile, error)
	ListMentors(ctx context.Context, menteeID uuid.UUID) ([]models.MentoringWithProfile, error)
	ListPending(ctx context.Context, mentorID uuid.UUID) ([]models.MentoringWithProfile, error)
}

type MentoringService struct {
	db                  DB
	notificationService NotificationServiceInterface
}

func NewMentoringService(db DB) *MentoringService {
	return &MentoringService{db: db}
}

func (s *MentoringService) SetNotificationService(notificationService NotificationServiceInterface) {
	s.notificationService = notificationService
}

func scanMentoring(row Row) (*models.MentoringRelationship, error) {
	m := &models.MentoringRelationship{}
	var status string
	if err := row.Scan(&m.ID, &m.MentorID, &m.MenteeID, &status, &m.Message, &m.CreatedAt, &m.RespondedAt); err != nil {
		return nil, err
	}
	m.Status = models.MentoringStatus(status)
	return m, nil
}

func (s *MentoringService) Request(ctx context.Context, menteeID, mentorID uuid.UUID, message *string) (*models.MentoringRelationship, error) {
	if menteeID == mentorID {
		return nil, ErrCannotMentorSelf
	}
	message, err := normalizeMessage(message, models.MaxConnectionMessageLength)
	if err != nil {
		return nil, err
	}

	var rel *models.MentoringRelationship
	err = withTx(ctx, s.db, func(tx Tx) error {
		if err := lockProfilePairForUpdate(ctx, tx, menteeID, mentorID); err != nil {
			return err
		}

		var role string
		if err := tx.QueryRow(ctx, `SELECT role FROM profiles WHERE id = $1`, mentorID).Scan(&role); err != nil {
			return fmt.Errorf("loading mentor role: %w", err)
		}
		if !models.Role(role).CanMentor() {
			return ErrNotAMentor
		}

		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS(
				SELECT 1 FROM mentoring_relationships
				WHERE mentor_id = $1 AND mentee_id = $2 AND status IN ('pending', 'active')
			)`,
			mentorID, menteeID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("checking mentoring relationship: %w", err)
		}
		if exists {
			return ErrMentoringExists
		}

		rel, err = scanMentoring(tx.QueryRow(ctx,
			`INSERT INTO mentoring_relationships (mentor_id, mentee_id, status, message)
			 VALUES ($1, $2, 'pending', $3)
			 RETURNING `+mentoringColumns,
			mentorID, menteeID, message,
		))
		if isUniqueViolation(err) {
			return ErrMentoringExists
		}
		if err != nil {
			return fmt.Errorf("creating mentoring request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sendNotification(ctx, s.notificationService, models.NotificationMentoringRequestReceived, mentorID, menteeID, rel.ID)
	return rel, nil
}

func (s *MentoringService) Respond(ctx context.Context, mentorID, relationshipID uuid.UUID, accept bool) (*models.MentoringRelationship, error) {
	var rel *models.MentoringRelationship
	err := withTx(ctx, s.db, func(tx Tx) error {
		current, err := scanMentoring(tx.QueryRow(ctx,
			`SELECT `+mentoringColumns+` FROM mentoring_relationships WHERE id = $1 FOR UPDATE`,
			relationshipID,
		))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMentoringNotFound
		}
		if err != nil {
			return fmt.Errorf("loading mentoring relationship: %w", err)
		}
		if current.MentorID != mentorID {
			return ErrMentoringNotFound
		}
		if current.Status != models.MentoringStatusPending {
			return ErrMentoringNotPending
		}

		status := models.MentoringStatusRejected
		if accept {
			status = models.MentoringStatusActive
		}
		rel, err = scanMentoring(tx.QueryRow(ctx,
			`UPDATE mentoring_relationships SET status = $2, responded_at = NOW()
			 WHERE id = $1
			 RETURNING `+mentoringColumns,
			relationshipID, string(status),
		))
		if err != nil {
			return fmt.Errorf("updating mentoring relationship: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if accept {
		sendNotification(ctx, s.notificationService, models.NotificationMentoringRequestAccepted, rel.MenteeID, mentorID, rel.ID)
	}
	return rel, nil
}

// Cancel withdraws a pending request. Only the mentee who sent it may cancel.
func (s *MentoringService) Cancel(ctx context.Context, menteeID, relationshipID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`DELETE FROM mentoring_relationships WHERE id = $1 AND mentee_id = $2 AND status = 'pending'`,
		relationshipID, menteeID,
	)
	if err != nil {
		return fmt.Errorf("cancelling mentoring request: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var owner uuid.UUID
	err = s.db.QueryRow(ctx,
		`SELECT mentee_id FROM mentoring_relationships WHERE id = $1`,
		relationshipID,
	).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && owner != menteeID) {
		return ErrMentoringNotFound
	}
	if err != nil {
		return fmt.Errorf("loading mentoring relationship: %w", err)
	}
	return ErrMentoringNotPending
}

// End lets either party leave an active relationship.
func (s *MentoringService) End(ctx context.Context, userID, relationshipID uuid.UUID) error {
	result, err := s.db.Exec(ctx,
		`DELETE FROM mentoring_relationships
		 WHERE id = $1 AND status = 'active' AND (mentor_id = $2 OR mentee_id = $2)`,
		relationshipID, userID,
	)
	if err != nil {
		return fmt.Errorf("ending mentoring relationship: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrMentoringNotActive
	}
	return nil
}

func (s *MentoringService) ListMentees(ctx context.Context, mentorID uuid.UUID) ([]models.MentoringWithProfile, error) {
	return s.list(ctx, "m.mentor_id", "m.mentee_id", mentorID, models.MentoringStatusActive)
}

func (s *MentoringService) ListMentors(ctx context.Context, menteeID uuid.UUID) ([]models.MentoringWithProfile, error) {
	return s.list(ctx, "m.mentee_id", "m.mentor_id", menteeID, models.MentoringStatusActive)
}

func (s *MentoringService) ListPending(ctx context.Context, mentorID uuid.UUID) ([]models.MentoringWithProfile, error) {
	return s.list(ctx, "m.mentor_id", "m.mentee_id", mentorID, models.MentoringStatusPending)
}

// ListOutgoing returns mentoring requests the mentee is still waiting on.
func (s *MentoringService) ListOutgoing(ctx context.Context, menteeID uuid.UUID) ([]models.MentoringWithProfile, error) {
	return s.list(ctx, "m.mentee_id", "m.mentor_id", menteeID, models.MentoringStatusPending)
}

func (s *MentoringService) list(ctx context.Context, selfCol, otherCol string, userID uuid.UUID, status models.MentoringStatus) ([]models.MentoringWithProfile, error) {
	rows, err := s.db.Query(ctx,
		`SELECT m.id, m.mentor_id, m.mentee_id, m.status, m.message, m.created_at, m.responded_at,
		        p.id, p.full_name, p.role, p.department, p.avatar_url
		 FROM mentoring_relationships m
		 JOIN profiles p ON p.id = `+otherCol+`
		 WHERE `+selfCol+` = $1 AND m.status = $2 AND p.deleted_at IS NULL
		 ORDER BY m.created_at DESC`,
		userID, string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("listing mentoring relationships: %w", err)
	}
	defer rows.Close()

	out := []models.MentoringWithProfile{}
	for rows.Next() {
		var m models.MentoringWithProfile
		var relStatus, name, role, department string
		var id uuid.UUID
		var avatar *string
		if err := rows.Scan(&m.ID, &m.MentorID, &m.MenteeID, &relStatus, &m.Message, &m.CreatedAt, &m.RespondedAt,
			&id, &name, &role, &department, &avatar); err != nil {
			return nil, fmt.Errorf("scanning mentoring relationship: %w", err)
		}
		m.Status = models.MentoringStatus(relStatus)
		m.Other = summaryFromRow(id, name, role, department, avatar)
		out = append(out, m)
	}
	return out, rows.Err()
}

func hasActiveMentoring(ctx context.Context, q DBConn, a, b uuid.UUID) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM mentoring_relationships
			WHERE status = 'active'
			  AND ((mentor_id = $1 AND mentee_id = $2) OR (mentor_id = $2 AND mentee_id = $1))
		)`,
		a, b,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking mentoring relationship: %w", err)
	}
	return exists, nil
}
