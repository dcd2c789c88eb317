package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

var (
	ErrStudyGroupNotFound = errors.New("study group not found")
	ErrStudyGroupFull     = errors.New("study group is full")
	ErrAlreadyMember      = errors.New("already a member of this group")
	ErrNotMember          = errors.New("not a member of this group")
	ErrOwnerCannotLeave   = errors.New("the owner cannot leave; delete the group instead")
	ErrInvalidStudyGroup  = errors.New("invalid study group")
)

const defaultStudyGroupSize = 10

const studyGroupSelect = `SELECT g.id, g.owner_id, g.name, g.subject, g.description, g.max_members, g.created_at,
	(SELECT COUNT(*) FROM study_group_members m WHERE m.group_id = g.id),
	EXISTS(SELECT 1 FROM study_group_members m WHERE m.group_id = g.id AND m.user_id = $1)
	FROM study_groups g`

type StudyGroupServiceInterface interface {
	Create(ctx context.Context, ownerID uuid.UUID, in models.StudyGroupInput) (*models.StudyGroup, error)
	List(ctx context.Context, viewerID uuid.UUID, subject string) ([]models.StudyGroup, error)
	Join(ctx context.Context, userID, groupID uuid.UUID) error
	Leave(ctx context.Context, userID, groupID uuid.UUID) error
	Delete(ctx context.Context, actor *models.Profile, groupID uuid.UUID) error
}

type StudyGroupService struct {
	db DB
}

func NewStudyGroupService(db DB) *StudyGroupService {
	return &StudyGroupService{db: db}
}

func scanStudyGroup(row Row) (*models.StudyGroup, error) {
	g := &models.StudyGroup{}
	err := row.Scan(&g.ID, &g.OwnerID, &g.Name, &g.Subject, &g.Description, &g.MaxMembers, &g.CreatedAt, &g.MemberCount, &g.IsMember)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Create makes the group and enrolls the owner as its first member.
func (s *StudyGroupService) Create(ctx context.Context, ownerID uuid.UUID, in models.StudyGroupInput) (*models.StudyGroup, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidStudyGroup)
	}
	if in.MaxMembers == 0 {
		in.MaxMembers = defaultStudyGroupSize
	}
	if in.MaxMembers < 2 || in.MaxMembers > 100 {
		return nil, fmt.Errorf("%w: group size must be between 2 and 100", ErrInvalidStudyGroup)
	}

	var id uuid.UUID
	err := withTx(ctx, s.db, func(tx Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO study_groups (owner_id, name, subject, description, max_members)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id`,
			ownerID, in.Name, strings.TrimSpace(in.Subject), strings.TrimSpace(in.Description), in.MaxMembers,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("creating study group: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO study_group_members (group_id, user_id) VALUES ($1, $2)`, id, ownerID); err != nil {
			return fmt.Errorf("adding owner to study group: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	g, err := scanStudyGroup(s.db.QueryRow(ctx, studyGroupSelect+` WHERE g.id = $2`, ownerID, id))
	if err != nil {
		return nil, fmt.Errorf("loading study group: %w", err)
	}
	return g, nil
}

func (s *StudyGroupService) List(ctx context.Context, viewerID uuid.UUID, subject string) ([]models.StudyGroup, error) {
	rows, err := s.db.Query(ctx,
		studyGroupSelect+`
		 WHERE ($2 = '' OR lower(g.subject) = lower($2))
		 ORDER BY g.created_at DESC`,
		viewerID, strings.TrimSpace(subject),
	)
	if err != nil {
		return nil, fmt.Errorf("listing study groups: %w", err)
	}
	defer rows.Close()

	out := []models.StudyGroup{}
	for rows.Next() {
		g, err := scanStudyGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning study group: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

// Join locks the group row so the member cap holds under concurrent joins.
func (s *StudyGroupService) Join(ctx context.Context, userID, groupID uuid.UUID) error {
	return withTx(ctx, s.db, func(tx Tx) error {
		var maxMembers int
		err := tx.QueryRow(ctx, `SELECT max_members FROM study_groups WHERE id = $1 FOR UPDATE`, groupID).Scan(&maxMembers)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrStudyGroupNotFound
		}
		if err != nil {
			return fmt.Errorf("loading study group: %w", err)
		}

		var members int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM study_group_members WHERE group_id = $1`, groupID).Scan(&members); err != nil {
			return fmt.Errorf("counting members: %w", err)
		}
		if members >= maxMembers {
			return ErrStudyGroupFull
		}

		_, err = tx.Exec(ctx, `INSERT INTO study_group_members (group_id, user_id) VALUES ($1, $2)`, groupID, userID)
		if isUniqueViolation(err) {
			return ErrAlreadyMember
		}
		if err != nil {
			return fmt.Errorf("joining study group: %w", err)
		}
		return nil
	})
}

func (s *StudyGroupService) Leave(ctx context.Context, userID, groupID uuid.UUID) error {
	var ownerID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT owner_id FROM study_groups WHERE id = $1`, groupID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStudyGroupNotFound
	}
	if err != nil {
		return fmt.Errorf("loading study group: %w", err)
	}
	if ownerID == userID {
		return ErrOwnerCannotLeave
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM study_group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID)
	if err != nil {
		return fmt.Errorf("leaving study group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotMember
	}
	return nil
}

func (s *StudyGroupService) Delete(ctx context.Context, actor *models.Profile, groupID uuid.UUID) error {
	var ownerID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT owner_id FROM study_groups WHERE id = $1`, groupID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStudyGroupNotFound
	}
	if err != nil {
		return fmt.Errorf("loading study group: %w", err)
	}
	if actor == nil || (actor.ID != ownerID && actor.Role != models.RoleAuthority) {
		return ErrForbidden
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM study_groups WHERE id = $1`, groupID); err != nil {
		return fmt.Errorf("deleting study group: %w", err)
	}
	return nil
}
