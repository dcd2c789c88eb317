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
	ErrWorkAssignmentNotFound = errors.New("work assignment not found")
	ErrInvalidWorkStatus      = errors.New("invalid work assignment status")
	ErrInvalidWorkAssignment  = errors.New("work assignment needs a title")
)

const workAssignmentColumns = `id, assigner_id, assignee_id, title, description, due_date, status, created_at, updated_at`

type WorkAssignmentServiceInterface interface {
	Assign(ctx context.Context, actor *models.Profile, in models.WorkAssignmentInput) (*models.WorkAssignment, error)
	UpdateStatus(ctx context.Context, userID, id uuid.UUID, status models.WorkAssignmentStatus) (*models.WorkAssignment, error)
	ListForAssignee(ctx context.Context, assigneeID uuid.UUID, openOnly bool) ([]models.WorkAssignment, error)
	ListByAssigner(ctx context.Context, assignerID uuid.UUID) ([]models.WorkAssignment, error)
}

type WorkAssignmentService struct {
	db                  DB
	audit               AuditLogger
	notificationService NotificationServiceInterface
}

func NewWorkAssignmentService(db DB, audit AuditLogger) *WorkAssignmentService {
	return &WorkAssignmentService{db: db, audit: audit}
}

func (s *WorkAssignmentService) SetNotificationService(notificationService NotificationServiceInterface) {
	s.notificationService = notificationService
}

func scanWorkAssignment(row Row) (*models.WorkAssignment, error) {
	w := &models.WorkAssignment{}
	var status string
	if err := row.Scan(&w.ID, &w.AssignerID, &w.AssigneeID, &w.Title, &w.Description, &w.DueDate, &status, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.Status = models.WorkAssignmentStatus(status)
	return w, nil
}

func (s *WorkAssignmentService) Assign(ctx context.Context, actor *models.Profile, in models.WorkAssignmentInput) (*models.WorkAssignment, error) {
	if actor == nil || actor.Role != models.RoleAuthority {
		return nil, ErrForbidden
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Title == "" {
		return nil, ErrInvalidWorkAssignment
	}

	var role string
	err := s.db.QueryRow(ctx, `SELECT role FROM profiles WHERE id = $1 AND deleted_at IS NULL`, in.AssigneeID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading assignee: %w", err)
	}
	if models.Role(role) != models.RoleTeacher {
		return nil, ErrNotATeacher
	}

	var due any
	if in.DueDate != nil {
		due = calendarDate(*in.DueDate)
	}
	w, err := scanWorkAssignment(s.db.QueryRow(ctx,
		`INSERT INTO work_assignments (assigner_id, assignee_id, title, description, due_date)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+workAssignmentColumns,
		actor.ID, in.AssigneeID, in.Title, in.Description, due,
	))
	if err != nil {
		return nil, fmt.Errorf("creating work assignment: %w", err)
	}

	recordAudit(ctx, s.audit, actor.ID, "work.assigned", "work_assignment", &w.ID, map[string]any{
		"assignee_id": w.AssigneeID.String(),
		"title":       w.Title,
	})
	sendNotification(ctx, s.notificationService, models.NotificationWorkAssigned, w.AssigneeID, actor.ID, w.ID)
	return w, nil
}

// UpdateStatus lets the assignee move an assignment between states.
func (s *WorkAssignmentService) UpdateStatus(ctx context.Context, userID, id uuid.UUID, status models.WorkAssignmentStatus) (*models.WorkAssignment, error) {
	if !status.Valid() {
		return nil, ErrInvalidWorkStatus
	}
	w, err := scanWorkAssignment(s.db.QueryRow(ctx,
		`UPDATE work_assignments SET status = $3, updated_at = NOW()
		 WHERE id = $1 AND assignee_id = $2
		 RETURNING `+workAssignmentColumns,
		id, userID, string(status),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrWorkAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating work assignment: %w", err)
	}
	return w, nil
}

func (s *WorkAssignmentService) ListForAssignee(ctx context.Context, assigneeID uuid.UUID, openOnly bool) ([]models.WorkAssignment, error) {
	query := `SELECT ` + workAssignmentColumns + ` FROM work_assignments WHERE assignee_id = $1`
	if openOnly {
		query += ` AND status <> 'completed'`
	}
	return s.list(ctx, query+` ORDER BY due_date NULLS LAST, created_at`, assigneeID)
}

func (s *WorkAssignmentService) ListByAssigner(ctx context.Context, assignerID uuid.UUID) ([]models.WorkAssignment, error) {
	return s.list(ctx,
		`SELECT `+workAssignmentColumns+` FROM work_assignments WHERE assigner_id = $1 ORDER BY created_at DESC`,
		assignerID,
	)
}

func (s *WorkAssignmentService) list(ctx context.Context, query string, args ...any) ([]models.WorkAssignment, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing work assignments: %w", err)
	}
	defer rows.Close()

	out := []models.WorkAssignment{}
	for rows.Next() {
		w, err := scanWorkAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning work assignment: %w", err)
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}
