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
	ErrApprovalNotFound   = errors.New("approval request not found")
	ErrApprovalNotPending = errors.New("approval request has already been decided")
	ErrInvalidApproval    = errors.New("approval request needs a type and a title")
)

const approvalColumns = `id, requester_id, type, title, details, status, reviewer_id, review_note, reviewed_at, created_at`

type ApprovalServiceInterface interface {
	Submit(ctx context.Context, requesterID uuid.UUID, in models.ApprovalRequestInput) (*models.ApprovalRequest, error)
	ListMine(ctx context.Context, requesterID uuid.UUID) ([]models.ApprovalRequest, error)
	ListPending(ctx context.Context, actor *models.Profile) ([]models.ApprovalRequest, error)
	Decide(ctx context.Context, actor *models.Profile, id uuid.UUID, decision models.ApprovalDecision) (*models.ApprovalRequest, error)
}

type ApprovalService struct {
	db                  DB
	audit               AuditLogger
	notificationService NotificationServiceInterface
}

func NewApprovalService(db DB, audit AuditLogger) *ApprovalService {
	return &ApprovalService{db: db, audit: audit}
}

func (s *ApprovalService) SetNotificationService(notificationService NotificationServiceInterface) {
	s.notificationService = notificationService
}

func scanApproval(row Row) (*models.ApprovalRequest, error) {
	a := &models.ApprovalRequest{}
	var status string
	if err := row.Scan(&a.ID, &a.RequesterID, &a.Type, &a.Title, &a.Details, &status, &a.ReviewerID, &a.ReviewNote, &a.ReviewedAt, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Status = models.ApprovalStatus(status)
	return a, nil
}

func (s *ApprovalService) Submit(ctx context.Context, requesterID uuid.UUID, in models.ApprovalRequestInput) (*models.ApprovalRequest, error) {
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	in.Title = strings.TrimSpace(in.Title)
	in.Details = strings.TrimSpace(in.Details)
	if in.Type == "" || in.Title == "" {
		return nil, ErrInvalidApproval
	}

	a, err := scanApproval(s.db.QueryRow(ctx,
		`INSERT INTO approval_requests (requester_id, type, title, details)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+approvalColumns,
		requesterID, in.Type, in.Title, in.Details,
	))
	if err != nil {
		return nil, fmt.Errorf("submitting approval request: %w", err)
	}
	return a, nil
}

func (s *ApprovalService) ListMine(ctx context.Context, requesterID uuid.UUID) ([]models.ApprovalRequest, error) {
	return s.list(ctx,
		`SELECT `+approvalColumns+` FROM approval_requests WHERE requester_id = $1 ORDER BY created_at DESC`,
		requesterID,
	)
}

func (s *ApprovalService) ListPending(ctx context.Context, actor *models.Profile) ([]models.ApprovalRequest, error) {
	if actor == nil || actor.Role != models.RoleAuthority {
		return nil, ErrForbidden
	}
	return s.list(ctx,
		`SELECT a.id, a.requester_id, a.type, a.title, a.details, a.status, a.reviewer_id, a.review_note, a.reviewed_at, a.created_at, p.full_name
		 FROM approval_requests a
		 JOIN profiles p ON p.id = a.requester_id
		 WHERE a.status = 'pending'
		 ORDER BY a.created_at`,
	)
}

func (s *ApprovalService) list(ctx context.Context, query string, args ...any) ([]models.ApprovalRequest, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing approval requests: %w", err)
	}
	defer rows.Close()

	withName := strings.Contains(query, "p.full_name")
	out := []models.ApprovalRequest{}
	for rows.Next() {
		var a models.ApprovalRequest
		var status string
		dest := []any{&a.ID, &a.RequesterID, &a.Type, &a.Title, &a.Details, &status, &a.ReviewerID, &a.ReviewNote, &a.ReviewedAt, &a.CreatedAt}
		if withName {
			dest = append(dest, &a.Requester)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning approval request: %w", err)
		}
		a.Status = models.ApprovalStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Decide approves or rejects a pending request. The row is locked so two
// authorities cannot both decide it.
func (s *ApprovalService) Decide(ctx context.Context, actor *models.Profile, id uuid.UUID, decision models.ApprovalDecision) (*models.ApprovalRequest, error) {
	if actor == nil || actor.Role != models.RoleAuthority {
		return nil, ErrForbidden
	}
	note, err := normalizeMessage(decision.Note, 1000)
	if err != nil {
		return nil, err
	}
	status := models.ApprovalRejected
	if decision.Approve {
		status = models.ApprovalApproved
	}

	var a *models.ApprovalRequest
	err = withTx(ctx, s.db, func(tx Tx) error {
		var current string
		err := tx.QueryRow(ctx, `SELECT status FROM approval_requests WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrApprovalNotFound
		}
		if err != nil {
			return fmt.Errorf("loading approval request: %w", err)
		}
		if models.ApprovalStatus(current) != models.ApprovalPending {
			return ErrApprovalNotPending
		}

		a, err = scanApproval(tx.QueryRow(ctx,
			`UPDATE approval_requests
			 SET status = $2, reviewer_id = $3, review_note = $4, reviewed_at = NOW()
			 WHERE id = $1
			 RETURNING `+approvalColumns,
			id, string(status), actor.ID, note,
		))
		if err != nil {
			return fmt.Errorf("deciding approval request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.audit, actor.ID, "approval."+string(status), "approval_request", &a.ID, map[string]any{
		"type":  a.Type,
		"title": a.Title,
	})
	sendNotification(ctx, s.notificationService, models.NotificationApprovalDecided, a.RequesterID, actor.ID, a.ID)
	return a, nil
}
