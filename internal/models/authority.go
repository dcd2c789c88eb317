package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type ApprovalRequest struct {
	ID          uuid.UUID      `json:"id"`
	RequesterID uuid.UUID      `json:"requester_id"`
	Requester   string         `json:"requester_name,omitempty"`
	Type        string         `json:"type"`
	Title       string         `json:"title"`
	Details     string         `json:"details"`
	Status      ApprovalStatus `json:"status"`
	ReviewerID  *uuid.UUID     `json:"reviewer_id,omitempty"`
	ReviewNote  *string        `json:"review_note,omitempty"`
	ReviewedAt  *time.Time     `json:"reviewed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

type WorkAssignmentStatus string

const (
	WorkAssigned   WorkAssignmentStatus = "assigned"
	WorkInProgress WorkAssignmentStatus = "in_progress"
	WorkCompleted  WorkAssignmentStatus = "completed"
)

func (s WorkAssignmentStatus) Valid() bool {
	switch s {
	case WorkAssigned, WorkInProgress, WorkCompleted:
		return true
	}
	return false
}

type WorkAssignment struct {
	ID          uuid.UUID            `json:"id"`
	AssignerID  uuid.UUID            `json:"assigner_id"`
	AssigneeID  uuid.UUID            `json:"assignee_id"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	DueDate     *time.Time           `json:"due_date,omitempty"`
	Status      WorkAssignmentStatus `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

type AuditLog struct {
	ID         uuid.UUID       `json:"id"`
	ActorID    uuid.UUID       `json:"actor_id"`
	ActorName  string          `json:"actor_name,omitempty"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type"`
	TargetID   *uuid.UUID      `json:"target_id,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type ApprovalRequestInput struct {
	Type    string `json:"type" validate:"required,max=50"`
	Title   string `json:"title" validate:"required,max=200"`
	Details string `json:"details" validate:"max=5000"`
}

type ApprovalDecision struct {
	Approve bool    `json:"approve"`
	Note    *string `json:"note,omitempty" validate:"omitempty,max=1000"`
}

type WorkAssignmentInput struct {
	AssigneeID  uuid.UUID  `json:"assignee_id" validate:"required"`
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}
