package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationConnectionRequestReceived NotificationType = "connection_request_received"
	NotificationConnectionRequestAccepted NotificationType = "connection_request_accepted"
	NotificationMentoringRequestReceived  NotificationType = "mentoring_request_received"
	NotificationMentoringRequestAccepted  NotificationType = "mentoring_request_accepted"
	NotificationApprovalDecided           NotificationType = "approval_decided"
	NotificationWorkAssigned              NotificationType = "work_assigned"
)

type Notification struct {
	ID          uuid.UUID        `json:"id"`
	UserID      uuid.UUID        `json:"user_id"`
	Type        NotificationType `json:"type"`
	ActorID     *uuid.UUID       `json:"actor_id,omitempty"`
	ActorName   *string          `json:"actor_name,omitempty"`
	ReferenceID *uuid.UUID       `json:"reference_id,omitempty"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
