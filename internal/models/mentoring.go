package models

import (
	"time"

	"github.com/google/uuid"
)

type MentoringStatus string

const (
	MentoringStatusPending  MentoringStatus = "pending"
	MentoringStatusActive   MentoringStatus = "active"
	MentoringStatusRejected MentoringStatus = "rejected"
)

type MentoringRelationship struct {
	ID          uuid.UUID       `json:"id"`
	MentorID    uuid.UUID       `json:"mentor_id"`
	MenteeID    uuid.UUID       `json:"mentee_id"`
	Status      MentoringStatus `json:"status"`
	Message     *string         `json:"message,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	RespondedAt *time.Time      `json:"responded_at,omitempty"`
}

type MentoringWithProfile struct {
	MentoringRelationship
	Other ProfileSummary `json:"other"`
}
