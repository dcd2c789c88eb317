package models

import (
	"time"

	"github.com/google/uuid"
)

type StudyGroup struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Name        string    `json:"name"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	MaxMembers  int       `json:"max_members"`
	MemberCount int       `json:"member_count"`
	IsMember    bool      `json:"is_member"`
	CreatedAt   time.Time `json:"created_at"`
}

type StudyGroupInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Subject     string `json:"subject" validate:"max=100"`
	Description string `json:"description" validate:"max=2000"`
	MaxMembers  int    `json:"max_members" validate:"omitempty,min=2,max=100"`
}
