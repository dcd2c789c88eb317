package models

import (
	"time"

	"github.com/google/uuid"
)

type CampusEvent struct {
	ID                uuid.UUID  `json:"id"`
	CreatorID         uuid.UUID  `json:"creator_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Location          string     `json:"location"`
	StartsAt          time.Time  `json:"starts_at"`
	EndsAt            *time.Time `json:"ends_at,omitempty"`
	Capacity          *int       `json:"capacity,omitempty"`
	RegistrationCount int        `json:"registration_count"`
	Registered        bool       `json:"registered"`
	CreatedAt         time.Time  `json:"created_at"`
}

type CampusEventInput struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=5000"`
	Location    string     `json:"location" validate:"max=200"`
	StartsAt    time.Time  `json:"starts_at" validate:"required"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	Capacity    *int       `json:"capacity,omitempty" validate:"omitempty,min=1"`
}
