package models

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID           uuid.UUID      `json:"id"`
	Owner        ProfileSummary `json:"owner"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	SkillsNeeded []string       `json:"skills_needed"`
	CreatedAt    time.Time      `json:"created_at"`
}

type ProjectInput struct {
	Title        string   `json:"title" validate:"required,max=200"`
	Description  string   `json:"description" validate:"max=5000"`
	SkillsNeeded []string `json:"skills_needed" validate:"max=20,dive,max=50"`
}
