package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStudent   Role = "student"
	RoleMentor    Role = "mentor"
	RoleTeacher   Role = "teacher"
	RoleAuthority Role = "authority"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleMentor, RoleTeacher, RoleAuthority:
		return true
	}
	return false
}

// SelfAssignable reports whether a user may pick this role at sign-up.
func (r Role) SelfAssignable() bool {
	return r == RoleStudent || r == RoleMentor || r == RoleTeacher
}

// CanMentor reports whether profiles with this role accept mentees.
func (r Role) CanMentor() bool {
	return r == RoleMentor || r == RoleTeacher
}

type Profile struct {
	ID               uuid.UUID  `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	FullName         string     `json:"full_name"`
	Role             Role       `json:"role"`
	Department       string     `json:"department"`
	YearOfStudy      *int       `json:"year_of_study,omitempty"`
	Bio              string     `json:"bio"`
	AvatarURL        *string    `json:"avatar_url,omitempty"`
	IsPublic         bool       `json:"is_public"`
	ConnectionsCount int        `json:"connections_count"`
	DailyStreak      int        `json:"daily_streak"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type CreateProfileParams struct {
	Email        string
	PasswordHash string
	FullName     string
	Role         Role
}

type ProfileUpdate struct {
	FullName    *string `json:"full_name,omitempty" validate:"omitempty,min=1,max=100"`
	Department  *string `json:"department,omitempty" validate:"omitempty,max=100"`
	YearOfStudy *int    `json:"year_of_study,omitempty" validate:"omitempty,min=1,max=10"`
	Bio         *string `json:"bio,omitempty" validate:"omitempty,max=1000"`
	AvatarURL   *string `json:"avatar_url,omitempty" validate:"omitempty,url,max=500"`
	IsPublic    *bool   `json:"is_public,omitempty"`
}

// PublicProfile is what other users see. Limited profiles carry only the
// identifying fields.
type PublicProfile struct {
	ID               uuid.UUID `json:"id"`
	FullName         string    `json:"full_name"`
	Role             Role      `json:"role"`
	Department       string    `json:"department"`
	Limited          bool      `json:"limited"`
	YearOfStudy      *int      `json:"year_of_study,omitempty"`
	Bio              string    `json:"bio,omitempty"`
	AvatarURL        *string   `json:"avatar_url,omitempty"`
	ConnectionsCount int       `json:"connections_count,omitempty"`
	DailyStreak      int       `json:"daily_streak,omitempty"`
}

type ProfileSearchResult struct {
	ID         uuid.UUID `json:"id"`
	FullName   string    `json:"full_name"`
	Role       Role      `json:"role"`
	Department string    `json:"department"`
}

// ProfileSummary is the other side of a relationship in list responses.
type ProfileSummary struct {
	ID         uuid.UUID `json:"id"`
	FullName   string    `json:"full_name"`
	Role       Role      `json:"role"`
	Department string    `json:"department"`
	AvatarURL  *string   `json:"avatar_url,omitempty"`
}
