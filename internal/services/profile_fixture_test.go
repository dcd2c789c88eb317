package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

func testProfile(role models.Role) models.Profile {
	now := time.Now()
	return models.Profile{
		ID:        uuid.New(),
		Email:     "user-" + uuid.NewString()[:8] + "@campus.edu",
		FullName:  "Test User",
		Role:      role,
		IsPublic:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// profileRow returns values in scanProfile column order.
func profileRow(p models.Profile) Row {
	return rowFromValues(profileValues(p)...)
}

func profileValues(p models.Profile) []any {
	return []any{
		p.ID, p.Email, p.PasswordHash, p.FullName, string(p.Role), p.Department, p.YearOfStudy, p.Bio, p.AvatarURL,
		p.IsPublic, p.ConnectionsCount, p.DailyStreak, p.LastActivityDate, p.CreatedAt, p.UpdatedAt,
	}
}
