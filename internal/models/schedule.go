package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Schedule struct {
	ID         uuid.UUID  `json:"id"`
	TeacherID  uuid.UUID  `json:"teacher_id"`
	CourseCode string     `json:"course_code"`
	CourseName string     `json:"course_name"`
	DayOfWeek  int        `json:"day_of_week"`
	StartTime  string     `json:"start_time"`
	EndTime    string     `json:"end_time"`
	Room       string     `json:"room"`
	Section    string     `json:"section"`
	Semester   string     `json:"semester"`
	CreatedBy  *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type ScheduleInput struct {
	TeacherID  *uuid.UUID `json:"teacher_id,omitempty"`
	CourseCode string     `json:"course_code" validate:"required,max=20"`
	CourseName string     `json:"course_name" validate:"required,max=200"`
	DayOfWeek  int        `json:"day_of_week" validate:"min=0,max=6"`
	StartTime  string     `json:"start_time" validate:"required"`
	EndTime    string     `json:"end_time" validate:"required"`
	Room       string     `json:"room" validate:"max=50"`
	Section    string     `json:"section" validate:"max=50"`
	Semester   string     `json:"semester" validate:"max=50"`
}

// Validate checks the fields the struct tags cannot express.
func (in ScheduleInput) Validate() error {
	if strings.TrimSpace(in.CourseCode) == "" || strings.TrimSpace(in.CourseName) == "" {
		return fmt.Errorf("course code and course name are required")
	}
	if in.DayOfWeek < 0 || in.DayOfWeek > 6 {
		return fmt.Errorf("day must be between 0 and 6")
	}
	start, err := ParseClock(in.StartTime)
	if err != nil {
		return fmt.Errorf("start time: %w", err)
	}
	end, err := ParseClock(in.EndTime)
	if err != nil {
		return fmt.Errorf("end time: %w", err)
	}
	if end <= start {
		return fmt.Errorf("end time must be after start time")
	}
	return nil
}

type ScheduleFilter struct {
	TeacherID *uuid.UUID
	Section   string
	DayOfWeek *int
}

type ScheduleImportError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

type ScheduleImportResult struct {
	Inserted int                   `json:"inserted"`
	Errors   []ScheduleImportError `json:"errors"`
}

var dayNames = map[string]int{
	"sunday": 0, "sun": 0,
	"monday": 1, "mon": 1,
	"tuesday": 2, "tue": 2, "tues": 2,
	"wednesday": 3, "wed": 3,
	"thursday": 4, "thu": 4, "thur": 4, "thurs": 4,
	"friday": 5, "fri": 5,
	"saturday": 6, "sat": 6,
}

// ParseDay accepts a weekday name, a three letter abbreviation or 0-6 with 0 as Sunday.
func ParseDay(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("day is required")
	}
	if d, ok := dayNames[s]; ok {
		return d, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 6 {
		return 0, fmt.Errorf("invalid day %q", s)
	}
	return n, nil
}

func DayName(d int) string {
	if d < 0 || d > 6 {
		return ""
	}
	return time.Weekday(d).String()
}

// ParseClock parses HH:MM (24h) and returns minutes after midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// NormalizeClock pads single-digit hours so "9:05" is stored as "09:05".
func NormalizeClock(s string) (string, error) {
	mins, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60), nil
}
