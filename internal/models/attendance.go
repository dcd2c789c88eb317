package models

import (
	"time"

	"github.com/google/uuid"
)

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceExcused AttendanceStatus = "excused"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate, AttendanceExcused:
		return true
	}
	return false
}

type AttendanceRecord struct {
	ID             uuid.UUID        `json:"id"`
	ScheduleID     uuid.UUID        `json:"schedule_id"`
	StudentID      uuid.UUID        `json:"student_id"`
	StudentName    string           `json:"student_name,omitempty"`
	AttendanceDate time.Time        `json:"attendance_date"`
	Status         AttendanceStatus `json:"status"`
	MarkedBy       *uuid.UUID       `json:"marked_by,omitempty"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

type AttendanceEntry struct {
	StudentID uuid.UUID        `json:"student_id" validate:"required"`
	Status    AttendanceStatus `json:"status" validate:"required"`
}

type AttendanceSummary struct {
	ScheduleID uuid.UUID `json:"schedule_id"`
	CourseCode string    `json:"course_code"`
	CourseName string    `json:"course_name"`
	Present    int       `json:"present"`
	Total      int       `json:"total"`
	Percentage float64   `json:"percentage"`
}
