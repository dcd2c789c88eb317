package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

var (
	ErrNoAttendanceEntries     = errors.New("at least one attendance entry is required")
	ErrInvalidAttendanceStatus = errors.New("invalid attendance status")
)

type AttendanceServiceInterface interface {
	Save(ctx context.Context, actor *models.Profile, scheduleID uuid.UUID, date time.Time, entries []models.AttendanceEntry) ([]models.AttendanceRecord, error)
	List(ctx context.Context, actor *models.Profile, scheduleID uuid.UUID, date time.Time) ([]models.AttendanceRecord, error)
	StudentSummary(ctx context.Context, studentID uuid.UUID) ([]models.AttendanceSummary, error)
}

type AttendanceService struct {
	db DB
}

func NewAttendanceService(db DB) *AttendanceService {
	return &AttendanceService{db: db}
}

const attendanceColumns = `id, schedule_id, student_id, attendance_date, status, marked_by, updated_at`

func scanAttendance(row Row) (*models.AttendanceRecord, error) {
	rec := &models.AttendanceRecord{}
	var status string
	if err := row.Scan(&rec.ID, &rec.ScheduleID, &rec.StudentID, &rec.AttendanceDate, &status, &rec.MarkedBy, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Status = models.AttendanceStatus(status)
	return rec, nil
}

// dedupeAttendance keeps the last entry per student, in the order those last
// entries appear.
func dedupeAttendance(entries []models.AttendanceEntry) []models.AttendanceEntry {
	last := make(map[uuid.UUID]int, len(entries))
	for i, e := range entries {
		last[e.StudentID] = i
	}
	out := make([]models.AttendanceEntry, 0, len(last))
	for i, e := range entries {
		if last[e.StudentID] == i {
			out = append(out, e)
		}
	}
	return out
}

func validateAttendance(entries []models.AttendanceEntry) error {
	if len(entries) == 0 {
		return ErrNoAttendanceEntries
	}
	for _, e := range entries {
		if e.StudentID == uuid.Nil {
			return fmt.Errorf("%w: student id is required", ErrInvalidAttendanceStatus)
		}
		if !e.Status.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidAttendanceStatus, e.Status)
		}
	}
	return nil
}

func scheduleOwner(ctx context.Context, q DBConn, scheduleID uuid.UUID) (uuid.UUID, error) {
	var teacherID uuid.UUID
	err := q.QueryRow(ctx, `SELECT teacher_id FROM schedules WHERE id = $1`, scheduleID).Scan(&teacherID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrScheduleNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("loading schedule: %w", err)
	}
	return teacherID, nil
}

// Save upserts a whole batch for one class on one date. Any invalid entry
// rejects the batch before anything is written; the writes share one
// transaction.
func (s *AttendanceService) Save(ctx context.Context, actor *models.Profile, scheduleID uuid.UUID, date time.Time, entries []models.AttendanceEntry) ([]models.AttendanceRecord, error) {
	if err := validateAttendance(entries); err != nil {
		return nil, err
	}
	entries = dedupeAttendance(entries)
	day := calendarDate(date)

	records := make([]models.AttendanceRecord, 0, len(entries))
	err := withTx(ctx, s.db, func(tx Tx) error {
		teacherID, err := scheduleOwner(ctx, tx, scheduleID)
		if err != nil {
			return err
		}
		if !canManageSchedule(actor, teacherID) {
			return ErrForbidden
		}

		for _, e := range entries {
			rec, err := scanAttendance(tx.QueryRow(ctx,
				`INSERT INTO attendance (schedule_id, student_id, attendance_date, status, marked_by)
				 VALUES ($1, $2, $3, $4, $5)
				 ON CONFLICT (schedule_id, student_id, attendance_date)
				 DO UPDATE SET status = EXCLUDED.status, marked_by = EXCLUDED.marked_by, updated_at = NOW()
				 RETURNING `+attendanceColumns,
				scheduleID, e.StudentID, day, string(e.Status), actor.ID,
			))
			if isForeignKeyViolation(err) {
				return ErrProfileNotFound
			}
			if err != nil {
				return fmt.Errorf("saving attendance: %w", err)
			}
			records = append(records, *rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *AttendanceService) List(ctx context.Context, actor *models.Profile, scheduleID uuid.UUID, date time.Time) ([]models.AttendanceRecord, error) {
	teacherID, err := scheduleOwner(ctx, s.db, scheduleID)
	if err != nil {
		return nil, err
	}
	if !canManageSchedule(actor, teacherID) {
		return nil, ErrForbidden
	}

	rows, err := s.db.Query(ctx,
		`SELECT a.id, a.schedule_id, a.student_id, p.full_name, a.attendance_date, a.status, a.marked_by, a.updated_at
		 FROM attendance a
		 JOIN profiles p ON p.id = a.student_id
		 WHERE a.schedule_id = $1 AND a.attendance_date = $2
		 ORDER BY p.full_name`,
		scheduleID, calendarDate(date),
	)
	if err != nil {
		return nil, fmt.Errorf("listing attendance: %w", err)
	}
	defer rows.Close()

	records := []models.AttendanceRecord{}
	for rows.Next() {
		var rec models.AttendanceRecord
		var status string
		if err := rows.Scan(&rec.ID, &rec.ScheduleID, &rec.StudentID, &rec.StudentName, &rec.AttendanceDate, &status, &rec.MarkedBy, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning attendance: %w", err)
		}
		rec.Status = models.AttendanceStatus(status)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// StudentSummary reports attendance per class. Late counts as attended and
// excused sessions are left out of the total.
func (s *AttendanceService) StudentSummary(ctx context.Context, studentID uuid.UUID) ([]models.AttendanceSummary, error) {
	rows, err := s.db.Query(ctx,
		`SELECT s.id, s.course_code, s.course_name,
		        COUNT(*) FILTER (WHERE a.status IN ('present', 'late')),
		        COUNT(*) FILTER (WHERE a.status <> 'excused')
		 FROM attendance a
		 JOIN schedules s ON s.id = a.schedule_id
		 WHERE a.student_id = $1
		 GROUP BY s.id, s.course_code, s.course_name
		 ORDER BY s.course_code`,
		studentID,
	)
	if err != nil {
		return nil, fmt.Errorf("summarizing attendance: %w", err)
	}
	defer rows.Close()

	summaries := []models.AttendanceSummary{}
	for rows.Next() {
		var sum models.AttendanceSummary
		if err := rows.Scan(&sum.ScheduleID, &sum.CourseCode, &sum.CourseName, &sum.Present, &sum.Total); err != nil {
			return nil, fmt.Errorf("scanning attendance summary: %w", err)
		}
		sum.Percentage = attendancePercentage(sum.Present, sum.Total)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

func attendancePercentage(present, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(present)*1000/float64(total)) / 10
}
