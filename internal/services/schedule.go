package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

var (
	ErrScheduleNotFound        = errors.New("schedule not found")
	ErrInvalidSchedule         = errors.New("invalid schedule")
	ErrScheduleTeacherRequired = errors.New("teacher is required")
	ErrNotATeacher             = errors.New("profile is not a teacher")
)

const scheduleColumns = `id, teacher_id, course_code, course_name, day_of_week, start_time, end_time,
	room, section, semester, created_by, created_at, updated_at`

type ScheduleServiceInterface interface {
	Create(ctx context.Context, actor *models.Profile, in models.ScheduleInput) (*models.Schedule, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Schedule, error)
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, error)
	Update(ctx context.Context, actor *models.Profile, id uuid.UUID, in models.ScheduleInput) (*models.Schedule, error)
	Delete(ctx context.Context, actor *models.Profile, id uuid.UUID) error
	BulkImport(ctx context.Context, actor *models.Profile, r io.Reader) (*models.ScheduleImportResult, error)
	Export(ctx context.Context, filter models.ScheduleFilter, w io.Writer) error
}

type ScheduleService struct {
	db DB
}

func NewScheduleService(db DB) *ScheduleService {
	return &ScheduleService{db: db}
}

func scanSchedule(row Row) (*models.Schedule, error) {
	sc := &models.Schedule{}
	err := row.Scan(&sc.ID, &sc.TeacherID, &sc.CourseCode, &sc.CourseName, &sc.DayOfWeek, &sc.StartTime, &sc.EndTime,
		&sc.Room, &sc.Section, &sc.Semester, &sc.CreatedBy, &sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func canManageSchedule(actor *models.Profile, teacherID uuid.UUID) bool {
	if actor == nil {
		return false
	}
	return actor.Role == models.RoleAuthority || (actor.Role == models.RoleTeacher && actor.ID == teacherID)
}

// normalizeScheduleInput validates and canonicalizes times and free text.
func normalizeScheduleInput(in models.ScheduleInput) (models.ScheduleInput, error) {
	in.CourseCode = strings.TrimSpace(in.CourseCode)
	in.CourseName = strings.TrimSpace(in.CourseName)
	in.Room = strings.TrimSpace(in.Room)
	in.Section = strings.TrimSpace(in.Section)
	in.Semester = strings.TrimSpace(in.Semester)
	if err := in.Validate(); err != nil {
		return in, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	in.StartTime, _ = models.NormalizeClock(in.StartTime)
	in.EndTime, _ = models.NormalizeClock(in.EndTime)
	return in, nil
}

// resolveTeacher decides who owns a new schedule. Teachers always own their
// own; authorities must name a teacher.
func (s *ScheduleService) resolveTeacher(ctx context.Context, actor *models.Profile, requested *uuid.UUID) (uuid.UUID, error) {
	switch {
	case actor == nil:
		return uuid.Nil, ErrForbidden
	case actor.Role == models.RoleTeacher:
		if requested != nil && *requested != actor.ID {
			return uuid.Nil, ErrForbidden
		}
		return actor.ID, nil
	case actor.Role == models.RoleAuthority:
		if requested == nil || *requested == uuid.Nil {
			return uuid.Nil, ErrScheduleTeacherRequired
		}
		if err := s.requireTeacher(ctx, *requested); err != nil {
			return uuid.Nil, err
		}
		return *requested, nil
	default:
		return uuid.Nil, ErrForbidden
	}
}

func (s *ScheduleService) requireTeacher(ctx context.Context, id uuid.UUID) error {
	var role string
	err := s.db.QueryRow(ctx, `SELECT role FROM profiles WHERE id = $1 AND deleted_at IS NULL`, id).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProfileNotFound
	}
	if err != nil {
		return fmt.Errorf("loading teacher: %w", err)
	}
	if models.Role(role) != models.RoleTeacher {
		return ErrNotATeacher
	}
	return nil
}

func (s *ScheduleService) insert(ctx context.Context, teacherID, createdBy uuid.UUID, in models.ScheduleInput) (*models.Schedule, error) {
	sc, err := scanSchedule(s.db.QueryRow(ctx,
		`INSERT INTO schedules (teacher_id, course_code, course_name, day_of_week, start_time, end_time, room, section, semester, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+scheduleColumns,
		teacherID, in.CourseCode, in.CourseName, in.DayOfWeek, in.StartTime, in.EndTime, in.Room, in.Section, in.Semester, createdBy,
	))
	if isForeignKeyViolation(err) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("creating schedule: %w", err)
	}
	return sc, nil
}

func (s *ScheduleService) Create(ctx context.Context, actor *models.Profile, in models.ScheduleInput) (*models.Schedule, error) {
	teacherID, err := s.resolveTeacher(ctx, actor, in.TeacherID)
	if err != nil {
		return nil, err
	}
	in, err = normalizeScheduleInput(in)
	if err != nil {
		return nil, err
	}
	return s.insert(ctx, teacherID, actor.ID, in)
}

func (s *ScheduleService) Get(ctx context.Context, id uuid.UUID) (*models.Schedule, error) {
	sc, err := scanSchedule(s.db.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting schedule: %w", err)
	}
	return sc, nil
}

func (s *ScheduleService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.Schedule, error) {
	query, args := scheduleListQuery(`SELECT `+scheduleColumns+` FROM schedules`, filter)
	rows, err := s.db.Query(ctx, query+` ORDER BY day_of_week, start_time, course_code`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing schedules: %w", err)
	}
	defer rows.Close()

	schedules := []models.Schedule{}
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}
		schedules = append(schedules, *sc)
	}
	return schedules, rows.Err()
}

func scheduleListQuery(base string, filter models.ScheduleFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.TeacherID != nil {
		args = append(args, *filter.TeacherID)
		clauses = append(clauses, "teacher_id = $"+strconv.Itoa(len(args)))
	}
	if section := strings.TrimSpace(filter.Section); section != "" {
		args = append(args, section)
		clauses = append(clauses, "section = $"+strconv.Itoa(len(args)))
	}
	if filter.DayOfWeek != nil {
		args = append(args, *filter.DayOfWeek)
		clauses = append(clauses, "day_of_week = $"+strconv.Itoa(len(args)))
	}
	if len(clauses) == 0 {
		return base, args
	}
	return base + " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *ScheduleService) Update(ctx context.Context, actor *models.Profile, id uuid.UUID, in models.ScheduleInput) (*models.Schedule, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canManageSchedule(actor, current.TeacherID) {
		return nil, ErrForbidden
	}

	teacherID := current.TeacherID
	if in.TeacherID != nil && *in.TeacherID != current.TeacherID {
		if actor.Role != models.RoleAuthority {
			return nil, ErrForbidden
		}
		if err := s.requireTeacher(ctx, *in.TeacherID); err != nil {
			return nil, err
		}
		teacherID = *in.TeacherID
	}

	in, err = normalizeScheduleInput(in)
	if err != nil {
		return nil, err
	}

	sc, err := scanSchedule(s.db.QueryRow(ctx,
		`UPDATE schedules
		 SET teacher_id = $2, course_code = $3, course_name = $4, day_of_week = $5, start_time = $6, end_time = $7,
		     room = $8, section = $9, semester = $10, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+scheduleColumns,
		id, teacherID, in.CourseCode, in.CourseName, in.DayOfWeek, in.StartTime, in.EndTime, in.Room, in.Section, in.Semester,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating schedule: %w", err)
	}
	return sc, nil
}

func (s *ScheduleService) Delete(ctx context.Context, actor *models.Profile, id uuid.UUID) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !canManageSchedule(actor, current.TeacherID) {
		return ErrForbidden
	}
	tag, err := s.db.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}
