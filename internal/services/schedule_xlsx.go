package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/xuri/excelize/v2"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

var (
	ErrImportEmpty         = errors.New("spreadsheet has no rows")
	ErrImportMissingColumn = errors.New("spreadsheet is missing a required column")
	ErrInvalidSpreadsheet  = errors.New("file is not a readable xlsx spreadsheet")
)

const scheduleSheet = "Schedules"

var scheduleHeaders = []string{
	"Course Code", "Course Name", "Day", "Start Time", "End Time", "Room", "Section", "Semester", "Teacher Email",
}

var requiredScheduleHeaders = []string{"course code", "course name", "day", "start time", "end time"}

// BulkImport reads the first sheet of an xlsx file. Every data row is inserted
// on its own; bad rows are reported and skipped. A database failure stops the
// import and is returned.
func (s *ScheduleService) BulkImport(ctx context.Context, actor *models.Profile, r io.Reader) (*models.ScheduleImportResult, error) {
	if actor == nil || (actor.Role != models.RoleTeacher && actor.Role != models.RoleAuthority) {
		return nil, ErrForbidden
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpreadsheet, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrImportEmpty
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpreadsheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrImportEmpty
	}

	columns := map[string]int{}
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		if key != "" {
			if _, dup := columns[key]; !dup {
				columns[key] = i
			}
		}
	}
	for _, h := range requiredScheduleHeaders {
		if _, ok := columns[h]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrImportMissingColumn, h)
		}
	}

	cell := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	result := &models.ScheduleImportResult{Errors: []models.ScheduleImportError{}}
	teachers := map[string]uuid.UUID{}

	for i, row := range rows[1:] {
		rowNum := i + 2
		if blankRow(row) {
			continue
		}

		fail := func(err error) {
			result.Errors = append(result.Errors, models.ScheduleImportError{Row: rowNum, Error: err.Error()})
		}

		day, err := models.ParseDay(cell(row, "day"))
		if err != nil {
			fail(fmt.Errorf("%w: %v", ErrInvalidSchedule, err))
			continue
		}
		in := models.ScheduleInput{
			CourseCode: cell(row, "course code"),
			CourseName: cell(row, "course name"),
			DayOfWeek:  day,
			StartTime:  cell(row, "start time"),
			EndTime:    cell(row, "end time"),
			Room:       cell(row, "room"),
			Section:    cell(row, "section"),
			Semester:   cell(row, "semester"),
		}
		in, err = normalizeScheduleInput(in)
		if err != nil {
			fail(err)
			continue
		}

		teacherID, err := s.importTeacher(ctx, actor, cell(row, "teacher email"), teachers)
		if err == nil {
			_, err = s.insert(ctx, teacherID, actor.ID, in)
		}
		if err != nil {
			if !isImportRowError(err) {
				return nil, err
			}
			fail(err)
			continue
		}
		result.Inserted++
	}

	return result, nil
}

// isImportRowError reports whether err describes the row itself. Anything
// else is an infrastructure failure and aborts the import.
func isImportRowError(err error) bool {
	for _, target := range []error{ErrInvalidSchedule, ErrProfileNotFound, ErrNotATeacher, ErrScheduleTeacherRequired, ErrForbidden} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// importTeacher maps the Teacher Email column to a profile id. Teachers may
// only import their own timetable.
func (s *ScheduleService) importTeacher(ctx context.Context, actor *models.Profile, email string, cache map[string]uuid.UUID) (uuid.UUID, error) {
	email = strings.ToLower(email)
	if actor.Role == models.RoleTeacher {
		if email != "" && email != strings.ToLower(actor.Email) {
			return uuid.Nil, fmt.Errorf("%w: teachers can only import their own schedules", ErrForbidden)
		}
		return actor.ID, nil
	}
	if email == "" {
		return uuid.Nil, ErrScheduleTeacherRequired
	}
	if id, ok := cache[email]; ok {
		return id, nil
	}

	var id uuid.UUID
	var role string
	err := s.db.QueryRow(ctx,
		`SELECT id, role FROM profiles WHERE email = $1 AND deleted_at IS NULL`,
		email,
	).Scan(&id, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrProfileNotFound, email)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("looking up teacher: %w", err)
	}
	if models.Role(role) != models.RoleTeacher {
		return uuid.Nil, fmt.Errorf("%s: %w", email, ErrNotATeacher)
	}
	cache[email] = id
	return id, nil
}

// Export writes the filtered schedules as an xlsx workbook with the same
// columns BulkImport reads.
func (s *ScheduleService) Export(ctx context.Context, filter models.ScheduleFilter, w io.Writer) error {
	base := `SELECT s.course_code, s.course_name, s.day_of_week, s.start_time, s.end_time, s.room, s.section, s.semester, p.email
		 FROM schedules s
		 JOIN profiles p ON p.id = s.teacher_id`
	query, args := scheduleListQuery(base, filter)
	rows, err := s.db.Query(ctx, query+` ORDER BY s.day_of_week, s.start_time, s.course_code`, args...)
	if err != nil {
		return fmt.Errorf("listing schedules: %w", err)
	}
	defer rows.Close()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", scheduleSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	if err := writeHeaderRow(f, scheduleSheet, scheduleHeaders); err != nil {
		return err
	}

	line := 2
	for rows.Next() {
		var code, name, start, end, room, section, semester, email string
		var day int
		if err := rows.Scan(&code, &name, &day, &start, &end, &room, &section, &semester, &email); err != nil {
			return fmt.Errorf("scanning schedule: %w", err)
		}
		cell, _ := excelize.CoordinatesToCellName(1, line)
		values := []interface{}{code, name, models.DayName(day), start, end, room, section, semester, email}
		if err := f.SetSheetRow(scheduleSheet, cell, &values); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
		line++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("listing schedules: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string) error {
	values := make([]interface{}, len(headers))
	for i, h := range headers {
		values[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &values); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	return nil
}
