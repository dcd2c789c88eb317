package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

var ErrUnknownRole = errors.New("unknown role")

const (
	dashboardEventLimit = 5
	dashboardAuditLimit = 20
)

// AuditReader is the read side of the audit log.
type AuditReader interface {
	ListRecent(ctx context.Context, limit int) ([]models.AuditLog, error)
}

type DashboardServiceInterface interface {
	Build(ctx context.Context, profile *models.Profile) (*models.Dashboard, error)
}

// DashboardDeps lists the services a dashboard reads from.
type DashboardDeps struct {
	DB          DBConn
	CheckIn     CheckInServiceInterface
	Connections ConnectionServiceInterface
	Mentoring   MentoringServiceInterface
	Events      EventServiceInterface
	Attendance  AttendanceServiceInterface
	Schedules   ScheduleServiceInterface
	Work        WorkAssignmentServiceInterface
	Approvals   ApprovalServiceInterface
	Audit       AuditReader
}

type DashboardService struct {
	deps DashboardDeps
}

func NewDashboardService(deps DashboardDeps) *DashboardService {
	return &DashboardService{deps: deps}
}

// Build dispatches on the profile's role and fills exactly one variant.
func (s *DashboardService) Build(ctx context.Context, profile *models.Profile) (*models.Dashboard, error) {
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	d := &models.Dashboard{Role: profile.Role}

	var err error
	switch profile.Role {
	case models.RoleStudent:
		d.Student, err = s.student(ctx, profile)
	case models.RoleMentor:
		d.Mentor, err = s.mentor(ctx, profile)
	case models.RoleTeacher:
		d.Teacher, err = s.teacher(ctx, profile)
	case models.RoleAuthority:
		d.Authority, err = s.authority(ctx, profile)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, profile.Role)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DashboardService) student(ctx context.Context, p *models.Profile) (*models.StudentDashboard, error) {
	today := s.deps.CheckIn.Today()
	out := &models.StudentDashboard{
		CurrentStreak:    CurrentStreak(p, today),
		CheckedInToday:   p.LastActivityDate != nil && sameDay(calendarDate(*p.LastActivityDate), today),
		ConnectionsCount: p.ConnectionsCount,
	}

	var err error
	if out.PendingIncoming, err = s.deps.Connections.ListIncoming(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("loading incoming requests: %w", err)
	}
	if out.Mentors, err = s.deps.Mentoring.ListMentors(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("loading mentors: %w", err)
	}
	if out.UpcomingEvents, err = s.deps.Events.ListUpcoming(ctx, p.ID, dashboardEventLimit); err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	if out.Attendance, err = s.deps.Attendance.StudentSummary(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("loading attendance: %w", err)
	}
	return out, nil
}

func (s *DashboardService) mentor(ctx context.Context, p *models.Profile) (*models.MentorDashboard, error) {
	out := &models.MentorDashboard{ConnectionsCount: p.ConnectionsCount}

	var err error
	if out.Mentees, err = s.deps.Mentoring.ListMentees(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("loading mentees: %w", err)
	}
	if out.PendingRequests, err = s.deps.Mentoring.ListPending(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("loading mentoring requests: %w", err)
	}
	return out, nil
}

func (s *DashboardService) teacher(ctx context.Context, p *models.Profile) (*models.TeacherDashboard, error) {
	day := int(s.deps.CheckIn.Today().Weekday())
	teacherID := p.ID
	out := &models.TeacherDashboard{}

	var err error
	out.TodaySchedules, err = s.deps.Schedules.List(ctx, models.ScheduleFilter{TeacherID: &teacherID, DayOfWeek: &day})
	if err != nil {
		return nil, fmt.Errorf("loading schedules: %w", err)
	}
	if out.Mentees, err = s.deps.Mentoring.ListMentees(ctx, p.ID); err != nil {
		return nil, fmt.Errorf("loading mentees: %w", err)
	}
	if out.OpenAssignments, err = s.deps.Work.ListForAssignee(ctx, p.ID, true); err != nil {
		return nil, fmt.Errorf("loading assignments: %w", err)
	}
	return out, nil
}

func (s *DashboardService) authority(ctx context.Context, p *models.Profile) (*models.AuthorityDashboard, error) {
	counts, err := s.profilesByRole(ctx)
	if err != nil {
		return nil, err
	}
	out := &models.AuthorityDashboard{ProfilesByRole: counts}

	if out.PendingApprovals, err = s.deps.Approvals.ListPending(ctx, p); err != nil {
		return nil, fmt.Errorf("loading approvals: %w", err)
	}
	if out.RecentAudit, err = s.deps.Audit.ListRecent(ctx, dashboardAuditLimit); err != nil {
		return nil, fmt.Errorf("loading audit log: %w", err)
	}
	return out, nil
}

func (s *DashboardService) profilesByRole(ctx context.Context) (map[models.Role]int, error) {
	counts := map[models.Role]int{
		models.RoleStudent:   0,
		models.RoleMentor:    0,
		models.RoleTeacher:   0,
		models.RoleAuthority: 0,
	}
	rows, err := s.deps.DB.Query(ctx,
		`SELECT role, COUNT(*) FROM profiles WHERE deleted_at IS NULL GROUP BY role`,
	)
	if err != nil {
		return nil, fmt.Errorf("counting profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("scanning profile count: %w", err)
		}
		counts[models.Role(role)] = n
	}
	return counts, rows.Err()
}
