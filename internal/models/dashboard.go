package models

// Dashboard is tagged by Role; exactly one of the variant fields is set.
type Dashboard struct {
	Role      Role                `json:"role"`
	Student   *StudentDashboard   `json:"student,omitempty"`
	Mentor    *MentorDashboard    `json:"mentor,omitempty"`
	Teacher   *TeacherDashboard   `json:"teacher,omitempty"`
	Authority *AuthorityDashboard `json:"authority,omitempty"`
}

type StudentDashboard struct {
	CurrentStreak    int                            `json:"current_streak"`
	CheckedInToday   bool                           `json:"checked_in_today"`
	ConnectionsCount int                            `json:"connections_count"`
	PendingIncoming  []ConnectionRequestWithProfile `json:"pending_incoming"`
	Mentors          []MentoringWithProfile         `json:"mentors"`
	UpcomingEvents   []CampusEvent                  `json:"upcoming_events"`
	Attendance       []AttendanceSummary            `json:"attendance"`
}

type MentorDashboard struct {
	ConnectionsCount int                    `json:"connections_count"`
	Mentees          []MentoringWithProfile `json:"mentees"`
	PendingRequests  []MentoringWithProfile `json:"pending_requests"`
}

type TeacherDashboard struct {
	TodaySchedules  []Schedule             `json:"today_schedules"`
	Mentees         []MentoringWithProfile `json:"mentees"`
	OpenAssignments []WorkAssignment       `json:"open_assignments"`
}

type AuthorityDashboard struct {
	ProfilesByRole   map[Role]int      `json:"profiles_by_role"`
	PendingApprovals []ApprovalRequest `json:"pending_approvals"`
	RecentAudit      []AuditLog        `json:"recent_audit"`
}
