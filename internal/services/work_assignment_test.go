package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

func workValues(w models.WorkAssignment) []any {
	return []any{w.ID, w.AssignerID, w.AssigneeID, w.Title, w.Description, w.DueDate, string(w.Status), w.CreatedAt, w.UpdatedAt}
}

func TestWorkAssignmentService_Assign(t *testing.T) {
	teacherID := uuid.New()
	var gotDue any
	db := &fakeDB{QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
		switch {
		case strings.Contains(sql, "SELECT role FROM profiles"):
			if args[0].(uuid.UUID) == teacherID {
				return rowFromValues("teacher")
			}
			return rowFromValues("student")
		case strings.Contains(sql, "INSERT INTO work_assignments"):
			gotDue = args[4]
			return rowFromValues(workValues(models.WorkAssignment{
				ID: uuid.New(), AssignerID: args[0].(uuid.UUID), AssigneeID: args[1].(uuid.UUID),
				Title: args[2].(string), Description: args[3].(string), Status: models.WorkAssigned,
			})...)
		}
		return noRows()
	}}
	audit := &recordingAudit{}
	notifier := &stubNotificationService{}
	svc := NewWorkAssignmentService(db, audit)
	svc.SetNotificationService(notifier)
	authority := testProfile(models.RoleAuthority)

	due := time.Date(2026, 5, 1, 17, 0, 0, 0, time.UTC)
	w, err := svc.Assign(context.Background(), &authority, models.WorkAssignmentInput{AssigneeID: teacherID, Title: " Grade finals ", DueDate: &due})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Title != "Grade finals" || w.AssigneeID != teacherID {
		t.Fatalf("unexpected assignment %+v", w)
	}
	if d, ok := gotDue.(time.Time); !ok || d.Hour() != 0 {
		t.Fatalf("expected due date truncated to a day, got %v", gotDue)
	}
	if got := audit.actions(); len(got) != 1 || got[0] != "work.assigned" {
		t.Fatalf("unexpected audit %v", got)
	}
	if got := notifier.types(); len(got) != 1 || got[0] != models.NotificationWorkAssigned {
		t.Fatalf("unexpected notifications %v", got)
	}

	if _, err := svc.Assign(context.Background(), &authority, models.WorkAssignmentInput{AssigneeID: uuid.New(), Title: "x"}); !errors.Is(err, ErrNotATeacher) {
		t.Fatalf("expected ErrNotATeacher, got %v", err)
	}
	teacher := testProfile(models.RoleTeacher)
	if _, err := svc.Assign(context.Background(), &teacher, models.WorkAssignmentInput{AssigneeID: teacherID, Title: "x"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestWorkAssignmentService_UpdateStatus(t *testing.T) {
	assignee := uuid.New()
	id := uuid.New()
	db := &fakeDB{QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
		if args[0].(uuid.UUID) != id || args[1].(uuid.UUID) != assignee {
			return noRows()
		}
		return rowFromValues(workValues(models.WorkAssignment{ID: id, AssigneeID: assignee, Status: models.WorkAssignmentStatus(args[2].(string))})...)
	}}
	svc := NewWorkAssignmentService(db, nil)

	w, err := svc.UpdateStatus(context.Background(), assignee, id, models.WorkInProgress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Status != models.WorkInProgress {
		t.Fatalf("expected in_progress, got %s", w.Status)
	}
	if _, err := svc.UpdateStatus(context.Background(), uuid.New(), id, models.WorkCompleted); !errors.Is(err, ErrWorkAssignmentNotFound) {
		t.Fatalf("expected ErrWorkAssignmentNotFound, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), assignee, id, "done"); !errors.Is(err, ErrInvalidWorkStatus) {
		t.Fatalf("expected ErrInvalidWorkStatus, got %v", err)
	}
}

func TestWorkAssignmentService_ListForAssignee_OpenOnly(t *testing.T) {
	var gotSQL string
	db := &fakeDB{QueryFunc: func(ctx context.Context, sql string, args ...any) (Rows, error) {
		gotSQL = sql
		return &fakeRows{}, nil
	}}
	svc := NewWorkAssignmentService(db, nil)

	list, err := svc.ListForAssignee(context.Background(), uuid.New(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", list)
	}
	if !strings.Contains(gotSQL, "status <> 'completed'") {
		t.Fatalf("expected open filter, got %q", gotSQL)
	}
}
