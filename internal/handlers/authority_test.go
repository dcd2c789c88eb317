package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

type mockApprovalService struct {
	services.ApprovalServiceInterface
	SubmitFunc      func(ctx context.Context, requesterID uuid.UUID, in models.ApprovalRequestInput) (*models.ApprovalRequest, error)
	ListPendingFunc func(ctx context.Context, actor *models.Profile) ([]models.ApprovalRequest, error)
	DecideFunc      func(ctx context.Context, actor *models.Profile, id uuid.UUID, decision models.ApprovalDecision) (*models.ApprovalRequest, error)
}

func (m *mockApprovalService) Submit(ctx context.Context, requesterID uuid.UUID, in models.ApprovalRequestInput) (*models.ApprovalRequest, error) {
	return m.SubmitFunc(ctx, requesterID, in)
}

func (m *mockApprovalService) ListPending(ctx context.Context, actor *models.Profile) ([]models.ApprovalRequest, error) {
	return m.ListPendingFunc(ctx, actor)
}

func (m *mockApprovalService) Decide(ctx context.Context, actor *models.Profile, id uuid.UUID, decision models.ApprovalDecision) (*models.ApprovalRequest, error) {
	return m.DecideFunc(ctx, actor, id, decision)
}

type mockWorkService struct {
	services.WorkAssignmentServiceInterface
	AssignFunc          func(ctx context.Context, actor *models.Profile, in models.WorkAssignmentInput) (*models.WorkAssignment, error)
	UpdateStatusFunc    func(ctx context.Context, userID, id uuid.UUID, status models.WorkAssignmentStatus) (*models.WorkAssignment, error)
	ListForAssigneeFunc func(ctx context.Context, assigneeID uuid.UUID, openOnly bool) ([]models.WorkAssignment, error)
}

func (m *mockWorkService) Assign(ctx context.Context, actor *models.Profile, in models.WorkAssignmentInput) (*models.WorkAssignment, error) {
	return m.AssignFunc(ctx, actor, in)
}

func (m *mockWorkService) UpdateStatus(ctx context.Context, userID, id uuid.UUID, status models.WorkAssignmentStatus) (*models.WorkAssignment, error) {
	return m.UpdateStatusFunc(ctx, userID, id, status)
}

func (m *mockWorkService) ListForAssignee(ctx context.Context, assigneeID uuid.UUID, openOnly bool) ([]models.WorkAssignment, error) {
	return m.ListForAssigneeFunc(ctx, assigneeID, openOnly)
}

type mockAuditReader struct {
	limit int
	logs  []models.AuditLog
}

func (m *mockAuditReader) ListRecent(ctx context.Context, limit int) ([]models.AuditLog, error) {
	m.limit = limit
	return m.logs, nil
}

func TestAuthorityHandler_SubmitApproval(t *testing.T) {
	teacher := testUser(models.RoleTeacher)
	handler := NewAuthorityHandler(&mockApprovalService{
		SubmitFunc: func(ctx context.Context, requesterID uuid.UUID, in models.ApprovalRequestInput) (*models.ApprovalRequest, error) {
			if requesterID != teacher.ID || in.Type != "leave" {
				t.Fatalf("unexpected args %v %+v", requesterID, in)
			}
			return &models.ApprovalRequest{ID: uuid.New(), Type: in.Type, Title: in.Title, Status: models.ApprovalPending}, nil
		},
	}, &mockWorkService{}, &mockAuditReader{})
	body, _ := json.Marshal(map[string]any{"type": "leave", "title": "Conference"})
	rr := httptest.NewRecorder()

	handler.SubmitApproval(rr, withUser(httptest.NewRequest(http.MethodPost, "/api/approvals", bytes.NewReader(body)), teacher))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestAuthorityHandler_SubmitApproval_Validation(t *testing.T) {
	handler := NewAuthorityHandler(&mockApprovalService{}, &mockWorkService{}, &mockAuditReader{})
	body, _ := json.Marshal(map[string]any{"type": "leave"})
	rr := httptest.NewRecorder()

	handler.SubmitApproval(rr, withUser(httptest.NewRequest(http.MethodPost, "/api/approvals", bytes.NewReader(body)), testUser(models.RoleTeacher)))

	assertErrorResponse(t, rr, http.StatusBadRequest, "title is a required field")
}

func TestAuthorityHandler_PendingApprovals_Forbidden(t *testing.T) {
	handler := NewAuthorityHandler(&mockApprovalService{
		ListPendingFunc: func(ctx context.Context, actor *models.Profile) ([]models.ApprovalRequest, error) {
			return nil, services.ErrForbidden
		},
	}, &mockWorkService{}, &mockAuditReader{})
	rr := httptest.NewRecorder()

	handler.PendingApprovals(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/approvals/pending", nil), testUser(models.RoleStudent)))

	assertErrorResponse(t, rr, http.StatusForbidden, "Authority role required")
}

func TestAuthorityHandler_DecideApproval_AlreadyDecided(t *testing.T) {
	handler := NewAuthorityHandler(&mockApprovalService{
		DecideFunc: func(ctx context.Context, actor *models.Profile, id uuid.UUID, decision models.ApprovalDecision) (*models.ApprovalRequest, error) {
			if !decision.Approve {
				t.Fatal("expected approve decision")
			}
			return nil, services.ErrApprovalNotPending
		},
	}, &mockWorkService{}, &mockAuditReader{})
	id := uuid.New()
	req := httptest.NewRequest(http.MethodPut, "/api/approvals/"+id.String(), bytes.NewBufferString(`{"approve":true}`))
	req.SetPathValue("id", id.String())
	rr := httptest.NewRecorder()

	handler.DecideApproval(rr, withUser(req, testUser(models.RoleAuthority)))

	assertErrorResponse(t, rr, http.StatusConflict, "Approval request has already been decided")
}

func TestAuthorityHandler_AssignWork_NotATeacher(t *testing.T) {
	handler := NewAuthorityHandler(&mockApprovalService{}, &mockWorkService{
		AssignFunc: func(ctx context.Context, actor *models.Profile, in models.WorkAssignmentInput) (*models.WorkAssignment, error) {
			return nil, services.ErrNotATeacher
		},
	}, &mockAuditReader{})
	body, _ := json.Marshal(map[string]any{"assignee_id": uuid.New(), "title": "Grade exams"})
	rr := httptest.NewRecorder()

	handler.AssignWork(rr, withUser(httptest.NewRequest(http.MethodPost, "/api/work", bytes.NewReader(body)), testUser(models.RoleAuthority)))

	assertErrorResponse(t, rr, http.StatusBadRequest, "Work can only be assigned to teachers")
}

func TestAuthorityHandler_UpdateWorkStatus_Validation(t *testing.T) {
	handler := NewAuthorityHandler(&mockApprovalService{}, &mockWorkService{}, &mockAuditReader{})
	id := uuid.New()
	req := httptest.NewRequest(http.MethodPut, "/api/work/"+id.String()+"/status", bytes.NewBufferString(`{"status":"done"}`))
	req.SetPathValue("id", id.String())
	rr := httptest.NewRecorder()

	handler.UpdateWorkStatus(rr, withUser(req, testUser(models.RoleTeacher)))

	assertErrorResponse(t, rr, http.StatusBadRequest, "status must be one of [assigned in_progress completed]")
}

func TestAuthorityHandler_MyWork_OpenOnly(t *testing.T) {
	teacher := testUser(models.RoleTeacher)
	handler := NewAuthorityHandler(&mockApprovalService{}, &mockWorkService{
		ListForAssigneeFunc: func(ctx context.Context, assigneeID uuid.UUID, openOnly bool) ([]models.WorkAssignment, error) {
			if assigneeID != teacher.ID || !openOnly {
				t.Fatalf("unexpected args %v %v", assigneeID, openOnly)
			}
			return []models.WorkAssignment{}, nil
		},
	}, &mockAuditReader{})
	rr := httptest.NewRecorder()

	handler.MyWork(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/work/mine?open=true", nil), teacher))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestAuthorityHandler_AuditLog(t *testing.T) {
	audit := &mockAuditReader{logs: []models.AuditLog{{Action: "role.change"}}}
	handler := NewAuthorityHandler(&mockApprovalService{}, &mockWorkService{}, audit)

	rr := httptest.NewRecorder()
	handler.AuditLog(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/audit", nil), testUser(models.RoleTeacher)))
	assertErrorResponse(t, rr, http.StatusForbidden, "Authority role required")

	rr = httptest.NewRecorder()
	handler.AuditLog(rr, withUser(httptest.NewRequest(http.MethodGet, "/api/audit?limit=10", nil), testUser(models.RoleAuthority)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if audit.limit != 10 {
		t.Fatalf("expected limit 10, got %d", audit.limit)
	}
	var resp AuditLogResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Logs) != 1 || resp.Logs[0].Action != "role.change" {
		t.Fatalf("unexpected logs %+v", resp.Logs)
	}
}
