package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

type mockStudyGroupService struct {
	services.StudyGroupServiceInterface
	CreateFunc func(ctx context.Context, ownerID uuid.UUID, in models.StudyGroupInput) (*models.StudyGroup, error)
	JoinFunc   func(ctx context.Context, userID, groupID uuid.UUID) error
	LeaveFunc  func(ctx context.Context, userID, groupID uuid.UUID) error
}

func (m *mockStudyGroupService) Create(ctx context.Context, ownerID uuid.UUID, in models.StudyGroupInput) (*models.StudyGroup, error) {
	return m.CreateFunc(ctx, ownerID, in)
}

func (m *mockStudyGroupService) Join(ctx context.Context, userID, groupID uuid.UUID) error {
	return m.JoinFunc(ctx, userID, groupID)
}

func (m *mockStudyGroupService) Leave(ctx context.Context, userID, groupID uuid.UUID) error {
	return m.LeaveFunc(ctx, userID, groupID)
}

func groupRequest(method, suffix string, id uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, "/api/study-groups/"+id.String()+suffix, nil)
	req.SetPathValue("id", id.String())
	return req
}

func TestStudyGroupHandler_Create(t *testing.T) {
	user := testUser(models.RoleStudent)
	handler := NewStudyGroupHandler(&mockStudyGroupService{
		CreateFunc: func(ctx context.Context, ownerID uuid.UUID, in models.StudyGroupInput) (*models.StudyGroup, error) {
			if ownerID != user.ID || in.Name != "Algorithms" || in.MaxMembers != 6 {
				t.Fatalf("unexpected args %v %+v", ownerID, in)
			}
			return &models.StudyGroup{ID: uuid.New(), Name: in.Name, MemberCount: 1, IsMember: true}, nil
		},
	})
	rr := httptest.NewRecorder()

	handler.Create(rr, withUser(httptest.NewRequest(http.MethodPost, "/api/study-groups", bytes.NewBufferString(`{"name":"Algorithms","max_members":6}`)), user))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestStudyGroupHandler_Create_Validation(t *testing.T) {
	handler := NewStudyGroupHandler(&mockStudyGroupService{})
	rr := httptest.NewRecorder()

	handler.Create(rr, withUser(httptest.NewRequest(http.MethodPost, "/api/study-groups", bytes.NewBufferString(`{"name":"Solo","max_members":1}`)), testUser(models.RoleStudent)))

	assertErrorResponse(t, rr, http.StatusBadRequest, "max_members must be 2 or greater")
}

func TestStudyGroupHandler_Join_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{services.ErrStudyGroupFull, http.StatusConflict, "Study group is full"},
		{services.ErrAlreadyMember, http.StatusConflict, "Already a member of this group"},
		{services.ErrStudyGroupNotFound, http.StatusNotFound, "Study group not found"},
	}
	for _, tt := range tests {
		handler := NewStudyGroupHandler(&mockStudyGroupService{
			JoinFunc: func(ctx context.Context, userID, groupID uuid.UUID) error { return tt.err },
		})
		rr := httptest.NewRecorder()

		handler.Join(rr, withUser(groupRequest(http.MethodPost, "/join", uuid.New()), testUser(models.RoleStudent)))

		assertErrorResponse(t, rr, tt.status, tt.msg)
	}
}

func TestStudyGroupHandler_Leave(t *testing.T) {
	user := testUser(models.RoleStudent)
	groupID := uuid.New()
	handler := NewStudyGroupHandler(&mockStudyGroupService{
		LeaveFunc: func(ctx context.Context, userID, gid uuid.UUID) error {
			if userID != user.ID || gid != groupID {
				t.Fatalf("unexpected args %v %v", userID, gid)
			}
			return services.ErrOwnerCannotLeave
		},
	})
	rr := httptest.NewRecorder()

	handler.Leave(rr, withUser(groupRequest(http.MethodPost, "/leave", groupID), user))

	assertErrorResponse(t, rr, http.StatusConflict, "The owner cannot leave; delete the group instead")
}
