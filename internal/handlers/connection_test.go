package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

type mockConnectionService struct {
	services.ConnectionServiceInterface
	SendRequestFunc     func(ctx context.Context, senderID, receiverID uuid.UUID, message *string) (*models.ConnectionRequest, error)
	RespondFunc         func(ctx context.Context, receiverID, requestID uuid.UUID, accept bool) (*models.ConnectionRequest, error)
	RemoveFunc          func(ctx context.Context, userID, otherID uuid.UUID) error
	ListConnectionsFunc func(ctx context.Context, userID uuid.UUID) ([]models.Connection, error)
	StatusFunc          func(ctx context.Context, userID, otherID uuid.UUID) (*models.ConnectionStatusResult, error)
}

func (m *mockConnectionService) SendRequest(ctx context.Context, senderID, receiverID uuid.UUID, message *string) (*models.ConnectionRequest, error) {
	return m.SendRequestFunc(ctx, senderID, receiverID, message)
}

func (m *mockConnectionService) Respond(ctx context.Context, receiverID, requestID uuid.UUID, accept bool) (*models.ConnectionRequest, error) {
	return m.RespondFunc(ctx, receiverID, requestID, accept)
}

func (m *mockConnectionService) Remove(ctx context.Context, userID, otherID uuid.UUID) error {
	return m.RemoveFunc(ctx, userID, otherID)
}

func (m *mockConnectionService) ListConnections(ctx context.Context, userID uuid.UUID) ([]models.Connection, error) {
	return m.ListConnectionsFunc(ctx, userID)
}

func (m *mockConnectionService) Status(ctx context.Context, userID, otherID uuid.UUID) (*models.ConnectionStatusResult, error) {
	return m.StatusFunc(ctx, userID, otherID)
}

type mockInviteService struct {
	services.ConnectionInviteServiceInterface
	CreateInviteFunc func(ctx context.Context, inviterID uuid.UUID, expiresInDays int) (*models.ConnectionInvite, string, error)
	AcceptInviteFunc func(ctx context.Context, recipientID uuid.UUID, token string) (*models.ProfileSummary, error)
}

func (m *mockInviteService) CreateInvite(ctx context.Context, inviterID uuid.UUID, expiresInDays int) (*models.ConnectionInvite, string, error) {
	return m.CreateInviteFunc(ctx, inviterID, expiresInDays)
}

func (m *mockInviteService) AcceptInvite(ctx context.Context, recipientID uuid.UUID, token string) (*models.ProfileSummary, error) {
	return m.AcceptInviteFunc(ctx, recipientID, token)
}

func TestConnectionHandler_SendRequest_RequiresAuth(t *testing.T) {
	handler := NewConnectionHandler(&mockConnectionService{}, &mockInviteService{})
	rr := httptest.NewRecorder()

	handler.SendRequest(rr, httptest.NewRequest(http.MethodPost, "/api/connections/requests", nil))

	assertErrorResponse(t, rr, http.StatusUnauthorized, "Authentication required")
}

func TestConnectionHandler_SendRequest_MessageTooLong(t *testing.T) {
	handler := NewConnectionHandler(&mockConnectionService{}, &mockInviteService{})
	long := string(bytes.Repeat([]byte("x"), 501))
	payload, _ := json.Marshal(map[string]any{"receiver_id": uuid.New(), "message": long})
	req := httptest.NewRequest(http.MethodPost, "/api/connections/requests", bytes.NewBuffer(payload))
	rr := httptest.NewRecorder()

	handler.SendRequest(rr, withUser(req, testUser(models.RoleStudent)))

	assertErrorResponse(t, rr, http.StatusBadRequest, "message must be a maximum of 500 characters in length")
}

func TestConnectionHandler_SendRequest_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{services.ErrCannotConnectSelf, http.StatusBadRequest, "Cannot send a connection request to yourself"},
		{services.ErrProfileNotFound, http.StatusNotFound, "Profile not found"},
		{services.ErrConnectionRequestExists, http.StatusConflict, "A connection request already exists"},
		{errors.New("db down"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		handler := NewConnectionHandler(&mockConnectionService{
			SendRequestFunc: func(ctx context.Context, senderID, receiverID uuid.UUID, message *string) (*models.ConnectionRequest, error) {
				return nil, tt.err
			},
		}, &mockInviteService{})
		payload, _ := json.Marshal(map[string]any{"receiver_id": uuid.New()})
		req := httptest.NewRequest(http.MethodPost, "/api/connections/requests", bytes.NewBuffer(payload))
		rr := httptest.NewRecorder()

		handler.SendRequest(rr, withUser(req, testUser(models.RoleStudent)))

		assertErrorResponse(t, rr, tt.status, tt.msg)
	}
}

func TestConnectionHandler_SendRequest_Success(t *testing.T) {
	user := testUser(models.RoleStudent)
	receiver := uuid.New()
	handler := NewConnectionHandler(&mockConnectionService{
		SendRequestFunc: func(ctx context.Context, senderID, receiverID uuid.UUID, message *string) (*models.ConnectionRequest, error) {
			if senderID != user.ID || receiverID != receiver || message == nil || *message != "hi" {
				t.Fatalf("unexpected args %v %v %v", senderID, receiverID, message)
			}
			return &models.ConnectionRequest{ID: uuid.New(), SenderID: senderID, ReceiverID: receiverID, Status: models.ConnectionStatusPending, Message: message}, nil
		},
	}, &mockInviteService{})
	payload, _ := json.Marshal(map[string]any{"receiver_id": receiver, "message": "hi"})
	req := httptest.NewRequest(http.MethodPost, "/api/connections/requests", bytes.NewBuffer(payload))
	rr := httptest.NewRecorder()

	handler.SendRequest(rr, withUser(req, user))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp ConnectionRequestResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Request.Status != models.ConnectionStatusPending {
		t.Fatalf("unexpected status %q", resp.Request.Status)
	}
}

func TestConnectionHandler_AcceptAndReject(t *testing.T) {
	requestID := uuid.New()
	var gotAccept []bool
	handler := NewConnectionHandler(&mockConnectionService{
		RespondFunc: func(ctx context.Context, receiverID, id uuid.UUID, accept bool) (*models.ConnectionRequest, error) {
			gotAccept = append(gotAccept, accept)
			if len(gotAccept) == 3 {
				return nil, services.ErrRequestNotPending
			}
			return &models.ConnectionRequest{ID: id}, nil
		},
	}, &mockInviteService{})

	newReq := func() *http.Request {
		req := httptest.NewRequest(http.MethodPut, "/api/connections/requests/"+requestID.String()+"/accept", nil)
		req.SetPathValue("id", requestID.String())
		return withUser(req, testUser(models.RoleStudent))
	}

	rr := httptest.NewRecorder()
	handler.Accept(rr, newReq())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	handler.Reject(rr, newReq())
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	handler.Accept(rr, newReq())
	assertErrorResponse(t, rr, http.StatusConflict, "Connection request is no longer pending")

	if len(gotAccept) != 3 || !gotAccept[0] || gotAccept[1] || !gotAccept[2] {
		t.Fatalf("unexpected accept flags %v", gotAccept)
	}
}

func TestConnectionHandler_Remove_NotConnected(t *testing.T) {
	other := uuid.New()
	handler := NewConnectionHandler(&mockConnectionService{
		RemoveFunc: func(ctx context.Context, userID, otherID uuid.UUID) error {
			return services.ErrNotConnected
		},
	}, &mockInviteService{})
	req := httptest.NewRequest(http.MethodDelete, "/api/connections/"+other.String(), nil)
	req.SetPathValue("id", other.String())
	rr := httptest.NewRecorder()

	handler.Remove(rr, withUser(req, testUser(models.RoleStudent)))

	assertErrorResponse(t, rr, http.StatusNotFound, "Not connected")
}

func TestConnectionHandler_Status(t *testing.T) {
	other := uuid.New()
	handler := NewConnectionHandler(&mockConnectionService{
		StatusFunc: func(ctx context.Context, userID, otherID uuid.UUID) (*models.ConnectionStatusResult, error) {
			return &models.ConnectionStatusResult{State: models.ConnectionStateConnected}, nil
		},
	}, &mockInviteService{})
	req := httptest.NewRequest(http.MethodGet, "/api/connections/status/"+other.String(), nil)
	req.SetPathValue("id", other.String())
	rr := httptest.NewRecorder()

	handler.Status(rr, withUser(req, testUser(models.RoleStudent)))

	var resp models.ConnectionStatusResult
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.State != models.ConnectionStateConnected {
		t.Fatalf("unexpected state %q", resp.State)
	}
}

func TestConnectionHandler_CreateInvite(t *testing.T) {
	handler := NewConnectionHandler(&mockConnectionService{}, &mockInviteService{
		CreateInviteFunc: func(ctx context.Context, inviterID uuid.UUID, expiresInDays int) (*models.ConnectionInvite, string, error) {
			if expiresInDays != 14 {
				t.Fatalf("expected 14 days, got %d", expiresInDays)
			}
			return &models.ConnectionInvite{ID: uuid.New(), InviterID: inviterID}, "tok", nil
		},
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/connections/invites", bytes.NewBufferString(`{"expires_in_days":400}`))
	handler.CreateInvite(rr, withUser(req, testUser(models.RoleStudent)))
	assertErrorResponse(t, rr, http.StatusBadRequest, "expires_in_days must be 365 or less")

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/connections/invites", bytes.NewBufferString(`{"expires_in_days":14}`))
	handler.CreateInvite(rr, withUser(req, testUser(models.RoleStudent)))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	var resp InviteCreateResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token != "tok" {
		t.Fatalf("expected token, got %q", resp.Token)
	}
}

func TestConnectionHandler_AcceptInvite_NotFound(t *testing.T) {
	handler := NewConnectionHandler(&mockConnectionService{}, &mockInviteService{
		AcceptInviteFunc: func(ctx context.Context, recipientID uuid.UUID, token string) (*models.ProfileSummary, error) {
			return nil, services.ErrInviteNotFound
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/connections/invites/accept", bytes.NewBufferString(`{"token":"abc"}`))
	rr := httptest.NewRecorder()

	handler.AcceptInvite(rr, withUser(req, testUser(models.RoleStudent)))

	assertErrorResponse(t, rr, http.StatusNotFound, "Invite not found")
}
