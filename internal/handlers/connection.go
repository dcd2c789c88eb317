package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

type ConnectionHandler struct {
	connectionService services.ConnectionServiceInterface
	inviteService     services.ConnectionInviteServiceInterface
}

func NewConnectionHandler(connectionService services.ConnectionServiceInterface, inviteService services.ConnectionInviteServiceInterface) *ConnectionHandler {
	return &ConnectionHandler{
		connectionService: connectionService,
		inviteService:     inviteService,
	}
}

type SendConnectionRequest struct {
	ReceiverID uuid.UUID `json:"receiver_id" validate:"required"`
	Message    *string   `json:"message,omitempty" validate:"omitempty,max=500"`
}

type ConnectionRequestResponse struct {
	Request *models.ConnectionRequest `json:"request"`
}

type ConnectionListResponse struct {
	Connections []models.Connection `json:"connections"`
}

type ConnectionRequestListResponse struct {
	Requests []models.ConnectionRequestWithProfile `json:"requests"`
}

type CreateInviteRequest struct {
	ExpiresInDays int `json:"expires_in_days" validate:"min=1,max=365"`
}

type InviteCreateResponse struct {
	Invite *models.ConnectionInvite `json:"invite"`
	Token  string                   `json:"token"`
}

type InviteListResponse struct {
	Invites []models.ConnectionInvite `json:"invites"`
}

type AcceptInviteRequest struct {
	Token string `json:"token" validate:"required"`
}

type AcceptInviteResponse struct {
	Inviter *models.ProfileSummary `json:"inviter"`
}

// writeConnectionError maps connection and invite sentinels. It reports
// false when err is not one of them.
func writeConnectionError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, services.ErrCannotConnectSelf):
		writeError(w, http.StatusBadRequest, "Cannot send a connection request to yourself")
	case errors.Is(err, services.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "Profile not found")
	case errors.Is(err, services.ErrConnectionRequestExists):
		writeError(w, http.StatusConflict, "A connection request already exists")
	case errors.Is(err, services.ErrConnectionRequestNotFound):
		writeError(w, http.StatusNotFound, "Connection request not found")
	case errors.Is(err, services.ErrRequestNotPending):
		writeError(w, http.StatusConflict, "Connection request is no longer pending")
	case errors.Is(err, services.ErrNotConnected):
		writeError(w, http.StatusNotFound, "Not connected")
	case errors.Is(err, services.ErrMessageTooLong):
		writeError(w, http.StatusBadRequest, "Message is too long")
	case errors.Is(err, services.ErrInviteNotFound):
		writeError(w, http.StatusNotFound, "Invite not found")
	case errors.Is(err, services.ErrInviteExpiryOutOfRange):
		writeError(w, http.StatusBadRequest, "Invite expiry must be between 1 and 365 days")
	case errors.Is(err, services.ErrInviteLimitReached):
		writeError(w, http.StatusConflict, "Too many active invites")
	default:
		return false
	}
	return true
}

func (h *ConnectionHandler) List(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	connections, err := h.connectionService.ListConnections(r.Context(), user.ID)
	if err != nil {
		internalError(w, "listing connections", err)
		return
	}
	writeJSON(w, http.StatusOK, ConnectionListResponse{Connections: connections})
}

func (h *ConnectionHandler) Incoming(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	requests, err := h.connectionService.ListIncoming(r.Context(), user.ID)
	if err != nil {
		internalError(w, "listing incoming requests", err)
		return
	}
	writeJSON(w, http.StatusOK, ConnectionRequestListResponse{Requests: requests})
}

func (h *ConnectionHandler) Outgoing(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	requests, err := h.connectionService.ListOutgoing(r.Context(), user.ID)
	if err != nil {
		internalError(w, "listing outgoing requests", err)
		return
	}
	writeJSON(w, http.StatusOK, ConnectionRequestListResponse{Requests: requests})
}

func (h *ConnectionHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req SendConnectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	request, err := h.connectionService.SendRequest(r.Context(), user.ID, req.ReceiverID, req.Message)
	if err != nil {
		if !writeConnectionError(w, err) {
			internalError(w, "sending connection request", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, ConnectionRequestResponse{Request: request})
}

func (h *ConnectionHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, true)
}

func (h *ConnectionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, false)
}

func (h *ConnectionHandler) respond(w http.ResponseWriter, r *http.Request, accept bool) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	requestID, ok := parseIDParam(w, r, "id", "request")
	if !ok {
		return
	}

	request, err := h.connectionService.Respond(r.Context(), user.ID, requestID, accept)
	if err != nil {
		if !writeConnectionError(w, err) {
			internalError(w, "responding to connection request", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, ConnectionRequestResponse{Request: request})
}

func (h *ConnectionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	requestID, ok := parseIDParam(w, r, "id", "request")
	if !ok {
		return
	}

	if err := h.connectionService.Cancel(r.Context(), user.ID, requestID); err != nil {
		if !writeConnectionError(w, err) {
			internalError(w, "cancelling connection request", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Connection request cancelled"})
}

func (h *ConnectionHandler) Remove(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	otherID, ok := parseIDParam(w, r, "id", "profile")
	if !ok {
		return
	}

	if err := h.connectionService.Remove(r.Context(), user.ID, otherID); err != nil {
		if !writeConnectionError(w, err) {
			internalError(w, "removing connection", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Connection removed"})
}

func (h *ConnectionHandler) Status(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	otherID, ok := parseIDParam(w, r, "id", "profile")
	if !ok {
		return
	}

	status, err := h.connectionService.Status(r.Context(), user.ID, otherID)
	if err != nil {
		internalError(w, "getting connection status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *ConnectionHandler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req CreateInviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	invite, token, err := h.inviteService.CreateInvite(r.Context(), user.ID, req.ExpiresInDays)
	if err != nil {
		if !writeConnectionError(w, err) {
			internalError(w, "creating invite", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, InviteCreateResponse{Invite: invite, Token: token})
}

func (h *ConnectionHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	invites, err := h.inviteService.ListInvites(r.Context(), user.ID)
	if err != nil {
		internalError(w, "listing invites", err)
		return
	}
	writeJSON(w, http.StatusOK, InviteListResponse{Invites: invites})
}

func (h *ConnectionHandler) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	inviteID, ok := parseIDParam(w, r, "id", "invite")
	if !ok {
		return
	}

	if err := h.inviteService.RevokeInvite(r.Context(), user.ID, inviteID); err != nil {
		if !writeConnectionError(w, err) {
			internalError(w, "revoking invite", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Invite revoked"})
}

func (h *ConnectionHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req AcceptInviteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	inviter, err := h.inviteService.AcceptInvite(r.Context(), user.ID, req.Token)
	if err != nil {
		if !writeConnectionError(w, err) {
			internalError(w, "accepting invite", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, AcceptInviteResponse{Inviter: inviter})
}
