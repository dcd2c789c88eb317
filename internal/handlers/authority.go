package handlers

import (
	"errors"
	"net/http"

	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

// AuthorityHandler serves approval requests, work assignments and the audit
// trail.
type AuthorityHandler struct {
	approvalService services.ApprovalServiceInterface
	workService     services.WorkAssignmentServiceInterface
	audit           services.AuditReader
}

func NewAuthorityHandler(approvalService services.ApprovalServiceInterface, workService services.WorkAssignmentServiceInterface, audit services.AuditReader) *AuthorityHandler {
	return &AuthorityHandler{
		approvalService: approvalService,
		workService:     workService,
		audit:           audit,
	}
}

type ApprovalResponse struct {
	Approval *models.ApprovalRequest `json:"approval"`
}

type ApprovalListResponse struct {
	Approvals []models.ApprovalRequest `json:"approvals"`
}

type WorkAssignmentResponse struct {
	Assignment *models.WorkAssignment `json:"assignment"`
}

type WorkAssignmentListResponse struct {
	Assignments []models.WorkAssignment `json:"assignments"`
}

type UpdateWorkStatusRequest struct {
	Status models.WorkAssignmentStatus `json:"status" validate:"required,oneof=assigned in_progress completed"`
}

type AuditLogResponse struct {
	Logs []models.AuditLog `json:"logs"`
}

func writeAuthorityError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "Authority role required")
	case errors.Is(err, services.ErrApprovalNotFound):
		writeError(w, http.StatusNotFound, "Approval request not found")
	case errors.Is(err, services.ErrApprovalNotPending):
		writeError(w, http.StatusConflict, "Approval request has already been decided")
	case errors.Is(err, services.ErrInvalidApproval):
		writeError(w, http.StatusBadRequest, "Approval request needs a type and a title")
	case errors.Is(err, services.ErrWorkAssignmentNotFound):
		writeError(w, http.StatusNotFound, "Work assignment not found")
	case errors.Is(err, services.ErrInvalidWorkStatus):
		writeError(w, http.StatusBadRequest, "Invalid work assignment status")
	case errors.Is(err, services.ErrInvalidWorkAssignment):
		writeError(w, http.StatusBadRequest, "Work assignment needs a title")
	case errors.Is(err, services.ErrNotATeacher):
		writeError(w, http.StatusBadRequest, "Work can only be assigned to teachers")
	case errors.Is(err, services.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	default:
		internalError(w, action, err)
	}
}

func (h *AuthorityHandler) SubmitApproval(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var in models.ApprovalRequestInput
	if !decodeJSON(w, r, &in) {
		return
	}

	approval, err := h.approvalService.Submit(r.Context(), user.ID, in)
	if err != nil {
		writeAuthorityError(w, err, "submitting approval request")
		return
	}
	writeJSON(w, http.StatusCreated, ApprovalResponse{Approval: approval})
}

func (h *AuthorityHandler) MyApprovals(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	approvals, err := h.approvalService.ListMine(r.Context(), user.ID)
	if err != nil {
		internalError(w, "listing approval requests", err)
		return
	}
	writeJSON(w, http.StatusOK, ApprovalListResponse{Approvals: approvals})
}

func (h *AuthorityHandler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	approvals, err := h.approvalService.ListPending(r.Context(), user)
	if err != nil {
		writeAuthorityError(w, err, "listing pending approvals")
		return
	}
	writeJSON(w, http.StatusOK, ApprovalListResponse{Approvals: approvals})
}

func (h *AuthorityHandler) DecideApproval(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "approval")
	if !ok {
		return
	}

	var decision models.ApprovalDecision
	if !decodeJSON(w, r, &decision) {
		return
	}

	approval, err := h.approvalService.Decide(r.Context(), user, id, decision)
	if err != nil {
		writeAuthorityError(w, err, "deciding approval request")
		return
	}
	writeJSON(w, http.StatusOK, ApprovalResponse{Approval: approval})
}

func (h *AuthorityHandler) AssignWork(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var in models.WorkAssignmentInput
	if !decodeJSON(w, r, &in) {
		return
	}

	assignment, err := h.workService.Assign(r.Context(), user, in)
	if err != nil {
		writeAuthorityError(w, err, "assigning work")
		return
	}
	writeJSON(w, http.StatusCreated, WorkAssignmentResponse{Assignment: assignment})
}

// MyWork lists work assigned to the caller; ?open=true hides completed items.
func (h *AuthorityHandler) MyWork(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	openOnly := r.URL.Query().Get("open") == "true"

	assignments, err := h.workService.ListForAssignee(r.Context(), user.ID, openOnly)
	if err != nil {
		internalError(w, "listing work assignments", err)
		return
	}
	writeJSON(w, http.StatusOK, WorkAssignmentListResponse{Assignments: assignments})
}

func (h *AuthorityHandler) AssignedWork(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	if user.Role != models.RoleAuthority {
		writeError(w, http.StatusForbidden, "Authority role required")
		return
	}

	assignments, err := h.workService.ListByAssigner(r.Context(), user.ID)
	if err != nil {
		internalError(w, "listing assigned work", err)
		return
	}
	writeJSON(w, http.StatusOK, WorkAssignmentListResponse{Assignments: assignments})
}

func (h *AuthorityHandler) UpdateWorkStatus(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "work assignment")
	if !ok {
		return
	}

	var req UpdateWorkStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	assignment, err := h.workService.UpdateStatus(r.Context(), user.ID, id, req.Status)
	if err != nil {
		writeAuthorityError(w, err, "updating work assignment")
		return
	}
	writeJSON(w, http.StatusOK, WorkAssignmentResponse{Assignment: assignment})
}

func (h *AuthorityHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	if user.Role != models.RoleAuthority {
		writeError(w, http.StatusForbidden, "Authority role required")
		return
	}
	limit, ok := parseLimit(r, 50, 200)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	logs, err := h.audit.ListRecent(r.Context(), limit)
	if err != nil {
		internalError(w, "listing audit logs", err)
		return
	}
	writeJSON(w, http.StatusOK, AuditLogResponse{Logs: logs})
}
