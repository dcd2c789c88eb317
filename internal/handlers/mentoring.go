package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

type MentoringHandler struct {
	mentoringService services.MentoringServiceInterface
}

func NewMentoringHandler(mentoringService services.MentoringServiceInterface) *MentoringHandler {
	return &MentoringHandler{mentoringService: mentoringService}
}

type MentoringRequestBody struct {
	MentorID uuid.UUID `json:"mentor_id" validate:"required"`
	Message  *string   `json:"message,omitempty" validate:"omitempty,max=500"`
}

type MentoringResponse struct {
	Relationship *models.MentoringRelationship `json:"relationship"`
}

type MentoringListResponse struct {
	Relationships []models.MentoringWithProfile `json:"relationships"`
}

func writeMentoringError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, services.ErrNotAMentor):
		writeError(w, http.StatusBadRequest, "That profile does not accept mentees")
	case errors.Is(err, services.ErrCannotMentorSelf):
		writeError(w, http.StatusBadRequest, "Cannot mentor yourself")
	case errors.Is(err, services.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "Profile not found")
	case errors.Is(err, services.ErrMentoringExists):
		writeError(w, http.StatusConflict, "A mentoring relationship already exists")
	case errors.Is(err, services.ErrMentoringNotFound):
		writeError(w, http.StatusNotFound, "Mentoring relationship not found")
	case errors.Is(err, services.ErrMentoringNotPending):
		writeError(w, http.StatusConflict, "Mentoring request is no longer pending")
	case errors.Is(err, services.ErrMentoringNotActive):
		writeError(w, http.StatusConflict, "Mentoring relationship is not active")
	case errors.Is(err, services.ErrMessageTooLong):
		writeError(w, http.StatusBadRequest, "Message is too long")
	default:
		internalError(w, action, err)
	}
}

func (h *MentoringHandler) Request(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req MentoringRequestBody
	if !decodeJSON(w, r, &req) {
		return
	}

	rel, err := h.mentoringService.Request(r.Context(), user.ID, req.MentorID, req.Message)
	if err != nil {
		writeMentoringError(w, err, "requesting mentoring")
		return
	}
	writeJSON(w, http.StatusCreated, MentoringResponse{Relationship: rel})
}

func (h *MentoringHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, true)
}

func (h *MentoringHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, false)
}

func (h *MentoringHandler) respond(w http.ResponseWriter, r *http.Request, accept bool) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "mentoring")
	if !ok {
		return
	}

	rel, err := h.mentoringService.Respond(r.Context(), user.ID, id, accept)
	if err != nil {
		writeMentoringError(w, err, "responding to mentoring request")
		return
	}
	writeJSON(w, http.StatusOK, MentoringResponse{Relationship: rel})
}

func (h *MentoringHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "mentoring")
	if !ok {
		return
	}

	if err := h.mentoringService.Cancel(r.Context(), user.ID, id); err != nil {
		writeMentoringError(w, err, "cancelling mentoring request")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Mentoring request cancelled"})
}

func (h *MentoringHandler) End(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "mentoring")
	if !ok {
		return
	}

	if err := h.mentoringService.End(r.Context(), user.ID, id); err != nil {
		writeMentoringError(w, err, "ending mentoring")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Mentoring ended"})
}

func (h *MentoringHandler) Mentees(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.mentoringService.ListMentees, "listing mentees")
}

func (h *MentoringHandler) Mentors(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.mentoringService.ListMentors, "listing mentors")
}

func (h *MentoringHandler) Pending(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, h.mentoringService.ListPending, "listing mentoring requests")
}

type mentoringLister func(ctx context.Context, id uuid.UUID) ([]models.MentoringWithProfile, error)

func (h *MentoringHandler) list(w http.ResponseWriter, r *http.Request, fn mentoringLister, action string) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	rels, err := fn(r.Context(), user.ID)
	if err != nil {
		internalError(w, action, err)
		return
	}
	writeJSON(w, http.StatusOK, MentoringListResponse{Relationships: rels})
}
