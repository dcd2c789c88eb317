package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

type StudyGroupHandler struct {
	studyGroupService services.StudyGroupServiceInterface
}

func NewStudyGroupHandler(studyGroupService services.StudyGroupServiceInterface) *StudyGroupHandler {
	return &StudyGroupHandler{studyGroupService: studyGroupService}
}

type StudyGroupResponse struct {
	Group *models.StudyGroup `json:"group"`
}

type StudyGroupListResponse struct {
	Groups []models.StudyGroup `json:"groups"`
}

func writeStudyGroupError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, services.ErrStudyGroupNotFound):
		writeError(w, http.StatusNotFound, "Study group not found")
	case errors.Is(err, services.ErrStudyGroupFull):
		writeError(w, http.StatusConflict, "Study group is full")
	case errors.Is(err, services.ErrAlreadyMember):
		writeError(w, http.StatusConflict, "Already a member of this group")
	case errors.Is(err, services.ErrNotMember):
		writeError(w, http.StatusNotFound, "Not a member of this group")
	case errors.Is(err, services.ErrOwnerCannotLeave):
		writeError(w, http.StatusConflict, "The owner cannot leave; delete the group instead")
	case errors.Is(err, services.ErrInvalidStudyGroup):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "Only the owner or an authority can delete this group")
	default:
		internalError(w, action, err)
	}
}

func (h *StudyGroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var in models.StudyGroupInput
	if !decodeJSON(w, r, &in) {
		return
	}

	group, err := h.studyGroupService.Create(r.Context(), user.ID, in)
	if err != nil {
		writeStudyGroupError(w, err, "creating study group")
		return
	}
	writeJSON(w, http.StatusCreated, StudyGroupResponse{Group: group})
}

func (h *StudyGroupHandler) List(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	groups, err := h.studyGroupService.List(r.Context(), user.ID, strings.TrimSpace(r.URL.Query().Get("subject")))
	if err != nil {
		internalError(w, "listing study groups", err)
		return
	}
	writeJSON(w, http.StatusOK, StudyGroupListResponse{Groups: groups})
}

func (h *StudyGroupHandler) Join(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.studyGroupService.Join, "joining study group", "Joined study group")
}

func (h *StudyGroupHandler) Leave(w http.ResponseWriter, r *http.Request) {
	h.membership(w, r, h.studyGroupService.Leave, "leaving study group", "Left study group")
}

func (h *StudyGroupHandler) membership(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, groupID uuid.UUID) error, action, done string) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "study group")
	if !ok {
		return
	}

	if err := op(r.Context(), user.ID, id); err != nil {
		writeStudyGroupError(w, err, action)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: done})
}

func (h *StudyGroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "study group")
	if !ok {
		return
	}

	if err := h.studyGroupService.Delete(r.Context(), user, id); err != nil {
		writeStudyGroupError(w, err, "deleting study group")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Study group deleted"})
}
