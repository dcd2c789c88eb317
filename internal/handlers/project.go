package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

type ProjectHandler struct {
	projectService services.ProjectServiceInterface
}

func NewProjectHandler(projectService services.ProjectServiceInterface) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

type ProjectResponse struct {
	Project *models.Project `json:"project"`
}

type ProjectListResponse struct {
	Projects []models.Project `json:"projects"`
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var in models.ProjectInput
	if !decodeJSON(w, r, &in) {
		return
	}

	project, err := h.projectService.Create(r.Context(), user.ID, in)
	if errors.Is(err, services.ErrInvalidProject) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		internalError(w, "creating project", err)
		return
	}
	writeJSON(w, http.StatusCreated, ProjectResponse{Project: project})
}

// List returns open projects, optionally those needing ?skill=.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	if requireUser(w, r) == nil {
		return
	}

	projects, err := h.projectService.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("skill")))
	if err != nil {
		internalError(w, "listing projects", err)
		return
	}
	writeJSON(w, http.StatusOK, ProjectListResponse{Projects: projects})
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "project")
	if !ok {
		return
	}

	err := h.projectService.Delete(r.Context(), user, id)
	switch {
	case errors.Is(err, services.ErrProjectNotFound):
		writeError(w, http.StatusNotFound, "Project not found")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "Only the owner or an authority can delete this project")
	case err != nil:
		internalError(w, "deleting project", err)
	default:
		writeJSON(w, http.StatusOK, MessageResponse{Message: "Project deleted"})
	}
}
