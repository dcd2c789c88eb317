package handlers

import (
	"bytes"
	"errors"
	"mime"
	"net/http"
	"time"

	"github.com/HammerMeetNail/campuslink/internal/logging"
	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ProfileHandler struct {
	profileService services.ProfileServiceInterface
}

func NewProfileHandler(profileService services.ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

type ProfileResponse struct {
	Profile *models.Profile `json:"profile"`
}

type PublicProfileResponse struct {
	Profile *models.PublicProfile `json:"profile"`
}

type ProfileSearchResponse struct {
	Results []models.ProfileSearchResult `json:"results"`
}

type SetRoleRequest struct {
	Role models.Role `json:"role" validate:"required,oneof=student mentor teacher authority"`
}

func (h *ProfileHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Profile: user})
}

func (h *ProfileHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var patch models.ProfileUpdate
	if !decodeJSON(w, r, &patch) {
		return
	}

	profile, err := h.profileService.Update(r.Context(), user.ID, patch)
	if errors.Is(err, services.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		internalError(w, "updating profile", err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Profile: profile})
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "profile")
	if !ok {
		return
	}

	profile, err := h.profileService.GetPublicProfile(r.Context(), user, id)
	if errors.Is(err, services.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		internalError(w, "getting profile", err)
		return
	}
	writeJSON(w, http.StatusOK, PublicProfileResponse{Profile: profile})
}

func (h *ProfileHandler) Search(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	results, err := h.profileService.Search(r.Context(), user.ID, r.URL.Query().Get("q"))
	if errors.Is(err, services.ErrSearchTooShort) {
		writeError(w, http.StatusBadRequest, "Search query must be at least 2 characters")
		return
	}
	if err != nil {
		internalError(w, "searching profiles", err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileSearchResponse{Results: results})
}

func (h *ProfileHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "profile")
	if !ok {
		return
	}

	var req SetRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := h.profileService.SetRole(r.Context(), user, id, req.Role)
	switch {
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "Only authorities can change roles")
	case errors.Is(err, services.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, "Invalid role")
	case errors.Is(err, services.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "Profile not found")
	case err != nil:
		internalError(w, "setting role", err)
	default:
		writeJSON(w, http.StatusOK, ProfileResponse{Profile: profile})
	}
}

// Card serves the PNG profile card.
func (h *ProfileHandler) Card(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "profile")
	if !ok {
		return
	}

	png, err := h.profileService.RenderCard(r.Context(), user, id)
	if errors.Is(err, services.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		internalError(w, "rendering profile card", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		logging.Warn("Error writing profile card", map[string]interface{}{"error": err.Error()})
	}
}

// ExportUsers streams an xlsx of every profile. Authorities only.
func (h *ProfileHandler) ExportUsers(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var buf bytes.Buffer
	err := h.profileService.ExportXLSX(r.Context(), user, &buf)
	if errors.Is(err, services.ErrForbidden) {
		writeError(w, http.StatusForbidden, "Only authorities can export users")
		return
	}
	if err != nil {
		internalError(w, "exporting users", err)
		return
	}

	writeAttachment(w, xlsxContentType, "campuslink_users_"+time.Now().UTC().Format("2006-01-02")+".xlsx", buf.Bytes())
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.Warn("Error writing attachment", map[string]interface{}{"error": err.Error(), "filename": filename})
	}
}
