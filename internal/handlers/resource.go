package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campuslink/internal/logging"
	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

const multipartMemory = 8 << 20

// ResourceHandler serves shared study resources and profile certificates.
// Both are multipart uploads with the file under "file".
type ResourceHandler struct {
	resourceService services.ResourceServiceInterface
	maxUploadBytes  int64
}

func NewResourceHandler(resourceService services.ResourceServiceInterface, maxUploadBytes int64) *ResourceHandler {
	return &ResourceHandler{resourceService: resourceService, maxUploadBytes: maxUploadBytes}
}

type ResourceResponse struct {
	Resource *models.Resource `json:"resource"`
}

type ResourceListResponse struct {
	Resources []models.Resource `json:"resources"`
}

type CertificateResponse struct {
	Certificate *models.Certificate `json:"certificate"`
}

type CertificateListResponse struct {
	Certificates []models.Certificate `json:"certificates"`
}

func writeResourceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, services.ErrStorageDisabled):
		writeError(w, http.StatusServiceUnavailable, "File uploads are not available")
	case errors.Is(err, services.ErrFileTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "File is too large")
	case errors.Is(err, services.ErrTitleRequired):
		writeError(w, http.StatusBadRequest, "Title is required")
	case errors.Is(err, services.ErrResourceNotFound):
		writeError(w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, services.ErrCertificateNotFound):
		writeError(w, http.StatusNotFound, "Certificate not found")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "Not allowed")
	default:
		internalError(w, action, err)
	}
}

// readUpload parses the multipart form and returns the uploaded file. The
// caller must close the file and remove the form.
func (h *ResourceHandler) readUpload(w http.ResponseWriter, r *http.Request) (multipart.File, models.Upload, bool) {
	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+(1<<20))
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large")
			return nil, models.Upload{}, false
		}
		writeError(w, http.StatusBadRequest, "Expected a multipart upload")
		return nil, models.Upload{}, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file")
		return nil, models.Upload{}, false
	}
	return file, models.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}, true
}

func cleanupUpload(r *http.Request, file multipart.File) {
	_ = file.Close()
	if r.MultipartForm != nil {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logging.Warn("Failed to remove multipart temp files", map[string]interface{}{"error": err.Error()})
		}
	}
}

func (h *ResourceHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	file, upload, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer cleanupUpload(r, file)

	in := models.ResourceInput{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Subject:     strings.TrimSpace(r.FormValue("subject")),
		Description: strings.TrimSpace(r.FormValue("description")),
	}
	if msg := validateStruct(&in); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	resource, err := h.resourceService.Upload(r.Context(), user.ID, in, upload, file)
	if err != nil {
		writeResourceError(w, err, "uploading resource")
		return
	}
	writeJSON(w, http.StatusCreated, ResourceResponse{Resource: resource})
}

func (h *ResourceHandler) List(w http.ResponseWriter, r *http.Request) {
	if requireUser(w, r) == nil {
		return
	}

	resources, err := h.resourceService.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("subject")))
	if err != nil {
		internalError(w, "listing resources", err)
		return
	}
	writeJSON(w, http.StatusOK, ResourceListResponse{Resources: resources})
}

func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "resource")
	if !ok {
		return
	}

	if err := h.resourceService.Delete(r.Context(), user, id); err != nil {
		writeResourceError(w, err, "deleting resource")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Resource deleted"})
}

func (h *ResourceHandler) UploadCertificate(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	file, upload, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	defer cleanupUpload(r, file)

	in := models.CertificateInput{
		Title:  strings.TrimSpace(r.FormValue("title")),
		Issuer: strings.TrimSpace(r.FormValue("issuer")),
	}
	if msg := validateStruct(&in); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	cert, err := h.resourceService.UploadCertificate(r.Context(), user.ID, in, upload, file)
	if err != nil {
		writeResourceError(w, err, "uploading certificate")
		return
	}
	writeJSON(w, http.StatusCreated, CertificateResponse{Certificate: cert})
}

// ListCertificates lists the caller's certificates, or another profile's
// when owner_id is given.
func (h *ResourceHandler) ListCertificates(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	ownerID := user.ID
	if raw := r.URL.Query().Get("owner_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid owner ID")
			return
		}
		ownerID = id
	}

	certs, err := h.resourceService.ListCertificates(r.Context(), ownerID)
	if err != nil {
		internalError(w, "listing certificates", err)
		return
	}
	writeJSON(w, http.StatusOK, CertificateListResponse{Certificates: certs})
}

func (h *ResourceHandler) DeleteCertificate(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "certificate")
	if !ok {
		return
	}

	if err := h.resourceService.DeleteCertificate(r.Context(), user, id); err != nil {
		writeResourceError(w, err, "deleting certificate")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Certificate deleted"})
}

func (h *ResourceHandler) VerifyCertificate(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "certificate")
	if !ok {
		return
	}

	cert, err := h.resourceService.VerifyCertificate(r.Context(), user, id)
	if errors.Is(err, services.ErrForbidden) {
		writeError(w, http.StatusForbidden, "Only authorities can verify certificates")
		return
	}
	if err != nil {
		writeResourceError(w, err, "verifying certificate")
		return
	}
	writeJSON(w, http.StatusOK, CertificateResponse{Certificate: cert})
}
