package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

const maxScheduleImportBytes = 10 << 20

type ScheduleHandler struct {
	scheduleService services.ScheduleServiceInterface
}

func NewScheduleHandler(scheduleService services.ScheduleServiceInterface) *ScheduleHandler {
	return &ScheduleHandler{scheduleService: scheduleService}
}

type ScheduleResponse struct {
	Schedule *models.Schedule `json:"schedule"`
}

type ScheduleListResponse struct {
	Schedules []models.Schedule `json:"schedules"`
}

func writeScheduleError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, services.ErrScheduleNotFound):
		writeError(w, http.StatusNotFound, "Schedule not found")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "Not allowed to manage this schedule")
	case errors.Is(err, services.ErrInvalidSchedule):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrScheduleTeacherRequired):
		writeError(w, http.StatusBadRequest, "teacher_id is required")
	case errors.Is(err, services.ErrNotATeacher):
		writeError(w, http.StatusBadRequest, "Assigned profile is not a teacher")
	case errors.Is(err, services.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "Teacher not found")
	case errors.Is(err, services.ErrInvalidSpreadsheet):
		writeError(w, http.StatusBadRequest, "File is not a readable xlsx spreadsheet")
	case errors.Is(err, services.ErrImportEmpty), errors.Is(err, services.ErrImportMissingColumn):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		internalError(w, action, err)
	}
}

// scheduleFilter reads teacher_id, section and day from the query string.
func scheduleFilter(r *http.Request) (models.ScheduleFilter, string) {
	var filter models.ScheduleFilter
	q := r.URL.Query()
	if raw := q.Get("teacher_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return filter, "Invalid teacher ID"
		}
		filter.TeacherID = &id
	}
	filter.Section = q.Get("section")
	if raw := q.Get("day"); raw != "" {
		day, err := models.ParseDay(raw)
		if err != nil {
			return filter, "Invalid day"
		}
		filter.DayOfWeek = &day
	}
	return filter, ""
}

func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	if requireUser(w, r) == nil {
		return
	}
	filter, msg := scheduleFilter(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	schedules, err := h.scheduleService.List(r.Context(), filter)
	if err != nil {
		internalError(w, "listing schedules", err)
		return
	}
	writeJSON(w, http.StatusOK, ScheduleListResponse{Schedules: schedules})
}

func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	if requireUser(w, r) == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "schedule")
	if !ok {
		return
	}

	schedule, err := h.scheduleService.Get(r.Context(), id)
	if err != nil {
		writeScheduleError(w, err, "getting schedule")
		return
	}
	writeJSON(w, http.StatusOK, ScheduleResponse{Schedule: schedule})
}

func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var in models.ScheduleInput
	if !decodeJSON(w, r, &in) {
		return
	}

	schedule, err := h.scheduleService.Create(r.Context(), user, in)
	if err != nil {
		writeScheduleError(w, err, "creating schedule")
		return
	}
	writeJSON(w, http.StatusCreated, ScheduleResponse{Schedule: schedule})
}

func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "schedule")
	if !ok {
		return
	}

	var in models.ScheduleInput
	if !decodeJSON(w, r, &in) {
		return
	}

	schedule, err := h.scheduleService.Update(r.Context(), user, id, in)
	if err != nil {
		writeScheduleError(w, err, "updating schedule")
		return
	}
	writeJSON(w, http.StatusOK, ScheduleResponse{Schedule: schedule})
}

func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "schedule")
	if !ok {
		return
	}

	if err := h.scheduleService.Delete(r.Context(), user, id); err != nil {
		writeScheduleError(w, err, "deleting schedule")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Schedule deleted"})
}

// Import accepts a multipart upload with the spreadsheet in the "file" field.
func (h *ScheduleHandler) Import(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxScheduleImportBytes+(1<<20))
	if err := r.ParseMultipartForm(maxScheduleImportBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Expected a multipart upload under 10 MiB")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file")
		return
	}
	defer func() { _ = file.Close() }()

	result, err := h.scheduleService.BulkImport(r.Context(), user, file)
	if err != nil {
		writeScheduleError(w, err, "importing schedules")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ScheduleHandler) Export(w http.ResponseWriter, r *http.Request) {
	if requireUser(w, r) == nil {
		return
	}
	filter, msg := scheduleFilter(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	var buf bytes.Buffer
	if err := h.scheduleService.Export(r.Context(), filter, &buf); err != nil {
		internalError(w, "exporting schedules", err)
		return
	}
	writeAttachment(w, xlsxContentType, "schedules_"+time.Now().UTC().Format("2006-01-02")+".xlsx", buf.Bytes())
}
