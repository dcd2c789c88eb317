package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

type AttendanceHandler struct {
	attendanceService services.AttendanceServiceInterface
	today             func() time.Time
}

// NewAttendanceHandler uses today for requests that omit a date.
func NewAttendanceHandler(attendanceService services.AttendanceServiceInterface, today func() time.Time) *AttendanceHandler {
	return &AttendanceHandler{attendanceService: attendanceService, today: today}
}

type SaveAttendanceRequest struct {
	Date    string                   `json:"date"`
	Entries []models.AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

type AttendanceListResponse struct {
	Records []models.AttendanceRecord `json:"records"`
}

type AttendanceSummaryResponse struct {
	Summary []models.AttendanceSummary `json:"summary"`
}

func writeAttendanceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, services.ErrNoAttendanceEntries):
		writeError(w, http.StatusBadRequest, "At least one attendance entry is required")
	case errors.Is(err, services.ErrInvalidAttendanceStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrScheduleNotFound):
		writeError(w, http.StatusNotFound, "Schedule not found")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "Only the class teacher or an authority can record attendance")
	case errors.Is(err, services.ErrProfileNotFound):
		writeError(w, http.StatusBadRequest, "Unknown student")
	default:
		internalError(w, action, err)
	}
}

func (h *AttendanceHandler) resolveDate(raw string) (time.Time, bool) {
	if raw == "" {
		return h.today(), true
	}
	return parseDate(raw)
}

func (h *AttendanceHandler) Save(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	scheduleID, ok := parseIDParam(w, r, "id", "schedule")
	if !ok {
		return
	}

	var req SaveAttendanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, ok := h.resolveDate(req.Date)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	records, err := h.attendanceService.Save(r.Context(), user, scheduleID, date, req.Entries)
	if err != nil {
		writeAttendanceError(w, err, "saving attendance")
		return
	}
	writeJSON(w, http.StatusOK, AttendanceListResponse{Records: records})
}

func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	scheduleID, ok := parseIDParam(w, r, "id", "schedule")
	if !ok {
		return
	}
	date, ok := h.resolveDate(r.URL.Query().Get("date"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD")
		return
	}

	records, err := h.attendanceService.List(r.Context(), user, scheduleID, date)
	if err != nil {
		writeAttendanceError(w, err, "listing attendance")
		return
	}
	writeJSON(w, http.StatusOK, AttendanceListResponse{Records: records})
}

// MySummary reports the caller's own attendance per class.
func (h *AttendanceHandler) MySummary(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	summary, err := h.attendanceService.StudentSummary(r.Context(), user.ID)
	if err != nil {
		internalError(w, "summarizing attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, AttendanceSummaryResponse{Summary: summary})
}
