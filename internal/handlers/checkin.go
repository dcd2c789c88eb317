package handlers

import (
	"errors"
	"net/http"

	"github.com/HammerMeetNail/campuslink/internal/services"
)

type CheckInHandler struct {
	checkInService services.CheckInServiceInterface
}

func NewCheckInHandler(checkInService services.CheckInServiceInterface) *CheckInHandler {
	return &CheckInHandler{checkInService: checkInService}
}

// CheckIn records today's activity. Repeat calls on the same day are no-ops.
func (h *CheckInHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	result, err := h.checkInService.CheckIn(r.Context(), user.ID)
	if errors.Is(err, services.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "Profile not found")
		return
	}
	if err != nil {
		internalError(w, "checking in", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
