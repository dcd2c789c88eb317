package handlers

import (
	"errors"
	"net/http"

	"github.com/HammerMeetNail/campuslink/internal/services"
)

type DashboardHandler struct {
	dashboardService services.DashboardServiceInterface
}

func NewDashboardHandler(dashboardService services.DashboardServiceInterface) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	dashboard, err := h.dashboardService.Build(r.Context(), user)
	if errors.Is(err, services.ErrUnknownRole) {
		writeError(w, http.StatusForbidden, "No dashboard for this role")
		return
	}
	if err != nil {
		internalError(w, "building dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}
