package handlers

import (
	"errors"
	"net/http"

	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

type EventHandler struct {
	eventService services.EventServiceInterface
}

func NewEventHandler(eventService services.EventServiceInterface) *EventHandler {
	return &EventHandler{eventService: eventService}
}

type EventResponse struct {
	Event *models.CampusEvent `json:"event"`
}

type EventListResponse struct {
	Events []models.CampusEvent `json:"events"`
}

func writeEventError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, services.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "Event not found")
	case errors.Is(err, services.ErrEventFull):
		writeError(w, http.StatusConflict, "Event is full")
	case errors.Is(err, services.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, "Already registered for this event")
	case errors.Is(err, services.ErrNotRegistered):
		writeError(w, http.StatusNotFound, "Not registered for this event")
	case errors.Is(err, services.ErrInvalidEvent):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "Only the organizer or an authority can delete this event")
	default:
		internalError(w, action, err)
	}
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var in models.CampusEventInput
	if !decodeJSON(w, r, &in) {
		return
	}

	event, err := h.eventService.Create(r.Context(), user.ID, in)
	if err != nil {
		writeEventError(w, err, "creating event")
		return
	}
	writeJSON(w, http.StatusCreated, EventResponse{Event: event})
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	limit, ok := parseLimit(r, 50, 200)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	events, err := h.eventService.ListUpcoming(r.Context(), user.ID, limit)
	if err != nil {
		internalError(w, "listing events", err)
		return
	}
	writeJSON(w, http.StatusOK, EventListResponse{Events: events})
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "event")
	if !ok {
		return
	}

	event, err := h.eventService.Get(r.Context(), user.ID, id)
	if err != nil {
		writeEventError(w, err, "getting event")
		return
	}
	writeJSON(w, http.StatusOK, EventResponse{Event: event})
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "event")
	if !ok {
		return
	}

	if err := h.eventService.Delete(r.Context(), user, id); err != nil {
		writeEventError(w, err, "deleting event")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Event deleted"})
}

func (h *EventHandler) Register(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "event")
	if !ok {
		return
	}

	if err := h.eventService.Register(r.Context(), user.ID, id); err != nil {
		writeEventError(w, err, "registering for event")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Registered"})
}

func (h *EventHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "event")
	if !ok {
		return
	}

	if err := h.eventService.Unregister(r.Context(), user.ID, id); err != nil {
		writeEventError(w, err, "unregistering from event")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Registration cancelled"})
}
