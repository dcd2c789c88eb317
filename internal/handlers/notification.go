package handlers

import (
	"errors"
	"net/http"

	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

type NotificationHandler struct {
	notificationService services.NotificationServiceInterface
}

func NewNotificationHandler(notificationService services.NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

type NotificationListResponse struct {
	Notifications []models.Notification `json:"notifications"`
}

type NotificationUnreadCountResponse struct {
	Count int `json:"count"`
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	limit, ok := parseLimit(r, 50, 100)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	before, ok := parseBefore(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid before timestamp")
		return
	}

	notifications, err := h.notificationService.List(r.Context(), user.ID, services.NotificationListParams{
		Limit:      limit,
		Before:     before,
		UnreadOnly: r.URL.Query().Get("unread") == "1",
	})
	if err != nil {
		internalError(w, "listing notifications", err)
		return
	}

	writeJSON(w, http.StatusOK, NotificationListResponse{Notifications: notifications})
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	notificationID, ok := parseIDParam(w, r, "id", "notification")
	if !ok {
		return
	}

	err := h.notificationService.MarkRead(r.Context(), user.ID, notificationID)
	if errors.Is(err, services.ErrNotificationNotFound) {
		writeError(w, http.StatusNotFound, "Notification not found")
		return
	}
	if err != nil {
		internalError(w, "marking notification read", err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Notification marked as read"})
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	if err := h.notificationService.MarkAllRead(r.Context(), user.ID); err != nil {
		internalError(w, "marking all notifications read", err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Notifications marked as read"})
}

func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	notificationID, ok := parseIDParam(w, r, "id", "notification")
	if !ok {
		return
	}

	err := h.notificationService.Delete(r.Context(), user.ID, notificationID)
	if errors.Is(err, services.ErrNotificationNotFound) {
		writeError(w, http.StatusNotFound, "Notification not found")
		return
	}
	if err != nil {
		internalError(w, "deleting notification", err)
		return
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Notification deleted"})
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	count, err := h.notificationService.UnreadCount(r.Context(), user.ID)
	if err != nil {
		internalError(w, "counting notifications", err)
		return
	}

	writeJSON(w, http.StatusOK, NotificationUnreadCountResponse{Count: count})
}
