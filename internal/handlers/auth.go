package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

type AuthHandler struct {
	authService services.AuthServiceInterface
	secure      bool
}

func NewAuthHandler(authService services.AuthServiceInterface, secure bool) *AuthHandler {
	return &AuthHandler{authService: authService, secure: secure}
}

type RegisterRequest struct {
	Email    string      `json:"email" validate:"required,email,max=254"`
	Password string      `json:"password" validate:"required,max=128"`
	FullName string      `json:"full_name" validate:"required,max=100"`
	Role     models.Role `json:"role" validate:"omitempty,oneof=student mentor teacher"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	User  *models.Profile `json:"user"`
	Token string          `json:"token,omitempty"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := h.authService.Register(r.Context(), req.Email, req.Password, strings.TrimSpace(req.FullName), req.Role)
	switch {
	case errors.Is(err, services.ErrEmailAlreadyExists):
		writeError(w, http.StatusConflict, "Email already registered")
		return
	case errors.Is(err, services.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	case errors.Is(err, services.ErrInvalidRole):
		writeError(w, http.StatusBadRequest, "Role must be student, mentor or teacher")
		return
	case err != nil:
		internalError(w, "registering profile", err)
		return
	}

	token, err := h.authService.CreateSession(r.Context(), profile.ID)
	if err != nil {
		internalError(w, "creating session", err)
		return
	}

	setSessionCookie(w, token, h.secure)
	writeJSON(w, http.StatusCreated, AuthResponse{User: profile, Token: token})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, token, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		internalError(w, "logging in", err)
		return
	}

	setSessionCookie(w, token, h.secure)
	writeJSON(w, http.StatusOK, AuthResponse{User: profile, Token: token})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := SessionToken(r); token != "" {
		if err := h.authService.DeleteSession(r.Context(), token); err != nil {
			internalError(w, "deleting session", err)
			return
		}
	}

	clearSessionCookie(w, h.secure)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{User: user})
}

// SessionToken reads the session cookie, falling back to a bearer token.
func SessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
