package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/HammerMeetNail/campuslink/internal/services"
)

type AccountHandler struct {
	accountService services.AccountServiceInterface
	authService    services.AuthServiceInterface
	secure         bool
}

func NewAccountHandler(accountService services.AccountServiceInterface, authService services.AuthServiceInterface, secure bool) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		authService:    authService,
		secure:         secure,
	}
}

// AccountDeleteRequest must repeat the account email. Password is required
// for accounts that have one; SSO-only accounts skip it.
type AccountDeleteRequest struct {
	ConfirmEmail string `json:"confirm_email" validate:"required"`
	Password     string `json:"password"`
	Confirm      bool   `json:"confirm"`
}

func (h *AccountHandler) Export(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	data, err := h.accountService.BuildExportZip(r.Context(), user.ID)
	if errors.Is(err, services.ErrProfileNotFound) {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	if err != nil {
		internalError(w, "building account export", err)
		return
	}

	writeAttachment(w, "application/zip", "campuslink_account_export_"+time.Now().UTC().Format("2006-01-02")+".zip", data)
}

func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var req AccountDeleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Confirm {
		writeError(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if !strings.EqualFold(strings.TrimSpace(req.ConfirmEmail), user.Email) {
		writeError(w, http.StatusBadRequest, "Email confirmation does not match")
		return
	}
	if user.PasswordHash != "" && !h.authService.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	if err := h.accountService.Delete(r.Context(), user.ID); err != nil {
		internalError(w, "deleting account", err)
		return
	}

	if token := SessionToken(r); token != "" {
		_ = h.authService.DeleteSession(r.Context(), token)
	}

	clearSessionCookie(w, h.secure)
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Account deleted"})
}
