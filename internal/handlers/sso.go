package handlers

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/HammerMeetNail/campuslink/internal/logging"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

const (
	ssoStateCookieName = "sso_state"
	ssoNonceCookieName = "sso_nonce"
	ssoNextCookieName  = "sso_next"
	ssoCookieMaxAge    = 10 * 60 // 10 minutes
)

// SSOHandler runs the campus single sign-on authorization code flow. A nil
// provider means SSO is disabled and both endpoints answer 404.
type SSOHandler struct {
	sso         services.SSOServiceInterface
	authService services.AuthServiceInterface
	provider    services.OAuthProvider
	secure      bool
}

func NewSSOHandler(sso services.SSOServiceInterface, authService services.AuthServiceInterface, provider services.OAuthProvider, secure bool) *SSOHandler {
	return &SSOHandler{
		sso:         sso,
		authService: authService,
		provider:    provider,
		secure:      secure,
	}
}

func (h *SSOHandler) Start(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		http.NotFound(w, r)
		return
	}

	state, err := generateSecureToken(32)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start sign-in")
		return
	}
	nonce, err := generateSecureToken(32)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start sign-in")
		return
	}

	h.setFlowCookie(w, ssoStateCookieName, state)
	h.setFlowCookie(w, ssoNonceCookieName, nonce)
	if next := sanitizeNext(r.URL.Query().Get("next")); next != "" {
		h.setFlowCookie(w, ssoNextCookieName, next)
	} else {
		h.clearFlowCookie(w, ssoNextCookieName)
	}

	http.Redirect(w, r, h.provider.AuthCodeURL(state, nonce), http.StatusFound)
}

func (h *SSOHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		http.NotFound(w, r)
		return
	}

	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		h.redirectToLoginError(w, r, providerErr)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		h.redirectToLoginError(w, r, "sso_missing")
		return
	}

	stateCookie, err := r.Cookie(ssoStateCookieName)
	if err != nil || !secureCompare(stateCookie.Value, state) {
		h.redirectToLoginError(w, r, "sso_invalid")
		return
	}
	nonceCookie, err := r.Cookie(ssoNonceCookieName)
	if err != nil || nonceCookie.Value == "" {
		h.redirectToLoginError(w, r, "sso_invalid")
		return
	}

	claims, err := h.provider.ExchangeAndVerify(r.Context(), code, nonceCookie.Value)
	if err != nil {
		logging.Warn("SSO exchange failed", map[string]interface{}{"error": err.Error()})
		h.redirectToLoginError(w, r, "sso_exchange")
		return
	}

	profile, err := h.sso.SignIn(r.Context(), claims)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProviderEmailUnverified):
			h.redirectToLoginError(w, r, "sso_unverified")
		case errors.Is(err, services.ErrEmailDomainNotAllowed):
			h.redirectToLoginError(w, r, "sso_domain")
		default:
			logging.Error("SSO sign-in failed", map[string]interface{}{"error": err.Error()})
			h.redirectToLoginError(w, r, "sso_link")
		}
		return
	}

	h.clearFlowCookie(w, ssoStateCookieName)
	h.clearFlowCookie(w, ssoNonceCookieName)

	token, err := h.authService.CreateSession(r.Context(), profile.ID)
	if err != nil {
		internalError(w, "creating session", err)
		return
	}
	setSessionCookie(w, token, h.secure)

	next := h.readNext(r)
	h.clearFlowCookie(w, ssoNextCookieName)
	target := "/#dashboard"
	if next != "" {
		target = "/" + next
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (h *SSOHandler) setFlowCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   ssoCookieMaxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *SSOHandler) clearFlowCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
	})
}

func (h *SSOHandler) redirectToLoginError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/#login?error="+sanitizeErrorParam(code), http.StatusFound)
}

func (h *SSOHandler) readNext(r *http.Request) string {
	cookie, err := r.Cookie(ssoNextCookieName)
	if err != nil {
		return ""
	}
	return sanitizeNext(cookie.Value)
}

func generateSecureToken(size int) (string, error) {
	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func secureCompare(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// sanitizeNext only allows client-side hash routes.
func sanitizeNext(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || !strings.HasPrefix(value, "#") {
		return ""
	}
	if strings.ContainsAny(value, "\r\n") {
		return ""
	}
	return value
}

func sanitizeErrorParam(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "sso_error"
	}
	if len(value) > 60 {
		value = value[:60]
	}
	for _, r := range value {
		if !isAllowedErrorRune(r) {
			return "sso_error"
		}
	}
	return value
}

func isAllowedErrorRune(r rune) bool {
	return r == '-' || r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
