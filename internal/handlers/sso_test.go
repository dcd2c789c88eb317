package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

type mockOAuthProvider struct {
	authURL string
	state   string
	nonce   string
	claims  services.IdentityClaims
	err     error
}

func (m *mockOAuthProvider) Provider() services.Provider {
	return services.ProviderCampus
}

func (m *mockOAuthProvider) AuthCodeURL(state, nonce string) string {
	m.state = state
	m.nonce = nonce
	return m.authURL
}

func (m *mockOAuthProvider) ExchangeAndVerify(ctx context.Context, code, nonce string) (services.IdentityClaims, error) {
	if m.err != nil {
		return services.IdentityClaims{}, m.err
	}
	return m.claims, nil
}

type mockSSOService struct {
	SignInFunc func(ctx context.Context, claims services.IdentityClaims) (*models.Profile, error)
}

func (m *mockSSOService) SignIn(ctx context.Context, claims services.IdentityClaims) (*models.Profile, error) {
	return m.SignInFunc(ctx, claims)
}

func callbackRequest(query string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/sso/callback?"+query, nil)
	req.AddCookie(&http.Cookie{Name: ssoStateCookieName, Value: "state123"})
	req.AddCookie(&http.Cookie{Name: ssoNonceCookieName, Value: "nonce123"})
	return req
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSSOHandler_Disabled(t *testing.T) {
	handler := NewSSOHandler(&mockSSOService{}, &mockAuthService{}, nil, false)

	rr := httptest.NewRecorder()
	handler.Start(rr, httptest.NewRequest(http.MethodGet, "/api/auth/sso/start", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when sso is disabled, got %d", rr.Code)
	}
}

func TestSSOHandler_Start_SetsCookies(t *testing.T) {
	provider := &mockOAuthProvider{authURL: "https://idp.campus.test/auth"}
	handler := NewSSOHandler(&mockSSOService{}, &mockAuthService{}, provider, false)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/sso/start?next=%23messages", nil)
	rr := httptest.NewRecorder()
	handler.Start(rr, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rr.Code)
	}
	if location := rr.Header().Get("Location"); location != provider.authURL {
		t.Fatalf("expected redirect to %q, got %q", provider.authURL, location)
	}
	state := findCookie(rr, ssoStateCookieName)
	nonce := findCookie(rr, ssoNonceCookieName)
	if state == nil || nonce == nil {
		t.Fatal("expected state and nonce cookies")
	}
	if state.Value != provider.state || nonce.Value != provider.nonce {
		t.Fatal("cookies do not match the values sent to the provider")
	}
	if next := findCookie(rr, ssoNextCookieName); next == nil || next.Value != "#messages" {
		t.Fatalf("expected next cookie, got %+v", next)
	}
}

func TestSSOHandler_Callback_ErrorParam(t *testing.T) {
	handler := NewSSOHandler(&mockSSOService{}, &mockAuthService{}, &mockOAuthProvider{}, false)

	rr := httptest.NewRecorder()
	handler.Callback(rr, httptest.NewRequest(http.MethodGet, "/api/auth/sso/callback?error=access_denied", nil))

	if location := rr.Header().Get("Location"); !strings.Contains(location, "login?error=access_denied") {
		t.Fatalf("unexpected redirect %q", location)
	}
}

func TestSSOHandler_Callback_InvalidState(t *testing.T) {
	handler := NewSSOHandler(&mockSSOService{}, &mockAuthService{}, &mockOAuthProvider{}, false)

	rr := httptest.NewRecorder()
	handler.Callback(rr, callbackRequest("code=abc&state=wrong"))

	if location := rr.Header().Get("Location"); !strings.Contains(location, "error=sso_invalid") {
		t.Fatalf("unexpected redirect %q", location)
	}
}

func TestSSOHandler_Callback_ExchangeFailure(t *testing.T) {
	provider := &mockOAuthProvider{err: errors.New("bad code")}
	handler := NewSSOHandler(&mockSSOService{}, &mockAuthService{}, provider, false)

	rr := httptest.NewRecorder()
	handler.Callback(rr, callbackRequest("code=abc&state=state123"))

	if location := rr.Header().Get("Location"); !strings.Contains(location, "error=sso_exchange") {
		t.Fatalf("unexpected redirect %q", location)
	}
}

func TestSSOHandler_Callback_DomainRejected(t *testing.T) {
	sso := &mockSSOService{
		SignInFunc: func(ctx context.Context, claims services.IdentityClaims) (*models.Profile, error) {
			return nil, services.ErrEmailDomainNotAllowed
		},
	}
	handler := NewSSOHandler(sso, &mockAuthService{}, &mockOAuthProvider{}, false)

	rr := httptest.NewRecorder()
	handler.Callback(rr, callbackRequest("code=abc&state=state123"))

	if location := rr.Header().Get("Location"); !strings.Contains(location, "error=sso_domain") {
		t.Fatalf("unexpected redirect %q", location)
	}
}

func TestSSOHandler_Callback_OpensSession(t *testing.T) {
	profile := testUser(models.RoleStudent)
	provider := &mockOAuthProvider{claims: services.IdentityClaims{
		Provider:      services.ProviderCampus,
		Subject:       "sub-1",
		Email:         profile.Email,
		EmailVerified: true,
	}}
	sso := &mockSSOService{
		SignInFunc: func(ctx context.Context, claims services.IdentityClaims) (*models.Profile, error) {
			if claims.Subject != "sub-1" {
				t.Fatalf("unexpected claims %+v", claims)
			}
			return profile, nil
		},
	}
	auth := &mockAuthService{
		CreateSessionFunc: func(ctx context.Context, profileID uuid.UUID) (string, error) {
			if profileID != profile.ID {
				t.Fatalf("session for wrong profile %v", profileID)
			}
			return "session-token", nil
		},
	}
	handler := NewSSOHandler(sso, auth, provider, true)

	req := callbackRequest("code=abc&state=state123")
	req.AddCookie(&http.Cookie{Name: ssoNextCookieName, Value: "#events"})
	rr := httptest.NewRecorder()
	handler.Callback(rr, req)

	if rr.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rr.Code)
	}
	if location := rr.Header().Get("Location"); location != "/#events" {
		t.Fatalf("expected redirect to next, got %q", location)
	}
	session := findCookie(rr, sessionCookieName)
	if session == nil || session.Value != "session-token" || !session.Secure {
		t.Fatalf("unexpected session cookie %+v", session)
	}
}

func TestSanitizeNext(t *testing.T) {
	tests := map[string]string{
		"#dashboard":           "#dashboard",
		"https://evil.example": "",
		"#a\r\nSet-Cookie: x":  "",
		"  ":                   "",
	}
	for in, want := range tests {
		if got := sanitizeNext(in); got != want {
			t.Fatalf("sanitizeNext(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSanitizeErrorParam(t *testing.T) {
	if got := sanitizeErrorParam("<script>"); got != "sso_error" {
		t.Fatalf("expected fallback, got %q", got)
	}
	if got := sanitizeErrorParam(strings.Repeat("a", 80)); len(got) != 60 {
		t.Fatalf("expected truncation to 60, got %d", len(got))
	}
}
