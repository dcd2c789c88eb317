package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestServer(t *testing.T) *server {
	t.Helper()
	srv, err := newServer(defaultIssuer, defaultClientID, defaultRedirectURI)
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	return srv
}

func queueUser(t *testing.T, h http.Handler, body string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/dev/next-user", strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("queue user: expected 204, got %d: %s", rr.Code, rr.Body.String())
	}
}

func authorize(t *testing.T, h http.Handler, nonce string) *httptest.ResponseRecorder {
	t.Helper()
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {defaultClientID},
		"redirect_uri":  {defaultRedirectURI},
		"state":         {"state-1"},
		"nonce":         {nonce},
	}
	req := httptest.NewRequest(http.MethodGet, "/authorize?"+q.Encode(), nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func exchange(h http.Handler, code string) *httptest.ResponseRecorder {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"client_id":    {defaultClientID},
		"redirect_uri": {defaultRedirectURI},
	}
	req := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAuthorizationCodeFlow(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	queueUser(t, h, `{"email":" Ada@Campus.Test ","email_verified":true,"name":"Ada"}`)

	rr := authorize(t, h, "nonce-1")
	if rr.Code != http.StatusFound {
		t.Fatalf("authorize: expected 302, got %d: %s", rr.Code, rr.Body.String())
	}
	location, err := url.Parse(rr.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if location.Query().Get("state") != "state-1" {
		t.Fatalf("expected state to round-trip, got %q", location.Query().Get("state"))
	}
	code := location.Query().Get("code")
	if code == "" {
		t.Fatal("expected an authorization code")
	}

	rr = exchange(h, code)
	if rr.Code != http.StatusOK {
		t.Fatalf("token: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var tokenResp struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&tokenResp); err != nil {
		t.Fatalf("decode token response: %v", err)
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tokenResp.IDToken, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Header["kid"] != srv.keyID {
			t.Errorf("unexpected kid %v", token.Header["kid"])
		}
		return &srv.key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}), jwt.WithIssuer(defaultIssuer), jwt.WithAudience(defaultClientID))
	if err != nil || !parsed.Valid {
		t.Fatalf("expected a valid ID token, got %v", err)
	}
	if claims["email"] != "ada@campus.test" {
		t.Fatalf("expected normalized email, got %v", claims["email"])
	}
	if claims["nonce"] != "nonce-1" {
		t.Fatalf("expected nonce, got %v", claims["nonce"])
	}
	if claims["name"] != "Ada" {
		t.Fatalf("expected name claim, got %v", claims["name"])
	}
	if claims["sub"] != "sub-ada@campus.test" {
		t.Fatalf("expected derived subject, got %v", claims["sub"])
	}

	// Codes are single use.
	if rr := exchange(h, code); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected reused code to fail, got %d", rr.Code)
	}
}

func TestAuthorize_RequiresQueuedUser(t *testing.T) {
	h := newTestServer(t).routes()
	if rr := authorize(t, h, "n"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAuthorize_RejectsUnknownRedirect(t *testing.T) {
	h := newTestServer(t).routes()
	queueUser(t, h, `{"email":"a@campus.test"}`)

	q := url.Values{
		"response_type": {"code"},
		"client_id":     {defaultClientID},
		"redirect_uri":  {"https://evil.test/callback"},
		"state":         {"s"},
	}
	req := httptest.NewRequest(http.MethodGet, "/authorize?"+q.Encode(), nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestToken_ExpiredCode(t *testing.T) {
	srv := newTestServer(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return base }
	h := srv.routes()

	queueUser(t, h, `{"email":"a@campus.test"}`)
	rr := authorize(t, h, "")
	location, _ := url.Parse(rr.Header().Get("Location"))
	code := location.Query().Get("code")

	srv.now = func() time.Time { return base.Add(authCodeTTL + time.Second) }
	if rr := exchange(h, code); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected expired code to fail, got %d", rr.Code)
	}
}

func TestNextUser_RequiresEmail(t *testing.T) {
	h := newTestServer(t).routes()
	req := httptest.NewRequest(http.MethodPost, "/dev/next-user", strings.NewReader(`{"email":"  "}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestDiscoveryAndKeys(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	req := httptest.NewRequest(http.MethodGet, "/.well-known/openid-configuration", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var doc map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&doc); err != nil {
		t.Fatalf("decode discovery: %v", err)
	}
	if doc["jwks_uri"] != defaultIssuer+"/keys" {
		t.Fatalf("unexpected jwks_uri %v", doc["jwks_uri"])
	}

	req = httptest.NewRequest(http.MethodGet, "/keys", nil)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var jwks struct {
		Keys []map[string]string `json:"keys"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&jwks); err != nil {
		t.Fatalf("decode keys: %v", err)
	}
	if len(jwks.Keys) != 1 || jwks.Keys[0]["kid"] != srv.keyID || jwks.Keys[0]["e"] != "AQAB" {
		t.Fatalf("unexpected jwks %+v", jwks.Keys)
	}
}
