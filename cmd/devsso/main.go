// Command devsso is a tiny OpenID Connect issuer for local development. It
// signs RS256 ID tokens for whichever user was queued through
// POST /dev/next-user, so the campus SSO flow can run without a real
// identity provider.
package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/HammerMeetNail/campuslink/internal/logging"
)

const (
	defaultIssuer      = "http://localhost:5555"
	defaultClientID    = "campuslink-dev"
	defaultRedirectURI = "http://localhost:8080/api/auth/sso/callback"
	authCodeTTL        = 2 * time.Minute
	idTokenTTL         = 10 * time.Minute
)

type devUser struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Sub           string `json:"sub"`
}

type authCode struct {
	user        devUser
	nonce       string
	clientID    string
	redirectURI string
	issuedAt    time.Time
}

type server struct {
	issuer      string
	clientID    string
	redirectURI string
	key         *rsa.PrivateKey
	keyID       string
	now         func() time.Time

	mu       sync.Mutex
	nextUser *devUser
	codes    map[string]authCode
}

func main() {
	srv, err := newServer(
		getEnv("DEVSSO_ISSUER_URL", defaultIssuer),
		getEnv("DEVSSO_CLIENT_ID", defaultClientID),
		getEnv("DEVSSO_REDIRECT_URI", defaultRedirectURI),
	)
	if err != nil {
		logging.Error("Starting dev SSO failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	addr := getEnv("DEVSSO_ADDR", ":5555")
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.routes(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctx)
	}()

	logging.Info("Dev SSO listening", map[string]interface{}{"addr": addr, "issuer": srv.issuer})
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error("Dev SSO stopped", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func newServer(issuer, clientID, redirectURI string) (*server, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("generating signing key: %w", err)
	}
	keyID, err := randomToken(8)
	if err != nil {
		return nil, fmt.Errorf("generating key id: %w", err)
	}
	return &server{
		issuer:      strings.TrimRight(issuer, "/"),
		clientID:    clientID,
		redirectURI: redirectURI,
		key:         key,
		keyID:       keyID,
		now:         time.Now,
		codes:       map[string]authCode{},
	}, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", s.handleDiscovery)
	mux.HandleFunc("GET /authorize", s.handleAuthorize)
	mux.HandleFunc("POST /token", s.handleToken)
	mux.HandleFunc("GET /keys", s.handleKeys)
	mux.HandleFunc("POST /dev/next-user", s.handleNextUser)
	return mux
}

func (s *server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                s.issuer,
		"authorization_endpoint":                s.issuer + "/authorize",
		"token_endpoint":                        s.issuer + "/token",
		"jwks_uri":                              s.issuer + "/keys",
		"response_types_supported":              []string{"code"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
		"scopes_supported":                      []string{"openid", "email", "profile"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post"},
	})
}

func (s *server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("response_type") != "code" {
		http.Error(w, "unsupported response_type", http.StatusBadRequest)
		return
	}
	clientID := query.Get("client_id")
	redirectURI := query.Get("redirect_uri")
	state := query.Get("state")
	if clientID == "" || redirectURI == "" || state == "" {
		http.Error(w, "missing parameters", http.StatusBadRequest)
		return
	}
	if clientID != s.clientID {
		http.Error(w, "unknown client_id", http.StatusBadRequest)
		return
	}
	if redirectURI != s.redirectURI {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	user, ok := s.takeNextUser()
	if !ok {
		http.Error(w, "no user queued; POST /dev/next-user first", http.StatusBadRequest)
		return
	}

	code, err := randomToken(16)
	if err != nil {
		http.Error(w, "failed to generate code", http.StatusInternalServerError)
		return
	}
	s.mu.Lock()
	s.codes[code] = authCode{
		user:        user,
		nonce:       query.Get("nonce"),
		clientID:    clientID,
		redirectURI: redirectURI,
		issuedAt:    s.now(),
	}
	s.mu.Unlock()

	target, err := url.Parse(redirectURI)
	if err != nil {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}
	params := target.Query()
	params.Set("code", code)
	params.Set("state", state)
	target.RawQuery = params.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func (s *server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	if r.Form.Get("grant_type") != "authorization_code" {
		http.Error(w, "unsupported grant_type", http.StatusBadRequest)
		return
	}

	clientID := r.Form.Get("client_id")
	if clientID == "" {
		clientID, _, _ = r.BasicAuth()
	}

	code := r.Form.Get("code")
	s.mu.Lock()
	data, ok := s.codes[code]
	delete(s.codes, code)
	s.mu.Unlock()
	if !ok || s.now().Sub(data.issuedAt) > authCodeTTL {
		http.Error(w, "invalid code", http.StatusBadRequest)
		return
	}
	if clientID != data.clientID {
		http.Error(w, "invalid client_id", http.StatusUnauthorized)
		return
	}
	if redirectURI := r.Form.Get("redirect_uri"); redirectURI != "" && redirectURI != data.redirectURI {
		http.Error(w, "redirect_uri mismatch", http.StatusBadRequest)
		return
	}

	idToken, err := s.signIDToken(data)
	if err != nil {
		logging.Error("Signing ID token failed", map[string]interface{}{"error": err.Error()})
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	accessToken, err := randomToken(16)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   int(idTokenTTL.Seconds()),
		"id_token":     idToken,
	})
}

func (s *server) handleKeys(w http.ResponseWriter, r *http.Request) {
	pub := s.key.PublicKey
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"use": "sig",
			"alg": "RS256",
			"kid": s.keyID,
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (s *server) handleNextUser(w http.ResponseWriter, r *http.Request) {
	var user devUser
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&user); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.Email == "" {
		http.Error(w, "email required", http.StatusBadRequest)
		return
	}
	user.Sub = strings.TrimSpace(user.Sub)
	if user.Sub == "" {
		user.Sub = "sub-" + user.Email
	}

	s.mu.Lock()
	s.nextUser = &user
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) takeNextUser() (devUser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nextUser == nil {
		return devUser{}, false
	}
	user := *s.nextUser
	s.nextUser = nil
	return user, true
}

func (s *server) signIDToken(data authCode) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"iss":            s.issuer,
		"sub":            data.user.Sub,
		"aud":            data.clientID,
		"iat":            now.Unix(),
		"exp":            now.Add(idTokenTTL).Unix(),
		"email":          data.user.Email,
		"email_verified": data.user.EmailVerified,
	}
	if data.user.Name != "" {
		claims["name"] = data.user.Name
	}
	if data.nonce != "" {
		claims["nonce"] = data.nonce
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyID
	return token.SignedString(s.key)
}

func randomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
