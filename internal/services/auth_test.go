package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

func newTestAuthService(db DBConn, r RedisClient) *AuthService {
	svc := NewAuthService(db, r, time.Hour)
	svc.cost = bcrypt.MinCost
	return svc
}

func TestAuthService_Register_RejectsAuthorityAndWeakPasswords(t *testing.T) {
	svc := newTestAuthService(&fakeDB{}, newFakeRedis())

	if _, err := svc.Register(context.Background(), "a@campus.edu", "longenough", "A", models.RoleAuthority); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := svc.Register(context.Background(), "a@campus.edu", "short", "A", models.RoleStudent); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestAuthService_Register_HashesPasswordAndDefaultsRole(t *testing.T) {
	var gotArgs []any
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if !strings.Contains(sql, "INSERT INTO profiles") {
				t.Fatalf("unexpected sql: %q", sql)
			}
			gotArgs = args
			p := testProfile(models.RoleStudent)
			p.Email = args[0].(string)
			return profileRow(p)
		},
	}
	svc := newTestAuthService(db, newFakeRedis())

	profile, err := svc.Register(context.Background(), " New@Campus.EDU ", "correct horse", "New Person", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.Email != "new@campus.edu" {
		t.Fatalf("expected normalized email, got %q", profile.Email)
	}
	hash := *(gotArgs[1].(*string))
	if !svc.CheckPassword(hash, "correct horse") {
		t.Fatal("expected stored hash to match password")
	}
	if gotArgs[3] != string(models.RoleStudent) {
		t.Fatalf("expected default student role, got %v", gotArgs[3])
	}
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return fakeRow{scanFunc: func(dest ...any) error { return &pgconn.PgError{Code: "23505"} }}
		},
	}
	svc := newTestAuthService(db, newFakeRedis())

	if _, err := svc.Register(context.Background(), "dup@campus.edu", "password123", "Dup", models.RoleMentor); !errors.Is(err, ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestAuthService_LoginCreatesSessionThatValidates(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	profile := testProfile(models.RoleStudent)
	profile.PasswordHash = string(hash)

	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return profileRow(profile)
		},
	}
	r := newFakeRedis()
	svc := newTestAuthService(db, r)

	got, token, err := svc.Login(context.Background(), profile.Email, "password123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != profile.ID || token == "" {
		t.Fatalf("unexpected login result: %v %q", got.ID, token)
	}

	key := sessionKey(token)
	if strings.Contains(key, token) {
		t.Fatal("session key must not contain the raw token")
	}
	if r.data[key] != profile.ID.String() {
		t.Fatalf("expected session to store profile id, got %q", r.data[key])
	}

	validated, err := svc.ValidateSession(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected validate error: %v", err)
	}
	if validated.ID != profile.ID {
		t.Fatalf("expected %v, got %v", profile.ID, validated.ID)
	}

	if err := svc.DeleteSession(context.Background(), token); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if _, err := svc.ValidateSession(context.Background(), token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after logout, got %v", err)
	}
}

func TestAuthService_Login_WrongPasswordAndUnknownEmail(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	profile := testProfile(models.RoleStudent)
	profile.PasswordHash = string(hash)

	known := true
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			if !known {
				return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
			}
			return profileRow(profile)
		},
	}
	svc := newTestAuthService(db, newFakeRedis())

	if _, _, err := svc.Login(context.Background(), profile.Email, "nope-nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	known = false
	if _, _, err := svc.Login(context.Background(), "ghost@campus.edu", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestAuthService_ValidateSession_DeletedProfileDropsSession(t *testing.T) {
	db := &fakeDB{
		QueryRowFunc: func(ctx context.Context, sql string, args ...any) Row {
			return fakeRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}
	r := newFakeRedis()
	svc := newTestAuthService(db, r)

	token := "tok"
	r.data[sessionKey(token)] = testProfile(models.RoleStudent).ID.String()

	if _, err := svc.ValidateSession(context.Background(), token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if _, ok := r.data[sessionKey(token)]; ok {
		t.Fatal("expected orphaned session to be deleted")
	}
}

func TestAuthService_ValidateSession_RedisError(t *testing.T) {
	r := newFakeRedis()
	r.GetErr = errors.New("connection refused")
	svc := newTestAuthService(&fakeDB{}, r)

	_, err := svc.ValidateSession(context.Background(), "tok")
	if err == nil || errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected infrastructure error, got %v", err)
	}
}
