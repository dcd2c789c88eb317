package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSessionNotFound    = errors.New("session not found")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

const (
	DefaultSessionTTL = 7 * 24 * time.Hour
	minPasswordLength = 8
	sessionKeyPrefix  = "session:"
)

type AuthServiceInterface interface {
	Register(ctx context.Context, email, password, fullName string, role models.Role) (*models.Profile, error)
	Login(ctx context.Context, email, password string) (*models.Profile, string, error)
	CreateSession(ctx context.Context, profileID uuid.UUID) (string, error)
	ValidateSession(ctx context.Context, token string) (*models.Profile, error)
	DeleteSession(ctx context.Context, token string) error
	CheckPassword(hash, password string) bool
}

type AuthService struct {
	db       DBConn
	redis    RedisClient
	profiles *ProfileService
	ttl      time.Duration
	cost     int
}

func NewAuthService(db DBConn, redis RedisClient, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &AuthService{
		db:       db,
		redis:    redis,
		profiles: NewProfileService(db),
		ttl:      ttl,
		cost:     bcrypt.DefaultCost,
	}
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func (s *AuthService) CheckPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Register creates a local account. Authority accounts cannot be self-created.
func (s *AuthService) Register(ctx context.Context, email, password, fullName string, role models.Role) (*models.Profile, error) {
	if role == "" {
		role = models.RoleStudent
	}
	if !role.SelfAssignable() {
		return nil, ErrInvalidRole
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return s.profiles.Create(ctx, models.CreateProfileParams{
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         role,
	})
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Profile, string, error) {
	profile, err := s.profiles.GetByEmail(ctx, email)
	if errors.Is(err, ErrProfileNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if !s.CheckPassword(profile.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.CreateSession(ctx, profile.ID)
	if err != nil {
		return nil, "", err
	}
	return profile, token, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func sessionKey(token string) string {
	return sessionKeyPrefix + hashToken(token)
}

func (s *AuthService) CreateSession(ctx context.Context, profileID uuid.UUID) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, sessionKey(token), profileID.String(), s.ttl); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}
	return token, nil
}

// ValidateSession resolves a token to its profile and slides the expiry.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*models.Profile, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrSessionNotFound
	}
	key := sessionKey(token)

	value, err := s.redis.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	profileID, err := uuid.Parse(value)
	if err != nil {
		_ = s.redis.Del(ctx, key)
		return nil, ErrSessionNotFound
	}

	profile, err := s.profiles.GetByID(ctx, profileID)
	if errors.Is(err, ErrProfileNotFound) {
		_ = s.redis.Del(ctx, key)
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	_ = s.redis.Expire(ctx, key, s.ttl)
	return profile, nil
}

func (s *AuthService) DeleteSession(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, sessionKey(token)); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
