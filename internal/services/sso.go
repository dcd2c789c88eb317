package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

var (
	ErrInvalidProviderClaims   = errors.New("invalid provider claims")
	ErrProviderEmailUnverified = errors.New("provider email not verified")
	ErrEmailDomainNotAllowed   = errors.New("email domain is not allowed")
	ErrProviderIdentityExists  = errors.New("provider identity already linked")
)

type SSOServiceInterface interface {
	SignIn(ctx context.Context, claims IdentityClaims) (*models.Profile, error)
}

// SSOService maps verified identity claims to profiles. An identity already
// linked wins; otherwise the profile with the same email is linked, and as a
// last resort a new student profile is created.
type SSOService struct {
	db          DB
	emailDomain string
}

func NewSSOService(db DB, emailDomain string) *SSOService {
	return &SSOService{db: db, emailDomain: strings.ToLower(strings.TrimSpace(emailDomain))}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func (s *SSOService) domainAllowed(email string) bool {
	if s.emailDomain == "" {
		return true
	}
	at := strings.LastIndex(email, "@")
	return at >= 0 && email[at+1:] == s.emailDomain
}

func (s *SSOService) SignIn(ctx context.Context, claims IdentityClaims) (*models.Profile, error) {
	provider := strings.TrimSpace(string(claims.Provider))
	subject := strings.TrimSpace(claims.Subject)
	if provider == "" || subject == "" {
		return nil, ErrInvalidProviderClaims
	}

	linked, err := s.profileByIdentity(ctx, s.db, provider, subject)
	if err == nil {
		return linked, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}

	email := normalizeEmail(claims.Email)
	if email == "" || !claims.EmailVerified {
		return nil, ErrProviderEmailUnverified
	}
	if !s.domainAllowed(email) {
		return nil, ErrEmailDomainNotAllowed
	}

	var profile *models.Profile
	err = withTx(ctx, s.db, func(tx Tx) error {
		existing, err := scanProfile(tx.QueryRow(ctx,
			`SELECT `+profileColumns+` FROM profiles WHERE email = $1 AND deleted_at IS NULL`, email))
		switch {
		case err == nil:
			profile = existing
		case errors.Is(err, pgx.ErrNoRows):
			name := strings.TrimSpace(claims.Name)
			if name == "" {
				name, _, _ = strings.Cut(email, "@")
			}
			profile, err = createProfile(ctx, tx, models.CreateProfileParams{
				Email:    email,
				FullName: name,
				Role:     models.RoleStudent,
			})
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("getting profile by email: %w", err)
		}

		return linkIdentity(ctx, tx, profile.ID, provider, subject, email)
	})
	if errors.Is(err, ErrProviderIdentityExists) {
		// A concurrent callback linked the same identity first.
		return s.profileByIdentity(ctx, s.db, provider, subject)
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func linkIdentity(ctx context.Context, q DBConn, profileID uuid.UUID, provider, subject, email string) error {
	_, err := q.Exec(ctx,
		`INSERT INTO profile_identities (provider, subject, profile_id, email) VALUES ($1, $2, $3, $4)`,
		provider, subject, profileID, email,
	)
	if isUniqueViolation(err) {
		return ErrProviderIdentityExists
	}
	if err != nil {
		return fmt.Errorf("linking identity: %w", err)
	}
	return nil
}

func (s *SSOService) profileByIdentity(ctx context.Context, q DBConn, provider, subject string) (*models.Profile, error) {
	p, err := scanProfile(q.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles
		 WHERE id = (SELECT profile_id FROM profile_identities WHERE provider = $1 AND subject = $2)
		   AND deleted_at IS NULL`,
		provider, subject,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile by identity: %w", err)
	}
	return p, nil
}
