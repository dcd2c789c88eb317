package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

var (
	ErrProfileNotFound    = errors.New("profile not found")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrInvalidRole        = errors.New("invalid role")
	ErrSearchTooShort     = errors.New("search query must be at least 2 characters")
	ErrForbidden          = errors.New("not allowed")
)

const profileColumns = `id, email, COALESCE(password_hash, ''), full_name, role, department, year_of_study, bio, avatar_url,
	is_public, connections_count, daily_streak, last_activity_date, created_at, updated_at`

type ProfileServiceInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	Update(ctx context.Context, id uuid.UUID, patch models.ProfileUpdate) (*models.Profile, error)
	GetPublicProfile(ctx context.Context, viewer *models.Profile, id uuid.UUID) (*models.PublicProfile, error)
	Search(ctx context.Context, viewerID uuid.UUID, query string) ([]models.ProfileSearchResult, error)
	SetRole(ctx context.Context, actor *models.Profile, targetID uuid.UUID, role models.Role) (*models.Profile, error)
	RenderCard(ctx context.Context, viewer *models.Profile, id uuid.UUID) ([]byte, error)
	ExportXLSX(ctx context.Context, actor *models.Profile, w io.Writer) error
}

type ProfileService struct {
	db    DBConn
	audit AuditLogger
}

func NewProfileService(db DBConn) *ProfileService {
	return &ProfileService{db: db}
}

func (s *ProfileService) SetAuditLogger(audit AuditLogger) {
	s.audit = audit
}

func scanProfile(row Row) (*models.Profile, error) {
	p := &models.Profile{}
	var role string
	err := row.Scan(&p.ID, &p.Email, &p.PasswordHash, &p.FullName, &role, &p.Department, &p.YearOfStudy, &p.Bio, &p.AvatarURL,
		&p.IsPublic, &p.ConnectionsCount, &p.DailyStreak, &p.LastActivityDate, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Role = models.Role(role)
	return p, nil
}

func (s *ProfileService) Create(ctx context.Context, params models.CreateProfileParams) (*models.Profile, error) {
	return createProfile(ctx, s.db, params)
}

func createProfile(ctx context.Context, q DBConn, params models.CreateProfileParams) (*models.Profile, error) {
	if !params.Role.Valid() {
		return nil, ErrInvalidRole
	}
	var hash *string
	if params.PasswordHash != "" {
		hash = &params.PasswordHash
	}

	p, err := scanProfile(q.QueryRow(ctx,
		`INSERT INTO profiles (email, password_hash, full_name, role)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+profileColumns,
		strings.ToLower(strings.TrimSpace(params.Email)), hash, strings.TrimSpace(params.FullName), string(params.Role),
	))
	if isUniqueViolation(err) {
		return nil, ErrEmailAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("creating profile: %w", err)
	}
	return p, nil
}

func (s *ProfileService) GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	p, err := scanProfile(s.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile by id: %w", err)
	}
	return p, nil
}

func (s *ProfileService) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	p, err := scanProfile(s.db.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE email = $1 AND deleted_at IS NULL`,
		strings.ToLower(strings.TrimSpace(email))))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile by email: %w", err)
	}
	return p, nil
}

func (s *ProfileService) Update(ctx context.Context, id uuid.UUID, patch models.ProfileUpdate) (*models.Profile, error) {
	if patch.FullName != nil {
		trimmed := strings.TrimSpace(*patch.FullName)
		patch.FullName = &trimmed
	}
	p, err := scanProfile(s.db.QueryRow(ctx,
		`UPDATE profiles SET
			full_name = COALESCE($2, full_name),
			department = COALESCE($3, department),
			year_of_study = COALESCE($4, year_of_study),
			bio = COALESCE($5, bio),
			avatar_url = COALESCE($6, avatar_url),
			is_public = COALESCE($7, is_public),
			updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING `+profileColumns,
		id, patch.FullName, patch.Department, patch.YearOfStudy, patch.Bio, patch.AvatarURL, patch.IsPublic,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return p, nil
}

// GetPublicProfile hides private details unless the viewer is the owner,
// a connection or an authority.
func (s *ProfileService) GetPublicProfile(ctx context.Context, viewer *models.Profile, id uuid.UUID) (*models.PublicProfile, error) {
	target, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	out := &models.PublicProfile{
		ID:         target.ID,
		FullName:   target.FullName,
		Role:       target.Role,
		Department: target.Department,
		Limited:    true,
	}

	full := target.IsPublic
	if !full && viewer != nil {
		switch {
		case viewer.ID == target.ID, viewer.Role == models.RoleAuthority:
			full = true
		default:
			connected, err := areConnected(ctx, s.db, viewer.ID, target.ID)
			if err != nil {
				return nil, err
			}
			full = connected
		}
	}
	if full {
		out.Limited = false
		out.YearOfStudy = target.YearOfStudy
		out.Bio = target.Bio
		out.AvatarURL = target.AvatarURL
		out.ConnectionsCount = target.ConnectionsCount
		out.DailyStreak = target.DailyStreak
	}
	return out, nil
}

func (s *ProfileService) Search(ctx context.Context, viewerID uuid.UUID, query string) ([]models.ProfileSearchResult, error) {
	query = strings.TrimSpace(query)
	if len([]rune(query)) < 2 {
		return nil, ErrSearchTooShort
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	rows, err := s.db.Query(ctx,
		`SELECT id, full_name, role, department
		 FROM profiles
		 WHERE id <> $1 AND deleted_at IS NULL AND is_public = true
		   AND (LOWER(full_name) LIKE $2 OR LOWER(department) LIKE $2)
		 ORDER BY full_name
		 LIMIT 20`,
		viewerID, pattern,
	)
	if err != nil {
		return nil, fmt.Errorf("searching profiles: %w", err)
	}
	defer rows.Close()

	results := []models.ProfileSearchResult{}
	for rows.Next() {
		var r models.ProfileSearchResult
		var role string
		if err := rows.Scan(&r.ID, &r.FullName, &role, &r.Department); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		r.Role = models.Role(role)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *ProfileService) SetRole(ctx context.Context, actor *models.Profile, targetID uuid.UUID, role models.Role) (*models.Profile, error) {
	if actor == nil || actor.Role != models.RoleAuthority {
		return nil, ErrForbidden
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	p, err := scanProfile(s.db.QueryRow(ctx,
		`UPDATE profiles SET role = $2, updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL
		 RETURNING `+profileColumns,
		targetID, string(role),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("setting role: %w", err)
	}

	recordAudit(ctx, s.audit, actor.ID, "profile.role_changed", "profile", &targetID, map[string]any{"role": role})
	return p, nil
}

// ListAll returns every active profile ordered by name, for exports.
func (s *ProfileService) ListAll(ctx context.Context) ([]models.Profile, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE deleted_at IS NULL ORDER BY role, full_name`)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	profiles := []models.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func summaryFromRow(id uuid.UUID, fullName, role, department string, avatar *string) models.ProfileSummary {
	return models.ProfileSummary{
		ID:         id,
		FullName:   fullName,
		Role:       models.Role(role),
		Department: department,
		AvatarURL:  avatar,
	}
}
