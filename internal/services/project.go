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
	ErrProjectNotFound = errors.New("project not found")
	ErrInvalidProject  = errors.New("invalid project")
)

const maxProjectSkills = 20

const projectSelect = `SELECT pr.id, pr.title, pr.description, pr.skills_needed, pr.created_at,
	p.id, p.full_name, p.role, p.department, p.avatar_url
	FROM projects pr
	JOIN profiles p ON p.id = pr.owner_id`

type ProjectServiceInterface interface {
	Create(ctx context.Context, ownerID uuid.UUID, in models.ProjectInput) (*models.Project, error)
	List(ctx context.Context, skill string) ([]models.Project, error)
	Delete(ctx context.Context, actor *models.Profile, id uuid.UUID) error
}

type ProjectService struct {
	db DBConn
}

func NewProjectService(db DBConn) *ProjectService {
	return &ProjectService{db: db}
}

func scanProject(row Row) (*models.Project, error) {
	pr := &models.Project{}
	var ownerID uuid.UUID
	var name, role, department string
	var avatar *string
	err := row.Scan(&pr.ID, &pr.Title, &pr.Description, &pr.SkillsNeeded, &pr.CreatedAt,
		&ownerID, &name, &role, &department, &avatar)
	if err != nil {
		return nil, err
	}
	if pr.SkillsNeeded == nil {
		pr.SkillsNeeded = []string{}
	}
	pr.Owner = summaryFromRow(ownerID, name, role, department, avatar)
	return pr, nil
}

// normalizeSkills trims and drops blank or case-insensitive duplicate skills.
func normalizeSkills(skills []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(skills))
	for _, skill := range skills {
		skill = strings.TrimSpace(skill)
		key := strings.ToLower(skill)
		if skill == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, skill)
	}
	return out
}

func (s *ProjectService) Create(ctx context.Context, ownerID uuid.UUID, in models.ProjectInput) (*models.Project, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidProject)
	}
	skills := normalizeSkills(in.SkillsNeeded)
	if len(skills) > maxProjectSkills {
		return nil, fmt.Errorf("%w: at most %d skills", ErrInvalidProject, maxProjectSkills)
	}

	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`INSERT INTO projects (owner_id, title, description, skills_needed) VALUES ($1, $2, $3, $4) RETURNING id`,
		ownerID, in.Title, strings.TrimSpace(in.Description), skills,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}

	pr, err := scanProject(s.db.QueryRow(ctx, projectSelect+` WHERE pr.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}
	return pr, nil
}

// List filters by a needed skill, case-insensitively, when skill is set.
func (s *ProjectService) List(ctx context.Context, skill string) ([]models.Project, error) {
	rows, err := s.db.Query(ctx,
		projectSelect+`
		 WHERE p.deleted_at IS NULL
		   AND ($1 = '' OR EXISTS(SELECT 1 FROM unnest(pr.skills_needed) sk WHERE lower(sk) = lower($1)))
		 ORDER BY pr.created_at DESC`,
		strings.TrimSpace(skill),
	)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	out := []models.Project{}
	for rows.Next() {
		pr, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		out = append(out, *pr)
	}
	return out, rows.Err()
}

func (s *ProjectService) Delete(ctx context.Context, actor *models.Profile, id uuid.UUID) error {
	var ownerID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT owner_id FROM projects WHERE id = $1`, id).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProjectNotFound
	}
	if err != nil {
		return fmt.Errorf("loading project: %w", err)
	}
	if actor == nil || (actor.ID != ownerID && actor.Role != models.RoleAuthority) {
		return ErrForbidden
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}
	return nil
}
