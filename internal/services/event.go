package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

var (
	ErrEventNotFound     = errors.New("event not found")
	ErrEventFull         = errors.New("event is full")
	ErrAlreadyRegistered = errors.New("already registered for this event")
	ErrNotRegistered     = errors.New("not registered for this event")
	ErrInvalidEvent      = errors.New("invalid event")
)

type EventServiceInterface interface {
	Create(ctx context.Context, creatorID uuid.UUID, in models.CampusEventInput) (*models.CampusEvent, error)
	ListUpcoming(ctx context.Context, viewerID uuid.UUID, limit int) ([]models.CampusEvent, error)
	Get(ctx context.Context, viewerID, eventID uuid.UUID) (*models.CampusEvent, error)
	Delete(ctx context.Context, actor *models.Profile, eventID uuid.UUID) error
	Register(ctx context.Context, userID, eventID uuid.UUID) error
	Unregister(ctx context.Context, userID, eventID uuid.UUID) error
}

type EventService struct {
	db  DB
	now func() time.Time
}

func NewEventService(db DB) *EventService {
	return &EventService{db: db, now: time.Now}
}

const eventSelect = `SELECT e.id, e.creator_id, e.title, e.description, e.location, e.starts_at, e.ends_at, e.capacity, e.created_at,
	(SELECT COUNT(*) FROM event_registrations r WHERE r.event_id = e.id),
	EXISTS(SELECT 1 FROM event_registrations r WHERE r.event_id = e.id AND r.user_id = $1)
	FROM campus_events e`

func scanEvent(row Row) (*models.CampusEvent, error) {
	e := &models.CampusEvent{}
	err := row.Scan(&e.ID, &e.CreatorID, &e.Title, &e.Description, &e.Location, &e.StartsAt, &e.EndsAt, &e.Capacity, &e.CreatedAt,
		&e.RegistrationCount, &e.Registered)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *EventService) Create(ctx context.Context, creatorID uuid.UUID, in models.CampusEventInput) (*models.CampusEvent, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	switch {
	case in.Title == "":
		return nil, fmt.Errorf("%w: title is required", ErrInvalidEvent)
	case in.StartsAt.IsZero():
		return nil, fmt.Errorf("%w: start time is required", ErrInvalidEvent)
	case in.EndsAt != nil && !in.EndsAt.After(in.StartsAt):
		return nil, fmt.Errorf("%w: end must be after start", ErrInvalidEvent)
	case in.Capacity != nil && *in.Capacity < 1:
		return nil, fmt.Errorf("%w: capacity must be positive", ErrInvalidEvent)
	}

	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`INSERT INTO campus_events (creator_id, title, description, location, starts_at, ends_at, capacity)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		creatorID, in.Title, in.Description, in.Location, in.StartsAt, in.EndsAt, in.Capacity,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating event: %w", err)
	}
	return s.Get(ctx, creatorID, id)
}

func (s *EventService) Get(ctx context.Context, viewerID, eventID uuid.UUID) (*models.CampusEvent, error) {
	e, err := scanEvent(s.db.QueryRow(ctx, eventSelect+` WHERE e.id = $2`, viewerID, eventID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting event: %w", err)
	}
	return e, nil
}

// ListUpcoming returns events that have not ended yet, soonest first.
func (s *EventService) ListUpcoming(ctx context.Context, viewerID uuid.UUID, limit int) ([]models.CampusEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		eventSelect+`
		 WHERE COALESCE(e.ends_at, e.starts_at) >= $2
		 ORDER BY e.starts_at
		 LIMIT $3`,
		viewerID, s.now(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	events := []models.CampusEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *EventService) Delete(ctx context.Context, actor *models.Profile, eventID uuid.UUID) error {
	var creatorID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT creator_id FROM campus_events WHERE id = $1`, eventID).Scan(&creatorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrEventNotFound
	}
	if err != nil {
		return fmt.Errorf("loading event: %w", err)
	}
	if actor == nil || (actor.ID != creatorID && actor.Role != models.RoleAuthority) {
		return ErrForbidden
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM campus_events WHERE id = $1`, eventID); err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	return nil
}

// Register locks the event row so concurrent registrations cannot overfill it.
// An existing registration is reported before the capacity check.
func (s *EventService) Register(ctx context.Context, userID, eventID uuid.UUID) error {
	return withTx(ctx, s.db, func(tx Tx) error {
		var capacity *int
		err := tx.QueryRow(ctx, `SELECT capacity FROM campus_events WHERE id = $1 FOR UPDATE`, eventID).Scan(&capacity)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrEventNotFound
		}
		if err != nil {
			return fmt.Errorf("loading event: %w", err)
		}

		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM event_registrations WHERE event_id = $1 AND user_id = $2)`,
			eventID, userID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("checking registration: %w", err)
		}
		if exists {
			return ErrAlreadyRegistered
		}

		if capacity != nil {
			var registered int
			if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM event_registrations WHERE event_id = $1`, eventID).Scan(&registered); err != nil {
				return fmt.Errorf("counting registrations: %w", err)
			}
			if registered >= *capacity {
				return ErrEventFull
			}
		}

		_, err = tx.Exec(ctx, `INSERT INTO event_registrations (event_id, user_id) VALUES ($1, $2)`, eventID, userID)
		if isUniqueViolation(err) {
			return ErrAlreadyRegistered
		}
		if err != nil {
			return fmt.Errorf("registering: %w", err)
		}
		return nil
	})
}

func (s *EventService) Unregister(ctx context.Context, userID, eventID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM event_registrations WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return fmt.Errorf("unregistering: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotRegistered
	}
	return nil
}
