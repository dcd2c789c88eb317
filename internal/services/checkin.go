package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/campuslink/internal/models"
)

type CheckInResult struct {
	Streak           int       `json:"streak"`
	LastActivityDate time.Time `json:"last_activity_date"`
	AlreadyCheckedIn bool      `json:"already_checked_in"`
}

type CheckInServiceInterface interface {
	CheckIn(ctx context.Context, profileID uuid.UUID) (*CheckInResult, error)
	Today() time.Time
}

type CheckInService struct {
	db  DB
	loc *time.Location
	now func() time.Time
}

func NewCheckInService(db DB, loc *time.Location) *CheckInService {
	if loc == nil {
		loc = time.UTC
	}
	return &CheckInService{db: db, loc: loc, now: time.Now}
}

// Today is the current calendar date in the campus timezone, as UTC midnight.
func (s *CheckInService) Today() time.Time {
	return calendarDate(s.now().In(s.loc))
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// nextStreak applies one check-in on today to the stored state.
func nextStreak(last *time.Time, streak int, today time.Time) (int, bool) {
	if last == nil {
		return 1, true
	}
	lastDay := calendarDate(*last)
	switch {
	case sameDay(lastDay, today):
		return streak, false
	case sameDay(lastDay, today.AddDate(0, 0, -1)):
		return streak + 1, true
	default:
		return 1, true
	}
}

// CurrentStreak is the streak still alive on today: the stored value when the
// last activity was today or yesterday, otherwise zero.
func CurrentStreak(p *models.Profile, today time.Time) int {
	if p == nil || p.LastActivityDate == nil {
		return 0
	}
	last := calendarDate(*p.LastActivityDate)
	if sameDay(last, today) || sameDay(last, today.AddDate(0, 0, -1)) {
		return p.DailyStreak
	}
	return 0
}

// CheckIn records today's activity. The profile row is locked so concurrent
// check-ins from several tabs serialize and the second one is a no-op.
func (s *CheckInService) CheckIn(ctx context.Context, profileID uuid.UUID) (*CheckInResult, error) {
	today := s.Today()
	result := &CheckInResult{}

	err := withTx(ctx, s.db, func(tx Tx) error {
		var last *time.Time
		var streak int
		err := tx.QueryRow(ctx,
			`SELECT daily_streak, last_activity_date FROM profiles
			 WHERE id = $1 AND deleted_at IS NULL
			 FOR UPDATE`,
			profileID,
		).Scan(&streak, &last)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProfileNotFound
		}
		if err != nil {
			return fmt.Errorf("loading streak: %w", err)
		}

		next, changed := nextStreak(last, streak, today)
		result.Streak = next
		result.LastActivityDate = today
		result.AlreadyCheckedIn = !changed
		if !changed {
			return nil
		}

		_, err = tx.Exec(ctx,
			`UPDATE profiles SET daily_streak = $2, last_activity_date = $3, updated_at = NOW() WHERE id = $1`,
			profileID, next, today,
		)
		if err != nil {
			return fmt.Errorf("updating streak: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
