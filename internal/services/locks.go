package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// lockProfilePairForUpdate row-locks both profiles in byte order of their ids
// so two transactions touching the same pair cannot deadlock.
func lockProfilePairForUpdate(ctx context.Context, q DBConn, a, b uuid.UUID) error {
	first, second := a, b
	if bytes.Compare(first[:], second[:]) > 0 {
		first, second = second, first
	}

	if err := lockProfileForUpdate(ctx, q, first); err != nil {
		return err
	}
	if first == second {
		return nil
	}
	return lockProfileForUpdate(ctx, q, second)
}

func lockProfileForUpdate(ctx context.Context, q DBConn, profileID uuid.UUID) error {
	var lockedID uuid.UUID
	err := q.QueryRow(ctx, `SELECT id FROM profiles WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, profileID).Scan(&lockedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProfileNotFound
	}
	if err != nil {
		return fmt.Errorf("lock profile: %w", err)
	}
	return nil
}
