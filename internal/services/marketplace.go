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
	ErrListingNotFound = errors.New("listing not found")
	ErrInvalidListing  = errors.New("invalid listing")
)

var listingCategories = map[string]bool{
	"books": true, "electronics": true, "furniture": true, "clothing": true, "services": true, "other": true,
}

const listingSelect = `SELECT l.id, l.seller_id, p.full_name, l.title, l.description, l.category, l.price_cents, l.status, l.created_at
	FROM marketplace_listings l
	JOIN profiles p ON p.id = l.seller_id`

type MarketplaceServiceInterface interface {
	Create(ctx context.Context, sellerID uuid.UUID, in models.ListingInput) (*models.MarketplaceListing, error)
	List(ctx context.Context, category string, includeSold bool) ([]models.MarketplaceListing, error)
	MarkSold(ctx context.Context, sellerID, id uuid.UUID) (*models.MarketplaceListing, error)
	Delete(ctx context.Context, actor *models.Profile, id uuid.UUID) error
}

type MarketplaceService struct {
	db DBConn
}

func NewMarketplaceService(db DBConn) *MarketplaceService {
	return &MarketplaceService{db: db}
}

func scanListing(row Row) (*models.MarketplaceListing, error) {
	l := &models.MarketplaceListing{}
	var status string
	err := row.Scan(&l.ID, &l.SellerID, &l.SellerName, &l.Title, &l.Description, &l.Category, &l.PriceCents, &status, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	l.Status = models.ListingStatus(status)
	return l, nil
}

func (s *MarketplaceService) get(ctx context.Context, id uuid.UUID) (*models.MarketplaceListing, error) {
	l, err := scanListing(s.db.QueryRow(ctx, listingSelect+` WHERE l.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting listing: %w", err)
	}
	return l, nil
}

func (s *MarketplaceService) Create(ctx context.Context, sellerID uuid.UUID, in models.ListingInput) (*models.MarketplaceListing, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	if in.Category == "" {
		in.Category = "other"
	}
	switch {
	case in.Title == "":
		return nil, fmt.Errorf("%w: title is required", ErrInvalidListing)
	case in.PriceCents < 0:
		return nil, fmt.Errorf("%w: price cannot be negative", ErrInvalidListing)
	case !listingCategories[in.Category]:
		return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidListing, in.Category)
	}

	var id uuid.UUID
	err := s.db.QueryRow(ctx,
		`INSERT INTO marketplace_listings (seller_id, title, description, category, price_cents)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		sellerID, in.Title, strings.TrimSpace(in.Description), in.Category, in.PriceCents,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating listing: %w", err)
	}
	return s.get(ctx, id)
}

// List shows available listings unless includeSold is set.
func (s *MarketplaceService) List(ctx context.Context, category string, includeSold bool) ([]models.MarketplaceListing, error) {
	rows, err := s.db.Query(ctx,
		listingSelect+`
		 WHERE ($1 = '' OR l.category = $1) AND ($2 OR l.status = 'available') AND p.deleted_at IS NULL
		 ORDER BY l.created_at DESC`,
		strings.ToLower(strings.TrimSpace(category)), includeSold,
	)
	if err != nil {
		return nil, fmt.Errorf("listing marketplace: %w", err)
	}
	defer rows.Close()

	out := []models.MarketplaceListing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning listing: %w", err)
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s *MarketplaceService) MarkSold(ctx context.Context, sellerID, id uuid.UUID) (*models.MarketplaceListing, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE marketplace_listings SET status = 'sold' WHERE id = $1 AND seller_id = $2`,
		id, sellerID,
	)
	if err != nil {
		return nil, fmt.Errorf("marking listing sold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrListingNotFound
	}
	return s.get(ctx, id)
}

func (s *MarketplaceService) Delete(ctx context.Context, actor *models.Profile, id uuid.UUID) error {
	l, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if actor == nil || (actor.ID != l.SellerID && actor.Role != models.RoleAuthority) {
		return ErrForbidden
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM marketplace_listings WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting listing: %w", err)
	}
	return nil
}
