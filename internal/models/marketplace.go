package models

import (
	"time"

	"github.com/google/uuid"
)

type ListingStatus string

const (
	ListingAvailable ListingStatus = "available"
	ListingSold      ListingStatus = "sold"
)

type MarketplaceListing struct {
	ID          uuid.UUID     `json:"id"`
	SellerID    uuid.UUID     `json:"seller_id"`
	SellerName  string        `json:"seller_name,omitempty"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	PriceCents  int64         `json:"price_cents"`
	Status      ListingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
}

type ListingInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Category    string `json:"category" validate:"omitempty,oneof=books electronics furniture clothing services other"`
	PriceCents  int64  `json:"price_cents" validate:"min=0"`
}
