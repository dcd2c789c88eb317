package handlers

import (
	"errors"
	"net/http"

	"github.com/HammerMeetNail/campuslink/internal/models"
	"github.com/HammerMeetNail/campuslink/internal/services"
)

type MarketplaceHandler struct {
	marketplaceService services.MarketplaceServiceInterface
}

func NewMarketplaceHandler(marketplaceService services.MarketplaceServiceInterface) *MarketplaceHandler {
	return &MarketplaceHandler{marketplaceService: marketplaceService}
}

type ListingResponse struct {
	Listing *models.MarketplaceListing `json:"listing"`
}

type ListingListResponse struct {
	Listings []models.MarketplaceListing `json:"listings"`
}

func writeListingError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, services.ErrListingNotFound):
		writeError(w, http.StatusNotFound, "Listing not found")
	case errors.Is(err, services.ErrInvalidListing):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "Only the seller or an authority can remove this listing")
	default:
		internalError(w, action, err)
	}
}

func (h *MarketplaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}

	var in models.ListingInput
	if !decodeJSON(w, r, &in) {
		return
	}

	listing, err := h.marketplaceService.Create(r.Context(), user.ID, in)
	if err != nil {
		writeListingError(w, err, "creating listing")
		return
	}
	writeJSON(w, http.StatusCreated, ListingResponse{Listing: listing})
}

// List filters by ?category=; sold items appear only with ?include_sold=true.
func (h *MarketplaceHandler) List(w http.ResponseWriter, r *http.Request) {
	if requireUser(w, r) == nil {
		return
	}
	q := r.URL.Query()

	listings, err := h.marketplaceService.List(r.Context(), q.Get("category"), q.Get("include_sold") == "true")
	if err != nil {
		internalError(w, "listing marketplace", err)
		return
	}
	writeJSON(w, http.StatusOK, ListingListResponse{Listings: listings})
}

func (h *MarketplaceHandler) MarkSold(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "listing")
	if !ok {
		return
	}

	listing, err := h.marketplaceService.MarkSold(r.Context(), user.ID, id)
	if err != nil {
		writeListingError(w, err, "marking listing sold")
		return
	}
	writeJSON(w, http.StatusOK, ListingResponse{Listing: listing})
}

func (h *MarketplaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := requireUser(w, r)
	if user == nil {
		return
	}
	id, ok := parseIDParam(w, r, "id", "listing")
	if !ok {
		return
	}

	if err := h.marketplaceService.Delete(r.Context(), user, id); err != nil {
		writeListingError(w, err, "deleting listing")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Listing removed"})
}
