package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kuldevta/estate-api/internal/services"
	"github.com/kuldevta/estate-api/internal/store"
	"github.com/kuldevta/estate-api/types"
)

const (
	defaultPage  = 1
	defaultLimit = 12
	maxLimit     = 100
)

// ListingHandler provides HTTP handlers for property listings.
type ListingHandler struct {
	listingService *services.ListingService
}

// NewListingHandler constructs a handler with the provided service.
func NewListingHandler(listingService *services.ListingService) *ListingHandler {
	return &ListingHandler{listingService: listingService}
}

// ListingRouter registers listing routes on the given router. Public reads
// are unauthenticated; mutations require an admin token.
func ListingRouter(r chi.Router, listingService *services.ListingService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewListingHandler(listingService)

	r.Get("/", handler.ListListings)
	r.With(authMiddleware).Get("/admin/all", handler.ListAllListings)
	r.With(authMiddleware).Post("/", handler.CreateListing)
	r.Route("/{listingID}", func(r chi.Router) {
		r.Get("/", handler.GetListing)
		r.Put("/view", handler.IncrementViews)
		r.With(authMiddleware).Put("/", handler.UpdateListing)
		r.With(authMiddleware).Delete("/", handler.DeleteListing)
		r.With(authMiddleware).Put("/featured", handler.SetFeatured)
		r.With(authMiddleware).Put("/active", handler.SetActive)
	})
}

func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, false)
}

// ListAllListings includes inactive listings; it backs the admin panel.
func (h *ListingHandler) ListAllListings(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, true)
}

func (h *ListingHandler) list(w http.ResponseWriter, r *http.Request, includeInactive bool) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, total, err := h.listingService.List(r.Context(), offset, limit, includeInactive)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list listings")
		return
	}

	writeJSON(w, http.StatusOK, ListingListResponse{
		Success: true,
		Items:   items,
		Page:    page,
		Limit:   limit,
		Total:   total,
	})
}

func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	id, err := parseListingID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	listing, err := h.listingService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "listing not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch listing")
		return
	}

	writeJSON(w, http.StatusOK, ListingResponse{Success: true, Listing: listing})
}

func (h *ListingHandler) IncrementViews(w http.ResponseWriter, r *http.Request) {
	id, err := parseListingID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	views, err := h.listingService.IncrementViews(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "listing not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update views")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "views": views})
}

func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	listing, err := parseListingPayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.listingService.Create(r.Context(), listing)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create listing")
		return
	}

	writeJSON(w, http.StatusCreated, ListingResponse{Success: true, Listing: created})
}

func (h *ListingHandler) UpdateListing(w http.ResponseWriter, r *http.Request) {
	id, err := parseListingID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	listing, err := parseListingPayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	listing.ID = id

	updated, err := h.listingService.Update(r.Context(), listing)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "listing not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update listing")
		return
	}

	writeJSON(w, http.StatusOK, ListingResponse{Success: true, Listing: updated})
}

func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	id, err := parseListingID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.listingService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "listing not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete listing")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ListingHandler) SetFeatured(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, "featured")
}

func (h *ListingHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, "active")
}

func (h *ListingHandler) setFlag(w http.ResponseWriter, r *http.Request, flag string) {
	id, err := parseListingID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req FlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	var listing types.Listing
	switch flag {
	case "featured":
		listing, err = h.listingService.SetFeatured(r.Context(), id, req.Value)
	case "active":
		listing, err = h.listingService.SetActive(r.Context(), id, req.Value)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "listing not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update listing")
		return
	}

	writeJSON(w, http.StatusOK, ListingResponse{Success: true, Listing: listing})
}

// ListingUpsertRequest is the create/update payload. Media is accepted as
// externally hosted URLs only.
type ListingUpsertRequest struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	City         string     `json:"city"`
	Price        int64      `json:"price"`
	Type         string     `json:"type"`
	Category     string     `json:"category"`
	ImageURLs    []string   `json:"image_urls"`
	VideoURLs    []string   `json:"video_urls"`
	Featured     bool       `json:"featured"`
	Advertised   bool       `json:"advertised"`
	AdStartAt    *time.Time `json:"ad_start_at"`
	AdEndAt      *time.Time `json:"ad_end_at"`
	Area         int        `json:"area"`
	Bedrooms     int        `json:"bedrooms"`
	Bathrooms    int        `json:"bathrooms"`
	Address      string     `json:"address"`
	Amenities    []string   `json:"amenities"`
	ContactName  string     `json:"contact_name"`
	ContactPhone string     `json:"contact_phone"`
	ContactEmail string     `json:"contact_email"`
}

// FlagRequest is the body for the featured/active toggles.
type FlagRequest struct {
	Value bool `json:"value"`
}

// ListingListResponse is the paginated list response payload.
type ListingListResponse struct {
	Success bool            `json:"success"`
	Items   []types.Listing `json:"items"`
	Page    int             `json:"page"`
	Limit   int             `json:"limit"`
	Total   int             `json:"total"`
}

// ListingResponse wraps a single listing.
type ListingResponse struct {
	Success bool          `json:"success"`
	Listing types.Listing `json:"listing"`
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	rawLimit := strings.TrimSpace(r.URL.Query().Get("limit"))
	if rawLimit == "" {
		rawLimit = strings.TrimSpace(r.URL.Query().Get("per_page"))
	}
	if rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func parseListingID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "listingID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid listing id")
	}
	return id, nil
}

func parseListingPayload(r *http.Request) (types.Listing, error) {
	var req ListingUpsertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return types.Listing{}, errors.New("invalid request body")
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.City = strings.TrimSpace(req.City)
	if req.Title == "" {
		return types.Listing{}, errors.New("title is required")
	}
	if req.Description == "" {
		return types.Listing{}, errors.New("description is required")
	}
	if req.City == "" {
		return types.Listing{}, errors.New("city is required")
	}
	if req.Price < 0 {
		return types.Listing{}, errors.New("price cannot be negative")
	}
	if req.Type != types.ListingTypeRent && req.Type != types.ListingTypeBuy {
		return types.Listing{}, errors.New("type must be rent or buy")
	}
	if !slices.Contains(types.ListingCategories, req.Category) {
		return types.Listing{}, errors.New("unknown category")
	}

	return types.Listing{
		Title:        req.Title,
		Description:  req.Description,
		City:         req.City,
		Price:        req.Price,
		Type:         req.Type,
		Category:     req.Category,
		ImageURLs:    req.ImageURLs,
		VideoURLs:    req.VideoURLs,
		Featured:     req.Featured,
		Advertised:   req.Advertised,
		AdStartAt:    req.AdStartAt,
		AdEndAt:      req.AdEndAt,
		Area:         req.Area,
		Bedrooms:     req.Bedrooms,
		Bathrooms:    req.Bathrooms,
		Address:      strings.TrimSpace(req.Address),
		Amenities:    req.Amenities,
		ContactName:  strings.TrimSpace(req.ContactName),
		ContactPhone: strings.TrimSpace(req.ContactPhone),
		ContactEmail: strings.TrimSpace(req.ContactEmail),
		Active:       true,
	}, nil
}
