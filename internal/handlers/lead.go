package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kuldevta/estate-api/internal/services"
	"github.com/kuldevta/estate-api/internal/store"
	"github.com/kuldevta/estate-api/types"
)

// LeadHandler provides HTTP handlers for lead capture and management.
type LeadHandler struct {
	leadService *services.LeadService
}

// NewLeadHandler constructs a handler with the provided service.
func NewLeadHandler(leadService *services.LeadService) *LeadHandler {
	return &LeadHandler{leadService: leadService}
}

// LeadRouter registers lead routes. Capture is public; everything else backs
// the admin panel.
func LeadRouter(r chi.Router, leadService *services.LeadService, authMiddleware func(http.Handler) http.Handler) {
	handler := NewLeadHandler(leadService)

	r.Post("/", handler.CreateLead)
	r.With(authMiddleware).Get("/", handler.ListLeads)
	r.With(authMiddleware).Get("/stats", handler.LeadStats)
	r.Route("/{leadID}", func(r chi.Router) {
		r.With(authMiddleware).Put("/", handler.UpdateLeadStatus)
		r.With(authMiddleware).Delete("/", handler.DeleteLead)
	})
}

func (h *LeadHandler) CreateLead(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Phone = strings.TrimSpace(req.Phone)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.ListingID < 1 || req.Phone == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "listing_id, phone, and email are required")
		return
	}
	source := req.Source
	if source == "" {
		source = "gallery"
	}
	if !slices.Contains(types.LeadSources, source) {
		writeError(w, http.StatusBadRequest, "unknown lead source")
		return
	}

	lead, err := h.leadService.Capture(r.Context(), types.Lead{
		ListingID: req.ListingID,
		Phone:     req.Phone,
		Email:     req.Email,
		Name:      strings.TrimSpace(req.Name),
		Message:   strings.TrimSpace(req.Message),
		Source:    source,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "listing not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create lead")
		return
	}

	writeJSON(w, http.StatusCreated, LeadResponse{Success: true, Lead: lead})
}

func (h *LeadHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filter := store.LeadFilter{}
	if raw := strings.TrimSpace(r.URL.Query().Get("listing_id")); raw != "" {
		filter.ListingID, err = strconv.Atoi(raw)
		if err != nil || filter.ListingID < 1 {
			writeError(w, http.StatusBadRequest, "invalid listing_id")
			return
		}
	}
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		if !slices.Contains(types.LeadStatuses, status) {
			writeError(w, http.StatusBadRequest, "unknown lead status")
			return
		}
		filter.Status = status
	}

	items, total, err := h.leadService.List(r.Context(), filter, offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list leads")
		return
	}

	writeJSON(w, http.StatusOK, LeadListResponse{
		Success: true,
		Items:   items,
		Page:    page,
		Limit:   limit,
		Total:   total,
	})
}

func (h *LeadHandler) LeadStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.leadService.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load lead stats")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": stats})
}

func (h *LeadHandler) UpdateLeadStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseLeadID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateLeadStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if !slices.Contains(types.LeadStatuses, req.Status) {
		writeError(w, http.StatusBadRequest, "unknown lead status")
		return
	}

	lead, err := h.leadService.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lead not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to update lead")
		return
	}

	writeJSON(w, http.StatusOK, LeadResponse{Success: true, Lead: lead})
}

func (h *LeadHandler) DeleteLead(w http.ResponseWriter, r *http.Request) {
	id, err := parseLeadID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.leadService.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "lead not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete lead")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type CreateLeadRequest struct {
	ListingID int    `json:"listing_id"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	Message   string `json:"message,omitempty"`
	Source    string `json:"source,omitempty"`
}

type UpdateLeadStatusRequest struct {
	Status string `json:"status"`
}

// LeadListResponse is the paginated list response payload.
type LeadListResponse struct {
	Success bool         `json:"success"`
	Items   []types.Lead `json:"items"`
	Page    int          `json:"page"`
	Limit   int          `json:"limit"`
	Total   int          `json:"total"`
}

// LeadResponse wraps a single lead.
type LeadResponse struct {
	Success bool       `json:"success"`
	Lead    types.Lead `json:"lead"`
}

func parseLeadID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "leadID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid lead id")
	}
	return id, nil
}
