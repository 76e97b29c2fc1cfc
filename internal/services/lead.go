package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kuldevta/estate-api/internal/logger"
	"github.com/kuldevta/estate-api/internal/store"
	"github.com/kuldevta/estate-api/types"
)

// LeadEventChannel is the broker channel new-lead events are published to.
const LeadEventChannel = "lead.created"

// LeadRepository defines persistence operations for leads.
type LeadRepository interface {
	Get(ctx context.Context, id int) (types.Lead, error)
	List(ctx context.Context, filter store.LeadFilter, offset, limit int) ([]types.Lead, int, error)
	Create(ctx context.Context, lead types.Lead) (types.Lead, error)
	UpdateStatus(ctx context.Context, id int, status string) (types.Lead, error)
	Delete(ctx context.Context, id int) error
	Stats(ctx context.Context) (types.LeadStats, error)
}

// LeadPublisher publishes lead events to the message queue. May be nil when no
// broker is configured.
type LeadPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// LeadEvent is the payload published on LeadEventChannel when a lead is
// captured, consumed by the notifier worker.
type LeadEvent struct {
	LeadID       int       `json:"lead_id"`
	ListingID    int       `json:"listing_id"`
	ListingTitle string    `json:"listing_title"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	Source       string    `json:"source"`
	CapturedAt   time.Time `json:"captured_at"`
}

// LeadService encapsulates lead-capture use-cases.
type LeadService struct {
	repo      LeadRepository
	listings  ListingRepository
	publisher LeadPublisher
	log       *zap.Logger
}

func NewLeadService(repo LeadRepository, listings ListingRepository, publisher LeadPublisher) *LeadService {
	return &LeadService{
		repo:      repo,
		listings:  listings,
		publisher: publisher,
		log:       logger.Named("leads"),
	}
}

// Capture records a public enquiry against a listing and publishes a
// lead.created event. Publish failures are logged, not surfaced: the lead is
// already persisted and the caller should see success.
func (s *LeadService) Capture(ctx context.Context, lead types.Lead) (types.Lead, error) {
	lead.Status = types.LeadStatusNew

	listing, err := s.listings.Get(ctx, lead.ListingID)
	if err != nil {
		return types.Lead{}, err
	}

	lead, err = s.repo.Create(ctx, lead)
	if err != nil {
		return types.Lead{}, err
	}

	s.publish(ctx, lead, listing)
	return lead, nil
}

func (s *LeadService) Get(ctx context.Context, id int) (types.Lead, error) {
	return s.repo.Get(ctx, id)
}

func (s *LeadService) List(ctx context.Context, filter store.LeadFilter, offset, limit int) ([]types.Lead, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, filter, offset, limit)
}

func (s *LeadService) UpdateStatus(ctx context.Context, id int, status string) (types.Lead, error) {
	return s.repo.UpdateStatus(ctx, id, status)
}

func (s *LeadService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

func (s *LeadService) Stats(ctx context.Context) (types.LeadStats, error) {
	return s.repo.Stats(ctx)
}

func (s *LeadService) publish(ctx context.Context, lead types.Lead, listing types.Listing) {
	if s.publisher == nil {
		return
	}

	event := LeadEvent{
		LeadID:       lead.ID,
		ListingID:    listing.ID,
		ListingTitle: listing.Title,
		Phone:        lead.Phone,
		Email:        lead.Email,
		Source:       lead.Source,
		CapturedAt:   lead.CreatedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.log.Error("failed to encode lead event", zap.Error(err))
		return
	}

	attrs := map[string]string{"listing_id": fmt.Sprint(listing.ID)}
	if _, err := s.publisher.Publish(ctx, LeadEventChannel, data, attrs); err != nil {
		s.log.Error("failed to publish lead event",
			zap.Int("lead_id", lead.ID),
			zap.Error(err))
		return
	}
	s.log.Info("published lead event", zap.Int("lead_id", lead.ID))
}
