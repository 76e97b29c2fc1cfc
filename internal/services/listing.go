package services

import (
	"context"

	"github.com/kuldevta/estate-api/types"
)

// ListingRepository defines persistence operations for listings.
type ListingRepository interface {
	List(ctx context.Context, offset, limit int, includeInactive bool) ([]types.Listing, int, error)
	Get(ctx context.Context, id int) (types.Listing, error)
	Create(ctx context.Context, listing types.Listing) (types.Listing, error)
	Update(ctx context.Context, listing types.Listing) (types.Listing, error)
	Delete(ctx context.Context, id int) error
	IncrementViews(ctx context.Context, id int) (int, error)
	SetFeatured(ctx context.Context, id int, featured bool) (types.Listing, error)
	SetActive(ctx context.Context, id int, active bool) (types.Listing, error)
}

// ListingService encapsulates listing use-cases.
type ListingService struct {
	repo ListingRepository
}

func NewListingService(repo ListingRepository) *ListingService {
	return &ListingService{repo: repo}
}

func (s *ListingService) List(ctx context.Context, offset, limit int, includeInactive bool) ([]types.Listing, int, error) {
	if limit <= 0 {
		limit = 12
	}
	if limit > 100 {
		limit = 100
	}
	return s.repo.List(ctx, offset, limit, includeInactive)
}

func (s *ListingService) Get(ctx context.Context, id int) (types.Listing, error) {
	return s.repo.Get(ctx, id)
}

func (s *ListingService) Create(ctx context.Context, listing types.Listing) (types.Listing, error) {
	listing.Active = true
	listing.Views = 0
	return s.repo.Create(ctx, listing)
}

func (s *ListingService) Update(ctx context.Context, listing types.Listing) (types.Listing, error) {
	return s.repo.Update(ctx, listing)
}

func (s *ListingService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

func (s *ListingService) IncrementViews(ctx context.Context, id int) (int, error) {
	return s.repo.IncrementViews(ctx, id)
}

func (s *ListingService) SetFeatured(ctx context.Context, id int, featured bool) (types.Listing, error) {
	return s.repo.SetFeatured(ctx, id, featured)
}

func (s *ListingService) SetActive(ctx context.Context, id int, active bool) (types.Listing, error) {
	return s.repo.SetActive(ctx, id, active)
}
