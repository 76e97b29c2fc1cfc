package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/kuldevta/estate-api/types"
)

// ListingRepository handles persistence for property listings.
type ListingRepository struct {
	db *sql.DB
}

func NewListingRepository(db *sql.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

const listingColumns = `id, title, description, city, price, type, category,
	image_urls, video_urls, featured, advertised, ad_start_at, ad_end_at,
	views, active, area, bedrooms, bathrooms, address, amenities,
	contact_name, contact_phone, contact_email, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (types.Listing, error) {
	var listing types.Listing
	err := row.Scan(
		&listing.ID,
		&listing.Title,
		&listing.Description,
		&listing.City,
		&listing.Price,
		&listing.Type,
		&listing.Category,
		pq.Array(&listing.ImageURLs),
		pq.Array(&listing.VideoURLs),
		&listing.Featured,
		&listing.Advertised,
		&listing.AdStartAt,
		&listing.AdEndAt,
		&listing.Views,
		&listing.Active,
		&listing.Area,
		&listing.Bedrooms,
		&listing.Bathrooms,
		&listing.Address,
		pq.Array(&listing.Amenities),
		&listing.ContactName,
		&listing.ContactPhone,
		&listing.ContactEmail,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Listing{}, ErrNotFound
		}
		return types.Listing{}, err
	}
	return listing, nil
}

// List returns listings newest first. When includeInactive is false only
// active listings are returned (the public view).
func (r *ListingRepository) List(ctx context.Context, offset, limit int, includeInactive bool) ([]types.Listing, int, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 12
	}

	where := `WHERE active = TRUE`
	if includeInactive {
		where = ``
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM listings `+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `
		SELECT ` + listingColumns + `
		FROM listings ` + where + `
		ORDER BY created_at DESC
		OFFSET $1 LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	listings := make([]types.Listing, 0, limit)
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		listings = append(listings, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return listings, total, nil
}

func (r *ListingRepository) Get(ctx context.Context, id int) (types.Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings
		WHERE id = $1`
	return scanListing(r.db.QueryRowContext(ctx, query, id))
}

func (r *ListingRepository) Create(ctx context.Context, listing types.Listing) (types.Listing, error) {
	now := time.Now()
	listing.CreatedAt = now
	listing.UpdatedAt = now

	const query = `
		INSERT INTO listings (title, description, city, price, type, category,
			image_urls, video_urls, featured, advertised, ad_start_at, ad_end_at,
			views, active, area, bedrooms, bathrooms, address, amenities,
			contact_name, contact_phone, contact_email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		listing.Title,
		listing.Description,
		listing.City,
		listing.Price,
		listing.Type,
		listing.Category,
		pq.Array(listing.ImageURLs),
		pq.Array(listing.VideoURLs),
		listing.Featured,
		listing.Advertised,
		listing.AdStartAt,
		listing.AdEndAt,
		listing.Views,
		listing.Active,
		listing.Area,
		listing.Bedrooms,
		listing.Bathrooms,
		listing.Address,
		pq.Array(listing.Amenities),
		listing.ContactName,
		listing.ContactPhone,
		listing.ContactEmail,
		listing.CreatedAt,
		listing.UpdatedAt,
	).Scan(&listing.ID); err != nil {
		return types.Listing{}, err
	}
	return listing, nil
}

func (r *ListingRepository) Update(ctx context.Context, listing types.Listing) (types.Listing, error) {
	listing.UpdatedAt = time.Now()

	const query = `
		UPDATE listings
		SET title = $1,
			description = $2,
			city = $3,
			price = $4,
			type = $5,
			category = $6,
			image_urls = $7,
			video_urls = $8,
			featured = $9,
			advertised = $10,
			ad_start_at = $11,
			ad_end_at = $12,
			active = $13,
			area = $14,
			bedrooms = $15,
			bathrooms = $16,
			address = $17,
			amenities = $18,
			contact_name = $19,
			contact_phone = $20,
			contact_email = $21,
			updated_at = $22
		WHERE id = $23`
	result, err := r.db.ExecContext(
		ctx,
		query,
		listing.Title,
		listing.Description,
		listing.City,
		listing.Price,
		listing.Type,
		listing.Category,
		pq.Array(listing.ImageURLs),
		pq.Array(listing.VideoURLs),
		listing.Featured,
		listing.Advertised,
		listing.AdStartAt,
		listing.AdEndAt,
		listing.Active,
		listing.Area,
		listing.Bedrooms,
		listing.Bathrooms,
		listing.Address,
		pq.Array(listing.Amenities),
		listing.ContactName,
		listing.ContactPhone,
		listing.ContactEmail,
		listing.UpdatedAt,
		listing.ID,
	)
	if err != nil {
		return types.Listing{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Listing{}, err
	}
	if affected == 0 {
		return types.Listing{}, ErrNotFound
	}
	return r.Get(ctx, listing.ID)
}

func (r *ListingRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM listings WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementViews bumps the view counter and returns the new count.
func (r *ListingRepository) IncrementViews(ctx context.Context, id int) (int, error) {
	const query = `
		UPDATE listings
		SET views = views + 1
		WHERE id = $1
		RETURNING views`
	var views int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&views); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return views, nil
}

// SetFeatured flips the featured flag.
func (r *ListingRepository) SetFeatured(ctx context.Context, id int, featured bool) (types.Listing, error) {
	return r.setFlag(ctx, id, "featured", featured)
}

// SetActive flips the active flag.
func (r *ListingRepository) SetActive(ctx context.Context, id int, active bool) (types.Listing, error) {
	return r.setFlag(ctx, id, "active", active)
}

func (r *ListingRepository) setFlag(ctx context.Context, id int, column string, value bool) (types.Listing, error) {
	// column is one of the fixed names above, never caller input.
	query := `
		UPDATE listings
		SET ` + column + ` = $1, updated_at = $2
		WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, value, time.Now(), id)
	if err != nil {
		return types.Listing{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Listing{}, err
	}
	if affected == 0 {
		return types.Listing{}, ErrNotFound
	}
	return r.Get(ctx, id)
}
