package types

import "time"

// Listing types and categories accepted by the API.
const (
	ListingTypeRent = "rent"
	ListingTypeBuy  = "buy"
)

// ListingCategories enumerates the accepted property categories.
var ListingCategories = []string{
	"1BHK", "2BHK", "3BHK", "4BHK",
	"Villa", "Plot", "Commercial", "Office", "Shop", "Warehouse",
}

// Listing represents a property listing. Media is referenced by URL only; the
// API does not host uploads itself.
type Listing struct {
	ID          int    `json:"id" db:"id"`
	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`
	City        string `json:"city" db:"city"`

	// Price in whole currency units.
	Price int64 `json:"price" db:"price"`

	// Type is "rent" or "buy".
	Type string `json:"type" db:"type"`

	// Category is one of ListingCategories.
	Category string `json:"category" db:"category"`

	ImageURLs []string `json:"image_urls" db:"image_urls"`
	VideoURLs []string `json:"video_urls" db:"video_urls"`

	Featured   bool       `json:"featured" db:"featured"`
	Advertised bool       `json:"advertised" db:"advertised"`
	AdStartAt  *time.Time `json:"ad_start_at,omitempty" db:"ad_start_at"`
	AdEndAt    *time.Time `json:"ad_end_at,omitempty" db:"ad_end_at"`

	Views  int  `json:"views" db:"views"`
	Active bool `json:"active" db:"active"`

	Area      int      `json:"area,omitempty" db:"area"`
	Bedrooms  int      `json:"bedrooms,omitempty" db:"bedrooms"`
	Bathrooms int      `json:"bathrooms,omitempty" db:"bathrooms"`
	Address   string   `json:"address,omitempty" db:"address"`
	Amenities []string `json:"amenities,omitempty" db:"amenities"`

	ContactName  string `json:"contact_name,omitempty" db:"contact_name"`
	ContactPhone string `json:"contact_phone,omitempty" db:"contact_phone"`
	ContactEmail string `json:"contact_email,omitempty" db:"contact_email"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AdActive reports whether the listing's paid advertisement window covers now.
func (l Listing) AdActive(now time.Time) bool {
	if !l.Advertised || l.AdStartAt == nil || l.AdEndAt == nil {
		return false
	}
	return !l.AdStartAt.After(now) && !l.AdEndAt.Before(now)
}
