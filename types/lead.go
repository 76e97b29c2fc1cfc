package types

import "time"

// Lead statuses follow the contact pipeline used by the admin panel.
const (
	LeadStatusNew           = "new"
	LeadStatusContacted     = "contacted"
	LeadStatusInterested    = "interested"
	LeadStatusNotInterested = "not-interested"
	LeadStatusClosed        = "closed"
)

// LeadSources enumerates where a lead was captured from.
var LeadSources = []string{"gallery", "details", "contact", "whatsapp", "call"}

// LeadStatuses enumerates the accepted lead pipeline states.
var LeadStatuses = []string{
	LeadStatusNew,
	LeadStatusContacted,
	LeadStatusInterested,
	LeadStatusNotInterested,
	LeadStatusClosed,
}

// Lead represents a buyer/renter enquiry captured against a listing.
type Lead struct {
	ID        int    `json:"id" db:"id"`
	ListingID int    `json:"listing_id" db:"listing_id"`
	Phone     string `json:"phone" db:"phone"`
	Email     string `json:"email" db:"email"`
	Name      string `json:"name,omitempty" db:"name"`
	Message   string `json:"message,omitempty" db:"message"`
	Status    string `json:"status" db:"status"`
	Source    string `json:"source" db:"source"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LeadStats is the per-status breakdown shown on the admin dashboard.
type LeadStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}
