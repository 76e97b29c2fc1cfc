package types

import "time"

// Admin represents an administrator account.
// It contains identity, role, and audit metadata.
type Admin struct {
	// ID is the opaque unique identifier of the account, assigned at creation.
	ID string `json:"id" db:"id"`

	// Email is the unique login identity, stored trimmed and lowercased.
	Email string `json:"email" db:"email"`

	// Name is the account's display label.
	Name string `json:"name" db:"name"`

	// Role indicates the account's authorization level. The system currently
	// has exactly one meaningful role, "super-admin".
	Role string `json:"role" db:"role"`

	// PasswordHash stores the bcrypt hash of the account's password. During a
	// legacy transition it may briefly hold a historical plaintext value; any
	// such value is replaced with a hash on first successful login.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Active gates authentication. Inactive accounts never authenticate,
	// regardless of credential correctness.
	Active bool `json:"active" db:"active"`

	// LastLoginAt is refreshed on every successful login. Audit only; it is
	// never consulted for authorization decisions.
	LastLoginAt *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// AdminSummary is the public projection of an Admin returned by the auth API.
type AdminSummary struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	Role        string     `json:"role"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Summary returns the API-safe projection of the account.
func (a Admin) Summary() AdminSummary {
	return AdminSummary{
		ID:          a.ID,
		Email:       a.Email,
		Name:        a.Name,
		Role:        a.Role,
		LastLoginAt: a.LastLoginAt,
	}
}
