package users

import (
	"strings"

	apperrors "github.com/jrsteele09/repairshop-client/internal/errors"
)

// RoleType represents a user role within a shop
type RoleType string

const (
	RoleAdmin RoleType = "Admin" // Can create, edit and delete shop records
	RoleTech  RoleType = "Tech"  // Works repair orders, read-only on master data
)

// Profile is the authenticated user as returned by the API alongside the access token.
// It is opaque to the session core apart from Role.
type Profile struct {
	ID          string   `json:"id"`          // Unique identifier for the user
	ShopID      string   `json:"shopId"`      // Shop the user belongs to
	Email       string   `json:"email"`       // User's email address
	DisplayName string   `json:"displayName"` // Name shown in the UI
	Role        RoleType `json:"role"`        // Shop role, gates destructive actions
}

// IsAdmin reports whether the profile carries the Admin role.
func (p *Profile) IsAdmin() bool {
	if p == nil {
		return false
	}
	return strings.EqualFold(string(p.Role), string(RoleAdmin))
}

// Valid reports whether the profile has enough identity to be stored in a session.
func (p *Profile) Valid() bool {
	return p != nil && p.ID != ""
}

// Clone returns a copy so callers never share the stored value.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// RequireAdmin returns ErrAdminOnly unless the profile is an Admin.
func RequireAdmin(p *Profile) error {
	if !p.IsAdmin() {
		return apperrors.ErrAdminOnly
	}
	return nil
}
