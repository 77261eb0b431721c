package models

import "time"

// Role is the closed set of user roles. Authorization decisions go through
// the capability table below rather than ad-hoc role comparisons.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCashier  Role = "cashier"
	RoleInvestor Role = "investor"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCashier, RoleInvestor:
		return true
	}
	return false
}

// roleCapabilities maps each role to the capabilities it grants.
var roleCapabilities = map[Role]map[string]bool{
	RoleAdmin: {
		"investor.manage": true,
		"investor.view":   true,
		"ledger.manage":   true,
		"ledger.view":     true,
		"catalog.manage":  true,
		"sales.view":      true,
		"sales.create":    true,
		"sales.confirm":   true,
		"sales.void":      true,
		"layaway.manage":  true,
	},
	RoleCashier: {
		"sales.view":     true,
		"sales.create":   true,
		"sales.confirm":  true,
		"sales.void":     true,
		"layaway.manage": true,
	},
	// Investor logins see only their own record; handlers enforce the
	// ownership check on top of the capability.
	RoleInvestor: {
		"investor.view": true,
		"ledger.view":   true,
	},
}

// HasCapability reports whether the given role grants the capability.
func HasCapability(role Role, capability string) bool {
	return roleCapabilities[role][capability]
}

// User represents a staff member or investor login.
type User struct {
	Base
	Email               string     `gorm:"uniqueIndex;not null" json:"email"`
	Password            string     `gorm:"not null" json:"-"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	Role                Role       `gorm:"not null;default:'cashier'" json:"role"`
	IsActive            bool       `gorm:"default:true" json:"is_active"`
	RefreshTokenHash    string     `gorm:"size:64" json:"-"`
	FailedLoginAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`
}
