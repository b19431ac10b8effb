package entities

import (
	"time"
)

// Role is a user's platform role
type Role string

const (
	RoleUser     Role = "user"
	RoleDoctor   Role = "doctor"
	RoleLab      Role = "lab"
	RoleHospital Role = "hospital"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleDoctor, RoleLab, RoleHospital, RoleAdmin:
		return true
	}
	return false
}

// User represents an account on the platform
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	FullName     string    `json:"full_name" db:"full_name"`
	Role         Role      `json:"role" db:"role"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_date" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_date" db:"updated_at"`
}

// Principal is the authenticated caller of an operation
type Principal struct {
	UserID  string
	Email   string
	Role    Role
	TokenID string
}

// IsAdmin reports whether the principal has the admin role
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// HasRole reports whether the principal has one of roles. Admins match every role.
func (p *Principal) HasRole(roles ...Role) bool {
	if p == nil {
		return false
	}
	if p.Role == RoleAdmin {
		return true
	}
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
