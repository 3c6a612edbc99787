package model

import "time"

// Role constants for session-based accounts. Courier integrations do not have
// a role; they carry a permission list on their API key instead.
const (
	RoleAdmin     = "admin"
	RoleWarehouse = "warehouse"
	RoleCustomer  = "customer"
)

// ValidRole reports whether r is one of the known account roles.
func ValidRole(r string) bool {
	return r == RoleAdmin || r == RoleWarehouse || r == RoleCustomer
}

// User represents a staff member or customer account. Passwords are stored
// as bcrypt hashes.
type User struct {
	ID           int64      `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"` // bcrypt hash, never expose
	Name         string     `json:"name" db:"name"`
	UserCode     string     `json:"user_code" db:"user_code"` // short public identifier, e.g. "USR-4F2A"
	Role         string     `json:"role" db:"role"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// IsStaff reports whether the account belongs to internal staff.
func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleWarehouse
}
