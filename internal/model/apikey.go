package model

import (
	"strings"
	"time"
)

// API key purposes. A warehouse key authenticates internal integrations on
// staff routes; a courier key authenticates an external courier partner.
const (
	KeyPurposeWarehouse = "warehouse"
	KeyPurposeCourier   = "courier"
)

// Courier codes for the supported logistics integrations.
const (
	CourierKCD    = "KCD"
	CourierTasoko = "TASOKO"
)

// Permission strings carried by courier API keys.
const (
	PermPackagesRead   = "packages:read"
	PermPackagesWrite  = "packages:write"
	PermManifestsRead  = "manifests:read"
	PermManifestsWrite = "manifests:write"
)

// APIKey represents a long-lived credential issued to an integration. The raw
// key is never stored; only a SHA-256 hash and a short prefix for operator
// identification are persisted. A key authenticates iff it is active and not
// past its expiry. Revocation flips is_active and preserves the record so the
// usage history stays auditable.
type APIKey struct {
	ID               int64      `json:"id" db:"id"`
	KeyHash          string     `json:"-" db:"key_hash"`            // SHA-256 hash, never expose
	KeyPrefix        string     `json:"key_prefix" db:"key_prefix"` // e.g. "pbk_3fa1b2c4" for identification
	OwnerCourierCode string     `json:"owner_courier_code" db:"owner_courier_code"`
	Purpose          string     `json:"purpose" db:"purpose"`
	Description      string     `json:"description" db:"description"`
	PermissionsCSV   string     `json:"-" db:"permissions"`
	IsActive         bool       `json:"is_active" db:"is_active"`
	ExpiresAt        time.Time  `json:"expires_at" db:"expires_at"`
	UsageCount       int64      `json:"usage_count" db:"usage_count"`
	LastUsedAt       *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
	CreatedBy        string     `json:"created_by" db:"created_by"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	DeactivatedAt    *time.Time `json:"deactivated_at,omitempty" db:"deactivated_at"`
	DeactivatedBy    string     `json:"deactivated_by,omitempty" db:"deactivated_by"`
}

// Permissions returns the key's permission list. The set is stored as a
// comma-separated string column.
func (k *APIKey) Permissions() []string {
	if k.PermissionsCSV == "" {
		return nil
	}
	parts := strings.Split(k.PermissionsCSV, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SetPermissions stores the permission list on the key.
func (k *APIKey) SetPermissions(perms []string) {
	k.PermissionsCSV = strings.Join(perms, ",")
}

// Usable reports whether the key authenticates at the given instant.
// Expiry is checked independently of the active flag.
func (k *APIKey) Usable(now time.Time) bool {
	return k.IsActive && now.Before(k.ExpiresAt)
}
