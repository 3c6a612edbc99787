package model

import "time"

// Package status lifecycle. Transitions are linear; couriers move a package
// from shipped to delivered, warehouse staff handle the earlier stages.
const (
	PackageReceived   = "received"
	PackageProcessing = "processing"
	PackageShipped    = "shipped"
	PackageDelivered  = "delivered"
)

// ValidPackageStatus reports whether s is a known package status.
func ValidPackageStatus(s string) bool {
	switch s {
	case PackageReceived, PackageProcessing, PackageShipped, PackageDelivered:
		return true
	}
	return false
}

// Package is a single shipment tracked through the warehouse.
type Package struct {
	ID           int64     `json:"id" db:"id"`
	TrackingCode string    `json:"tracking_code" db:"tracking_code"`
	CustomerID   int64     `json:"customer_id" db:"customer_id"`
	CourierCode  string    `json:"courier_code" db:"courier_code"`
	Description  string    `json:"description" db:"description"`
	WeightKg     float64   `json:"weight_kg" db:"weight_kg"`
	Status       string    `json:"status" db:"status"`
	ManifestID   *int64    `json:"manifest_id,omitempty" db:"manifest_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// InventoryItem is a stocked item in the warehouse.
type InventoryItem struct {
	ID        int64     `json:"id" db:"id"`
	SKU       string    `json:"sku" db:"sku"`
	Name      string    `json:"name" db:"name"`
	Quantity  int       `json:"quantity" db:"quantity"`
	Location  string    `json:"location" db:"location"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Manifest statuses. A manifest is opened by staff, dispatched to a courier,
// and confirmed by the courier once received.
const (
	ManifestOpen       = "open"
	ManifestDispatched = "dispatched"
	ManifestConfirmed  = "confirmed"
)

// Manifest groups packages handed over to a courier in one dispatch.
type Manifest struct {
	ID           int64      `json:"id" db:"id"`
	CourierCode  string     `json:"courier_code" db:"courier_code"`
	Status       string     `json:"status" db:"status"`
	PackageCount int        `json:"package_count" db:"package_count"`
	DispatchedAt *time.Time `json:"dispatched_at,omitempty" db:"dispatched_at"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty" db:"confirmed_at"`
	ConfirmedBy  string     `json:"confirmed_by,omitempty" db:"confirmed_by"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}
