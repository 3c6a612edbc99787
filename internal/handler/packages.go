package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parcelbay/parcelbay/internal/auth"
	"github.com/parcelbay/parcelbay/internal/model"
	"github.com/parcelbay/parcelbay/internal/store"
)

// PackageHandler exposes package CRUD to staff, read access to customers,
// and status updates to couriers. All three surfaces work off the Principal
// supplied by the auth middleware.
type PackageHandler struct {
	store *store.Store
}

// NewPackageHandler creates a PackageHandler.
func NewPackageHandler(st *store.Store) *PackageHandler {
	return &PackageHandler{store: st}
}

// NewTrackingCode returns a fresh package tracking code, e.g. "PB-1A2B3C4D5E6F".
func NewTrackingCode() string {
	return "PB-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

type createPackageRequest struct {
	CustomerID  int64   `json:"customer_id"`
	CourierCode string  `json:"courier_code"`
	Description string  `json:"description"`
	WeightKg    float64 `json:"weight_kg"`
}

// CreatePackage registers an inbound package.
// POST /api/v1/staff/packages
func (h *PackageHandler) CreatePackage(w http.ResponseWriter, r *http.Request) {
	var req createPackageRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CustomerID == 0 {
		writeError(w, http.StatusBadRequest, "customer_id is required")
		return
	}

	pkg := &model.Package{
		TrackingCode: NewTrackingCode(),
		CustomerID:   req.CustomerID,
		CourierCode:  strings.ToUpper(req.CourierCode),
		Description:  req.Description,
		WeightKg:     req.WeightKg,
		Status:       model.PackageReceived,
	}
	if err := h.store.CreatePackage(r.Context(), pkg); err != nil {
		writeStoreError(w)
		return
	}

	writeJSON(w, http.StatusCreated, pkg)
}

// ListPackages returns packages. Staff see everything; customers see only
// their own, regardless of query parameters.
// GET /api/v1/staff/packages and GET /api/v1/customer/packages
func (h *PackageHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	customerID := int64(0)
	if p.Kind == auth.KindCustomer {
		customerID = p.ID
	}

	limit := queryInt(r, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0)

	pkgs, err := h.store.ListPackages(r.Context(), customerID, limit, offset)
	if err != nil {
		writeStoreError(w)
		return
	}

	resources := make([]map[string]interface{}, 0, len(pkgs))
	for i := range pkgs {
		resources = append(resources, packageToMap(&pkgs[i]))
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta:     &model.ResponseMeta{Count: len(resources), Limit: limit, Offset: offset},
	})
}

// GetPackage returns one package by tracking code. Customers can only fetch
// their own packages.
// GET /api/v1/staff/packages/{trackingCode} and /api/v1/customer/packages/{trackingCode}
func (h *PackageHandler) GetPackage(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	code := chi.URLParam(r, "trackingCode")
	pkg, err := h.store.GetPackageByTracking(r.Context(), code)
	if err != nil {
		if notFound(err) {
			writeError(w, http.StatusNotFound, "Package not found: "+code)
			return
		}
		writeStoreError(w)
		return
	}

	if p.Kind == auth.KindCustomer && pkg.CustomerID != p.ID {
		writeError(w, http.StatusNotFound, "Package not found: "+code)
		return
	}

	writeJSON(w, http.StatusOK, packageToMap(pkg))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// UpdateStatus moves a package to a new lifecycle status. Reachable by staff
// and, for the shipped-to-delivered hop, by couriers holding packages:write.
// PATCH /api/v1/staff/packages/{trackingCode} and /api/v1/courier/packages/{trackingCode}
func (h *PackageHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !model.ValidPackageStatus(req.Status) {
		writeError(w, http.StatusBadRequest, "Unknown status: "+req.Status)
		return
	}

	p, ok := principal(w, r)
	if !ok {
		return
	}

	code := chi.URLParam(r, "trackingCode")

	// Couriers may only report delivery of packages handed to them.
	if p.Kind == auth.KindCourierKey {
		pkg, err := h.store.GetPackageByTracking(r.Context(), code)
		if err != nil {
			if notFound(err) {
				writeError(w, http.StatusNotFound, "Package not found: "+code)
				return
			}
			writeStoreError(w)
			return
		}
		if pkg.CourierCode != p.CourierCode {
			writeError(w, http.StatusForbidden, "Package is not assigned to this courier")
			return
		}
		if req.Status != model.PackageDelivered {
			writeError(w, http.StatusBadRequest, "Couriers can only mark packages delivered")
			return
		}
	}

	if err := h.store.UpdatePackageStatus(r.Context(), code, req.Status); err != nil {
		if notFound(err) {
			writeError(w, http.StatusNotFound, "Package not found: "+code)
			return
		}
		writeStoreError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"tracking_code": code,
		"status":        req.Status,
	})
}

func packageToMap(p *model.Package) map[string]interface{} {
	m := map[string]interface{}{
		"id":            p.ID,
		"tracking_code": p.TrackingCode,
		"customer_id":   p.CustomerID,
		"courier_code":  p.CourierCode,
		"description":   p.Description,
		"weight_kg":     p.WeightKg,
		"status":        p.Status,
		"created_at":    p.CreatedAt,
		"updated_at":    p.UpdatedAt,
	}
	if p.ManifestID != nil {
		m["manifest_id"] = p.ManifestID
	}
	return m
}
