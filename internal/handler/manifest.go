package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/parcelbay/parcelbay/internal/auth"
	"github.com/parcelbay/parcelbay/internal/model"
	"github.com/parcelbay/parcelbay/internal/store"
)

// ManifestHandler exposes dispatch manifests: staff open and dispatch them,
// couriers list and confirm the ones addressed to them.
type ManifestHandler struct {
	store *store.Store
}

// NewManifestHandler creates a ManifestHandler.
func NewManifestHandler(st *store.Store) *ManifestHandler {
	return &ManifestHandler{store: st}
}

type createManifestRequest struct {
	CourierCode   string   `json:"courier_code"`
	TrackingCodes []string `json:"tracking_codes"`
}

// CreateManifest opens a manifest and optionally attaches packages to it.
// POST /api/v1/staff/manifests
func (h *ManifestHandler) CreateManifest(w http.ResponseWriter, r *http.Request) {
	var req createManifestRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CourierCode == "" {
		writeError(w, http.StatusBadRequest, "courier_code is required")
		return
	}

	m := &model.Manifest{
		CourierCode: strings.ToUpper(req.CourierCode),
		Status:      model.ManifestOpen,
	}
	if err := h.store.CreateManifest(r.Context(), m); err != nil {
		writeStoreError(w)
		return
	}

	attached := 0
	for _, code := range req.TrackingCodes {
		if err := h.store.AssignPackageToManifest(r.Context(), code, m.ID); err == nil {
			attached++
		}
	}
	m.PackageCount = attached

	writeJSON(w, http.StatusCreated, m)
}

// DispatchManifest hands an open manifest over to its courier.
// POST /api/v1/staff/manifests/{manifestId}/dispatch
func (h *ManifestHandler) DispatchManifest(w http.ResponseWriter, r *http.Request) {
	id, err := manifestID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid manifest ID")
		return
	}

	if err := h.store.DispatchManifest(r.Context(), id); err != nil {
		if notFound(err) {
			writeError(w, http.StatusNotFound, "No open manifest with that ID")
			return
		}
		writeStoreError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  model.ManifestDispatched,
	})
}

// ListCourierManifests returns the calling courier's manifests, optionally
// filtered by ?status=. The courier identity comes from the key principal,
// never from the request parameters.
// GET /api/v1/courier/manifests
func (h *ManifestHandler) ListCourierManifests(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if p.Kind != auth.KindCourierKey {
		writeError(w, http.StatusForbidden, "Courier credentials required")
		return
	}

	manifests, err := h.store.ListManifestsByCourier(r.Context(), p.CourierCode, r.URL.Query().Get("status"))
	if err != nil {
		writeStoreError(w)
		return
	}

	resources := make([]map[string]interface{}, 0, len(manifests))
	for i := range manifests {
		resources = append(resources, manifestToMap(&manifests[i]))
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta:     &model.ResponseMeta{Count: len(resources)},
	})
}

// ConfirmManifest records the courier's receipt of a dispatched manifest.
// POST /api/v1/courier/manifests/{manifestId}/confirm
func (h *ManifestHandler) ConfirmManifest(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	if p.Kind != auth.KindCourierKey {
		writeError(w, http.StatusForbidden, "Courier credentials required")
		return
	}

	id, err := manifestID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid manifest ID")
		return
	}

	m, err := h.store.GetManifest(r.Context(), id)
	if err != nil {
		if notFound(err) {
			writeError(w, http.StatusNotFound, "Manifest not found")
			return
		}
		writeStoreError(w)
		return
	}
	if m.CourierCode != p.CourierCode {
		writeError(w, http.StatusNotFound, "Manifest not found")
		return
	}

	if err := h.store.ConfirmManifest(r.Context(), id, p.CourierCode); err != nil {
		if notFound(err) {
			writeError(w, http.StatusConflict, "Manifest is not awaiting confirmation")
			return
		}
		writeStoreError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  model.ManifestConfirmed,
	})
}

func manifestID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "manifestId"), 10, 64)
}

func manifestToMap(m *model.Manifest) map[string]interface{} {
	out := map[string]interface{}{
		"id":            m.ID,
		"courier_code":  m.CourierCode,
		"status":        m.Status,
		"package_count": m.PackageCount,
		"created_at":    m.CreatedAt,
	}
	if m.DispatchedAt != nil {
		out["dispatched_at"] = m.DispatchedAt
	}
	if m.ConfirmedAt != nil {
		out["confirmed_at"] = m.ConfirmedAt
		out["confirmed_by"] = m.ConfirmedBy
	}
	return out
}
