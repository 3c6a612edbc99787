package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parcelbay/parcelbay/internal/auth"
	"github.com/parcelbay/parcelbay/internal/model"
)

// KeyHandler exposes the API key lifecycle to admins: issue, list, inspect,
// revoke. The raw key value appears in exactly one response (the issue
// call's) and in no query surface afterwards.
type KeyHandler struct {
	manager *auth.KeyManager
}

// NewKeyHandler creates a KeyHandler.
func NewKeyHandler(manager *auth.KeyManager) *KeyHandler {
	return &KeyHandler{manager: manager}
}

type issueKeyRequest struct {
	CourierCode   string   `json:"courier_code"`
	Purpose       string   `json:"purpose"`
	Description   string   `json:"description"`
	ExpiresInDays int      `json:"expires_in_days"`
	Permissions   []string `json:"permissions"`
}

// issueKeyResponse includes the plaintext key (shown once only).
type issueKeyResponse struct {
	ID          int64     `json:"id"`
	APIKey      string    `json:"api_key"` // Plaintext, shown ONCE.
	KeyPrefix   string    `json:"key_prefix"`
	CourierCode string    `json:"courier_code"`
	Purpose     string    `json:"purpose"`
	Description string    `json:"description"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
	NextSteps   string    `json:"next_steps"`
}

// IssueKey generates a new API key and returns the plaintext exactly once.
// POST /api/v1/staff/api-keys
func (h *KeyHandler) IssueKey(w http.ResponseWriter, r *http.Request) {
	var req issueKeyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Purpose == "" {
		req.Purpose = model.KeyPurposeCourier
	}
	if req.Purpose != model.KeyPurposeCourier && req.Purpose != model.KeyPurposeWarehouse {
		writeError(w, http.StatusBadRequest, "Purpose must be courier or warehouse")
		return
	}
	if req.Purpose == model.KeyPurposeCourier && req.CourierCode == "" {
		writeError(w, http.StatusBadRequest, "courier_code is required for courier keys")
		return
	}
	if req.ExpiresInDays <= 0 {
		writeError(w, http.StatusBadRequest, "expires_in_days must be positive")
		return
	}

	p, ok := principal(w, r)
	if !ok {
		return
	}

	issued, err := h.manager.Issue(r.Context(),
		strings.ToUpper(req.CourierCode), req.Purpose, req.Description,
		req.ExpiresInDays, req.Permissions, p.UserCode)
	if err != nil {
		if auth.IsStoreError(err) {
			writeStoreError(w)
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, issueKeyResponse{
		ID:          issued.Metadata.ID,
		APIKey:      issued.RawKey,
		KeyPrefix:   issued.Metadata.KeyPrefix,
		CourierCode: issued.Metadata.OwnerCourierCode,
		Purpose:     issued.Metadata.Purpose,
		Description: issued.Metadata.Description,
		Permissions: issued.Metadata.Permissions(),
		ExpiresAt:   issued.Metadata.ExpiresAt,
		CreatedAt:   issued.Metadata.CreatedAt,
		NextSteps:   "Store this key securely. It will not be shown again.",
	})
}

// ListKeys returns metadata for all issued keys. No raw key material.
// GET /api/v1/staff/api-keys
func (h *KeyHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.manager.List(r.Context())
	if err != nil {
		writeStoreError(w)
		return
	}

	resources := make([]map[string]interface{}, 0, len(keys))
	for i := range keys {
		resources = append(resources, apiKeyToMap(&keys[i]))
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta:     &model.ResponseMeta{Count: len(resources)},
	})
}

// KeyInfo summarizes the keys issued to one courier.
// GET /api/v1/staff/api-keys/courier/{courierCode}
func (h *KeyHandler) KeyInfo(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "courierCode"))
	info, err := h.manager.Info(r.Context(), code)
	if err != nil {
		writeStoreError(w)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// RevokeKey deactivates a key. Revoking twice is a no-op success.
// DELETE /api/v1/staff/api-keys/{keyId}
func (h *KeyHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "keyId")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid key ID: "+idStr)
		return
	}

	p, ok := principal(w, r)
	if !ok {
		return
	}

	if err := h.manager.Revoke(r.Context(), id, p.UserCode); err != nil {
		if err == auth.ErrKeyNotFound {
			writeError(w, http.StatusNotFound, "API key not found: "+idStr)
			return
		}
		writeStoreError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "API key revoked",
	})
}

func apiKeyToMap(key *model.APIKey) map[string]interface{} {
	m := map[string]interface{}{
		"id":                 key.ID,
		"key_prefix":         key.KeyPrefix,
		"owner_courier_code": key.OwnerCourierCode,
		"purpose":            key.Purpose,
		"description":        key.Description,
		"permissions":        key.Permissions(),
		"is_active":          key.IsActive,
		"expires_at":         key.ExpiresAt,
		"usage_count":        key.UsageCount,
		"created_by":         key.CreatedBy,
		"created_at":         key.CreatedAt,
	}
	if key.LastUsedAt != nil {
		m["last_used_at"] = key.LastUsedAt
	}
	if key.DeactivatedAt != nil {
		m["deactivated_at"] = key.DeactivatedAt
		m["deactivated_by"] = key.DeactivatedBy
	}
	return m
}
