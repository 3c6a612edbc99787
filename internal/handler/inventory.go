package handler

import (
	"net/http"

	"github.com/parcelbay/parcelbay/internal/model"
	"github.com/parcelbay/parcelbay/internal/store"
)

// InventoryHandler exposes warehouse stock to staff.
type InventoryHandler struct {
	store *store.Store
}

// NewInventoryHandler creates an InventoryHandler.
func NewInventoryHandler(st *store.Store) *InventoryHandler {
	return &InventoryHandler{store: st}
}

// ListInventory returns all stocked items.
// GET /api/v1/staff/inventory
func (h *InventoryHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.ListInventory(r.Context())
	if err != nil {
		writeStoreError(w)
		return
	}

	resources := make([]map[string]interface{}, 0, len(items))
	for i := range items {
		item := &items[i]
		resources = append(resources, map[string]interface{}{
			"id":         item.ID,
			"sku":        item.SKU,
			"name":       item.Name,
			"quantity":   item.Quantity,
			"location":   item.Location,
			"updated_at": item.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta:     &model.ResponseMeta{Count: len(resources)},
	})
}

type inventoryItemRequest struct {
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Location string `json:"location"`
}

// CreateItem adds a single stocked item.
// POST /api/v1/staff/inventory
func (h *InventoryHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req inventoryItemRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SKU == "" {
		writeError(w, http.StatusBadRequest, "sku is required")
		return
	}

	item := &model.InventoryItem{
		SKU:      req.SKU,
		Name:     req.Name,
		Quantity: req.Quantity,
		Location: req.Location,
	}
	if err := h.store.CreateInventoryItem(r.Context(), item); err != nil {
		if err == store.ErrConflict {
			writeError(w, http.StatusConflict, "SKU already exists: "+req.SKU)
			return
		}
		writeStoreError(w)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

type bulkUploadRequest struct {
	Items []inventoryItemRequest `json:"items"`
}

// maxBulkItems bounds one upload request.
const maxBulkItems = 1000

// BulkUpload upserts a batch of stocked items in one call. Sits behind the
// upload rate-limit tier.
// POST /api/v1/staff/inventory/bulk
func (h *InventoryHandler) BulkUpload(w http.ResponseWriter, r *http.Request) {
	var req bulkUploadRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "items is required")
		return
	}
	if len(req.Items) > maxBulkItems {
		writeError(w, http.StatusBadRequest, "Too many items in one upload")
		return
	}

	upserted := 0
	failed := make([]string, 0)
	for _, in := range req.Items {
		if in.SKU == "" {
			failed = append(failed, "(missing sku)")
			continue
		}
		item := &model.InventoryItem{
			SKU:      in.SKU,
			Name:     in.Name,
			Quantity: in.Quantity,
			Location: in.Location,
		}
		if err := h.store.UpsertInventoryItem(r.Context(), item); err != nil {
			failed = append(failed, in.SKU)
			continue
		}
		upserted++
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"upserted": upserted,
		"failed":   failed,
	})
}
