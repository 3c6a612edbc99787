package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/parcelbay/parcelbay/internal/model"
	"github.com/parcelbay/parcelbay/internal/store"
)

// UserHandler manages staff and customer accounts.
type UserHandler struct {
	store *store.Store
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(st *store.Store) *UserHandler {
	return &UserHandler{store: st}
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

// NewUserCode returns a short public account identifier, e.g. "USR-3FA1B2C4".
func NewUserCode() string {
	return "USR-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// CreateUser registers a new staff or customer account.
// POST /api/v1/staff/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	if !model.ValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "Role must be one of: admin, warehouse, customer")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeStoreError(w)
		return
	}

	user := &model.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
		UserCode:     NewUserCode(),
		Role:         req.Role,
		IsActive:     true,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		if err == store.ErrConflict {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}
		writeStoreError(w)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// ListUsers returns accounts, optionally filtered by ?role=.
// GET /api/v1/staff/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role != "" && !model.ValidRole(role) {
		writeError(w, http.StatusBadRequest, "Unknown role: "+role)
		return
	}

	users, err := h.store.ListUsers(r.Context(), role)
	if err != nil {
		writeStoreError(w)
		return
	}

	resources := make([]map[string]interface{}, 0, len(users))
	for i := range users {
		resources = append(resources, userToMap(&users[i]))
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta:     &model.ResponseMeta{Count: len(resources)},
	})
}

// DeactivateUser disables an account. An actor can never deactivate their
// own account through this endpoint, so the last admin cannot lock everyone
// out by accident.
// DELETE /api/v1/staff/users/{userId}
func (h *UserHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "userId")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID: "+idStr)
		return
	}

	p, ok := principal(w, r)
	if !ok {
		return
	}
	if p.ID == id {
		writeError(w, http.StatusForbidden, "Cannot deactivate your own account")
		return
	}

	if err := h.store.SetUserActive(r.Context(), id, false); err != nil {
		if notFound(err) {
			writeError(w, http.StatusNotFound, "User not found: "+idStr)
			return
		}
		writeStoreError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Account deactivated",
	})
}

func userToMap(u *model.User) map[string]interface{} {
	m := map[string]interface{}{
		"id":         u.ID,
		"email":      u.Email,
		"name":       u.Name,
		"user_code":  u.UserCode,
		"role":       u.Role,
		"is_active":  u.IsActive,
		"created_at": u.CreatedAt,
	}
	if u.LastLoginAt != nil {
		m["last_login_at"] = u.LastLoginAt
	}
	return m
}
