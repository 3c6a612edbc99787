package handler

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/parcelbay/parcelbay/internal/auth"
	"github.com/parcelbay/parcelbay/internal/store"
)

// SessionHandler owns login, logout, and the password-reset request surface.
type SessionHandler struct {
	store    *store.Store
	sessions *auth.SessionManager
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(st *store.Store, sessions *auth.SessionManager) *SessionHandler {
	return &SessionHandler{store: st, sessions: sessions}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"session_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
	UserID    int64  `json:"user_id"`
	UserCode  string `json:"user_code"`
	Role      string `json:"role"`
	Name      string `json:"name"`
}

// Login authenticates a staff or customer account and returns a signed
// session token.
// POST /api/v1/session
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if notFound(err) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		writeStoreError(w)
		return
	}
	if !user.IsActive {
		writeError(w, http.StatusUnauthorized, "Account is disabled")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.sessions.Issue(r.Context(), user.ID, user.Role, user.UserCode)
	if err != nil {
		writeStoreError(w)
		return
	}

	_ = h.store.UpdateUserLastLogin(r.Context(), user.ID)

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(h.sessions.TTL().Seconds()),
		UserID:    user.ID,
		UserCode:  user.UserCode,
		Role:      user.Role,
		Name:      user.Name,
	})
}

// Logout invalidates the current session. Tokens are stateless, so this is a
// server-side no-op; clients discard the token.
// DELETE /api/v1/session
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Session invalidated",
	})
}

// RequestPasswordReset accepts a reset request. The response is identical
// whether or not the address has an account, so the endpoint cannot be used
// to enumerate users. Mail delivery is handled by an external notifier.
// POST /api/v1/password-reset
func (h *SessionHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := readJSON(r, &req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success": true,
		"message": "If the account exists, a reset link has been sent",
	})
}
