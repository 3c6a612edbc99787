package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/parcelbay/parcelbay/internal/auth"
	"github.com/parcelbay/parcelbay/internal/model"
	"github.com/parcelbay/parcelbay/internal/store"
)

// writeJSON serializes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard envelope.
func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{Code: code, Message: message},
	})
}

// writeStoreError hides infrastructure detail from callers: the response is
// a generic 500 and the caller-visible message never includes the wrapped
// error. Request logging upstream records the status for correlation.
func writeStoreError(w http.ResponseWriter) {
	writeError(w, http.StatusInternalServerError, "Internal error")
}

// readJSON decodes the request body as JSON into v.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryInt extracts an integer query parameter with a default.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// principal returns the authenticated principal, failing the request with
// 401 when it is absent. Handlers never re-derive identity from headers.
func principal(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p := auth.PrincipalFrom(r.Context())
	if p == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	return p, true
}

// notFound reports whether err is the store's missing-record sentinel.
func notFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
