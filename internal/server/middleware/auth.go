package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/parcelbay/parcelbay/internal/auth"
	"github.com/parcelbay/parcelbay/internal/model"
)

// Authenticator is the middleware-facing bundle of the two authenticator
// variants. One resolver produces a typed credential per route family; the
// matching authenticator turns it into a Principal on the request context.
type Authenticator struct {
	Sessions *auth.SessionAuthenticator
	Keys     *auth.APIKeyAuthenticator
	Logger   *slog.Logger
}

// Require returns the authentication middleware for one route family. On
// success the resolved Principal rides the request context; on failure the
// request short-circuits with 401 (or 500 for store faults, with detail kept
// server-side).
func (a *Authenticator) Require(family auth.RouteFamily) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, err := auth.ResolveCredential(r, family)
			if err != nil {
				a.fail(w, r, err)
				return
			}

			var principal *auth.Principal
			switch cred.Kind {
			case auth.CredentialSession:
				principal, err = a.Sessions.Authenticate(r.Context(), cred.Value)
			case auth.CredentialWarehouseKey:
				principal, err = a.Keys.Authenticate(r.Context(), cred.Value, model.KeyPurposeWarehouse)
			case auth.CredentialCourierKey:
				principal, err = a.Keys.Authenticate(r.Context(), cred.Value, model.KeyPurposeCourier)
			default:
				err = auth.ErrMissingCredential
			}
			if err != nil {
				a.fail(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAccess returns the authorization middleware for a route. Session
// principals are gated on the role set; key principals on the permission
// list. A route that declares no permissions is closed to key principals,
// and one that declares no roles is closed to session principals. The two
// schemes never substitute for each other.
func RequireAccess(roles []string, perms []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := auth.PrincipalFrom(r.Context())
			if p == nil {
				writeAuthJSON(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			var err error
			if p.Kind == auth.KindCourierKey {
				if len(perms) == 0 {
					err = auth.ErrInsufficientPermissions
				} else {
					err = auth.AuthorizePermissions(p, perms...)
				}
			} else {
				if len(roles) == 0 {
					err = auth.ErrInsufficientRole
				} else {
					err = auth.Authorize(p, roles...)
				}
			}
			if err != nil {
				writeAuthJSON(w, http.StatusForbidden, "Access denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoles is RequireAccess for session-only routes.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return RequireAccess(roles, nil)
}

// RequirePermissions is RequireAccess for key-only routes.
func RequirePermissions(perms ...string) func(http.Handler) http.Handler {
	return RequireAccess(nil, perms)
}

// fail maps an authentication error to its response. The client always sees
// a flat 401 for credential problems so probes cannot distinguish a revoked
// key from an unknown one; the precise cause goes to the log.
func (a *Authenticator) fail(w http.ResponseWriter, r *http.Request, err error) {
	if auth.IsStoreError(err) {
		if a.Logger != nil {
			a.Logger.Error("auth store failure",
				"error", err,
				"path", r.URL.Path,
				"request_id", GetRequestID(r.Context()),
			)
		}
		writeAuthJSON(w, http.StatusInternalServerError, "Internal error")
		return
	}

	if a.Logger != nil {
		a.Logger.Warn("authentication rejected",
			"reason", err.Error(),
			"path", r.URL.Path,
			"request_id", GetRequestID(r.Context()),
		)
	}

	msg := "Authentication required"
	if !errors.Is(err, auth.ErrMissingCredential) {
		msg = "Invalid credentials"
	}
	writeAuthJSON(w, http.StatusUnauthorized, msg)
}

func writeAuthJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{Code: status, Message: message},
	})
}
