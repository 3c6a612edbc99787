package auth

import "context"

// PrincipalKind discriminates the three actor populations.
type PrincipalKind string

const (
	KindStaff      PrincipalKind = "staff"
	KindCustomer   PrincipalKind = "customer"
	KindCourierKey PrincipalKind = "courier-key"
)

// Principal is the resolved identity for one request. It is created fresh per
// request, attached to the request context as an immutable value, and never
// persisted. Session-based kinds carry a role; key-based kinds carry a
// permission set and the owning courier code.
type Principal struct {
	Kind        PrincipalKind
	ID          int64
	UserCode    string
	Role        string   // staff and customer kinds only
	Permissions []string // courier-key kind only
	CourierCode string   // courier-key kind only
	KeyID       int64    // courier-key kind only
}

// HasPermission reports whether the principal's permission set contains perm.
func (p *Principal) HasPermission(perm string) bool {
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

type contextKey string

const principalKey contextKey = "auth_principal"

// WithPrincipal returns a child context carrying the principal. Handlers down
// the chain read it back with PrincipalFrom; the request object itself is
// never mutated.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom extracts the authenticated principal from the context.
// Returns nil for unauthenticated requests.
func PrincipalFrom(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalKey).(*Principal); ok {
		return p
	}
	return nil
}
