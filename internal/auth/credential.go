package auth

import (
	"net/http"
	"strings"
)

// CredentialKind identifies one of the three credential forms the API accepts.
type CredentialKind string

const (
	CredentialSession      CredentialKind = "session"
	CredentialWarehouseKey CredentialKind = "warehouse-key"
	CredentialCourierKey   CredentialKind = "courier-key"
)

// Credential is a tagged value produced by the resolver: exactly one kind,
// carrying the raw credential string as presented on the wire.
type Credential struct {
	Kind  CredentialKind
	Value string
}

// RouteFamily names a group of routes sharing one credential-resolution rule.
// The Authorization: Bearer header is overloaded: on staff and customer
// routes it carries a signed session token, on courier routes it carries a
// raw API key matched against the key store. The family is the only thing
// that disambiguates the two readings, so resolution is declared per family
// as an ordered rule table rather than scattered per route.
type RouteFamily string

const (
	FamilyStaff    RouteFamily = "staff"
	FamilyCustomer RouteFamily = "customer"
	FamilyCourier  RouteFamily = "courier"
)

// Header names consumed by the resolver.
const (
	HeaderAuthorization = "Authorization"
	HeaderWarehouseKey  = "X-API-Key"
	HeaderCourierKey    = "X-KCD-API-Key"
)

// resolveRule maps one header to the credential kind it yields for a family.
type resolveRule struct {
	header string
	bearer bool // strip the "Bearer " scheme prefix
	kind   CredentialKind
}

// familyRules is the precedence table: for each family, rules are tried in
// order and the first header present wins.
var familyRules = map[RouteFamily][]resolveRule{
	FamilyStaff: {
		{header: HeaderWarehouseKey, kind: CredentialWarehouseKey},
		{header: HeaderAuthorization, bearer: true, kind: CredentialSession},
	},
	FamilyCustomer: {
		{header: HeaderAuthorization, bearer: true, kind: CredentialSession},
	},
	FamilyCourier: {
		{header: HeaderCourierKey, kind: CredentialCourierKey},
		{header: HeaderAuthorization, bearer: true, kind: CredentialCourierKey},
	},
}

// ResolveCredential inspects the request headers against the family's rule
// table and returns exactly one typed credential, or ErrMissingCredential if
// no accepted header is present. A present-but-empty header, or a malformed
// Authorization scheme, is ErrMalformedCredential. Pure inspection, no side
// effects.
func ResolveCredential(r *http.Request, family RouteFamily) (Credential, error) {
	for _, rule := range familyRules[family] {
		raw := r.Header.Get(rule.header)
		if raw == "" {
			continue
		}
		if rule.bearer {
			if !strings.HasPrefix(raw, "Bearer ") {
				return Credential{}, ErrMalformedCredential
			}
			raw = strings.TrimPrefix(raw, "Bearer ")
		}
		if strings.TrimSpace(raw) == "" {
			return Credential{}, ErrMalformedCredential
		}
		return Credential{Kind: rule.kind, Value: raw}, nil
	}
	return Credential{}, ErrMissingCredential
}
