package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/parcelbay/parcelbay/internal/model"
	"github.com/parcelbay/parcelbay/internal/store"
)

// UserStore is the user-store contract the session authenticator consumes.
type UserStore interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}

// KeyStore is the key-store contract the API key authenticator and the key
// lifecycle manager consume. Lookup is by SHA-256 digest of the presented
// raw value.
type KeyStore interface {
	GetAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error)
	TouchAPIKey(ctx context.Context, id int64) error
}

// SessionAuthenticator turns a session credential into a Principal: verify
// the token, load the subject, reject inactive accounts.
type SessionAuthenticator struct {
	sessions *SessionManager
	users    UserStore
}

// NewSessionAuthenticator wires a SessionAuthenticator.
func NewSessionAuthenticator(sessions *SessionManager, users UserStore) *SessionAuthenticator {
	return &SessionAuthenticator{sessions: sessions, users: users}
}

// Authenticate validates the token and resolves the subject. The account must
// still exist and be active; the token alone is not enough.
func (a *SessionAuthenticator) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claim, err := a.sessions.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := a.users.GetUserByID(ctx, claim.SubjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, &StoreError{Op: "session subject lookup", Err: err}
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	kind := KindStaff
	if user.Role == model.RoleCustomer {
		kind = KindCustomer
	}
	return &Principal{
		Kind:     kind,
		ID:       user.ID,
		UserCode: user.UserCode,
		Role:     user.Role,
	}, nil
}

// APIKeyAuthenticator turns a raw key string into a Principal by exact-value
// lookup in the key store, restricted to one key purpose (warehouse keys
// never authenticate courier routes and vice versa).
type APIKeyAuthenticator struct {
	keys KeyStore
	now  func() time.Time
}

// NewAPIKeyAuthenticator wires an APIKeyAuthenticator.
func NewAPIKeyAuthenticator(keys KeyStore) *APIKeyAuthenticator {
	return &APIKeyAuthenticator{keys: keys, now: time.Now}
}

// Authenticate looks up the presented key and checks purpose, revocation, and
// expiry. Expiry wins over the active flag: a key past expires_at never
// authenticates even if nobody revoked it. On success it records usage in the
// background; the increment is accounting, not a security boundary, so a
// failed touch never fails the request.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, rawKey, purpose string) (*Principal, error) {
	key, err := a.keys.GetAPIKeyByHash(ctx, store.HashAPIKey(rawKey))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, &StoreError{Op: "api key lookup", Err: err}
	}

	if key.Purpose != purpose {
		return nil, ErrWrongKeyPurpose
	}
	if !a.now().Before(key.ExpiresAt) {
		return nil, ErrExpiredCredential
	}
	if !key.IsActive {
		return nil, ErrRevokedCredential
	}

	// Best-effort usage accounting, off the request path.
	go func(id int64) {
		_ = a.keys.TouchAPIKey(context.Background(), id)
	}(key.ID)

	return &Principal{
		Kind:        KindCourierKey,
		ID:          key.ID,
		KeyID:       key.ID,
		CourierCode: key.OwnerCourierCode,
		Permissions: key.Permissions(),
	}, nil
}

func itoa64(n int64) string {
	return strconv.FormatInt(n, 10)
}

func atoi64(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
