package auth

import (
	"errors"
	"fmt"
)

// Failure taxonomy for authentication and authorization. Every failure maps
// to exactly one HTTP status at the response boundary: 401 for credential
// problems, 403 for authorization problems, 500 for store faults. None of
// these are retried server-side.
var (
	ErrMissingCredential        = errors.New("missing credential")
	ErrMalformedCredential      = errors.New("malformed credential")
	ErrExpiredCredential        = errors.New("expired credential")
	ErrRevokedCredential        = errors.New("revoked credential")
	ErrKeyNotFound              = errors.New("api key not found")
	ErrWrongKeyPurpose          = errors.New("api key not valid for this route")
	ErrSubjectNotFound          = errors.New("subject not found")
	ErrAccountInactive          = errors.New("account inactive")
	ErrInsufficientRole         = errors.New("insufficient role")
	ErrInsufficientPermissions  = errors.New("insufficient permissions")
)

// StoreError wraps an infrastructure fault from the user or key store. The
// response boundary turns it into a generic 500; the wrapped detail is for
// server-side logs only.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreError reports whether err is an infrastructure fault rather than a
// credential or authorization failure.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
