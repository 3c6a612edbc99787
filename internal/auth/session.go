package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionManager issues and verifies signed session tokens for staff and
// customer logins. Tokens are stateless HS256 JWTs: validity is purely the
// signature plus the embedded expiry, there is no server-side session
// record to revoke.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionManager creates a SessionManager signing with the given secret.
func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionManager{secret: []byte(secret), ttl: ttl}
}

// TTL returns the configured token lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

type sessionClaims struct {
	Role     string `json:"role"`
	UserCode string `json:"user_code"`
	jwt.RegisteredClaims
}

// Issue creates a signed session token for the given account.
func (m *SessionManager) Issue(ctx context.Context, subjectID int64, role, userCode string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		Role:     role,
		UserCode: userCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   itoa64(subjectID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Issuer:    "parcelbay",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// SessionClaim is the identity embedded in a verified session token.
type SessionClaim struct {
	SubjectID int64
	Role      string
	UserCode  string
}

// Verify checks a token's signature and expiry and extracts the identity
// claim. Expired tokens map to ErrExpiredCredential; anything else wrong
// with the token is ErrMalformedCredential.
func (m *SessionManager) Verify(ctx context.Context, tokenStr string) (*SessionClaim, error) {
	claims := &sessionClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredCredential
		}
		return nil, ErrMalformedCredential
	}
	if !token.Valid {
		return nil, ErrMalformedCredential
	}

	id, err := atoi64(claims.Subject)
	if err != nil {
		return nil, ErrMalformedCredential
	}

	return &SessionClaim{
		SubjectID: id,
		Role:      claims.Role,
		UserCode:  claims.UserCode,
	}, nil
}
