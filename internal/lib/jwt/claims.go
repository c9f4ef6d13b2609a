// Package jwt implements generation and parsing of the access tokens the
// API hands out on login.
package jwt

import (
	"time"
)

// Maker describes generation and parsing of signed tokens.
type Maker interface {
	// GenerateToken issues a token for the given username, role and user UID.
	GenerateToken(username, role, userUID string) (string, error)
	// ParseToken validates a token and returns its claims.
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl implements Maker with an HS256 secret and a token TTL.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker creates a MakerImpl from a secret key and TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
