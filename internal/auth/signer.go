package auth

import (
	"crypto/ed25519"
	"time"

	"github.com/eldtechnologies/relay/internal/crypto"
)

// Signer mints bearer tokens that a TokenVerifier holding the matching public key accepts.
type Signer struct {
	key ed25519.PrivateKey
	ttl time.Duration
	now func() time.Time
}

// NewSigner creates a signer. A zero ttl issues tokens that never expire.
func NewSigner(key ed25519.PrivateKey, ttl time.Duration) *Signer {
	return &Signer{key: key, ttl: ttl, now: time.Now}
}

// PublicKey returns the key verifiers need.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// Issue returns a token for userID and its expiry (zero if it never expires).
func (s *Signer) Issue(userID, name string) (string, time.Time, error) {
	claims := crypto.NewClaims(userID, name, s.now(), s.ttl)
	token, err := crypto.IssueToken(s.key, claims)
	if err != nil {
		return "", time.Time{}, err
	}

	var expires time.Time
	if claims.ExpiresAt != 0 {
		expires = time.Unix(claims.ExpiresAt, 0).UTC()
	}
	return token, expires, nil
}
