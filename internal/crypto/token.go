package crypto

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrTokenExpired   = errors.New("token expired")
)

// Claims is the signed body of a bearer token.
type Claims struct {
	Subject   string `json:"sub"`
	Name      string `json:"name,omitempty"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Expired reports whether the claims are no longer valid at now.
func (c *Claims) Expired(now time.Time) bool {
	return c.ExpiresAt != 0 && now.Unix() >= c.ExpiresAt
}

// IssueToken signs claims with priv.
// Format: base64url(claims JSON) "." base64url(signature over the first segment)
func IssueToken(priv ed25519.PrivateKey, claims Claims) (string, error) {
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: subject is required", ErrMalformedToken)
	}

	body, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	payload := base64.RawURLEncoding.EncodeToString(body)
	sig := ed25519.Sign(priv, []byte(payload))
	return payload + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// NewClaims builds claims for subject valid for ttl from now. A zero ttl never expires.
func NewClaims(subject, name string, now time.Time, ttl time.Duration) Claims {
	c := Claims{Subject: subject, Name: name, IssuedAt: now.Unix()}
	if ttl != 0 {
		c.ExpiresAt = now.Add(ttl).Unix()
	}
	return c
}

// ParseToken verifies token against pub and returns its claims.
func ParseToken(pub ed25519.PublicKey, token string, now time.Time) (*Claims, error) {
	payload, sigB64, ok := strings.Cut(token, ".")
	if !ok || payload == "" || sigB64 == "" {
		return nil, ErrMalformedToken
	}

	sig, err := base64.RawURLEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid signature encoding", ErrMalformedToken)
	}

	if err := VerifySignature(pub, []byte(payload), sig); err != nil {
		return nil, err
	}

	body, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid payload encoding", ErrMalformedToken)
	}

	var claims Claims
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformedToken)
	}
	if claims.Expired(now) {
		return nil, ErrTokenExpired
	}

	return &claims, nil
}
