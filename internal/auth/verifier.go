// Package auth verifies bearer credentials presented by clients.
package auth

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eldtechnologies/relay/internal/crypto"
	"github.com/eldtechnologies/relay/internal/models"
)

var (
	// ErrAuthentication is wrapped by every credential failure.
	ErrAuthentication = errors.New("authentication failed")

	ErrMissingToken    = fmt.Errorf("%w: missing token", ErrAuthentication)
	ErrInvalidToken    = fmt.Errorf("%w: invalid token", ErrAuthentication)
	ErrTokenExpired    = fmt.Errorf("%w: token expired", ErrAuthentication)
	ErrUnknownIdentity = fmt.Errorf("%w: unknown user", ErrAuthentication)
	ErrInactiveAccount = fmt.Errorf("%w: account inactive", ErrAuthentication)
)

// Identity is the authenticated user attached to a connection or request.
type Identity struct {
	UserID      string
	DisplayName string
}

// Verifier validates a bearer credential.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// UserLookup is the directory subset the verifier needs.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// TokenVerifier checks Ed25519-signed tokens and confirms the subject is an active user.
type TokenVerifier struct {
	publicKey ed25519.PublicKey
	users     UserLookup
	now       func() time.Time
}

// NewTokenVerifier creates a verifier for tokens signed by the holder of publicKey.
func NewTokenVerifier(publicKey ed25519.PublicKey, users UserLookup) *TokenVerifier {
	return &TokenVerifier{
		publicKey: publicKey,
		users:     users,
		now:       time.Now,
	}
}

// Verify implements Verifier.
func (v *TokenVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	claims, err := crypto.ParseToken(v.publicKey, token, v.now())
	if err != nil {
		if errors.Is(err, crypto.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	user, err := v.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("lookup user %s: %w", claims.Subject, err)
	}
	if user == nil {
		return nil, ErrUnknownIdentity
	}
	if !user.IsActive {
		return nil, ErrInactiveAccount
	}

	name := user.Name
	if name == "" {
		name = claims.Name
	}
	return &Identity{UserID: user.ID, DisplayName: name}, nil
}

// TokenFromRequest extracts a bearer token from the Authorization header
// or, for browser WebSocket clients, the "token" query parameter.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
