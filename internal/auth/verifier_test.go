package auth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/relay/internal/crypto"
	"github.com/eldtechnologies/relay/internal/models"
)

type mockUsers struct {
	users map[string]*models.User
	err   error
}

func (m *mockUsers) GetUserByID(_ context.Context, id string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users[id], nil
}

func newTestVerifier(t *testing.T) (*TokenVerifier, ed25519.PrivateKey, *mockUsers) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	users := &mockUsers{users: map[string]*models.User{
		"u1": {ID: "u1", Name: "Alice", IsActive: true},
		"u2": {ID: "u2", Name: "Bob", IsActive: false},
		"u3": {ID: "u3", IsActive: true},
	}}
	return NewTokenVerifier(pub, users), priv, users
}

func issue(t *testing.T, priv ed25519.PrivateKey, sub, name string, ttl time.Duration) string {
	t.Helper()
	token, err := crypto.IssueToken(priv, crypto.NewClaims(sub, name, time.Now(), ttl))
	require.NoError(t, err)
	return token
}

func TestTokenVerifier_Valid(t *testing.T) {
	v, priv, _ := newTestVerifier(t)

	id, err := v.Verify(context.Background(), issue(t, priv, "u1", "", time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)
	assert.Equal(t, "Alice", id.DisplayName)
}

func TestTokenVerifier_FallsBackToClaimName(t *testing.T) {
	v, priv, _ := newTestVerifier(t)

	id, err := v.Verify(context.Background(), issue(t, priv, "u3", "Carol", time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "Carol", id.DisplayName)
}

func TestTokenVerifier_Failures(t *testing.T) {
	v, priv, _ := newTestVerifier(t)
	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"missing", "", ErrMissingToken},
		{"garbage", "not-a-token", ErrInvalidToken},
		{"wrong signer", issue(t, otherPriv, "u1", "", time.Hour), ErrInvalidToken},
		{"expired", issue(t, priv, "u1", "", -time.Minute), ErrTokenExpired},
		{"unknown user", issue(t, priv, "nobody", "", time.Hour), ErrUnknownIdentity},
		{"inactive user", issue(t, priv, "u2", "", time.Hour), ErrInactiveAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := v.Verify(context.Background(), tt.token)
			assert.Nil(t, id)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrAuthentication)
		})
	}
}

func TestTokenVerifier_DirectoryError(t *testing.T) {
	v, priv, users := newTestVerifier(t)
	users.err = errors.New("db down")

	_, err := v.Verify(context.Background(), issue(t, priv, "u1", "", time.Hour))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuthentication)
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   string
	}{
		{"bearer header", "Bearer abc.def", "", "abc.def"},
		{"case insensitive scheme", "bearer abc.def", "", "abc.def"},
		{"non bearer header", "Basic Zm9vOmJhcg==", "abc", ""},
		{"query param", "", "abc.def", "abc.def"},
		{"nothing", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/ws"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			r := httptest.NewRequest("GET", target, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.want, TokenFromRequest(r))
		})
	}
}

func TestSigner_IssuesVerifiableTokens(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer := NewSigner(priv, time.Hour)
	users := &mockUsers{users: map[string]*models.User{
		"u1": {ID: "u1", Name: "Alice", IsActive: true},
	}}
	v := NewTokenVerifier(signer.PublicKey(), users)

	token, expires, err := signer.Issue("u1", "Alice")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 2*time.Second)

	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", id.UserID)

	_, expires, err = NewSigner(priv, 0).Issue("u1", "")
	require.NoError(t, err)
	assert.True(t, expires.IsZero())

	_, _, err = signer.Issue("", "")
	assert.Error(t, err)
}
