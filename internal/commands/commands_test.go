package commands

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/relay/internal/crypto"
	"github.com/eldtechnologies/relay/internal/models"
)

type harness struct {
	sqlite string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "SQLITE_PATH", "TOKEN_SIGNING_KEY", "TOKEN_TTL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return &harness{sqlite: filepath.Join(t.TempDir(), "relay.db")}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	flags := &Flags{Out: &out}
	argv := append([]string{"relayctl", "--sqlite-path", h.sqlite}, args...)
	err := NewApp(flags).Run(context.Background(), argv)
	return out.String(), err
}

func TestUserLifecycle(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "user", "create", "--name", "Alice", "--email", "alice@example.com")
	require.NoError(t, err)
	id := strings.TrimSpace(out)
	require.NotEmpty(t, id)

	out, err = h.run(t, "user", "show", id)
	require.NoError(t, err)
	var user models.User
	require.NoError(t, json.Unmarshal([]byte(out), &user))
	assert.Equal(t, "Alice", user.Name)
	assert.True(t, user.IsActive)

	out, err = h.run(t, "user", "deactivate", id)
	require.NoError(t, err)
	assert.Equal(t, "deactivated "+id+"\n", out)

	out, err = h.run(t, "user", "show", id)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &user))
	assert.False(t, user.IsActive)

	_, err = h.run(t, "user", "activate", id)
	require.NoError(t, err)
}

func TestUserCommands_Errors(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "user", "show")
	assert.EqualError(t, err, "user ID is required")

	_, err = h.run(t, "user", "deactivate", "missing")
	assert.EqualError(t, err, "user missing not found")
}

func TestTokenIssue(t *testing.T) {
	h := newHarness(t)
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	key := base64.StdEncoding.EncodeToString(priv.Seed())

	out, err := h.run(t, "token", "issue", "--signing-key", key, "--subject", "user-1", "--name", "Alice", "--ttl", "1h")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "expires "))

	claims, err := crypto.ParseToken(pub, lines[0], time.Now())
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "Alice", claims.Name)
}

func TestTokenIssue_NoExpiry(t *testing.T) {
	h := newHarness(t)
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	out, err := h.run(t, "token", "issue", "--signing-key", base64.StdEncoding.EncodeToString(priv), "--subject", "u", "--ttl", "0s")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1)
}

func TestTokenIssue_RequiresKey(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "token", "issue", "--subject", "u")
	assert.EqualError(t, err, "--signing-key or TOKEN_SIGNING_KEY is required")
}
