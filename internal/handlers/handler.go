package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/eldtechnologies/relay/internal/auth"
	"github.com/eldtechnologies/relay/internal/relay"
	"github.com/eldtechnologies/relay/internal/store"
)

// emailRegex validates email addresses per RFC 5322 (simplified).
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	db     store.DataStore
	redis  *store.RedisStore
	relay  *relay.Relay
	signer *auth.Signer
	node   string
}

// NewHandler creates a new Handler. redis and signer may be nil.
func NewHandler(db store.DataStore, redis *store.RedisStore, r *relay.Relay, signer *auth.Signer, node string) *Handler {
	return &Handler{db: db, redis: redis, relay: r, signer: signer, node: node}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}

// sanitizeName trims and limits name to 100 characters, removing control characters.
func sanitizeName(name string) string {
	// Remove control characters
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(name))

	// Limit to 100 characters
	if runes := []rune(name); len(runes) > 100 {
		name = string(runes[:100])
	}
	return name
}

// isValidEmail reports whether email is empty or a plausible address.
func isValidEmail(email string) bool {
	if email == "" {
		return true
	}
	// Must be reasonable length and match RFC 5322 pattern
	if len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}
