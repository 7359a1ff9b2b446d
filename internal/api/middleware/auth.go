package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/relay/internal/auth"
)

type contextKey string

const IdentityContextKey contextKey = "identity"

// AuthMiddleware checks bearer tokens on authenticated endpoints.
type AuthMiddleware struct {
	verifier auth.Verifier
	logger   zerolog.Logger
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(verifier auth.Verifier, logger zerolog.Logger) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's identity in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.TokenFromRequest(r)
		if token == "" {
			jsonError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		identity, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrAuthentication) {
				m.logger.Warn().
					Str("type", "security").
					Str("event", "auth_rejected").
					Str("ip", RealIP(r)).
					Str("endpoint", r.URL.Path).
					Err(err).
					Msg("request rejected")
				jsonError(w, http.StatusUnauthorized, err.Error())
				return
			}
			m.logger.Error().Err(err).Msg("credential verification failed")
			jsonError(w, http.StatusInternalServerError, "authentication unavailable")
			return
		}

		ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetIdentityFromContext retrieves the authenticated caller from the request context.
func GetIdentityFromContext(ctx context.Context) *auth.Identity {
	identity, ok := ctx.Value(IdentityContextKey).(*auth.Identity)
	if !ok {
		return nil
	}
	return identity
}
