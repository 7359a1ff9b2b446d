package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/eldtechnologies/relay/internal/metrics"
)

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
}

// RegisterResponse represents the registration response.
type RegisterResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ProfileURL string     `json:"profileUrl"`
	Token      string     `json:"token,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// Register creates a user account. When the server holds a signing key the
// response carries a bearer token for the new user.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := sanitizeName(req.Name)
	if name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if !isValidEmail(req.Email) {
		h.Error(w, http.StatusBadRequest, "invalid email format")
		return
	}
	if req.AvatarURL != "" {
		u, err := url.Parse(req.AvatarURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			h.Error(w, http.StatusBadRequest, "invalid avatarUrl")
			return
		}
	}

	user, err := h.db.CreateUser(r.Context(), name, req.Email, req.AvatarURL)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	metrics.UsersRegistered.Inc()

	resp := RegisterResponse{
		ID:         user.ID,
		Name:       user.Name,
		ProfileURL: fmt.Sprintf("/users/%s", user.ID),
	}

	if h.signer != nil {
		token, expires, err := h.signer.Issue(user.ID, user.Name)
		if err != nil {
			h.Error(w, http.StatusInternalServerError, "failed to issue token")
			return
		}
		resp.Token = token
		if !expires.IsZero() {
			resp.ExpiresAt = &expires
		}
	}

	h.JSON(w, http.StatusCreated, resp)
}
