package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// UserResponse is the public profile of a user.
type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	IsActive  bool   `json:"isActive"`
	IsOnline  bool   `json:"isOnline"`
	JoinedAt  string `json:"joinedAt"`
}

// GetUser handles public profile lookup.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID format")
		return
	}

	user, err := h.db.GetUserByID(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	_, online := h.relay.Registry().Get(user.ID)

	h.JSON(w, http.StatusOK, UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
		IsActive:  user.IsActive,
		IsOnline:  online,
		JoinedAt:  user.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	})
}
