package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// OnlineUsers lists the users connected to this node.
func (h *Handler) OnlineUsers(w http.ResponseWriter, r *http.Request) {
	resp, err := h.relay.OnlineUsers(r.Context())
	if err != nil {
		h.relayError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, resp)
}

// CheckOnline reports whether {id} holds a live connection.
func (h *Handler) CheckOnline(w http.ResponseWriter, r *http.Request) {
	resp, err := h.relay.CheckOnline(chi.URLParam(r, "id"))
	if err != nil {
		h.relayError(w, err)
		return
	}
	h.JSON(w, http.StatusOK, resp)
}
