package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/eldtechnologies/relay/internal/api/middleware"
	"github.com/eldtechnologies/relay/internal/relay"
)

// SendMessageBody is the body of POST /messages/{id}.
type SendMessageBody struct {
	Text          string `json:"text"`
	AttachmentRef string `json:"attachmentRef"`
	Emoji         string `json:"emoji"`
}

// SendMessage stores a direct message to {id} and pushes it to the receiver
// if they are connected, exactly like the send_message event.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sender := middleware.GetIdentityFromContext(r.Context())
	if sender == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var body SendMessageBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.relay.SendMessage(r.Context(), *sender, relay.SendMessageRequest{
		ReceiverID:    chi.URLParam(r, "id"),
		Text:          body.Text,
		AttachmentRef: body.AttachmentRef,
		Emoji:         body.Emoji,
	})
	if err != nil {
		h.relayError(w, err)
		return
	}

	h.JSON(w, http.StatusCreated, msg)
}

// GetHistory returns one page of the caller's conversation with {id}.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	caller := middleware.GetIdentityFromContext(r.Context())
	if caller == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	page, err := intQuery(r, "page")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "page must be an integer")
		return
	}
	limit, err := intQuery(r, "limit")
	if err != nil {
		h.Error(w, http.StatusBadRequest, "limit must be an integer")
		return
	}

	resp, err := h.relay.History(r.Context(), *caller, relay.HistoryRequest{
		OtherUserID: chi.URLParam(r, "id"),
		Page:        page,
		Limit:       limit,
	})
	if err != nil {
		h.relayError(w, err)
		return
	}

	h.JSON(w, http.StatusOK, resp)
}

// relayError maps relay failures onto HTTP statuses.
func (h *Handler) relayError(w http.ResponseWriter, err error) {
	var verr *relay.ValidationError
	switch {
	case errors.As(err, &verr):
		h.Error(w, http.StatusBadRequest, verr.Detail)
	case errors.Is(err, relay.ErrRecipientNotFound):
		h.Error(w, http.StatusNotFound, relay.ErrRecipientNotFound.Error())
	case errors.Is(err, relay.ErrPersistence):
		h.Error(w, http.StatusInternalServerError, relay.ErrPersistence.Error())
	case errors.Is(err, relay.ErrHistory):
		h.Error(w, http.StatusInternalServerError, relay.ErrHistory.Error())
	case errors.Is(err, relay.ErrDirectory):
		h.Error(w, http.StatusInternalServerError, relay.ErrDirectory.Error())
	default:
		h.Error(w, http.StatusInternalServerError, "internal error")
	}
}

func intQuery(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
