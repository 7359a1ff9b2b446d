// Package relay routes direct messages, typing signals and presence
// announcements between connected users.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/relay/internal/auth"
	"github.com/eldtechnologies/relay/internal/metrics"
	"github.com/eldtechnologies/relay/internal/models"
	"github.com/eldtechnologies/relay/internal/presence"
	"github.com/eldtechnologies/relay/internal/ratelimit"
	"github.com/eldtechnologies/relay/internal/store"
)

const (
	// MaxTextBytes is the largest accepted message text.
	MaxTextBytes = 8192

	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100

	// persistTimeout bounds a message write once it is detached from the
	// caller's context.
	persistTimeout = 10 * time.Second
)

// Options tunes a Relay.
type Options struct {
	// EventRate and EventBurst bound inbound events per identity.
	// Zero disables event rate limiting.
	EventRate  float64
	EventBurst int
}

// Relay holds the presence registry and the collaborators every event handler needs.
type Relay struct {
	registry presence.Registry
	users    store.UserDirectory
	messages store.MessageStore
	limiter  *ratelimit.Limiter
	senders  *keyedMutex
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates a relay over registry, backed by the given directory and message store.
func New(registry presence.Registry, users store.UserDirectory, messages store.MessageStore, logger zerolog.Logger, opts Options) *Relay {
	return &Relay{
		registry: registry,
		users:    users,
		messages: messages,
		limiter:  ratelimit.New(opts.EventRate, opts.EventBurst, 10*time.Minute),
		senders:  newKeyedMutex(),
		logger:   logger.With().Str("component", "relay").Logger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Registry returns the presence registry the relay routes through.
func (r *Relay) Registry() presence.Registry {
	return r.registry
}

// Connect registers h as the live connection for id, greets it and
// announces the user to everyone else. A previous connection for the same
// identity is replaced but left open.
func (r *Relay) Connect(id auth.Identity, h presence.Handle) {
	// Greet before registering so connected is always the first event queued.
	now := r.now()
	h.Send(EventConnected, ConnectedEvent{
		UserID:    id.UserID,
		HandleID:  h.HandleID(),
		Timestamp: now,
	})

	prev, replaced := r.registry.Set(id.UserID, h)
	if replaced && prev.HandleID() != h.HandleID() {
		r.logger.Info().
			Str("user_id", id.UserID).
			Str("handle_id", h.HandleID()).
			Str("previous_handle_id", prev.HandleID()).
			Msg("connection replaced")
	}
	metrics.OnlineUsers.Set(float64(r.registry.Len()))

	r.broadcast(id.UserID, EventUserConnected, PresenceEvent{
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		Timestamp:   now,
	})

	r.logger.Info().Str("user_id", id.UserID).Str("handle_id", h.HandleID()).Msg("user connected")
}

// Disconnect removes h from the registry if it is still the current
// connection for id. It reports whether the user went offline.
func (r *Relay) Disconnect(id auth.Identity, h presence.Handle) bool {
	if !r.registry.Remove(id.UserID, h) {
		r.logger.Debug().Str("user_id", id.UserID).Str("handle_id", h.HandleID()).Msg("stale connection closed")
		return false
	}
	r.limiter.Release(id.UserID, r.now())
	metrics.OnlineUsers.Set(float64(r.registry.Len()))

	r.broadcast(id.UserID, EventUserDisconnected, PresenceEvent{
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		Timestamp:   r.now(),
	})

	r.logger.Info().Str("user_id", id.UserID).Str("handle_id", h.HandleID()).Msg("user disconnected")
	return true
}

// broadcast sends an event to every registered connection except the one for skip.
func (r *Relay) broadcast(skip, event string, payload any) {
	for _, identity := range r.registry.Identities() {
		if identity == skip {
			continue
		}
		if h, ok := r.registry.Get(identity); ok {
			h.Send(event, payload)
		}
	}
}

// SendMessage validates, persists and delivers a direct message from sender.
// The stored record is returned for the sender's acknowledgement whether or
// not the receiver is online.
func (r *Relay) SendMessage(ctx context.Context, sender auth.Identity, req SendMessageRequest) (*models.Message, error) {
	req.ReceiverID = strings.TrimSpace(req.ReceiverID)
	if req.ReceiverID == "" {
		return nil, validationError("receiverId is required")
	}
	msg := &models.Message{
		SenderID:      sender.UserID,
		ReceiverID:    req.ReceiverID,
		Text:          req.Text,
		AttachmentRef: req.AttachmentRef,
		Emoji:         req.Emoji,
		IsActive:      true,
	}
	if !msg.HasContent() {
		return nil, validationError("message must include text, attachmentRef or emoji")
	}
	if len(msg.Text) > MaxTextBytes {
		return nil, validationError(fmt.Sprintf("text exceeds %d bytes", MaxTextBytes))
	}

	receiver, err := r.users.FindActiveUser(ctx, req.ReceiverID)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup receiver: %v", ErrDirectory, err)
	}
	if receiver == nil {
		return nil, ErrRecipientNotFound
	}

	unlock := r.senders.Lock(sender.UserID)
	defer unlock()

	// Persist even if the sender's connection closes mid-send.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := r.messages.CreateMessage(saveCtx, msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	metrics.MessagesSent.Inc()

	h, online := r.registry.Get(msg.ReceiverID)
	switch {
	case !online:
		metrics.MessageDeliveries.WithLabelValues("offline").Inc()
	case h.Send(EventReceiveMessage, msg):
		metrics.MessageDeliveries.WithLabelValues("delivered").Inc()
	default:
		metrics.MessageDeliveries.WithLabelValues("dropped").Inc()
	}

	return msg, nil
}

// Typing forwards a typing signal to the receiver if they are online.
// It reports whether the signal was forwarded.
func (r *Relay) Typing(sender auth.Identity, req TypingRequest) (bool, error) {
	receiverID := strings.TrimSpace(req.ReceiverID)
	if receiverID == "" {
		return false, validationError("receiverId is required")
	}

	h, ok := r.registry.Get(receiverID)
	if !ok {
		metrics.TypingSignals.WithLabelValues("offline").Inc()
		return false, nil
	}

	h.Send(EventUserTyping, TypingEvent{
		UserID:      sender.UserID,
		DisplayName: sender.DisplayName,
		IsTyping:    req.IsTyping,
		Timestamp:   r.now(),
	})
	metrics.TypingSignals.WithLabelValues("forwarded").Inc()
	return true, nil
}

// History returns one page of the conversation between caller and
// req.OtherUserID in ascending order.
func (r *Relay) History(ctx context.Context, caller auth.Identity, req HistoryRequest) (*HistoryResponse, error) {
	other := strings.TrimSpace(req.OtherUserID)
	if other == "" {
		return nil, validationError("otherUserId is required")
	}

	page, limit := clampPage(req.Page, req.Limit)
	filter := store.MessageFilter{UserID: caller.UserID, OtherUserID: other}

	msgs, total, err := r.messages.QueryMessages(ctx, filter, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistory, err)
	}
	metrics.HistoryQueries.Inc()

	// Store returns newest first.
	ordered := make([]models.Message, len(msgs))
	for i, m := range msgs {
		ordered[len(msgs)-1-i] = m
	}

	return &HistoryResponse{
		Messages: ordered,
		Page:     page,
		Limit:    limit,
		Total:    total,
	}, nil
}

// clampPage normalizes paging parameters: page >= 1, limit in [1, MaxHistoryLimit].
func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	return page, limit
}

// OnlineUsers returns directory records for every connected identity.
func (r *Relay) OnlineUsers(ctx context.Context) (*OnlineUsersResponse, error) {
	ids := r.registry.Identities()
	if len(ids) == 0 {
		return &OnlineUsersResponse{Users: []models.User{}}, nil
	}

	users, err := r.users.ListUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDirectory, err)
	}
	if users == nil {
		users = []models.User{}
	}

	return &OnlineUsersResponse{Users: users, Count: len(users)}, nil
}

// CheckOnline reports whether userID holds a live connection.
func (r *Relay) CheckOnline(userID string) (*OnlineStatusResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationError("userId is required")
	}

	resp := &OnlineStatusResponse{UserID: userID}
	if h, ok := r.registry.Get(userID); ok {
		resp.IsOnline = true
		resp.HandleID = h.HandleID()
	}
	return resp, nil
}

// Dispatch handles one inbound event from h. Replies go to h; the returned
// bool is true when the client asked to end the session.
func (r *Relay) Dispatch(ctx context.Context, id auth.Identity, h presence.Handle, env Envelope) bool {
	metrics.EventsReceived.WithLabelValues(metricEventName(env.Event)).Inc()

	if ok, retry := r.limiter.Allow(id.UserID, r.now()); !ok {
		metrics.RateLimitHits.WithLabelValues("ws").Inc()
		r.reply(id, h, env.Event, fmt.Errorf("%w: retry in %s", ErrRateLimited, retry))
		return false
	}

	var err error
	switch env.Event {
	case EventSendMessage:
		var req SendMessageRequest
		if err = decodePayload(env, &req); err == nil {
			var msg *models.Message
			if msg, err = r.SendMessage(ctx, id, req); err == nil {
				h.Send(EventMessageSent, msg)
			}
		}

	case EventTyping:
		var req TypingRequest
		if err = decodePayload(env, &req); err == nil {
			_, err = r.Typing(id, req)
		}

	case EventGetChatHistory:
		var req HistoryRequest
		if err = decodePayload(env, &req); err == nil {
			var resp *HistoryResponse
			if resp, err = r.History(ctx, id, req); err == nil {
				h.Send(EventChatHistory, resp)
			}
		}

	case EventGetOnlineUsers:
		var resp *OnlineUsersResponse
		if resp, err = r.OnlineUsers(ctx); err == nil {
			h.Send(EventOnlineUsers, resp)
		}

	case EventCheckUserOnline:
		var req CheckOnlineRequest
		if err = decodePayload(env, &req); err == nil {
			var resp *OnlineStatusResponse
			if resp, err = r.CheckOnline(req.UserID); err == nil {
				h.Send(EventUserOnlineStatus, resp)
			}
		}

	case EventLogout:
		return true

	default:
		err = validationError("unknown event: " + env.Event)
	}

	if err != nil {
		r.reply(id, h, env.Event, err)
	}
	return false
}

// reply logs err and sends it to the client as an error event.
func (r *Relay) reply(id auth.Identity, h presence.Handle, event string, err error) {
	kind := errorKind(err)
	metrics.EventErrors.WithLabelValues(kind).Inc()

	ev := r.logger.Debug()
	if kind == "persistence" || kind == "directory" || kind == "internal" {
		ev = r.logger.Error()
	}
	ev.Err(err).
		Str("user_id", id.UserID).
		Str("handle_id", h.HandleID()).
		Str("event", event).
		Msg("event failed")

	h.Send(EventError, ErrorEvent{Message: clientMessage(err)})
}

func decodePayload(env Envelope, v any) error {
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return validationError("invalid payload for " + env.Event)
	}
	return nil
}

// metricEventName bounds the event label to known names.
func metricEventName(event string) string {
	switch event {
	case EventSendMessage, EventTyping, EventGetChatHistory,
		EventGetOnlineUsers, EventCheckUserOnline, EventLogout:
		return event
	default:
		return "unknown"
	}
}
