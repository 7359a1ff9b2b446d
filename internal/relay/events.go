package relay

import (
	"encoding/json"
	"time"

	"github.com/eldtechnologies/relay/internal/models"
)

// Client to server events.
const (
	EventSendMessage     = "send_message"
	EventTyping          = "typing"
	EventGetChatHistory  = "get_chat_history"
	EventGetOnlineUsers  = "get_online_users"
	EventCheckUserOnline = "check_user_online"
	EventLogout          = "logout"
)

// Server to client events.
const (
	EventConnected        = "connected"
	EventUserConnected    = "user_connected"
	EventUserDisconnected = "user_disconnected"
	EventReceiveMessage   = "receive_message"
	EventMessageSent      = "message_sent"
	EventUserTyping       = "user_typing"
	EventChatHistory      = "chat_history"
	EventOnlineUsers      = "online_users"
	EventUserOnlineStatus = "user_online_status"
	EventError            = "error"
)

// Envelope is the frame format for every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outboundEnvelope is the encoded form of a server event.
type outboundEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// SendMessageRequest is the payload of send_message.
type SendMessageRequest struct {
	ReceiverID    string `json:"receiverId"`
	Text          string `json:"text,omitempty"`
	AttachmentRef string `json:"attachmentRef,omitempty"`
	Emoji         string `json:"emoji,omitempty"`
}

// TypingRequest is the payload of typing.
type TypingRequest struct {
	ReceiverID string `json:"receiverId"`
	IsTyping   bool   `json:"isTyping"`
}

// HistoryRequest is the payload of get_chat_history.
type HistoryRequest struct {
	OtherUserID string `json:"otherUserId"`
	Page        int    `json:"page,omitempty"`
	Limit       int    `json:"limit,omitempty"`
}

// CheckOnlineRequest is the payload of check_user_online.
type CheckOnlineRequest struct {
	UserID string `json:"userId"`
}

// ConnectedEvent is sent to a connection once it is registered.
type ConnectedEvent struct {
	UserID    string    `json:"userId"`
	HandleID  string    `json:"handleId"`
	Timestamp time.Time `json:"timestamp"`
}

// PresenceEvent announces that a user came online or went offline.
type PresenceEvent struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Timestamp   time.Time `json:"timestamp"`
}

// TypingEvent is forwarded to the receiver of a typing signal.
type TypingEvent struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	IsTyping    bool      `json:"isTyping"`
	Timestamp   time.Time `json:"timestamp"`
}

// HistoryResponse is one page of a conversation in ascending order.
type HistoryResponse struct {
	Messages []models.Message `json:"messages"`
	Page     int              `json:"page"`
	Limit    int              `json:"limit"`
	Total    int              `json:"total"`
}

// OnlineUsersResponse lists the users that currently hold a connection.
type OnlineUsersResponse struct {
	Users []models.User `json:"users"`
	Count int           `json:"count"`
}

// OnlineStatusResponse answers check_user_online.
type OnlineStatusResponse struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
	HandleID string `json:"handleId,omitempty"`
}

// ErrorEvent carries a client-visible failure.
type ErrorEvent struct {
	Message string `json:"message"`
}
