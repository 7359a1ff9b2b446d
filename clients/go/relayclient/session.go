package relayclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event names the server emits.
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

// ErrSessionClosed is returned when writing to a closed session.
var ErrSessionClosed = errors.New("session closed")

// Event is one server frame. Data is decoded lazily with Decode.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// Decode unmarshals the event payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Session is a live WebSocket connection to the relay.
type Session struct {
	ws     *websocket.Conn
	events chan Event

	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
	err     error
}

// Dial opens the event stream authenticated with the client's token.
func (c *Client) Dial(ctx context.Context) (*Session, error) {
	if c.Token == "" {
		return nil, fmt.Errorf("no token: register first or set RELAY_TOKEN")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.Token)

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			var errResp struct {
				Error string `json:"error"`
			}
			json.NewDecoder(resp.Body).Decode(&errResp)
			resp.Body.Close()
			return nil, &APIError{Status: resp.StatusCode, Message: errResp.Error}
		}
		return nil, err
	}
	resp.Body.Close()

	s := &Session{
		ws:     ws,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Events delivers server frames in arrival order. It is closed when the
// connection ends.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	<-s.done
	return s.err
}

func (s *Session) readLoop() {
	defer close(s.events)
	defer s.finish(nil)

	for {
		var ev Event
		if err := s.ws.ReadJSON(&ev); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.finish(err)
			}
			return
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *Session) finish(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
	})
}

// Send writes one event frame.
func (s *Session) Send(event string, data any) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.ws.WriteJSON(struct {
		Event string `json:"event"`
		Data  any    `json:"data,omitempty"`
	}{event, data})
}

// SendMessage emits send_message. The stored message arrives as message_sent.
func (s *Session) SendMessage(req SendMessageRequest) error {
	return s.Send("send_message", req)
}

// Typing emits a typing indicator for receiverID.
func (s *Session) Typing(receiverID string, isTyping bool) error {
	return s.Send("typing", map[string]any{"receiverId": receiverID, "isTyping": isTyping})
}

// RequestHistory asks for a history page; the reply arrives as chat_history.
func (s *Session) RequestHistory(otherUserID string, page, limit int) error {
	return s.Send("get_chat_history", map[string]any{"otherUserId": otherUserID, "page": page, "limit": limit})
}

// RequestOnlineUsers asks for the online list; the reply arrives as online_users.
func (s *Session) RequestOnlineUsers() error {
	return s.Send("get_online_users", nil)
}

// CheckOnline asks whether userID is connected; the reply arrives as user_online_status.
func (s *Session) CheckOnline(userID string) error {
	return s.Send("check_user_online", map[string]string{"userId": userID})
}

// Logout asks the server to end the session.
func (s *Session) Logout() error {
	return s.Send("logout", nil)
}

// Close sends a normal close frame and tears down the connection.
func (s *Session) Close() error {
	s.writeMu.Lock()
	_ = s.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()

	s.finish(nil)
	return s.ws.Close()
}
