// Package relayclient provides a client for the relay HTTP API and its
// WebSocket event stream.
package relayclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// Client is a relay API client.
type Client struct {
	BaseURL    string
	ConfigDir  string
	UserID     string
	Token      string
	HTTPClient *http.Client
}

// Config holds the credentials saved after registration.
type Config struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// NewClient creates a new client and loads saved credentials, if any.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	configDir := os.Getenv("RELAY_CONFIG")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".relay")
	}

	c := &Client{
		BaseURL:    baseURL,
		ConfigDir:  configDir,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}

	_ = c.LoadConfig()
	return c
}

// LoadConfig loads credentials from disk.
func (c *Client) LoadConfig() error {
	data, err := os.ReadFile(filepath.Join(c.ConfigDir, "credentials.json"))
	if err != nil {
		return err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return err
	}

	c.UserID = config.ID
	c.Token = config.Token
	return nil
}

// SaveConfig saves credentials to disk.
func (c *Client) SaveConfig() error {
	if err := os.MkdirAll(c.ConfigDir, 0700); err != nil {
		return err
	}

	data, _ := json.MarshalIndent(Config{ID: c.UserID, Token: c.Token}, "", "  ")
	return os.WriteFile(filepath.Join(c.ConfigDir, "credentials.json"), data, 0600)
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relay error %d: %s", e.Status, e.Message)
}

// doRequest performs an HTTP request and decodes a JSON response into out.
func (c *Client) doRequest(method, path string, body any, authed bool, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if c.Token == "" {
			return fmt.Errorf("no token: register first or set RELAY_TOKEN")
		}
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// RegisterResponse is the response from registration.
type RegisterResponse struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ProfileURL string     `json:"profileUrl"`
	Token      string     `json:"token,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// Register creates an account and keeps its credentials on the client.
// Credentials are written to ConfigDir only when save is true.
func (c *Client) Register(req RegisterRequest, save bool) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.doRequest(http.MethodPost, "/register", req, false, &resp); err != nil {
		return nil, err
	}

	c.UserID = resp.ID
	c.Token = resp.Token
	if save {
		if err := c.SaveConfig(); err != nil {
			return nil, err
		}
	}
	return &resp, nil
}

// User is a directory record.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	IsActive  bool      `json:"isActive"`
	IsOnline  bool      `json:"isOnline"`
	JoinedAt  string    `json:"joinedAt,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// GetUser fetches a public profile.
func (c *Client) GetUser(id string) (*User, error) {
	var resp User
	if err := c.doRequest(http.MethodGet, "/users/"+url.PathEscape(id), nil, false, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Message is a direct message.
type Message struct {
	ID            string    `json:"id"`
	SenderID      string    `json:"senderId"`
	ReceiverID    string    `json:"receiverId"`
	Text          string    `json:"text,omitempty"`
	AttachmentRef string    `json:"attachmentRef,omitempty"`
	Emoji         string    `json:"emoji,omitempty"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
}

// SendMessageRequest is the content of a direct message.
type SendMessageRequest struct {
	ReceiverID    string `json:"receiverId"`
	Text          string `json:"text,omitempty"`
	AttachmentRef string `json:"attachmentRef,omitempty"`
	Emoji         string `json:"emoji,omitempty"`
}

// SendMessage posts a direct message over HTTP.
func (c *Client) SendMessage(req SendMessageRequest) (*Message, error) {
	var resp Message
	if err := c.doRequest(http.MethodPost, "/messages/"+url.PathEscape(req.ReceiverID), req, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History is one page of a conversation, oldest first.
type History struct {
	Messages []Message `json:"messages"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
	Total    int       `json:"total"`
}

// GetHistory fetches a page of the conversation with otherUserID.
// Zero page or limit use the server defaults.
func (c *Client) GetHistory(otherUserID string, page, limit int) (*History, error) {
	q := url.Values{}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	path := "/messages/" + url.PathEscape(otherUserID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp History
	if err := c.doRequest(http.MethodGet, path, nil, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OnlineUsers is the set of connected users.
type OnlineUsers struct {
	Users []User `json:"users"`
	Count int    `json:"count"`
}

// GetOnlineUsers lists connected users.
func (c *Client) GetOnlineUsers() (*OnlineUsers, error) {
	var resp OnlineUsers
	if err := c.doRequest(http.MethodGet, "/online", nil, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// OnlineStatus reports whether a user is connected.
type OnlineStatus struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
	HandleID string `json:"handleId,omitempty"`
}

// CheckOnline reports whether userID is connected.
func (c *Client) CheckOnline(userID string) (*OnlineStatus, error) {
	var resp OnlineStatus
	if err := c.doRequest(http.MethodGet, "/online/"+url.PathEscape(userID), nil, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health returns the raw health document.
func (c *Client) Health() (map[string]any, error) {
	var resp map[string]any
	if err := c.doRequest(http.MethodGet, "/health", nil, false, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
