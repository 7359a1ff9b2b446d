package models

import "time"

// Message represents a direct message between two users.
type Message struct {
	ID            string    `json:"id"` // ULID
	SenderID      string    `json:"senderId"`
	ReceiverID    string    `json:"receiverId"`
	Text          string    `json:"text,omitempty"`
	AttachmentRef string    `json:"attachmentRef,omitempty"`
	Emoji         string    `json:"emoji,omitempty"`
	IsActive      bool      `json:"isActive"`
	CreatedAt     time.Time `json:"createdAt"`
}

// HasContent reports whether the message carries text, an attachment or an emoji.
func (m *Message) HasContent() bool {
	return m.Text != "" || m.AttachmentRef != "" || m.Emoji != ""
}
