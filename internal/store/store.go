package store

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/eldtechnologies/relay/internal/models"
)

// MessageFilter selects the messages exchanged between two users.
type MessageFilter struct {
	UserID      string
	OtherUserID string
}

// UserDirectory resolves user accounts.
type UserDirectory interface {
	// FindActiveUser returns the user with the given id, or nil if the
	// user does not exist or is inactive.
	FindActiveUser(ctx context.Context, id string) (*models.User, error)
	// ListUsersByIDs returns the active users among ids. Unknown ids are skipped.
	ListUsersByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

// MessageStore persists direct messages.
type MessageStore interface {
	// CreateMessage stores msg, assigning its ID and CreatedAt when unset.
	CreateMessage(ctx context.Context, msg *models.Message) error
	// QueryMessages returns one page of matching messages, newest first,
	// together with the total number of matches.
	QueryMessages(ctx context.Context, filter MessageFilter, offset, limit int) ([]models.Message, int, error)
}

// DataStore defines the interface for persistent storage of users and messages.
// Both PostgresStore and SQLiteStore implement this interface.
type DataStore interface {
	UserDirectory
	MessageStore

	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations
	CreateUser(ctx context.Context, name, email, avatarURL string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	SetUserActive(ctx context.Context, id string, active bool) error
	CountUsers(ctx context.Context) (int64, error)

	// Message statistics
	CountMessages(ctx context.Context) (int64, error)
	GetMostRecentMessageTime(ctx context.Context) (*time.Time, error)
}

// prepareMessage fills in the generated fields of a new message.
func prepareMessage(msg *models.Message) {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
}

// Open connects to PostgreSQL when databaseURL is set, applying migrations
// first, and falls back to the SQLite file at sqlitePath otherwise. The
// returned name identifies the backend for logging.
func Open(ctx context.Context, databaseURL, sqlitePath string) (DataStore, string, error) {
	if databaseURL == "" {
		s, err := NewSQLiteStore(ctx, sqlitePath)
		if err != nil {
			return nil, "", fmt.Errorf("open sqlite: %w", err)
		}
		return s, "sqlite", nil
	}

	if err := RunMigrations(databaseURL); err != nil {
		return nil, "", fmt.Errorf("migrate: %w", err)
	}
	s, err := NewPostgresStore(ctx, databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("open postgres: %w", err)
	}
	return s, "postgres", nil
}
