package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/eldtechnologies/relay/internal/models"
)

// SQLiteStore handles SQLite database operations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/relay.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/relay.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		attachment_ref TEXT NOT NULL DEFAULT '',
		emoji TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_receiver ON messages(receiver_id, created_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func scanSQLiteUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.AvatarURL,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// CreateUser creates a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, name, email, avatarURL string) (*models.User, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, avatar_url, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
	`, id, name, email, avatarURL, now, now)
	if err != nil {
		return nil, err
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID regardless of its active flag.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return scanSQLiteUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE id = ?
	`, id))
}

// FindActiveUser retrieves an active user by ID.
func (s *SQLiteStore) FindActiveUser(ctx context.Context, id string) (*models.User, error) {
	return scanSQLiteUser(s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE id = ? AND is_active = 1
	`, id))
}

// ListUsersByIDs retrieves the active users among ids.
func (s *SQLiteStore) ListUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id IN (`+placeholders+`) AND is_active = 1
		ORDER BY name
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0, len(ids))
	for rows.Next() {
		user, err := scanSQLiteUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// SetUserActive toggles a user's active flag.
func (s *SQLiteStore) SetUserActive(ctx context.Context, id string, active bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?
	`, active, time.Now().UTC(), id)
	return err
}

// CountUsers returns the number of registered users.
func (s *SQLiteStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CreateMessage inserts a message record.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	prepareMessage(msg)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, text, attachment_ref, emoji, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, msg.AttachmentRef, msg.Emoji, msg.IsActive, msg.CreatedAt)
	return err
}

// QueryMessages returns one page of the conversation between the two users, newest first.
func (s *SQLiteStore) QueryMessages(ctx context.Context, filter MessageFilter, offset, limit int) ([]models.Message, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE is_active = 1
		  AND ((sender_id = ?1 AND receiver_id = ?2) OR (sender_id = ?2 AND receiver_id = ?1))
	`, filter.UserID, filter.OtherUserID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, text, attachment_ref, emoji, is_active, created_at
		FROM messages
		WHERE is_active = 1
		  AND ((sender_id = ?1 AND receiver_id = ?2) OR (sender_id = ?2 AND receiver_id = ?1))
		ORDER BY created_at DESC, id DESC
		LIMIT ?3 OFFSET ?4
	`, filter.UserID, filter.OtherUserID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID,
			&msg.SenderID,
			&msg.ReceiverID,
			&msg.Text,
			&msg.AttachmentRef,
			&msg.Emoji,
			&msg.IsActive,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, 0, err
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		messages = append(messages, msg)
	}

	return messages, total, rows.Err()
}

// CountMessages returns the total number of stored messages.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// GetMostRecentMessageTime returns when the latest message was sent.
func (s *SQLiteStore) GetMostRecentMessageTime(ctx context.Context) (*time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT created_at FROM messages ORDER BY created_at DESC LIMIT 1
	`).Scan(&t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
