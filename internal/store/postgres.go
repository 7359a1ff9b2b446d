package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eldtechnologies/relay/internal/metrics"
	"github.com/eldtechnologies/relay/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func observePostgres(start time.Time) {
	metrics.PostgresLatency.Observe(time.Since(start).Seconds())
}

const userColumns = `id, name, email, avatar_url, is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
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
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// CreateUser creates a new user record.
func (s *PostgresStore) CreateUser(ctx context.Context, name, email, avatarURL string) (*models.User, error) {
	defer observePostgres(time.Now())

	user, err := scanUser(s.pool.QueryRow(ctx, `
		INSERT INTO users (name, email, avatar_url)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		name, email, avatarURL))
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID regardless of its active flag.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	defer observePostgres(time.Now())

	return scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE id = $1
	`, id))
}

// FindActiveUser retrieves an active user by ID.
func (s *PostgresStore) FindActiveUser(ctx context.Context, id string) (*models.User, error) {
	defer observePostgres(time.Now())

	return scanUser(s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE id = $1 AND is_active = TRUE
	`, id))
}

// ListUsersByIDs retrieves the active users among ids.
func (s *PostgresStore) ListUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	defer observePostgres(time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = ANY($1) AND is_active = TRUE
		ORDER BY name
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0, len(ids))
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// SetUserActive toggles a user's active flag.
func (s *PostgresStore) SetUserActive(ctx context.Context, id string, active bool) error {
	defer observePostgres(time.Now())

	_, err := s.pool.Exec(ctx, `
		UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1
	`, id, active)
	return err
}

// CountUsers returns the number of registered users.
func (s *PostgresStore) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CreateMessage inserts a message record.
func (s *PostgresStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	prepareMessage(msg)
	defer observePostgres(time.Now())

	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, text, attachment_ref, emoji, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, msg.AttachmentRef, msg.Emoji, msg.IsActive, msg.CreatedAt)
	return err
}

// QueryMessages returns one page of the conversation between the two users, newest first.
func (s *PostgresStore) QueryMessages(ctx context.Context, filter MessageFilter, offset, limit int) ([]models.Message, int, error) {
	defer observePostgres(time.Now())

	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages
		WHERE is_active = TRUE
		  AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
	`, filter.UserID, filter.OtherUserID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, text, attachment_ref, emoji, is_active, created_at
		FROM messages
		WHERE is_active = TRUE
		  AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4
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
		messages = append(messages, msg)
	}

	return messages, total, rows.Err()
}

// CountMessages returns the total number of stored messages.
func (s *PostgresStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

// GetMostRecentMessageTime returns when the latest message was sent.
func (s *PostgresStore) GetMostRecentMessageTime(ctx context.Context) (*time.Time, error) {
	var t *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MAX(created_at) FROM messages`).Scan(&t)
	if err != nil {
		return nil, err
	}
	return t, nil
}
