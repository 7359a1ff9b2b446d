package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eldtechnologies/relay/internal/models"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "nested", "relay.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSQLite_Users(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	alice, err := s.CreateUser(ctx, "Alice", "alice@example.com", "")
	require.NoError(t, err)
	require.NotNil(t, alice)
	assert.NotEmpty(t, alice.ID)
	assert.True(t, alice.IsActive)
	assert.Equal(t, "alice@example.com", alice.Email)

	bob, err := s.CreateUser(ctx, "Bob", "", "https://img.example.com/bob.png")
	require.NoError(t, err)

	got, err := s.FindActiveUser(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", got.Name)

	missing, err := s.FindActiveUser(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.SetUserActive(ctx, bob.ID, false))
	inactive, err := s.FindActiveUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, inactive, "inactive users are not found")

	stillThere, err := s.GetUserByID(ctx, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, stillThere)
	assert.False(t, stillThere.IsActive)

	listed, err := s.ListUsersByIDs(ctx, []string{bob.ID, alice.ID, "ghost"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, alice.ID, listed[0].ID)

	empty, err := s.ListUsersByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	count, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestSQLite_Messages(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	last, err := s.GetMostRecentMessageTime(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	base := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	texts := []string{"one", "two", "three", "four"}
	for i, text := range texts {
		from, to := "a", "b"
		if i%2 == 1 {
			from, to = "b", "a"
		}
		msg := &models.Message{
			SenderID:   from,
			ReceiverID: to,
			Text:       text,
			IsActive:   true,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.CreateMessage(ctx, msg))
		assert.Len(t, msg.ID, 26, "ULID assigned")
	}

	// Different conversation and a retracted message are excluded.
	require.NoError(t, s.CreateMessage(ctx, &models.Message{SenderID: "a", ReceiverID: "c", Text: "elsewhere", IsActive: true}))
	require.NoError(t, s.CreateMessage(ctx, &models.Message{SenderID: "a", ReceiverID: "b", Text: "retracted", IsActive: false, CreatedAt: base.Add(time.Hour)}))

	page, total, err := s.QueryMessages(ctx, MessageFilter{UserID: "a", OtherUserID: "b"}, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 3)
	assert.Equal(t, "four", page[0].Text, "newest first")
	assert.Equal(t, "two", page[2].Text)
	assert.True(t, base.Add(3*time.Minute).Equal(page[0].CreatedAt))

	page, total, err = s.QueryMessages(ctx, MessageFilter{UserID: "b", OtherUserID: "a"}, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 1)
	assert.Equal(t, "one", page[0].Text)

	count, err := s.CountMessages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(6), count)

	last, err = s.GetMostRecentMessageTime(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
}

func TestSQLite_Ping(t *testing.T) {
	s := newTestSQLite(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpen_FallsBackToSQLite(t *testing.T) {
	s, backend, err := Open(context.Background(), "", filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, "sqlite", backend)
	assert.IsType(t, &SQLiteStore{}, s)
}
