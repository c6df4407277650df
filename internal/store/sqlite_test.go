package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createTestUser(t *testing.T, s *SQLiteStore, username string) *User {
	t.Helper()
	token := "verify-" + username
	user := &User{
		Username:          username,
		Email:             username + "@example.com",
		PasswordHash:      "hash",
		VerificationToken: &token,
	}
	require.NoError(t, s.CreateUser(user))
	return user
}

func TestUserLifecycle(t *testing.T) {
	s := newTestStore(t)
	user := createTestUser(t, s, "alice")

	got, err := s.GetUserByUsername("alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)
	assert.False(t, got.Verified)

	byToken, err := s.GetUserByVerificationToken("verify-alice")
	require.NoError(t, err)
	require.NotNil(t, byToken)

	require.NoError(t, s.MarkUserVerified(user.ID))
	got, err = s.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified)
	assert.Nil(t, got.VerificationToken)

	exists, err := s.UserExists("alice", "nobody@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.UserExists("nobody", "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestResetTokenExpiry(t *testing.T) {
	s := newTestStore(t)
	user := createTestUser(t, s, "bob")

	expiry := time.Now().Add(time.Hour)
	require.NoError(t, s.SetResetToken(user.ID, "reset-token", expiry))

	got, err := s.GetUserByValidResetToken("reset-token", time.Now())
	require.NoError(t, err)
	require.NotNil(t, got)

	// token is invalid once past expiry
	got, err = s.GetUserByValidResetToken("reset-token", expiry.Add(time.Minute))
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.UpdatePassword(user.ID, "newhash"))
	updated, err := s.GetUserByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "newhash", updated.PasswordHash)
	assert.Nil(t, updated.ResetToken)
	assert.True(t, updated.Verified)
}

func TestAppendMessagesCreatesThenAppends(t *testing.T) {
	s := newTestStore(t)
	user := createTestUser(t, s, "carol")
	day := "2026-08-28"

	first := []ChatMessage{
		{Role: "user", Text: "hi", Timestamp: time.Now()},
		{Role: "bot", Text: "hello!", Timestamp: time.Now()},
	}
	require.NoError(t, s.AppendMessages(user.ID, day, first))

	second := []ChatMessage{
		{Role: "user", Text: "recommend movies like Inception", Timestamp: time.Now()},
		{Role: "bot", Text: "sure", Timestamp: time.Now()},
	}
	require.NoError(t, s.AppendMessages(user.ID, day, second))

	conversations, err := s.GetConversationsByUserID(user.ID)
	require.NoError(t, err)
	require.Len(t, conversations, 1) // one record per user per day
	assert.Equal(t, day, conversations[0].Day)
	assert.Len(t, conversations[0].Messages, 4)
	assert.Equal(t, "hi", conversations[0].Messages[0].Text)

	// a new day starts a new conversation
	require.NoError(t, s.AppendMessages(user.ID, "2026-08-29", first))
	conversations, err = s.GetConversationsByUserID(user.ID)
	require.NoError(t, err)
	assert.Len(t, conversations, 2)
}

func TestConversationOwnershipAndDeletion(t *testing.T) {
	s := newTestStore(t)
	owner := createTestUser(t, s, "dave")
	other := createTestUser(t, s, "eve")
	day := "2026-08-28"

	require.NoError(t, s.AppendMessages(owner.ID, day, []ChatMessage{{Role: "user", Text: "hi", Timestamp: time.Now()}}))
	conversations, err := s.GetConversationsByUserID(owner.ID)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	convID := conversations[0].ID

	got, err := s.GetConversation(convID, other.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Error(t, s.ClearConversationMessages(convID, other.ID))
	require.NoError(t, s.ClearConversationMessages(convID, owner.ID))

	cleared, err := s.GetConversation(convID, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, cleared.Messages)

	assert.Error(t, s.DeleteConversation(convID, other.ID))
	require.NoError(t, s.DeleteConversation(convID, owner.ID))

	deleted, err := s.DeleteAllConversations(owner.ID)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestIngestQAFromFile(t *testing.T) {
	s := newTestStore(t)

	pairs := []map[string]string{
		{"question": "What is the rating of Inception?", "answer": "Inception holds an 8.4 rating."},
		{"question": "Who directed Interstellar?", "answer": "Christopher Nolan."},
		{"question": "", "answer": "skipped"},
	}
	data, err := json.Marshal(pairs)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "qa.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	var embedded int
	count, err := s.IngestQAFromFile(path, func(text string) ([]float32, error) {
		embedded++
		return []float32{float32(len(text)), 1, 0}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, embedded)

	entries, err := s.GetAllQAEntries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Christopher Nolan.", entries[1].Answer)
	assert.Len(t, entries[0].Embedding, 3)

	// re-ingest replaces the bank rather than appending
	count, err = s.IngestQAFromFile(path, func(text string) ([]float32, error) {
		return nil, fmt.Errorf("embedder down")
	})
	require.NoError(t, err)
	assert.Zero(t, count)
	entries, err = s.GetAllQAEntries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
