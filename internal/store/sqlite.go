package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	log "github.com/sirupsen/logrus"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY, -- UUID
        username TEXT UNIQUE NOT NULL,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        verified BOOLEAN NOT NULL DEFAULT FALSE,
        verification_token TEXT,
        reset_token TEXT,
        reset_token_expiry DATETIME,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS conversations (
        id TEXT PRIMARY KEY, -- UUID
        user_id TEXT NOT NULL,
        day TEXT NOT NULL, -- YYYY-MM-DD
        messages_json TEXT NOT NULL DEFAULT '[]',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        UNIQUE (user_id, day),
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS qa_entries (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        question TEXT NOT NULL,
        answer TEXT NOT NULL,
        embedding_json TEXT -- JSON string of []float32
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) CreateUser(user *User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(
		`INSERT INTO users (id, username, email, password_hash, verified, verification_token, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.Verified, user.VerificationToken, user.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) getUser(where string, args ...interface{}) (*User, error) {
	query := `SELECT id, username, email, password_hash, verified, verification_token,
                     reset_token, reset_token_expiry, created_at
              FROM users WHERE ` + where

	var user User
	var verificationToken, resetToken sql.NullString
	var resetExpiry sql.NullTime
	err := s.db.QueryRow(query, args...).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Verified,
		&verificationToken, &resetToken, &resetExpiry, &user.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if verificationToken.Valid {
		user.VerificationToken = &verificationToken.String
	}
	if resetToken.Valid {
		user.ResetToken = &resetToken.String
	}
	if resetExpiry.Valid {
		user.ResetTokenExpiry = &resetExpiry.Time
	}
	return &user, nil
}

func (s *SQLiteStore) GetUserByID(id string) (*User, error) {
	return s.getUser("id = ?", id)
}

func (s *SQLiteStore) GetUserByUsername(username string) (*User, error) {
	return s.getUser("username = ?", username)
}

func (s *SQLiteStore) GetUserByEmail(email string) (*User, error) {
	return s.getUser("email = ?", email)
}

func (s *SQLiteStore) GetUserByVerificationToken(token string) (*User, error) {
	return s.getUser("verification_token = ?", token)
}

// GetUserByValidResetToken only matches tokens that have not expired.
func (s *SQLiteStore) GetUserByValidResetToken(token string, now time.Time) (*User, error) {
	return s.getUser("reset_token = ? AND reset_token_expiry > ?", token, now)
}

func (s *SQLiteStore) UserExists(username, email string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(1) FROM users WHERE username = ? OR email = ?", username, email).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) MarkUserVerified(userID string) error {
	res, err := s.db.Exec("UPDATE users SET verified = TRUE, verification_token = NULL WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

func (s *SQLiteStore) SetResetToken(userID, token string, expiry time.Time) error {
	_, err := s.db.Exec("UPDATE users SET reset_token = ?, reset_token_expiry = ? WHERE id = ?", token, expiry, userID)
	if err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}
	return nil
}

// UpdatePassword clears any reset token and marks the account verified; a
// completed reset proves control of the mailbox.
func (s *SQLiteStore) UpdatePassword(userID, passwordHash string) error {
	_, err := s.db.Exec(
		`UPDATE users SET password_hash = ?, reset_token = NULL, reset_token_expiry = NULL, verified = TRUE
         WHERE id = ?`, passwordHash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteUser(userID string) error {
	_, err := s.db.Exec("DELETE FROM users WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

// Conversation methods

func (s *SQLiteStore) getConversation(where string, args ...interface{}) (*Conversation, error) {
	query := `SELECT id, user_id, day, messages_json, created_at, updated_at
              FROM conversations WHERE ` + where

	var conv Conversation
	var messagesJSON string
	err := s.db.QueryRow(query, args...).Scan(
		&conv.ID, &conv.UserID, &conv.Day, &messagesJSON, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	if err := json.Unmarshal([]byte(messagesJSON), &conv.Messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages for conversation %s: %w", conv.ID, err)
	}
	return &conv, nil
}

func (s *SQLiteStore) GetConversation(conversationID, userID string) (*Conversation, error) {
	return s.getConversation("id = ? AND user_id = ?", conversationID, userID)
}

// AppendMessages appends to the user's conversation for the given day,
// creating it on the first message. Read-then-write without a transaction;
// concurrent appends to the same day may lose a turn, accepted for this tier.
func (s *SQLiteStore) AppendMessages(userID, day string, messages []ChatMessage) error {
	conv, err := s.getConversation("user_id = ? AND day = ?", userID, day)
	if err != nil {
		return err
	}

	now := time.Now()
	if conv == nil {
		messagesJSON, err := json.Marshal(messages)
		if err != nil {
			return fmt.Errorf("failed to marshal messages: %w", err)
		}
		_, err = s.db.Exec(
			`INSERT INTO conversations (id, user_id, day, messages_json, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), userID, day, string(messagesJSON), now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert conversation: %w", err)
		}
		return nil
	}

	combined := append(conv.Messages, messages...)
	messagesJSON, err := json.Marshal(combined)
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}
	_, err = s.db.Exec(
		"UPDATE conversations SET messages_json = ?, updated_at = ? WHERE id = ?",
		string(messagesJSON), now, conv.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to append to conversation: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetConversationsByUserID(userID string) ([]Conversation, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, day, messages_json, created_at, updated_at
         FROM conversations WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []Conversation
	for rows.Next() {
		var conv Conversation
		var messagesJSON string
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Day, &messagesJSON, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation row: %w", err)
		}
		if err := json.Unmarshal([]byte(messagesJSON), &conv.Messages); err != nil {
			log.WithError(err).Warnf("Skipping unreadable message log for conversation %s", conv.ID)
			conv.Messages = nil
		}
		conversations = append(conversations, conv)
	}
	return conversations, nil
}

func (s *SQLiteStore) ClearConversationMessages(conversationID, userID string) error {
	res, err := s.db.Exec(
		"UPDATE conversations SET messages_json = '[]', updated_at = ? WHERE id = ? AND user_id = ?",
		time.Now(), conversationID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear conversation messages: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("conversation not found")
	}
	return nil
}

func (s *SQLiteStore) DeleteConversation(conversationID, userID string) error {
	res, err := s.db.Exec("DELETE FROM conversations WHERE id = ? AND user_id = ?", conversationID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("conversation not found")
	}
	return nil
}

func (s *SQLiteStore) DeleteAllConversations(userID string) (int64, error) {
	res, err := s.db.Exec("DELETE FROM conversations WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete conversations: %w", err)
	}
	deleted, _ := res.RowsAffected()
	return deleted, nil
}

// QA bank methods

func (s *SQLiteStore) createQAEntry(entry *QAEntry) error {
	embeddingBytes, err := json.Marshal(entry.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	res, err := s.db.Exec(
		"INSERT INTO qa_entries (question, answer, embedding_json) VALUES (?, ?, ?)",
		entry.Question, entry.Answer, string(embeddingBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to insert qa entry: %w", err)
	}
	entry.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) GetAllQAEntries() ([]QAEntry, error) {
	rows, err := s.db.Query("SELECT id, question, answer, embedding_json FROM qa_entries")
	if err != nil {
		return nil, fmt.Errorf("failed to query qa_entries: %w", err)
	}
	defer rows.Close()

	var entries []QAEntry
	for rows.Next() {
		var entry QAEntry
		var embeddingJSON sql.NullString
		if err := rows.Scan(&entry.ID, &entry.Question, &entry.Answer, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan qa entry row: %w", err)
		}
		if embeddingJSON.Valid && embeddingJSON.String != "" {
			if err := json.Unmarshal([]byte(embeddingJSON.String), &entry.Embedding); err != nil {
				log.WithError(err).Warnf("Failed to unmarshal embedding for qa entry %d, skipping it", entry.ID)
				entry.Embedding = nil
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *SQLiteStore) ClearQAEntries() error {
	if _, err := s.db.Exec("DELETE FROM qa_entries"); err != nil {
		return fmt.Errorf("failed to delete qa_entries: %w", err)
	}
	if _, err := s.db.Exec("DELETE FROM sqlite_sequence WHERE name='qa_entries'"); err != nil {
		log.WithError(err).Warn("Could not reset sequence for qa_entries")
	}
	return nil
}

type qaBankFile struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// IngestQAFromFile reads a JSON file of question/answer pairs, embeds each
// question, and replaces the stored QA bank. The whole bank must come from a
// single embedding model run.
func (s *SQLiteStore) IngestQAFromFile(filePath string, embedder func(string) ([]float32, error)) (int, error) {
	contentBytes, err := os.ReadFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read qa file %s: %w", filePath, err)
	}

	var pairs []qaBankFile
	if err := json.Unmarshal(contentBytes, &pairs); err != nil {
		return 0, fmt.Errorf("failed to parse qa file %s: %w", filePath, err)
	}
	if len(pairs) == 0 {
		log.Warn("No QA pairs found in file, nothing to ingest")
		return 0, nil
	}

	log.Infof("Embedding %d QA pairs (this may take a while)...", len(pairs))

	if err := s.ClearQAEntries(); err != nil {
		return 0, fmt.Errorf("failed to clear existing qa entries: %w", err)
	}

	count := 0
	ticker := time.NewTicker(40 * time.Millisecond) // stay under the embedding rate limit
	defer ticker.Stop()

	for i, pair := range pairs {
		<-ticker.C

		if pair.Question == "" || pair.Answer == "" {
			log.Warnf("Skipping qa pair %d with empty question or answer", i+1)
			continue
		}

		embedding, err := embedder(pair.Question)
		if err != nil {
			log.WithError(err).Warnf("Failed to embed qa pair %d (%.50q), skipping", i+1, pair.Question)
			continue
		}

		entry := QAEntry{Question: pair.Question, Answer: pair.Answer, Embedding: embedding}
		if err := s.createQAEntry(&entry); err != nil {
			log.WithError(err).Warnf("Failed to store qa pair %d, skipping", i+1)
			continue
		}
		count++
		if count%25 == 0 || count == len(pairs) {
			log.Infof("Ingested %d/%d qa pairs...", count, len(pairs))
		}
	}
	log.Infof("Successfully ingested %d qa pairs", count)
	return count, nil
}
