package store

import "time"

type User struct {
	ID                string     `json:"id"`
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	Verified          bool       `json:"verified"`
	VerificationToken *string    `json:"-"`
	ResetToken        *string    `json:"-"`
	ResetTokenExpiry  *time.Time `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
}

// ChatMessage is one turn in a conversation, user or bot.
type ChatMessage struct {
	Role      string    `json:"role"` // "user" or "bot"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the per-user, per-calendar-day message log. Created lazily
// on the first message of the day, appended to for the rest of it.
type Conversation struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Day       string        `json:"day"` // YYYY-MM-DD
	Messages  []ChatMessage `json:"messages"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// QAEntry is one canned question/answer pair with its precomputed embedding.
type QAEntry struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Embedding []float32 `json:"-"`
}
