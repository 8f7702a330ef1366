// ABOUTME: Store interface and data types for client-side persistence.
// ABOUTME: Covers conversation history, prompts with linear versions, users, and tokens.

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Session state keys. Each holds at most one value; writing replaces the
// previous one.
const (
	SessionKeyConversationID = "conversation_id"
	SessionKeyPendingReplay  = "pending_replay"
	SessionKeyAccessToken    = "access_token"
)

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message kinds. Only text messages are replayed when re-attaching to a
// conversation; structured kinds are kept for the record.
const (
	MessageKindText     = "text"
	MessageKindToolUse  = "tool_use"
	MessageKindProducts = "products"
)

// Conversation is the durable record of one server-side conversation.
type Conversation struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one finalized message frame within a conversation.
type Message struct {
	ID             string
	ConversationID string
	Role           string
	Kind           string // "text", "tool_use", "products" (defaults to "text")
	Content        string
	CreatedAt      time.Time
}

// Prompt is a named system prompt with a linear version history.
type Prompt struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// PromptVersion is one immutable revision of a prompt. Versions are
// assigned sequentially starting at 1.
type PromptVersion struct {
	PromptID  string
	Version   int
	Content   string
	CreatedAt time.Time
}

// User is a registration/login record.
type User struct {
	ID         string
	Email      string
	CreatedAt  time.Time
	LastSeenAt time.Time
}

// Token is a stored bearer token for an authenticated user.
type Token struct {
	UserID      string
	AccessToken string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Store defines the persistence operations the client depends on.
// Implementations: SQLiteStore (production), MockStore (tests).
type Store interface {
	// Single-slot session state (conversation id, pending replay, token).
	SetSessionValue(ctx context.Context, key, value string) error
	GetSessionValue(ctx context.Context, key string) (string, error)
	DeleteSessionValue(ctx context.Context, key string) error

	// Conversation history (the durable record; frames themselves are
	// discarded once rendered).
	UpsertConversation(ctx context.Context, id string) error
	SaveMessage(ctx context.Context, msg *Message) error
	MessagesByConversation(ctx context.Context, conversationID string, limit int) ([]*Message, error)

	// Prompt CRUD with linear version history.
	CreatePrompt(ctx context.Context, prompt *Prompt) error
	GetPromptByName(ctx context.Context, name string) (*Prompt, error)
	ListPrompts(ctx context.Context) ([]*Prompt, error)
	AddPromptVersion(ctx context.Context, promptID, content string) (*PromptVersion, error)
	PromptVersions(ctx context.Context, promptID string) ([]*PromptVersion, error)
	LatestPromptVersion(ctx context.Context, promptID string) (*PromptVersion, error)

	// User and token records.
	UpsertUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	SaveToken(ctx context.Context, token *Token) error
	GetToken(ctx context.Context, userID string) (*Token, error)

	Close() error
}
