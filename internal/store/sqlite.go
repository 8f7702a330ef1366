// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides conversation/prompt/user/token persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS session_state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'text',
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(id)
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages(conversation_id, created_at);

		CREATE TABLE IF NOT EXISTS prompts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS prompt_versions (
			prompt_id TEXT NOT NULL,
			version INTEGER NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (prompt_id, version),
			FOREIGN KEY (prompt_id) REFERENCES prompts(id)
		);

		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL,
			last_seen_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tokens (
			user_id TEXT PRIMARY KEY,
			access_token TEXT NOT NULL,
			expires_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// SetSessionValue writes a single-slot session value, replacing any
// previous value for the key.
func (s *SQLiteStore) SetSessionValue(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now())
	if err != nil {
		return fmt.Errorf("setting session value: %w", err)
	}
	return nil
}

// GetSessionValue reads a session value. Returns ErrNotFound if unset.
func (s *SQLiteStore) GetSessionValue(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM session_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting session value: %w", err)
	}
	return value, nil
}

// DeleteSessionValue removes a session value. Deleting an unset key is not
// an error.
func (s *SQLiteStore) DeleteSessionValue(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM session_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting session value: %w", err)
	}
	return nil
}

// UpsertConversation records a conversation id, bumping updated_at when it
// already exists.
func (s *SQLiteStore) UpsertConversation(ctx context.Context, id string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, created_at, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at
	`, id, now, now)
	if err != nil {
		return fmt.Errorf("upserting conversation: %w", err)
	}
	return nil
}

// SaveMessage persists a finalized message frame.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *Message) error {
	kind := msg.Kind
	if kind == "" {
		kind = MessageKindText
	}
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, kind, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ConversationID, msg.Role, kind, msg.Content, createdAt)
	if err != nil {
		return fmt.Errorf("saving message: %w", err)
	}
	return nil
}

// MessagesByConversation returns messages for a conversation in creation
// order. A limit of 0 means no limit.
func (s *SQLiteStore) MessagesByConversation(ctx context.Context, conversationID string, limit int) ([]*Message, error) {
	query := `
		SELECT id, conversation_id, role, kind, content, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at ASC, id ASC
	`
	args := []any{conversationID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Kind, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// CreatePrompt creates a named prompt with no versions yet.
func (s *SQLiteStore) CreatePrompt(ctx context.Context, prompt *Prompt) error {
	createdAt := prompt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prompts (id, name, created_at) VALUES (?, ?, ?)
	`, prompt.ID, prompt.Name, createdAt)
	if err != nil {
		return fmt.Errorf("creating prompt: %w", err)
	}
	return nil
}

// GetPromptByName looks up a prompt by its unique name.
func (s *SQLiteStore) GetPromptByName(ctx context.Context, name string) (*Prompt, error) {
	var p Prompt
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM prompts WHERE name = ?`, name).
		Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting prompt: %w", err)
	}
	return &p, nil
}

// ListPrompts returns all prompts ordered by name.
func (s *SQLiteStore) ListPrompts(ctx context.Context) ([]*Prompt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM prompts ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing prompts: %w", err)
	}
	defer rows.Close()

	var prompts []*Prompt
	for rows.Next() {
		var p Prompt
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning prompt: %w", err)
		}
		prompts = append(prompts, &p)
	}
	return prompts, rows.Err()
}

// AddPromptVersion appends a new version to a prompt's linear history.
// The version number is always the current maximum plus one.
func (s *SQLiteStore) AddPromptVersion(ctx context.Context, promptID, content string) (*PromptVersion, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM prompts WHERE id = ?`, promptID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("checking prompt: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM prompt_versions WHERE prompt_id = ?`,
		promptID).Scan(&next); err != nil {
		return nil, fmt.Errorf("computing next version: %w", err)
	}

	v := &PromptVersion{
		PromptID:  promptID,
		Version:   next,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO prompt_versions (prompt_id, version, content, created_at)
		VALUES (?, ?, ?, ?)
	`, v.PromptID, v.Version, v.Content, v.CreatedAt); err != nil {
		return nil, fmt.Errorf("inserting prompt version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing prompt version: %w", err)
	}
	return v, nil
}

// PromptVersions returns all versions of a prompt in ascending order.
func (s *SQLiteStore) PromptVersions(ctx context.Context, promptID string) ([]*PromptVersion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT prompt_id, version, content, created_at
		FROM prompt_versions WHERE prompt_id = ? ORDER BY version ASC
	`, promptID)
	if err != nil {
		return nil, fmt.Errorf("querying prompt versions: %w", err)
	}
	defer rows.Close()

	var versions []*PromptVersion
	for rows.Next() {
		var v PromptVersion
		if err := rows.Scan(&v.PromptID, &v.Version, &v.Content, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning prompt version: %w", err)
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}

// LatestPromptVersion returns the highest-numbered version of a prompt.
func (s *SQLiteStore) LatestPromptVersion(ctx context.Context, promptID string) (*PromptVersion, error) {
	var v PromptVersion
	err := s.db.QueryRowContext(ctx, `
		SELECT prompt_id, version, content, created_at
		FROM prompt_versions WHERE prompt_id = ?
		ORDER BY version DESC LIMIT 1
	`, promptID).Scan(&v.PromptID, &v.Version, &v.Content, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest prompt version: %w", err)
	}
	return &v, nil
}

// UpsertUser creates a user record or refreshes last_seen_at for an
// existing email.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *User) error {
	now := time.Now()
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	lastSeen := user.LastSeenAt
	if lastSeen.IsZero() {
		lastSeen = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, created_at, last_seen_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET last_seen_at = excluded.last_seen_at
	`, user.ID, user.Email, createdAt, lastSeen)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

// GetUserByEmail looks up a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, created_at, last_seen_at FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.CreatedAt, &u.LastSeenAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

// SaveToken stores or replaces the bearer token for a user.
func (s *SQLiteStore) SaveToken(ctx context.Context, token *Token) error {
	createdAt := token.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (user_id, access_token, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at
	`, token.UserID, token.AccessToken, token.ExpiresAt, createdAt)
	if err != nil {
		return fmt.Errorf("saving token: %w", err)
	}
	return nil
}

// GetToken returns the stored token for a user.
func (s *SQLiteStore) GetToken(ctx context.Context, userID string) (*Token, error) {
	var t Token
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, access_token, expires_at, created_at FROM tokens WHERE user_id = ?
	`, userID).Scan(&t.UserID, &t.AccessToken, &t.ExpiresAt, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting token: %w", err)
	}
	return &t, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
