// ABOUTME: In-memory implementation of the Store interface for testing.
// ABOUTME: Thread-safe; mirrors SQLiteStore semantics including ErrNotFound and linear versions.

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store for tests.
type MockStore struct {
	mu            sync.RWMutex
	session       map[string]string
	conversations map[string]*Conversation
	messages      []*Message
	prompts       map[string]*Prompt // keyed by id
	versions      map[string][]*PromptVersion
	users         map[string]*User // keyed by email
	tokens        map[string]*Token
}

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{
		session:       make(map[string]string),
		conversations: make(map[string]*Conversation),
		prompts:       make(map[string]*Prompt),
		versions:      make(map[string][]*PromptVersion),
		users:         make(map[string]*User),
		tokens:        make(map[string]*Token),
	}
}

func (m *MockStore) SetSessionValue(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session[key] = value
	return nil
}

func (m *MockStore) GetSessionValue(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.session[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *MockStore) DeleteSessionValue(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.session, key)
	return nil
}

func (m *MockStore) UpsertConversation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if c, ok := m.conversations[id]; ok {
		c.UpdatedAt = now
		return nil
	}
	m.conversations[id] = &Conversation{ID: id, CreatedAt: now, UpdatedAt: now}
	return nil
}

func (m *MockStore) SaveMessage(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := *msg
	if saved.Kind == "" {
		saved.Kind = MessageKindText
	}
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now()
	}
	m.messages = append(m.messages, &saved)
	return nil
}

func (m *MockStore) MessagesByConversation(_ context.Context, conversationID string, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStore) CreatePrompt(_ context.Context, prompt *Prompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := *prompt
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now()
	}
	m.prompts[saved.ID] = &saved
	return nil
}

func (m *MockStore) GetPromptByName(_ context.Context, name string) (*Prompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.prompts {
		if p.Name == name {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockStore) ListPrompts(_ context.Context) ([]*Prompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Prompt, 0, len(m.prompts))
	for _, p := range m.prompts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockStore) AddPromptVersion(_ context.Context, promptID, content string) (*PromptVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.prompts[promptID]; !ok {
		return nil, ErrNotFound
	}
	v := &PromptVersion{
		PromptID:  promptID,
		Version:   len(m.versions[promptID]) + 1,
		Content:   content,
		CreatedAt: time.Now(),
	}
	m.versions[promptID] = append(m.versions[promptID], v)
	return v, nil
}

func (m *MockStore) PromptVersions(_ context.Context, promptID string) ([]*PromptVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*PromptVersion(nil), m.versions[promptID]...), nil
}

func (m *MockStore) LatestPromptVersion(_ context.Context, promptID string) (*PromptVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.versions[promptID]
	if len(versions) == 0 {
		return nil, ErrNotFound
	}
	return versions[len(versions)-1], nil
}

func (m *MockStore) UpsertUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if existing, ok := m.users[user.Email]; ok {
		existing.LastSeenAt = now
		return nil
	}
	saved := *user
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	if saved.LastSeenAt.IsZero() {
		saved.LastSeenAt = now
	}
	m.users[saved.Email] = &saved
	return nil
}

func (m *MockStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[email]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (m *MockStore) SaveToken(_ context.Context, token *Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := *token
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = time.Now()
	}
	m.tokens[saved.UserID] = &saved
	return nil
}

func (m *MockStore) GetToken(_ context.Context, userID string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

func (m *MockStore) Close() error { return nil }
