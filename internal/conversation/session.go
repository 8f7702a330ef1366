// ABOUTME: Conversation session: the entry point the UI calls to send text and re-attach.
// ABOUTME: Opens one stream per turn and feeds it through the decoder and dispatcher.

package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/GPT-Product-Group/shop-chat-agent/internal/api"
	"github.com/GPT-Product-Group/shop-chat-agent/internal/markdown"
	"github.com/GPT-Product-Group/shop-chat-agent/internal/protocol"
	"github.com/GPT-Product-Group/shop-chat-agent/internal/sse"
	"github.com/GPT-Product-Group/shop-chat-agent/internal/store"
)

// ErrBusy is returned by Send while a prior turn's stream is still open.
// Sends are serialized per session; callers retry after the turn completes.
var ErrBusy = errors.New("a turn is already streaming")

// welcomeText greets a fresh conversation, including the fallback when
// stored history cannot be loaded.
const welcomeText = "Hi! I'm your shopping assistant. Ask me about products, orders, or anything else."

// StreamOpener opens the network stream for one turn.
type StreamOpener interface {
	SendMessage(ctx context.Context, req *api.SendMessageRequest) (io.ReadCloser, error)
}

// SessionStore is the slice of the record store the session depends on.
type SessionStore interface {
	SetSessionValue(ctx context.Context, key, value string) error
	GetSessionValue(ctx context.Context, key string) (string, error)
	DeleteSessionValue(ctx context.Context, key string) error
	UpsertConversation(ctx context.Context, id string) error
	SaveMessage(ctx context.Context, msg *store.Message) error
	MessagesByConversation(ctx context.Context, conversationID string, limit int) ([]*store.Message, error)
}

// ResumeStarter starts an authorization resume polling session.
type ResumeStarter interface {
	Start(ctx context.Context, conversationID string) string
}

// Options carry per-session request fields.
type Options struct {
	// PromptType names the server-side prompt to use for each turn.
	PromptType string
	// SystemPrompt, when set, overrides PromptType verbatim.
	SystemPrompt string
	// UserID is sent when the shopper is authenticated.
	UserID string
}

// Session ties a stable conversation id to stored history and exposes the
// send/receive entry point to the rendering layer. One Session holds at
// most one open stream at a time.
type Session struct {
	opener   StreamOpener
	store    SessionStore
	ui       UI
	renderer *markdown.Renderer
	poller   ResumeStarter
	logger   *slog.Logger
	opts     Options

	mu             sync.Mutex
	conversationID string
	inFlightText   string
	streaming      bool
}

// NewSession creates a session. The resume poller is attached separately
// with SetResumePoller because it needs the session as its replay sender.
// Pass nil logger for default.
func NewSession(opener StreamOpener, st SessionStore, ui UI, logger *slog.Logger, opts Options) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session")
	return &Session{
		opener:   opener,
		store:    st,
		ui:       ui,
		renderer: markdown.NewRenderer(logger),
		logger:   logger,
		opts:     opts,
	}
}

// SetResumePoller attaches the auth resume poller.
func (s *Session) SetResumePoller(p ResumeStarter) {
	s.poller = p
}

// ConversationID returns the current conversation id, empty for a new
// conversation.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Send opens exactly one network stream for the turn and returns as soon
// as the stream is established; completion is observed through the UI
// side effects, not a return value. A second Send while a stream is open
// returns ErrBusy.
func (s *Session) Send(ctx context.Context, text string) error {
	if text == "" {
		return fmt.Errorf("message text is required")
	}

	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return ErrBusy
	}
	s.streaming = true
	s.inFlightText = text
	convID := s.conversationID
	s.mu.Unlock()

	req := &api.SendMessageRequest{
		Message:        text,
		ConversationID: convID,
		PromptType:     s.opts.PromptType,
		SystemPrompt:   s.opts.SystemPrompt,
		UserID:         s.opts.UserID,
	}

	// A failed open surfaces only through the returned error; the caller
	// owns rendering it. Apology strings are for failures after the turn
	// is already on screen.
	body, err := s.opener.SendMessage(ctx, req)
	if err != nil {
		s.mu.Lock()
		s.streaming = false
		s.mu.Unlock()
		s.logger.Error("failed to open turn stream", "error", err)
		return fmt.Errorf("opening stream: %w", err)
	}

	// Record the user message now when the conversation already exists;
	// otherwise BindConversation records it once the server issues an id.
	if convID != "" {
		s.recordMessage(ctx, convID, store.RoleUser, kindText, text)
	}

	turn := NewTurn()
	frame := turn.Begin()
	s.ui.MessageStarted(frame.ID)

	dispatcher := NewDispatcher(turn, s.ui, s.renderer, s, s.logger)
	go s.consume(ctx, body, dispatcher)
	return nil
}

// consume reads the stream to the end, feeding frames through the decoder
// and dispatcher strictly in arrival order.
func (s *Session) consume(ctx context.Context, body io.ReadCloser, dispatcher *Dispatcher) {
	defer body.Close()
	defer func() {
		s.mu.Lock()
		s.streaming = false
		s.mu.Unlock()
	}()

	reader := sse.NewStreamReader(s.logger)
	err := reader.Consume(body, func(frame sse.Frame) {
		ev, perr := protocol.Parse([]byte(frame.Payload))
		if perr != nil {
			// Malformed frames are dropped; the stream continues.
			s.logger.Warn("dropping malformed frame", "error", perr)
			return
		}
		dispatcher.Dispatch(ctx, ev)
	})
	if err != nil {
		s.logger.Error("stream read failed", "error", err)
		dispatcher.Fail()
		return
	}
	dispatcher.Finish(ctx)
}

// Attach loads the stored conversation and renders its history. On any
// failure it falls back to a fresh-conversation view: fixed welcome
// message, stored id discarded.
func (s *Session) Attach(ctx context.Context) error {
	id, err := s.store.GetSessionValue(ctx, store.SessionKeyConversationID)
	if err != nil || id == "" {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("failed to load conversation id", "error", err)
		}
		s.ui.HistoryMessage(store.RoleAssistant, welcomeText)
		return nil
	}

	messages, err := s.store.MessagesByConversation(ctx, id, 0)
	if err != nil {
		s.logger.Warn("history fetch failed, starting fresh", "error", err)
		if derr := s.store.DeleteSessionValue(ctx, store.SessionKeyConversationID); derr != nil {
			s.logger.Warn("failed to clear conversation id", "error", derr)
		}
		s.mu.Lock()
		s.conversationID = ""
		s.mu.Unlock()
		s.ui.HistoryMessage(store.RoleAssistant, welcomeText)
		return nil
	}

	s.mu.Lock()
	s.conversationID = id
	s.mu.Unlock()

	if len(messages) == 0 {
		s.ui.HistoryMessage(store.RoleAssistant, welcomeText)
		return nil
	}

	for _, msg := range messages {
		// Structured content (tool calls, product grids) is not replayed.
		if msg.Kind != store.MessageKindText {
			continue
		}
		s.ui.HistoryMessage(msg.Role, msg.Content)
	}
	return nil
}

// BindConversation implements Hooks. The server issues the id on the first
// turn; it is persisted for the life of the session.
func (s *Session) BindConversation(ctx context.Context, id string) {
	s.mu.Lock()
	firstBind := s.conversationID == ""
	s.conversationID = id
	userText := s.inFlightText
	s.mu.Unlock()

	if err := s.store.SetSessionValue(ctx, store.SessionKeyConversationID, id); err != nil {
		s.logger.Error("failed to persist conversation id", "error", err)
	}
	if err := s.store.UpsertConversation(ctx, id); err != nil {
		s.logger.Error("failed to record conversation", "error", err)
	}
	if firstBind && userText != "" {
		s.recordMessage(ctx, id, store.RoleUser, kindText, userText)
	}
}

// AuthRequired implements Hooks. The triggering user text becomes the
// pending replay (a second hand-off overwrites the first), then the resume
// poller takes over. The current stream continues independently.
func (s *Session) AuthRequired(ctx context.Context) {
	s.mu.Lock()
	text := s.inFlightText
	convID := s.conversationID
	s.mu.Unlock()

	if text != "" {
		if err := s.PutPendingReplay(ctx, text); err != nil {
			s.logger.Error("failed to persist pending replay", "error", err)
		}
	}
	if s.poller == nil {
		s.logger.Warn("auth required but no resume poller attached")
		return
	}
	if convID == "" {
		s.logger.Warn("auth required before a conversation id was issued")
		return
	}
	s.poller.Start(ctx, convID)
}

// RecordAssistantMessage implements Hooks.
func (s *Session) RecordAssistantMessage(ctx context.Context, kind, content string) {
	s.mu.Lock()
	convID := s.conversationID
	s.mu.Unlock()
	if convID == "" {
		return
	}
	s.recordMessage(ctx, convID, store.RoleAssistant, kind, content)
}

// PutPendingReplay implements the poller's replay slot: a single slot,
// newest write wins.
func (s *Session) PutPendingReplay(ctx context.Context, text string) error {
	return s.store.SetSessionValue(ctx, store.SessionKeyPendingReplay, text)
}

// TakePendingReplay implements the poller's replay slot; taking clears it.
func (s *Session) TakePendingReplay(ctx context.Context) (string, bool, error) {
	text, err := s.store.GetSessionValue(ctx, store.SessionKeyPendingReplay)
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if err := s.store.DeleteSessionValue(ctx, store.SessionKeyPendingReplay); err != nil {
		return "", false, err
	}
	return text, true, nil
}

func (s *Session) recordMessage(ctx context.Context, convID, role, kind, content string) {
	msg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: convID,
		Role:           role,
		Kind:           kind,
		Content:        content,
	}
	if err := s.store.SaveMessage(ctx, msg); err != nil {
		s.logger.Error("failed to record message",
			"error", err,
			"conversation_id", convID,
			"role", role)
	}
}
