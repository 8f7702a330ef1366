// ABOUTME: Background poller that resumes a conversation after an OAuth hand-off.
// ABOUTME: Fenced by a session token; replays the pending user message exactly once.

package authflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default polling bounds. A conforming poller keeps these literal values:
// they are observable timing behavior.
const (
	DefaultMaxAttempts  = 30
	DefaultInterval     = 10 * time.Second
	DefaultInitialDelay = 2 * time.Second
)

// statusAuthorized is the status value that completes the hand-off.
const statusAuthorized = "authorized"

// StatusClient queries the external authorization-status endpoint.
type StatusClient interface {
	AuthStatus(ctx context.Context, conversationID string) (string, error)
}

// ReplaySlot holds at most one pending user message across the auth
// round-trip. Take clears the slot.
type ReplaySlot interface {
	PutPendingReplay(ctx context.Context, text string) error
	TakePendingReplay(ctx context.Context) (string, bool, error)
}

// ReplaySender re-enters the turn-send path with the replayed text.
type ReplaySender interface {
	Send(ctx context.Context, text string) error
}

// Poller polls the authorization status endpoint until authorized, the
// attempt bound is exhausted, or it is superseded by a newer session.
// Starting a new session fences out any prior one: the stale goroutine
// notices before its next network call and stops silently.
type Poller struct {
	mu      sync.Mutex
	current string

	status StatusClient
	replay ReplaySlot
	sender ReplaySender
	logger *slog.Logger

	// Overridable for tests; defaults are the production bounds.
	MaxAttempts  int
	Interval     time.Duration
	InitialDelay time.Duration
}

// New creates a poller with default bounds. Pass nil logger for default.
func New(status StatusClient, replay ReplaySlot, sender ReplaySender, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		status:       status,
		replay:       replay,
		sender:       sender,
		logger:       logger.With("component", "authflow"),
		MaxAttempts:  DefaultMaxAttempts,
		Interval:     DefaultInterval,
		InitialDelay: DefaultInitialDelay,
	}
}

// Start begins a new polling session for the conversation and returns its
// fence token. Any session already in flight is superseded immediately.
func (p *Poller) Start(ctx context.Context, conversationID string) string {
	id := uuid.New().String()

	p.mu.Lock()
	p.current = id
	p.mu.Unlock()

	p.logger.Debug("polling session started",
		"session_id", id,
		"conversation_id", conversationID)

	go p.run(ctx, id, conversationID)
	return id
}

// Stop invalidates the current session, if any.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.current = ""
	p.mu.Unlock()
}

// isCurrent reports whether the session still holds the fence.
func (p *Poller) isCurrent(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current == id
}

// release clears the session if it still holds the fence. Returns false
// when the session was already superseded.
func (p *Poller) release(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != id {
		return false
	}
	p.current = ""
	return true
}

func (p *Poller) run(ctx context.Context, id, conversationID string) {
	if !p.sleep(ctx, p.InitialDelay) {
		return
	}

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		// Fence check before every network call: a superseded session
		// stops without error.
		if !p.isCurrent(id) {
			p.logger.Debug("polling session superseded", "session_id", id)
			return
		}

		status, err := p.status.AuthStatus(ctx, conversationID)
		switch {
		case err != nil:
			// Transient: the attempt still counts.
			p.logger.Warn("auth status check failed",
				"error", err,
				"attempt", attempt,
				"session_id", id)
		case status == statusAuthorized:
			p.resume(ctx, id, conversationID)
			return
		}

		if attempt < p.MaxAttempts {
			if !p.sleep(ctx, p.Interval) {
				return
			}
		}
	}

	p.logger.Info("authorization polling exhausted",
		"session_id", id,
		"conversation_id", conversationID,
		"attempts", p.MaxAttempts)
	p.release(id)
}

// resume replays the pending message at most once. The fence is released
// before the slot is taken, so no later tick of any session can replay the
// same text. The sender may still be draining the stream that triggered the
// hand-off; a busy or failed send retries on the poll interval, and the
// text goes back into the slot if the retries run out.
func (p *Poller) resume(ctx context.Context, id, conversationID string) {
	if !p.release(id) {
		return
	}

	text, ok, err := p.replay.TakePendingReplay(ctx)
	if err != nil {
		p.logger.Error("failed to read pending replay", "error", err)
		return
	}
	if !ok {
		p.logger.Debug("authorized with no pending replay",
			"conversation_id", conversationID)
		return
	}

	p.logger.Info("authorization complete, replaying pending message",
		"conversation_id", conversationID)
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		sendErr := p.sender.Send(ctx, text)
		if sendErr == nil {
			return
		}
		p.logger.Warn("replay attempt failed",
			"error", sendErr,
			"attempt", attempt,
			"conversation_id", conversationID)
		if attempt < p.MaxAttempts && !p.sleep(ctx, p.Interval) {
			break
		}
	}

	// Undelivered: restore the text so a later session can still send it.
	if err := p.replay.PutPendingReplay(ctx, text); err != nil {
		p.logger.Error("failed to restore pending replay", "error", err)
	}
}

// sleep waits for d unless the context ends first.
func (p *Poller) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
