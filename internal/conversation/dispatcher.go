// ABOUTME: Applies decoded protocol events to the turn state machine and the UI.
// ABOUTME: One state transition and at most one UI side effect per event, in arrival order.

package conversation

import (
	"context"
	"log/slog"

	"github.com/GPT-Product-Group/shop-chat-agent/internal/markdown"
	"github.com/GPT-Product-Group/shop-chat-agent/internal/protocol"
)

// Fixed user-facing strings. Protocol error events become the terminal
// content of the active message rather than client failures; the two kinds
// stay distinct so the UI can tell retryable-later conditions apart.
const (
	errorFallbackText     = "Sorry, I ran into a problem answering that. Please try again."
	rateLimitFallbackText = "I'm handling too many requests right now. Please try again in a moment."
	transportFallbackText = "Sorry, I couldn't reach the assistant. Please try again."
)

// Message kinds recorded in history. Values match the store's kinds.
const (
	kindText     = "text"
	kindToolUse  = "tool_use"
	kindProducts = "products"
)

// UI is the rendering collaborator. Implementations paint messages and
// product cards; they must not call back into the dispatcher.
type UI interface {
	// MessageStarted announces a new active assistant frame.
	MessageStarted(frameID string)
	// MessageUpdated delivers the accumulated raw text of the active frame.
	// Raw text is shown live; markdown rendering waits for completion.
	MessageUpdated(frameID, rawText string)
	// MessageCompleted replaces the frame's display content with its
	// rendered form.
	MessageCompleted(frameID, rendered string)
	// MessagePending is a hint that more content is being prepared.
	MessagePending(frameID string)
	// ToolUse shows a tool invocation.
	ToolUse(call protocol.ToolCall)
	// Products shows a product result grid.
	Products(products []protocol.Product)
	// HistoryMessage shows a stored message when re-attaching.
	HistoryMessage(role, text string)
}

// Hooks are the dispatcher's callbacks into the owning session.
type Hooks interface {
	// BindConversation persists the server-issued conversation id.
	BindConversation(ctx context.Context, id string)
	// AuthRequired stores the pending replay and starts the resume poller.
	AuthRequired(ctx context.Context)
	// RecordAssistantMessage appends to the durable conversation history.
	RecordAssistantMessage(ctx context.Context, kind, content string)
}

// Dispatcher interprets protocol events for one turn. Events are handled
// strictly in arrival order on a single goroutine; no event is processed
// before the previous one finishes.
type Dispatcher struct {
	turn     *Turn
	ui       UI
	renderer *markdown.Renderer
	hooks    Hooks
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher for a turn. Pass nil logger for default.
func NewDispatcher(turn *Turn, ui UI, renderer *markdown.Renderer, hooks Hooks, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		turn:     turn,
		ui:       ui,
		renderer: renderer,
		hooks:    hooks,
		logger:   logger.With("component", "dispatcher"),
	}
}

// Turn returns the turn this dispatcher drives.
func (d *Dispatcher) Turn() *Turn {
	return d.turn
}

// Dispatch applies one event. Unrecognized kinds are ignored so newer
// servers do not break older clients.
func (d *Dispatcher) Dispatch(ctx context.Context, ev protocol.Event) {
	switch ev.Type {
	case protocol.EventConversationID:
		if ev.ConversationID != "" {
			d.hooks.BindConversation(ctx, ev.ConversationID)
		}

	case protocol.EventChunk:
		frame := d.turn.Append(ev.Chunk)
		if frame == nil {
			d.logger.Debug("dropping chunk with no active frame")
			return
		}
		d.ui.MessageUpdated(frame.ID, frame.Raw)

	case protocol.EventMessageComplete:
		d.finalizeActive(ctx)

	case protocol.EventEndTurn:
		// A frame still open here (no preceding message_complete) is
		// finalized so the UI never holds a dangling active message.
		d.finalizeActive(ctx)
		d.turn.Complete()

	case protocol.EventError:
		d.logger.Warn("stream reported error", "message", ev.Error)
		d.failActive(errorFallbackText)

	case protocol.EventRateLimitExceeded:
		d.logger.Warn("stream reported rate limit", "message", ev.Error)
		d.failActive(rateLimitFallbackText)

	case protocol.EventAuthRequired:
		d.turn.EnterAuthWait()
		d.hooks.AuthRequired(ctx)

	case protocol.EventProductResults:
		// Forwarded verbatim; turn state is untouched.
		d.ui.Products(ev.Products)
		d.hooks.RecordAssistantMessage(ctx, kindProducts, protocol.EncodeProducts(ev.Products))

	case protocol.EventToolUse:
		call := protocol.ParseToolCall(ev.ToolUseMessage)
		d.ui.ToolUse(call)
		d.hooks.RecordAssistantMessage(ctx, kindToolUse, ev.ToolUseMessage)

	case protocol.EventNewMessage:
		d.advance(ctx)

	case protocol.EventContentBlockComplete:
		// UI hint only; no state change.
		if frame := d.turn.Active(); frame != nil {
			d.ui.MessagePending(frame.ID)
		}

	default:
		d.logger.Debug("ignoring unrecognized event", "type", ev.Type)
	}
}

// Finish is called when the stream ends. A clean close without end_turn
// still finalizes whatever the active frame holds.
func (d *Dispatcher) Finish(ctx context.Context) {
	d.finalizeActive(ctx)
	d.turn.Complete()
}

// Fail terminates the turn after a transport failure: the active frame
// gets the fixed apology text and the turn completes. Never panics or
// propagates to the caller.
func (d *Dispatcher) Fail() {
	d.failActive(transportFallbackText)
}

// finalizeActive renders the active frame's raw text and completes it.
// Rendering happens exactly once per frame, here.
func (d *Dispatcher) finalizeActive(ctx context.Context) {
	frame := d.turn.Active()
	if frame == nil || frame.Finalized {
		return
	}
	rendered := d.renderer.Render(frame.Raw)
	d.turn.Finalize(rendered)
	d.ui.MessageCompleted(frame.ID, rendered)
	if frame.Raw != "" {
		d.hooks.RecordAssistantMessage(ctx, kindText, frame.Raw)
	}
}

// failActive replaces the active frame's content with a fixed failure
// string and completes the turn. Failure text is not recorded in history.
func (d *Dispatcher) failActive(text string) {
	frame := d.turn.Active()
	if frame != nil {
		d.turn.Finalize(text)
		d.ui.MessageCompleted(frame.ID, text)
	}
	d.turn.Complete()
}

// advance performs the atomic close-current/open-next transition for a
// mid-turn message boundary.
func (d *Dispatcher) advance(ctx context.Context) {
	frame := d.turn.Active()
	if frame == nil {
		return
	}
	wasFinalized := frame.Finalized
	if !wasFinalized {
		frame.Rendered = d.renderer.Render(frame.Raw)
	}
	closed, opened := d.turn.Advance()
	if closed == nil {
		return
	}
	if !wasFinalized {
		d.ui.MessageCompleted(closed.ID, closed.Rendered)
		if closed.Raw != "" {
			d.hooks.RecordAssistantMessage(ctx, kindText, closed.Raw)
		}
	}
	d.ui.MessageStarted(opened.ID)
}
