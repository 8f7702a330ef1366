// ABOUTME: Tests for the event dispatcher.
// ABOUTME: Covers the per-kind effects table, ordering, and fixed failure strings.

package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GPT-Product-Group/shop-chat-agent/internal/markdown"
	"github.com/GPT-Product-Group/shop-chat-agent/internal/protocol"
)

// uiRecorder records UI side effects in call order. Shared with the
// session tests, so it is safe for use from the stream goroutine.
type uiRecorder struct {
	mu        sync.Mutex
	order     []string          // coarse call sequence, e.g. "completed"
	updated   map[string]string // frameID -> latest raw text
	completed map[string]string // frameID -> rendered content
	started   []string
	tools     []protocol.ToolCall
	products  [][]protocol.Product
	history   []string // "role: text"
	pending   int
}

func newUIRecorder() *uiRecorder {
	return &uiRecorder{
		updated:   make(map[string]string),
		completed: make(map[string]string),
	}
}

func (u *uiRecorder) MessageStarted(frameID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.started = append(u.started, frameID)
	u.order = append(u.order, "started")
}

func (u *uiRecorder) MessageUpdated(frameID, rawText string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.updated[frameID] = rawText
	u.order = append(u.order, "updated")
}

func (u *uiRecorder) MessageCompleted(frameID, rendered string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.completed[frameID] = rendered
	u.order = append(u.order, "completed")
}

func (u *uiRecorder) MessagePending(frameID string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pending++
	u.order = append(u.order, "pending")
}

func (u *uiRecorder) ToolUse(call protocol.ToolCall) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.tools = append(u.tools, call)
	u.order = append(u.order, "tool_use")
}

func (u *uiRecorder) Products(products []protocol.Product) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.products = append(u.products, products)
	u.order = append(u.order, "products")
}

func (u *uiRecorder) HistoryMessage(role, text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.history = append(u.history, fmt.Sprintf("%s: %s", role, text))
	u.order = append(u.order, "history")
}

func (u *uiRecorder) callOrder() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.order...)
}

func (u *uiRecorder) completedContents() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []string
	for _, id := range u.started {
		if rendered, ok := u.completed[id]; ok {
			out = append(out, rendered)
		}
	}
	return out
}

func (u *uiRecorder) historyLines() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.history...)
}

// hooksRecorder records the dispatcher's session callbacks.
type hooksRecorder struct {
	mu           sync.Mutex
	bound        []string
	authRequired int
	recorded     []string // "kind: content"
}

func (h *hooksRecorder) BindConversation(_ context.Context, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bound = append(h.bound, id)
}

func (h *hooksRecorder) AuthRequired(_ context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authRequired++
}

func (h *hooksRecorder) RecordAssistantMessage(_ context.Context, kind, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recorded = append(h.recorded, fmt.Sprintf("%s: %s", kind, content))
}

func newTestDispatcher() (*Dispatcher, *Turn, *uiRecorder, *hooksRecorder) {
	turn := NewTurn()
	ui := newUIRecorder()
	hooks := &hooksRecorder{}
	d := NewDispatcher(turn, ui, markdown.NewRenderer(nil), hooks, nil)

	frame := turn.Begin()
	ui.MessageStarted(frame.ID)
	return d, turn, ui, hooks
}

func dispatchAll(d *Dispatcher, events ...protocol.Event) {
	for _, ev := range events {
		d.Dispatch(context.Background(), ev)
	}
}

func TestDispatch_ChunkAppendsAndShowsRawText(t *testing.T) {
	d, turn, ui, _ := newTestDispatcher()

	dispatchAll(d,
		protocol.Event{Type: protocol.EventChunk, Chunk: "Hel"},
		protocol.Event{Type: protocol.EventChunk, Chunk: "lo"},
	)

	frame := turn.Active()
	require.NotNil(t, frame)
	assert.Equal(t, "Hello", frame.Raw)
	assert.Equal(t, "Hello", ui.updated[frame.ID])
	// Live updates are raw text; nothing is rendered yet.
	assert.Empty(t, ui.completed)
}

func TestDispatch_ChunkThenEndTurnRendersHello(t *testing.T) {
	d, turn, ui, _ := newTestDispatcher()

	dispatchAll(d,
		protocol.Event{Type: protocol.EventChunk, Chunk: "Hello"},
		protocol.Event{Type: protocol.EventEndTurn},
	)

	assert.Equal(t, StateCompleted, turn.State())
	contents := ui.completedContents()
	require.Len(t, contents, 1)
	assert.Contains(t, contents[0], "Hello")
}

func TestDispatch_MessageCompleteRendersOnce(t *testing.T) {
	d, turn, ui, hooks := newTestDispatcher()

	dispatchAll(d,
		protocol.Event{Type: protocol.EventChunk, Chunk: "**bold**"},
		protocol.Event{Type: protocol.EventMessageComplete},
		protocol.Event{Type: protocol.EventMessageComplete}, // duplicate is a no-op
	)

	frame := turn.Frames()[0]
	assert.True(t, frame.Finalized)
	assert.Contains(t, ui.completed[frame.ID], "<strong>bold</strong>")
	require.Len(t, hooks.recorded, 1)
	assert.Equal(t, "text: **bold**", hooks.recorded[0])
}

func TestDispatch_ToolUseProductsMessageCompleteOrdering(t *testing.T) {
	d, _, ui, _ := newTestDispatcher()

	dispatchAll(d,
		protocol.Event{
			Type:           protocol.EventToolUse,
			ToolUseMessage: `Calling tool: search_products with arguments: {"q":"shoes"}`,
		},
		protocol.Event{
			Type:     protocol.EventProductResults,
			Products: []protocol.Product{{ID: "p1", Title: "Shoes"}},
		},
		protocol.Event{Type: protocol.EventChunk, Chunk: "Here are some shoes."},
		protocol.Event{Type: protocol.EventMessageComplete},
	)

	assert.Equal(t, []string{"started", "tool_use", "products", "updated", "completed"}, ui.callOrder())

	require.Len(t, ui.tools, 1)
	assert.Equal(t, "search_products", ui.tools[0].Name)
	require.Len(t, ui.products, 1)
	assert.Equal(t, "Shoes", ui.products[0][0].Title)
}

func TestDispatch_NewMessageClosesAndOpensAtomically(t *testing.T) {
	d, turn, ui, _ := newTestDispatcher()

	dispatchAll(d, protocol.Event{Type: protocol.EventChunk, Chunk: "first"})
	first := turn.Active()

	dispatchAll(d, protocol.Event{Type: protocol.EventNewMessage})

	second := turn.Active()
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, first.Finalized)
	assert.Len(t, turn.Frames(), 2)
	assert.Contains(t, ui.completed[first.ID], "first")
	assert.Equal(t, []string{first.ID, second.ID}, ui.started)

	dispatchAll(d, protocol.Event{Type: protocol.EventChunk, Chunk: "second"})
	assert.Equal(t, "second", second.Raw)
}

func TestDispatch_ErrorUsesFixedText(t *testing.T) {
	d, turn, ui, hooks := newTestDispatcher()

	dispatchAll(d,
		protocol.Event{Type: protocol.EventChunk, Chunk: "partial answer"},
		protocol.Event{Type: protocol.EventError, Error: "upstream exploded"},
	)

	assert.Equal(t, StateCompleted, turn.State())
	contents := ui.completedContents()
	require.Len(t, contents, 1)
	assert.Equal(t, errorFallbackText, contents[0])
	// Failure text is not recorded as history.
	assert.Empty(t, hooks.recorded)
}

func TestDispatch_RateLimitUsesDistinctText(t *testing.T) {
	d, _, ui, _ := newTestDispatcher()

	dispatchAll(d, protocol.Event{Type: protocol.EventRateLimitExceeded, Error: "slow down"})

	contents := ui.completedContents()
	require.Len(t, contents, 1)
	assert.Equal(t, rateLimitFallbackText, contents[0])
	assert.NotEqual(t, errorFallbackText, rateLimitFallbackText)
}

func TestDispatch_AuthRequiredHandsOffWithoutEndingStream(t *testing.T) {
	d, turn, _, hooks := newTestDispatcher()

	dispatchAll(d, protocol.Event{Type: protocol.EventAuthRequired})

	assert.Equal(t, 1, hooks.authRequired)
	assert.Equal(t, StateAwaitingAuth, turn.State())

	// The stream continues independently of the hand-off.
	dispatchAll(d, protocol.Event{Type: protocol.EventChunk, Chunk: "still here"})
	assert.Equal(t, "still here", turn.Active().Raw)
}

func TestDispatch_ProductsDoNotTouchTurnState(t *testing.T) {
	d, turn, _, _ := newTestDispatcher()
	dispatchAll(d, protocol.Event{Type: protocol.EventChunk, Chunk: "before"})

	dispatchAll(d, protocol.Event{
		Type:     protocol.EventProductResults,
		Products: []protocol.Product{{ID: "p1"}},
	})

	assert.Equal(t, StateStreaming, turn.State())
	assert.Equal(t, "before", turn.Active().Raw)
	assert.False(t, turn.Active().Finalized)
}

func TestDispatch_OpaqueToolUseForwardedNotDropped(t *testing.T) {
	d, _, ui, _ := newTestDispatcher()

	dispatchAll(d, protocol.Event{
		Type:           protocol.EventToolUse,
		ToolUseMessage: "doing something unstructured",
	})

	require.Len(t, ui.tools, 1)
	assert.True(t, ui.tools[0].Opaque)
	assert.Equal(t, "doing something unstructured", ui.tools[0].Raw)
}

func TestDispatch_ConversationIDBinds(t *testing.T) {
	d, _, _, hooks := newTestDispatcher()

	dispatchAll(d, protocol.Event{Type: protocol.EventConversationID, ConversationID: "conv-9"})

	assert.Equal(t, []string{"conv-9"}, hooks.bound)
}

func TestDispatch_ContentBlockCompleteIsHintOnly(t *testing.T) {
	d, turn, ui, _ := newTestDispatcher()
	dispatchAll(d, protocol.Event{Type: protocol.EventChunk, Chunk: "text"})

	dispatchAll(d, protocol.Event{Type: protocol.EventContentBlockComplete})

	assert.Equal(t, 1, ui.pending)
	assert.Equal(t, StateStreaming, turn.State())
	assert.False(t, turn.Active().Finalized)
}

func TestDispatch_UnrecognizedKindIgnored(t *testing.T) {
	d, turn, ui, hooks := newTestDispatcher()

	dispatchAll(d, protocol.Event{Type: "hologram_projection"})

	assert.Equal(t, []string{"started"}, ui.callOrder())
	assert.Equal(t, StateStreaming, turn.State())
	assert.Empty(t, hooks.recorded)
}

func TestFail_ShowsTransportApology(t *testing.T) {
	d, turn, ui, _ := newTestDispatcher()
	dispatchAll(d, protocol.Event{Type: protocol.EventChunk, Chunk: "half an ans"})

	d.Fail()

	assert.Equal(t, StateCompleted, turn.State())
	contents := ui.completedContents()
	require.Len(t, contents, 1)
	assert.Equal(t, transportFallbackText, contents[0])
}
