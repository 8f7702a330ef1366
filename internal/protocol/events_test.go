// ABOUTME: Tests for protocol event parsing.
// ABOUTME: Covers per-kind payload fields, unknown kinds, and malformed payloads.

package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Chunk(t *testing.T) {
	ev, err := Parse([]byte(`{"type":"chunk","chunk":"Hello"}`))
	require.NoError(t, err)
	assert.Equal(t, EventChunk, ev.Type)
	assert.Equal(t, "Hello", ev.Chunk)
}

func TestParse_ConversationID(t *testing.T) {
	ev, err := Parse([]byte(`{"type":"id","conversation_id":"conv-42"}`))
	require.NoError(t, err)
	assert.Equal(t, EventConversationID, ev.Type)
	assert.Equal(t, "conv-42", ev.ConversationID)
}

func TestParse_ProductResults(t *testing.T) {
	ev, err := Parse([]byte(`{"type":"product_results","products":[{"id":"p1","title":"Shoes","price":"49.99"}]}`))
	require.NoError(t, err)
	assert.Equal(t, EventProductResults, ev.Type)
	require.Len(t, ev.Products, 1)
	assert.Equal(t, "Shoes", ev.Products[0].Title)
}

func TestParse_ToolUse(t *testing.T) {
	ev, err := Parse([]byte(`{"type":"tool_use","tool_use_message":"Calling tool: search with arguments: {}"}`))
	require.NoError(t, err)
	assert.Equal(t, EventToolUse, ev.Type)
	assert.Contains(t, ev.ToolUseMessage, "search")
}

func TestParse_UnknownKindStillParses(t *testing.T) {
	// Forward compatibility: new kinds parse and are ignored downstream.
	ev, err := Parse([]byte(`{"type":"shiny_new_thing","payload":123}`))
	require.NoError(t, err)
	assert.Equal(t, EventType("shiny_new_thing"), ev.Type)
}

func TestParse_MalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"type":"chunk",`))
	assert.Error(t, err)
}

func TestParse_MissingType(t *testing.T) {
	_, err := Parse([]byte(`{"chunk":"orphan"}`))
	assert.Error(t, err)
}
