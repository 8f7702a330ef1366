// ABOUTME: Typed protocol events decoded from streamed frame payloads.
// ABOUTME: Defines the event union and per-kind payload fields.

package protocol

import (
	"encoding/json"
	"fmt"
)

// EventType identifies the kind of a protocol event. The server may
// introduce new kinds at any time; consumers ignore what they do not
// recognize.
type EventType string

// Event kinds recognized by the dispatcher.
const (
	EventConversationID       EventType = "id"
	EventChunk                EventType = "chunk"
	EventMessageComplete      EventType = "message_complete"
	EventEndTurn              EventType = "end_turn"
	EventError                EventType = "error"
	EventRateLimitExceeded    EventType = "rate_limit_exceeded"
	EventAuthRequired         EventType = "auth_required"
	EventProductResults       EventType = "product_results"
	EventToolUse              EventType = "tool_use"
	EventNewMessage           EventType = "new_message"
	EventContentBlockComplete EventType = "content_block_complete"
)

// Product is a product record forwarded verbatim to the rendering layer.
type Product struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title,omitempty"`
	Price    string `json:"price,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Event is one decoded protocol event. Only the fields relevant to the
// event's Type are populated.
type Event struct {
	Type           EventType `json:"type"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Chunk          string    `json:"chunk,omitempty"`
	Error          string    `json:"error,omitempty"`
	Products       []Product `json:"products,omitempty"`
	ToolUseMessage string    `json:"tool_use_message,omitempty"`
}

// EncodeProducts serializes product records for the durable history.
func EncodeProducts(products []Product) string {
	b, err := json.Marshal(products)
	if err != nil {
		return ""
	}
	return string(b)
}

// Parse decodes a frame payload into an Event. A payload that is not valid
// JSON or lacks a type field is an error; the caller drops the frame and
// keeps processing the stream.
func Parse(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("parsing event payload: %w", err)
	}
	if ev.Type == "" {
		return Event{}, fmt.Errorf("event payload missing type")
	}
	return ev, nil
}
