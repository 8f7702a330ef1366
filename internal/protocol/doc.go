// Package protocol defines the typed events carried in stream frames.
//
// # Event Kinds
//
// Every frame payload is a JSON object with a "type" field plus per-kind
// data:
//
//   - id: conversation_id issued by the server on the first turn
//   - chunk: incremental assistant text
//   - message_complete: the current message is final
//   - end_turn: the turn is over
//   - error / rate_limit_exceeded: server-reported failures
//   - auth_required: the shopper must authorize out of band
//   - product_results: structured product cards
//   - tool_use: human-readable tool invocation notice
//   - new_message: boundary between assistant messages within one turn
//   - content_block_complete: progress hint
//
// Parse decodes a payload; unknown kinds parse fine and are left to the
// dispatcher to ignore.
//
// # Tool-Use Grammar
//
// tool_use notices follow "Calling tool: <name> with arguments: <rest>".
// ParseToolCall decodes that grammar and falls back to an opaque call for
// anything else, so a notice is never dropped.
package protocol
