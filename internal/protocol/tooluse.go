// ABOUTME: Decoder for the textual tool-use mini-protocol carried in tool_use events.
// ABOUTME: Grammar: "Calling tool: <name> with arguments: <json-or-raw-text>".

package protocol

import (
	"encoding/json"
	"regexp"
)

// toolUsePattern captures the tool name and the raw argument remainder.
// (?s) lets the remainder span newlines inside JSON arguments.
var toolUsePattern = regexp.MustCompile(`(?s)^Calling tool: ([\w.-]+) with arguments: (.*)$`)

// ToolCall is the structured form of a tool_use message. When the message
// does not match the grammar, Opaque is set and Raw carries the original
// text unchanged; such calls are forwarded, never dropped.
type ToolCall struct {
	Name   string
	Args   map[string]any // nil when the arguments are not a JSON object
	Raw    string
	Opaque bool
}

// ParseToolCall decodes a tool_use message. Argument text is
// opportunistically JSON-decoded; anything that fails to decode stays
// available as Raw.
func ParseToolCall(message string) ToolCall {
	m := toolUsePattern.FindStringSubmatch(message)
	if m == nil {
		return ToolCall{Raw: message, Opaque: true}
	}

	call := ToolCall{Name: m[1], Raw: m[2]}
	var args map[string]any
	if err := json.Unmarshal([]byte(m[2]), &args); err == nil {
		call.Args = args
	}
	return call
}
