// ABOUTME: Markdown to HTML conversion for completed message frames.
// ABOUTME: Wraps goldmark with a fall-back-to-raw-text failure mode.

package markdown

import (
	"bytes"
	"log/slog"

	"github.com/yuin/goldmark"
)

// Renderer converts raw message text to markup once a frame is complete.
// Live streaming updates show raw text; rendering happens exactly once per
// frame, on finalization.
type Renderer struct {
	logger *slog.Logger
}

// NewRenderer creates a renderer. Pass nil logger for default.
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger.With("component", "markdown")}
}

// Render converts markdown to HTML. Conversion failure is not fatal to the
// dispatch path: the raw text is returned unchanged.
func (r *Renderer) Render(raw string) string {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(raw), &buf); err != nil {
		r.logger.Error("failed to convert markdown", "error", err)
		return raw
	}
	return buf.String()
}
