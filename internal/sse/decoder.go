// ABOUTME: Incremental decoder for the server-sent-event wire framing.
// ABOUTME: Buffers arbitrary network chunks and yields complete "data: " frames.

package sse

import (
	"log/slog"
	"strings"
)

const (
	// frameDelimiter separates logical frames on the wire.
	frameDelimiter = "\n\n"
	// dataPrefix marks a segment as a meaningful frame.
	dataPrefix = "data: "
)

// Frame is one delimiter-bounded unit of the wire stream with its
// "data: " prefix stripped. The payload is expected to be JSON text,
// but the decoder does not interpret it.
type Frame struct {
	Payload string
}

// Decoder turns an unbounded sequence of text chunks into complete frames.
// Network reads may split a frame at any byte boundary; the decoder keeps
// the trailing partial segment buffered until the closing delimiter arrives.
// Output depends only on the concatenation of the fed chunks, never on how
// they were split.
type Decoder struct {
	buf    strings.Builder
	logger *slog.Logger
}

// NewDecoder creates a decoder. Pass nil logger for default.
func NewDecoder(logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{logger: logger.With("component", "sse")}
}

// Feed appends a chunk to the buffer and returns all frames completed by it,
// in arrival order. Segments that do not carry the "data: " prefix are
// dropped and logged; they never terminate the stream.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.buf.Write(chunk)

	data := d.buf.String()
	if !strings.Contains(data, frameDelimiter) {
		return nil
	}

	segments := strings.Split(data, frameDelimiter)

	// The last segment is incomplete (possibly empty) and becomes the new buffer.
	d.buf.Reset()
	d.buf.WriteString(segments[len(segments)-1])

	var frames []Frame
	for _, seg := range segments[:len(segments)-1] {
		if seg == "" {
			continue
		}
		payload, ok := strings.CutPrefix(seg, dataPrefix)
		if !ok {
			d.logger.Debug("dropping frame without data prefix", "segment", seg)
			continue
		}
		frames = append(frames, Frame{Payload: payload})
	}
	return frames
}

// Close finalizes the stream. A leftover partial segment is not a frame and
// is discarded; its length is reported for diagnostics.
func (d *Decoder) Close() {
	if d.buf.Len() > 0 {
		d.logger.Debug("discarding partial frame at stream end", "bytes", d.buf.Len())
		d.buf.Reset()
	}
}
