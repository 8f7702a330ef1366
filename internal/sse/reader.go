// ABOUTME: Read-loop helper that drives a Decoder from an io.Reader.
// ABOUTME: Delivers each complete frame to a callback in arrival order.

package sse

import (
	"io"
	"log/slog"
)

// readChunkSize is the per-read buffer size. Frames regularly span
// multiple reads; the decoder reassembles them.
const readChunkSize = 4096

// StreamReader consumes an entire frame stream from a reader. Each complete
// frame is handed to fn before the next read. It returns nil on a clean end
// of stream and the read error otherwise; in both cases the trailing partial
// segment is discarded.
type StreamReader struct {
	decoder *Decoder
}

// NewStreamReader creates a stream reader. Pass nil logger for default.
func NewStreamReader(logger *slog.Logger) *StreamReader {
	return &StreamReader{decoder: NewDecoder(logger)}
}

// Consume reads r to the end, invoking fn for every complete frame.
func (s *StreamReader) Consume(r io.Reader, fn func(Frame)) error {
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			for _, frame := range s.decoder.Feed(buf[:n]) {
				fn(frame)
			}
		}
		if err != nil {
			s.decoder.Close()
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
