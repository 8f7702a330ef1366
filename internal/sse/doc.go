// Package sse decodes the server-sent-event wire framing used by the chat
// stream: frames are "data: <payload>" segments separated by blank lines.
// The decoder is push-based and split-invariant; StreamReader drives it
// from an io.Reader.
package sse
