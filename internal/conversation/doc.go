// Package conversation manages chat turns on top of the event stream.
//
// # Overview
//
// The conversation package ties together the frame decoder, the protocol
// layer, and the rendering UI. It owns the turn state machine, the event
// dispatcher that applies decoded events to it, and the session that opens
// one stream per turn and persists the durable record.
//
// # Turn Lifecycle
//
// A turn moves through four states:
//
//	Idle -> Streaming -> (Streaming <-> AwaitingAuth) -> Completed
//
// Within Streaming exactly one MessageFrame is active: it is the only
// frame receiving chunk text. A new_message event closes the active frame
// and opens the next one atomically, so the invariant holds across the
// boundary. AwaitingAuth keeps the stream alive while the authorization
// hand-off runs out of band.
//
// # Event Dispatch
//
// The Dispatcher applies one event at a time, on the single stream-consume
// goroutine, in arrival order:
//
//   - id: bind and persist the conversation id
//   - chunk: append to the active frame, show raw text live
//   - message_complete: render markdown, complete the frame
//   - end_turn: complete the turn
//   - error / rate_limit_exceeded: finalize with a fixed user-facing string
//   - auth_required: store the pending replay, start the resume poller
//   - product_results / tool_use: forward to the UI, no turn state change
//   - new_message: close current frame, open the next
//   - content_block_complete: UI pending hint only
//
// Unrecognized kinds are ignored so newer servers do not break older
// clients.
//
// # Session
//
// Session.Send opens exactly one stream per call and returns once the
// stream is established; the rest of the turn is observed through UI side
// effects. A second Send while a stream is open returns ErrBusy. Attach
// restores a stored conversation: it replays text history from the store,
// or falls back to a fresh conversation with the fixed welcome message
// when the history cannot be loaded.
//
// The session also implements the resume poller's replay slot and sender,
// so an authorized poll replays the pending user message through the
// normal Send path.
package conversation
