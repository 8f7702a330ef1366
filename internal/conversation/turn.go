// ABOUTME: Turn state machine tracking the active assistant message frame.
// ABOUTME: States: Idle -> Streaming -> (Streaming <-> AwaitingAuth) -> Completed.

package conversation

import (
	"github.com/google/uuid"
)

// State is the lifecycle state of a turn.
type State int

const (
	// StateIdle is the initial state before any frame has been opened.
	StateIdle State = iota
	// StateStreaming means the turn has an active frame receiving text.
	StateStreaming
	// StateAwaitingAuth is Streaming with an authorization hand-off in
	// flight. The underlying stream is not torn down.
	StateAwaitingAuth
	// StateCompleted is terminal; the next user submission starts a fresh turn.
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// MessageFrame is one assistant sub-message within a turn. Raw is
// append-only while the frame is active; Rendered is derived from Raw
// exactly once, when the frame is finalized.
type MessageFrame struct {
	ID        string
	Role      string
	Raw       string
	Rendered  string
	Finalized bool
}

// Turn is one user submission and the assistant messages it produces.
// Within Streaming exactly one frame is active at any instant. Turn is not
// safe for concurrent use; all mutation happens on the stream goroutine.
type Turn struct {
	state  State
	frames []*MessageFrame
	active *MessageFrame
}

// NewTurn creates a turn in the Idle state.
func NewTurn() *Turn {
	return &Turn{state: StateIdle}
}

// State returns the current lifecycle state.
func (t *Turn) State() State {
	return t.state
}

// Frames returns all frames opened so far, in order.
func (t *Turn) Frames() []*MessageFrame {
	return t.frames
}

// Active returns the frame currently receiving text, or nil outside
// Streaming/AwaitingAuth.
func (t *Turn) Active() *MessageFrame {
	return t.active
}

// Begin moves Idle to Streaming and opens the first assistant frame.
// Calling Begin on a started turn returns the existing active frame.
func (t *Turn) Begin() *MessageFrame {
	if t.state != StateIdle {
		return t.active
	}
	t.state = StateStreaming
	return t.open()
}

// Append adds a text fragment to the active frame and returns it.
// Returns nil if the turn has no active frame.
func (t *Turn) Append(text string) *MessageFrame {
	if t.active == nil || t.state == StateCompleted {
		return nil
	}
	t.active.Raw += text
	return t.active
}

// Finalize marks the active frame complete with its rendered form. The
// frame stays active until Advance or Complete; at most one frame is
// active at any instant.
func (t *Turn) Finalize(rendered string) *MessageFrame {
	if t.active == nil {
		return nil
	}
	t.active.Rendered = rendered
	t.active.Finalized = true
	return t.active
}

// Advance atomically closes the current frame and opens the next one.
// There is never a window with zero or two active frames: the new frame
// replaces the old in a single step. Returns the closed and opened frames.
func (t *Turn) Advance() (closed, opened *MessageFrame) {
	if t.active == nil || t.state == StateCompleted {
		return nil, nil
	}
	closed = t.active
	closed.Finalized = true
	opened = t.open()
	return closed, opened
}

// EnterAuthWait flags the turn as awaiting authorization. The stream, and
// the active frame, stay live.
func (t *Turn) EnterAuthWait() {
	if t.state == StateStreaming {
		t.state = StateAwaitingAuth
	}
}

// LeaveAuthWait returns an auth-waiting turn to plain Streaming.
func (t *Turn) LeaveAuthWait() {
	if t.state == StateAwaitingAuth {
		t.state = StateStreaming
	}
}

// Complete marks the turn finished. No further frames are expected.
func (t *Turn) Complete() {
	t.state = StateCompleted
	t.active = nil
}

func (t *Turn) open() *MessageFrame {
	frame := &MessageFrame{
		ID:   uuid.New().String(),
		Role: "assistant",
	}
	t.frames = append(t.frames, frame)
	t.active = frame
	return frame
}
