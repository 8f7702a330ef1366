// Package authflow resumes a conversation after an external authorization.
//
// # Overview
//
// When the server reports auth_required, the shopper completes an OAuth
// flow in a browser while the client keeps running. The Poller watches the
// authorization status out of band and, once authorized, replays the
// pending user message through the normal send path.
//
// # Polling Contract
//
// A polling session makes at most MaxAttempts status calls (default 30),
// Interval apart (default 10s), after an InitialDelay (default 2s).
// Transient errors count against the attempt budget. Exhaustion stops the
// session silently.
//
// # Fencing
//
// Start issues a fence token per session. Starting a new session fences
// out the previous one: a superseded session stops before its next network
// call and never touches the replay slot. The replay itself happens at
// most once, because taking the pending message clears the slot first.
// When the sender is still busy with the stream that triggered the
// hand-off, the replay retries on the interval; a message that cannot be
// delivered goes back into the slot.
package authflow
