// Package store provides client-side persistence using SQLite.
//
// # Overview
//
// The store is the durable record behind a chat session: the conversation
// id and other single-slot session state, finalized messages, named system
// prompts with linear version histories, and user/token records for the
// authenticated flow.
//
// # Implementations
//
// Store is the interface the rest of the client depends on. SQLiteStore
// (modernc.org/sqlite, WAL mode, schema auto-create) is the production
// implementation; MockStore is the in-memory test double with the same
// semantics, including ErrNotFound and max-plus-one prompt versioning.
//
// # Session State
//
// Session state is a key-value table where each key holds at most one
// value: conversation_id, pending_replay, access_token. Writing replaces
// the previous value; reading an unset key returns ErrNotFound.
package store
