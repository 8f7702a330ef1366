// Package api is the HTTP client for the shop chat backend.
//
// # Operations
//
// One file per wire operation:
//
//   - SendMessage: POST /chat, returns the event stream for one turn
//   - AuthStatus: GET /auth/status, polled by the auth resume loop
//
// Every request carries the X-Shop-Id tenant header and, when a token
// source is attached and has a live token, an Authorization bearer header.
package api
