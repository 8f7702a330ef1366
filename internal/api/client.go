// ABOUTME: HTTP client for the shop chat agent backend.
// ABOUTME: Carries the tenant header and optional bearer token on every request.

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// shopHeader identifies the tenant on every request.
const shopHeader = "X-Shop-Id"

// TokenSource supplies a bearer token for authenticated requests.
// Returning false means the request goes out unauthenticated.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, bool)
}

// Client talks to the chat backend over HTTP.
type Client struct {
	baseURL    string
	shopID     string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
}

// NewClient creates an unauthenticated client for the given backend and shop.
func NewClient(baseURL, shopID string) *Client {
	return &Client{
		baseURL: baseURL,
		shopID:  shopID,
		// No global timeout: the chat stream stays open for the whole turn.
		// Per-request deadlines come from the caller's context.
		httpClient: &http.Client{},
		logger:     slog.Default().With("component", "api"),
	}
}

// NewClientWithTokens creates a client that attaches bearer tokens from the
// given source when one is available.
func NewClientWithTokens(baseURL, shopID string, tokens TokenSource) *Client {
	c := NewClient(baseURL, shopID)
	c.tokens = tokens
	return c
}

// SetHTTPClient replaces the underlying HTTP client (used by tests and by
// callers that need custom transports).
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// decorate sets the headers common to all requests.
func (c *Client) decorate(req *http.Request) {
	req.Header.Set(shopHeader, c.shopID)
	if c.tokens != nil {
		if token, ok := c.tokens.AccessToken(req.Context()); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// pollTimeout bounds a single auth-status poll request. The poll loop owns
// retry behavior; individual calls must not hang past the poll interval.
const pollTimeout = 8 * time.Second
