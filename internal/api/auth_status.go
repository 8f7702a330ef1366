// ABOUTME: Authorization status query used by the auth resume poller.
// ABOUTME: GET /auth/status keyed by conversation id; "authorized" triggers resumption.

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// StatusAuthorized is the status value that resumes a pending conversation.
// Any other value means keep waiting.
const StatusAuthorized = "authorized"

// authStatusResponse is the JSON response from GET /auth/status.
type authStatusResponse struct {
	Status string `json:"status"`
}

// AuthStatus queries the authorization state for a conversation.
func (c *Client) AuthStatus(ctx context.Context, conversationID string) (string, error) {
	if conversationID == "" {
		return "", fmt.Errorf("conversation_id is required")
	}

	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/auth/status?conversation_id=%s", c.baseURL, url.QueryEscape(conversationID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	c.decorate(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("checking auth status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	var status authStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	return status.Status, nil
}
