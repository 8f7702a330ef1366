// ABOUTME: Starts one chat turn and returns the server-sent-event response stream.
// ABOUTME: POST /chat with the message, conversation id, and prompt selection.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// SendMessageRequest is the JSON body sent to POST /chat.
type SendMessageRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	PromptType     string `json:"prompt_type,omitempty"`
	SystemPrompt   string `json:"system_prompt,omitempty"`
	UserID         string `json:"user_id,omitempty"`
}

// SendMessage starts a turn and returns the raw event stream. The caller
// owns the returned body and must close it; the server closes the stream
// after end_turn.
func (c *Client) SendMessage(ctx context.Context, req *SendMessageRequest) (io.ReadCloser, error) {
	if req.Message == "" {
		return nil, fmt.Errorf("message is required")
	}

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/chat", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	c.decorate(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		// Try to surface the server's error message
		if resp.Header.Get("Content-Type") == "application/json" {
			var errResp map[string]string
			if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
				if msg, ok := errResp["error"]; ok {
					return nil, fmt.Errorf("%s", msg)
				}
			}
		}
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return resp.Body, nil
}
