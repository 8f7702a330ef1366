// ABOUTME: Tests for the backend HTTP client.
// ABOUTME: Covers request shape, tenant and auth headers, and error surfacing.

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token string
	ok    bool
}

func (s staticTokens) AccessToken(context.Context) (string, bool) { return s.token, s.ok }

func TestSendMessage_RequestShape(t *testing.T) {
	var (
		gotPath    string
		gotHeaders http.Header
		gotBody    SendMessageRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"type\":\"end_turn\"}\n\n"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "shop-123")
	body, err := client.SendMessage(context.Background(), &SendMessageRequest{
		Message:        "hello",
		ConversationID: "conv-1",
		PromptType:     "standard",
	})
	require.NoError(t, err)
	defer body.Close()

	assert.Equal(t, "/chat", gotPath)
	assert.Equal(t, "shop-123", gotHeaders.Get("X-Shop-Id"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "text/event-stream", gotHeaders.Get("Accept"))
	assert.Empty(t, gotHeaders.Get("Authorization"))
	assert.Equal(t, "hello", gotBody.Message)
	assert.Equal(t, "conv-1", gotBody.ConversationID)
	assert.Equal(t, "standard", gotBody.PromptType)

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(data), "end_turn")
}

func TestSendMessage_BearerTokenAttached(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client := NewClientWithTokens(srv.URL, "shop-123", staticTokens{token: "tok-abc", ok: true})
	body, err := client.SendMessage(context.Background(), &SendMessageRequest{Message: "hi"})
	require.NoError(t, err)
	body.Close()

	assert.Equal(t, "Bearer tok-abc", gotAuth)
}

func TestSendMessage_NoTokenWhenSourceEmpty(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client := NewClientWithTokens(srv.URL, "shop-123", staticTokens{ok: false})
	body, err := client.SendMessage(context.Background(), &SendMessageRequest{Message: "hi"})
	require.NoError(t, err)
	body.Close()

	assert.Empty(t, gotAuth)
}

func TestSendMessage_EmptyMessageRejectedLocally(t *testing.T) {
	client := NewClient("http://unreachable.invalid", "shop-123")
	_, err := client.SendMessage(context.Background(), &SendMessageRequest{})
	assert.Error(t, err)
}

func TestSendMessage_ServerErrorMessageSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"shop not configured"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "shop-123")
	_, err := client.SendMessage(context.Background(), &SendMessageRequest{Message: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shop not configured")
}

func TestSendMessage_NonJSONErrorFallsBackToStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "shop-123")
	_, err := client.SendMessage(context.Background(), &SendMessageRequest{Message: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestAuthStatus_QueryAndResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/status", r.URL.Path)
		assert.Equal(t, "conv id/9", r.URL.Query().Get("conversation_id"))
		assert.Equal(t, "shop-123", r.Header.Get("X-Shop-Id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"authorized"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "shop-123")
	status, err := client.AuthStatus(context.Background(), "conv id/9")
	require.NoError(t, err)
	assert.Equal(t, StatusAuthorized, status)
}

func TestAuthStatus_PendingPassedThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"pending"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "shop-123")
	status, err := client.AuthStatus(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "pending", status)
}

func TestAuthStatus_EmptyConversationIDRejected(t *testing.T) {
	client := NewClient("http://unreachable.invalid", "shop-123")
	_, err := client.AuthStatus(context.Background(), "")
	assert.Error(t, err)
}

func TestAuthStatus_ServerErrorReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "shop-123")
	_, err := client.AuthStatus(context.Background(), "conv-1")
	assert.Error(t, err)
}
