package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hal9000y/reply-agent/internal/llm"
)

func TestChatPlainAnswer(t *testing.T) {
	var captured struct {
		Model      string          `json:"model"`
		Messages   []llm.Message   `json:"messages"`
		Tools      []llm.ToolDef   `json:"tools"`
		ToolChoice string          `json:"tool_choice"`
		Raw        json.RawMessage `json:"-"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {"role": "assistant", "content": "All done."},
				"finish_reason": "stop"
			}]
		}`))
	}))
	defer srv.Close()

	clt := llm.NewClient(srv.URL, "test-key", "test-model")
	msg, err := clt.Chat(context.Background(),
		[]llm.Message{{Role: "user", Content: "hi"}},
		[]llm.ToolDef{{Type: "function", Function: llm.FunctionDef{Name: "search_emails"}}},
	)

	require.NoError(t, err)
	assert.Equal(t, "assistant", msg.Role)
	assert.Equal(t, "All done.", msg.Content)
	assert.Empty(t, msg.ToolCalls)

	assert.Equal(t, "test-model", captured.Model)
	assert.Equal(t, "auto", captured.ToolChoice)
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "search_emails", captured.Tools[0].Function.Name)
}

func TestChatToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call-1",
						"type": "function",
						"function": {"name": "search_emails", "arguments": "{\"query\":\"budget\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`))
	}))
	defer srv.Close()

	clt := llm.NewClient(srv.URL, "k", "")
	msg, err := clt.Chat(context.Background(), []llm.Message{{Role: "user", Content: "find budget mail"}}, nil)

	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "call-1", msg.ToolCalls[0].ID)
	assert.Equal(t, "search_emails", msg.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"query":"budget"}`, msg.ToolCalls[0].Function.Arguments)
}

func TestChatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	clt := llm.NewClient(srv.URL, "k", "")
	_, err := clt.Chat(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error 429")
}

func TestChatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	clt := llm.NewClient(srv.URL, "k", "")
	_, err := clt.Chat(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
