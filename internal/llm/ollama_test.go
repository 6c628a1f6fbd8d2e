package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pagecast/pagecast/internal/apierr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClientGenerateReturnsMessageContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.1:8b", req.Model)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ollamaChatResponse{
			Message: ollamaChatMessage{Role: "assistant", Content: "Speaker 1: Hello there."},
			Done:    true,
		})
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "llama3.1:8b")
	out, err := client.Generate(context.Background(), []Message{
		{Role: "system", Content: "You write podcast scripts."},
		{Role: "user", Content: "Summarize this page."},
	}, GenerateOptions{Temperature: 0.7, MaxTokens: 512})

	require.NoError(t, err)
	assert.Equal(t, "Speaker 1: Hello there.", out)
}

func TestOllamaClientGenerateWrapsHTTPErrorAsScriptSynthFailed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("model not loaded"))
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "llama3.1:8b")
	_, err := client.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerateOptions{})

	require.Error(t, err)
	apiErr, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.CodeScriptSynthFailed, apiErr.Code)
}

func TestOllamaClientGenerateRequiresHostAndModel(t *testing.T) {
	client := NewOllamaClient("", "")
	_, err := client.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}}, GenerateOptions{})
	require.Error(t, err)
}
