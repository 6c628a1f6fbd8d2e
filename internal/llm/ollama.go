package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pagecast/pagecast/internal/apierr"
)

type ollamaClient struct {
	host   string
	model  string
	client *http.Client
}

// NewOllamaClient constructs a Client backed by Ollama's /api/chat endpoint.
func NewOllamaClient(host, model string) Client {
	return &ollamaClient{
		host:  strings.TrimRight(host, "/"),
		model: model,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string               `json:"model"`
	Messages []ollamaChatMessage  `json:"messages"`
	Stream   bool                 `json:"stream"`
	Options  ollamaGenerateOption `json:"options,omitempty"`
}

type ollamaGenerateOption struct {
	Temperature float32 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Error   string            `json:"error"`
	Done    bool              `json:"done"`
}

func (c *ollamaClient) Generate(ctx context.Context, messages []Message, opts GenerateOptions) (string, error) {
	if c.host == "" {
		return "", fmt.Errorf("ollama host must be configured")
	}
	if c.model == "" {
		return "", fmt.Errorf("ollama model must be configured")
	}

	chatMessages := make([]ollamaChatMessage, len(messages))
	for i, m := range messages {
		chatMessages[i] = ollamaChatMessage{Role: m.Role, Content: m.Content}
	}

	payload := ollamaChatRequest{
		Model:    c.model,
		Messages: chatMessages,
		Stream:   false,
		Options: ollamaGenerateOption{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", apierr.Wrap(apierr.CodeScriptSynthFailed, "call ollama chat API", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		if len(data) > 0 {
			return "", apierr.New(apierr.CodeScriptSynthFailed, fmt.Sprintf("ollama chat API error: %s", string(data)))
		}
		return "", apierr.New(apierr.CodeScriptSynthFailed, fmt.Sprintf("ollama chat API returned status %s", resp.Status))
	}

	var parsed ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if parsed.Error != "" {
		return "", apierr.New(apierr.CodeScriptSynthFailed, fmt.Sprintf("ollama error: %s", parsed.Error))
	}

	return parsed.Message.Content, nil
}
