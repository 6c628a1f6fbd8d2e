package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/pagecast/pagecast/internal/apierr"
)

type geminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient constructs a Client backed by the Gemini API
// (google.golang.org/genai), used for the "gemini" LLM_PROVIDER setting.
func NewGeminiClient(apiKey, model string) (Client, error) {
	if apiKey == "" {
		return nil, apierr.New(apierr.CodeInvalidRequest, "LLM_API_KEY is required for the gemini provider")
	}
	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &geminiClient{client: client, model: model}, nil
}

func (c *geminiClient) Generate(ctx context.Context, messages []Message, opts GenerateOptions) (string, error) {
	contents := make([]*genai.Content, 0, len(messages))
	var systemInstruction *genai.Content
	for _, m := range messages {
		part := genai.NewPartFromText(m.Content)
		if m.Role == "system" {
			systemInstruction = genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser)
			continue
		}
		contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
	}

	cfg := &genai.GenerateContentConfig{}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(opts.Temperature)
	}
	if systemInstruction != nil {
		cfg.SystemInstruction = systemInstruction
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", apierr.Wrap(apierr.CodeScriptSynthFailed, "gemini generateContent request failed", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", apierr.New(apierr.CodeScriptSynthFailed, "gemini returned no candidates")
	}

	var out string
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.Text != "" {
				out += part.Text
			}
		}
	}
	if out == "" {
		return "", apierr.New(apierr.CodeScriptSynthFailed, "gemini returned an empty completion")
	}
	return out, nil
}
