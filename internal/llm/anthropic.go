package llm

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/pagecast/pagecast/internal/apierr"
)

type anthropicClient struct {
	client anthropic.Client
	model  string
}

// NewAnthropicClient constructs a Client backed by anthropic-sdk-go, used
// for the "anthropic" LLM_PROVIDER setting.
func NewAnthropicClient(apiKey, model string) Client {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &anthropicClient{client: client, model: model}
}

func (c *anthropicClient) Generate(ctx context.Context, messages []Message, opts GenerateOptions) (string, error) {
	maxTokens := int64(opts.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	var system string
	msgs := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages:  msgs,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if opts.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(opts.Temperature))
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", apierr.Wrap(apierr.CodeScriptSynthFailed, "anthropic messages.new request failed", err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return "", apierr.New(apierr.CodeScriptSynthFailed, "anthropic returned no content blocks")
	}

	var out string
	for _, block := range resp.Content {
		if text := block.Text; text != "" {
			out += text
		}
	}
	if out == "" {
		return "", apierr.New(apierr.CodeScriptSynthFailed, "anthropic returned an empty completion")
	}
	return out, nil
}
