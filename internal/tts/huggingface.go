package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HuggingFaceProvider is the "HF-like" provider: REST, bearer-token auth,
// raw audio bytes in the response body. Mirrors the bearer-auth REST
// pattern used by the module's LLM/embedding REST adapters.
type HuggingFaceProvider struct {
	apiKey string
	model  string
	client *http.Client
}

func NewHuggingFaceProvider(apiKey, model string) *HuggingFaceProvider {
	if model == "" {
		model = "espnet/kan-bayashi_ljspeech_vits"
	}
	return &HuggingFaceProvider{apiKey: apiKey, model: model, client: &http.Client{}}
}

func (p *HuggingFaceProvider) Name() string { return "huggingface" }

func (p *HuggingFaceProvider) SupportsMultispeaker() bool { return false }

type hfInferenceRequest struct {
	Inputs string `json:"inputs"`
}

func (p *HuggingFaceProvider) Synthesize(ctx context.Context, text, voice string) (SynthesizedAudio, error) {
	if p.apiKey == "" {
		return SynthesizedAudio{}, &ProviderError{Provider: p.Name(), Kind: FailureAuthFailure, Reason: "no API key configured"}
	}

	body, err := json.Marshal(hfInferenceRequest{Inputs: text})
	if err != nil {
		return SynthesizedAudio{}, fmt.Errorf("marshal huggingface request: %w", err)
	}

	url := "https://api-inference.huggingface.co/models/" + p.model
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SynthesizedAudio{}, fmt.Errorf("create huggingface request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return SynthesizedAudio{}, &ProviderError{Provider: p.Name(), Kind: FailureTransient, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if classified := classifyHTTPStatus(p.Name(), resp.StatusCode); classified != nil {
		return SynthesizedAudio{}, classified
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return SynthesizedAudio{}, fmt.Errorf("read huggingface response: %w", err)
	}
	if len(data) == 0 {
		return SynthesizedAudio{}, &ProviderError{Provider: p.Name(), Kind: FailureTransient, Reason: "empty audio response"}
	}

	return SynthesizedAudio{Bytes: data, Format: FormatWAV}, nil
}

func (p *HuggingFaceProvider) SynthesizeMultispeaker(ctx context.Context, lines []MultiSpeakerLine) (SynthesizedAudio, error) {
	return SynthesizedAudio{}, &ProviderError{Provider: p.Name(), Kind: FailurePermanent, Reason: "huggingface provider does not support multispeaker synthesis"}
}
