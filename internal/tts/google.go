package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
)

// GoogleProvider is the "Google-like" cloud TTS provider: REST, API-key
// auth, base64-encoded audio in the JSON response. No dedicated Cloud
// Text-to-Speech client exists anywhere in the reference pack, so this
// adapter speaks the REST protocol directly over net/http, matching the
// same request-construction/error-handling shape used throughout the
// module's other REST-backed adapters (see DESIGN.md).
type GoogleProvider struct {
	apiKey string
	client *http.Client
}

func NewGoogleProvider(apiKey string) *GoogleProvider {
	return &GoogleProvider{apiKey: apiKey, client: &http.Client{}}
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) SupportsMultispeaker() bool { return false }

type googleSynthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		LanguageCode string `json:"languageCode"`
		Name         string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string `json:"audioEncoding"`
	} `json:"audioConfig"`
}

type googleSynthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

func (p *GoogleProvider) Synthesize(ctx context.Context, text, voice string) (SynthesizedAudio, error) {
	if p.apiKey == "" {
		return SynthesizedAudio{}, &ProviderError{Provider: p.Name(), Kind: FailureAuthFailure, Reason: "no API key configured"}
	}

	var req googleSynthesizeRequest
	req.Input.Text = text
	req.Voice.LanguageCode = languageCodeFromVoice(voice)
	req.Voice.Name = voice
	req.AudioConfig.AudioEncoding = "MP3"

	body, err := json.Marshal(req)
	if err != nil {
		return SynthesizedAudio{}, fmt.Errorf("marshal google tts request: %w", err)
	}

	url := "https://texttospeech.googleapis.com/v1/text:synthesize?key=" + p.apiKey
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return SynthesizedAudio{}, fmt.Errorf("create google tts request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return SynthesizedAudio{}, &ProviderError{Provider: p.Name(), Kind: FailureTransient, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if classified := classifyHTTPStatus(p.Name(), resp.StatusCode); classified != nil {
		return SynthesizedAudio{}, classified
	}

	var parsed googleSynthesizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return SynthesizedAudio{}, fmt.Errorf("decode google tts response: %w", err)
	}

	data, err := base64.StdEncoding.DecodeString(parsed.AudioContent)
	if err != nil {
		return SynthesizedAudio{}, fmt.Errorf("decode google tts audio content: %w", err)
	}

	return SynthesizedAudio{Bytes: data, Format: FormatMP3}, nil
}

func (p *GoogleProvider) SynthesizeMultispeaker(ctx context.Context, lines []MultiSpeakerLine) (SynthesizedAudio, error) {
	return SynthesizedAudio{}, &ProviderError{Provider: p.Name(), Kind: FailurePermanent, Reason: "google provider does not support multispeaker synthesis"}
}

func languageCodeFromVoice(voice string) string {
	if len(voice) >= 5 && voice[2] == '-' {
		return voice[:5]
	}
	return "en-US"
}

// classifyHTTPStatus maps an HTTP response status to the shared provider
// failure taxonomy (spec.md §4.5).
func classifyHTTPStatus(provider string, status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &ProviderError{Provider: provider, Kind: FailureRateLimited, Reason: "rate limited"}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &ProviderError{Provider: provider, Kind: FailureAuthFailure, Reason: "authentication failed"}
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return &ProviderError{Provider: provider, Kind: FailureTimeout, Reason: "request timed out"}
	case status == http.StatusBadRequest:
		return &ProviderError{Provider: provider, Kind: FailureInvalidVoice, Reason: "invalid request (possibly unknown voice)"}
	case status >= 500:
		return &ProviderError{Provider: provider, Kind: FailureTransient, Reason: fmt.Sprintf("server error: %d", status)}
	case status >= 400:
		return &ProviderError{Provider: provider, Kind: FailurePermanent, Reason: fmt.Sprintf("client error: %d", status)}
	default:
		return nil
	}
}
