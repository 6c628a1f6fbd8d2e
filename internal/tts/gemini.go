package tts

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider synthesizes speech via the Gemini API's native
// multi-speaker text-to-speech model (google.golang.org/genai). This is
// the "Gemini-like" provider and the default head of the fallback chain.
type GeminiProvider struct {
	client *genai.Client
	model  string
	voiceA string
	voiceB string
}

// NewGeminiProvider constructs a GeminiProvider. voiceA/voiceB are the
// Gemini voice names used for Speaker 1 / Speaker 2 in multi-speaker mode.
func NewGeminiProvider(apiKey, model, voiceA, voiceB string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini TTS requires an API key")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-flash-preview-tts"
	}
	return &GeminiProvider{client: client, model: model, voiceA: voiceA, voiceB: voiceB}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) SupportsMultispeaker() bool { return true }

func (p *GeminiProvider) Synthesize(ctx context.Context, text, voice string) (SynthesizedAudio, error) {
	if voice == "" {
		voice = p.voiceA
	}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		[]*genai.Content{genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(text)}, genai.RoleUser)},
		cfg)
	if err != nil {
		return SynthesizedAudio{}, classifyGeminiError(err)
	}
	return extractGeminiAudio(resp)
}

func (p *GeminiProvider) SynthesizeMultispeaker(ctx context.Context, lines []MultiSpeakerLine) (SynthesizedAudio, error) {
	var script string
	speakerVoices := map[string]*genai.SpeakerVoiceConfig{}
	for _, line := range lines {
		script += line.Speaker + ": " + line.Text + "\n"
		if _, ok := speakerVoices[line.Speaker]; ok {
			continue
		}
		voice := line.Voice
		if voice == "" {
			if line.Speaker == "Speaker 1" {
				voice = p.voiceA
			} else {
				voice = p.voiceB
			}
		}
		speakerVoices[line.Speaker] = &genai.SpeakerVoiceConfig{
			Speaker: line.Speaker,
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		}
	}

	multiConfig := &genai.MultiSpeakerVoiceConfig{}
	for _, sv := range speakerVoices {
		multiConfig.SpeakerVoiceConfigs = append(multiConfig.SpeakerVoiceConfigs, sv)
	}

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			MultiSpeakerVoiceConfig: multiConfig,
		},
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model,
		[]*genai.Content{genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(script)}, genai.RoleUser)},
		cfg)
	if err != nil {
		return SynthesizedAudio{}, classifyGeminiError(err)
	}
	return extractGeminiAudio(resp)
}

func extractGeminiAudio(resp *genai.GenerateContentResponse) (SynthesizedAudio, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return SynthesizedAudio{}, &ProviderError{Provider: "gemini", Kind: FailureTransient, Reason: "no candidates returned"}
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			return SynthesizedAudio{
				Bytes:      part.InlineData.Data,
				Format:     FormatPCM,
				SampleRate: 24000,
				BitDepth:   16,
			}, nil
		}
	}
	return SynthesizedAudio{}, &ProviderError{Provider: "gemini", Kind: FailureTransient, Reason: "no audio data in response"}
}

func classifyGeminiError(err error) error {
	// google.golang.org/genai surfaces transport/API errors without a
	// stable typed taxonomy; classify conservatively so a single bad call
	// doesn't stall the fallback chain.
	return &ProviderError{Provider: "gemini", Kind: FailureTransient, Reason: err.Error()}
}
