package tts

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// EdgeProvider is the "Edge-like" provider: an unofficial streaming TTS
// transport over a websocket connection, grounded on the pack's
// websocket-streaming adapters. It speaks a minimal SSML-over-websocket
// protocol and reassembles the binary audio frames it streams back.
type EdgeProvider struct {
	endpoint string
}

func NewEdgeProvider(endpoint string) *EdgeProvider {
	if endpoint == "" {
		endpoint = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1"
	}
	return &EdgeProvider{endpoint: endpoint}
}

func (p *EdgeProvider) Name() string { return "edge" }

func (p *EdgeProvider) SupportsMultispeaker() bool { return false }

func (p *EdgeProvider) Synthesize(ctx context.Context, text, voice string) (SynthesizedAudio, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, p.endpoint, nil)
	if err != nil {
		return SynthesizedAudio{}, &ProviderError{Provider: p.Name(), Kind: FailureTransient, Reason: "websocket dial failed: " + err.Error()}
	}
	defer conn.Close()

	requestID := randomHex(16)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(speechConfigMessage(requestID))); err != nil {
		return SynthesizedAudio{}, &ProviderError{Provider: p.Name(), Kind: FailureTransient, Reason: "write speech.config failed: " + err.Error()}
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(ssmlMessage(requestID, voice, text))); err != nil {
		return SynthesizedAudio{}, &ProviderError{Provider: p.Name(), Kind: FailureTransient, Reason: "write SSML turn failed: " + err.Error()}
	}

	var audio bytes.Buffer
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return SynthesizedAudio{}, &ProviderError{Provider: p.Name(), Kind: FailureTransient, Reason: "websocket read failed: " + err.Error()}
		}
		if msgType == websocket.BinaryMessage {
			if frame := audioPayload(data); frame != nil {
				audio.Write(frame)
			}
			continue
		}
		if strings.Contains(string(data), "Path:turn.end") {
			break
		}
	}

	if audio.Len() == 0 {
		return SynthesizedAudio{}, &ProviderError{Provider: p.Name(), Kind: FailureTransient, Reason: "no audio frames received"}
	}
	return SynthesizedAudio{Bytes: audio.Bytes(), Format: FormatMP3}, nil
}

func (p *EdgeProvider) SynthesizeMultispeaker(ctx context.Context, lines []MultiSpeakerLine) (SynthesizedAudio, error) {
	return SynthesizedAudio{}, &ProviderError{Provider: p.Name(), Kind: FailurePermanent, Reason: "edge provider does not support multispeaker synthesis"}
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func speechConfigMessage(requestID string) string {
	return fmt.Sprintf("X-Timestamp:%s\r\nContent-Type:application/json; charset=utf-8\r\nPath:speech.config\r\n\r\n"+
		`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":false,"wordBoundaryEnabled":false},"outputFormat":"audio-24khz-48kbitrate-mono-mp3"}}}}`,
		time.Now().UTC().Format(time.RFC3339))
}

func ssmlMessage(requestID, voice, text string) string {
	ssml := fmt.Sprintf(`<speak version='1.0' xml:lang='en-US'><voice name='%s'>%s</voice></speak>`, voice, escapeSSML(text))
	return fmt.Sprintf("X-RequestId:%s\r\nContent-Type:application/ssml+xml\r\nX-Timestamp:%s\r\nPath:ssml\r\n\r\n%s",
		requestID, time.Now().UTC().Format(time.RFC3339), ssml)
}

func escapeSSML(text string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(text)
}

// audioPayload strips the header section from a binary websocket frame,
// returning only the audio bytes that follow the "Path:audio\r\n\r\n" marker.
func audioPayload(frame []byte) []byte {
	marker := []byte("Path:audio\r\n\r\n")
	idx := bytes.Index(frame, marker)
	if idx < 0 {
		return nil
	}
	return frame[idx+len(marker):]
}
