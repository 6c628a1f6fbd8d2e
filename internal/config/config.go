// Package config loads runtime configuration for pagecast from the
// environment, applying the defaults spec'd for each subsystem.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config captures all runtime configuration for the application.
type Config struct {
	Address    string
	DataDir    string
	LibraryDir string
	AudioDir   string

	LLM      LLMConfig
	Embed    EmbeddingConfig
	TTS      TTSConfig
	Ingest   IngestConfig
	Timeouts TimeoutConfig
}

// LLMConfig groups the settings required to talk to the script-generation
// LLM backend.
type LLMConfig struct {
	Provider  string // "ollama", "gemini", "anthropic"
	Host      string
	Model     string
	APIKey    string
	MaxTokens int
}

// EmbeddingConfig describes the embedding provider settings.
type EmbeddingConfig struct {
	Provider  string
	Host      string
	Model     string
	Dimension int
	CacheSize int
}

// TTSConfig groups text-to-speech dispatcher settings.
type TTSConfig struct {
	// ForcedProvider, when non-empty, disables fallback and restricts the
	// dispatcher to a single named provider (spec.md §6 TTS_PROVIDER).
	ForcedProvider string
	Workers        int

	GeminiAPIKey string
	GeminiVoiceA string
	GeminiVoiceB string

	GoogleAPIKey string
	GoogleVoiceA string
	GoogleVoiceB string

	EdgeVoiceA string
	EdgeVoiceB string

	HFAPIKey string
	HFVoiceA string
	HFVoiceB string
}

// IngestConfig groups document-ingestion validation settings.
type IngestConfig struct {
	MaxFileSizeBytes int64
	AllowedExt       map[string]bool
	BGWorkers        int
}

// TimeoutConfig groups request and provider call deadlines.
type TimeoutConfig struct {
	Request  time.Duration
	Provider time.Duration
}

// FromEnv builds a Config by reading environment variables and applying
// sensible defaults. The resulting configuration is validated before it is
// returned.
func FromEnv() (Config, error) {
	cfg := Config{
		Address: getEnv("SERVER_ADDR", "127.0.0.1:8080"),
		DataDir: getEnv("DATA_DIR", "./data"),
		LLM: LLMConfig{
			Provider:  getEnv("LLM_PROVIDER", "ollama"),
			Host:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
			Model:     getEnv("LLM_MODEL", "llama3.1:8b"),
			APIKey:    getEnv("LLM_API_KEY", ""),
			MaxTokens: getEnvInt("LLM_MAX_TOKENS", 4096),
		},
		Embed: EmbeddingConfig{
			Provider:  getEnv("EMBEDDING_PROVIDER", "ollama"),
			Host:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
			Model:     getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			Dimension: getEnvInt("EMBEDDING_DIM", 768),
			CacheSize: getEnvInt("EMBEDDING_CACHE_SIZE", 1000),
		},
		TTS: TTSConfig{
			ForcedProvider: getEnv("TTS_PROVIDER", ""),
			Workers:        getEnvInt("TTS_WORKERS", 2),
			GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
			GeminiVoiceA:   getEnv("GEMINI_VOICE_A", "Kore"),
			GeminiVoiceB:   getEnv("GEMINI_VOICE_B", "Puck"),
			GoogleAPIKey:   getEnv("GOOGLE_TTS_API_KEY", ""),
			GoogleVoiceA:   getEnv("GOOGLE_VOICE_A", "en-US-Neural2-C"),
			GoogleVoiceB:   getEnv("GOOGLE_VOICE_B", "en-US-Neural2-D"),
			EdgeVoiceA:     getEnv("EDGE_VOICE_A", "en-US-AriaNeural"),
			EdgeVoiceB:     getEnv("EDGE_VOICE_B", "en-US-GuyNeural"),
			HFAPIKey:       getEnv("HF_API_KEY", ""),
			HFVoiceA:       getEnv("HF_VOICE_A", "default-a"),
			HFVoiceB:       getEnv("HF_VOICE_B", "default-b"),
		},
		Ingest: IngestConfig{
			MaxFileSizeBytes: int64(getEnvInt("MAX_FILE_SIZE", 50*1024*1024)),
			AllowedExt:       parseExtSet(getEnv("ALLOWED_EXTENSIONS", ".pdf")),
			BGWorkers:        getEnvInt("BG_WORKERS", 4),
		},
		Timeouts: TimeoutConfig{
			Request:  time.Duration(getEnvInt("REQUEST_TIMEOUT_S", 300)) * time.Second,
			Provider: time.Duration(getEnvInt("PROVIDER_TIMEOUT_S", 60)) * time.Second,
		},
	}

	cfg.LLM.Host = strings.TrimRight(cfg.LLM.Host, "/")
	cfg.Embed.Host = strings.TrimRight(cfg.Embed.Host, "/")

	if !filepath.IsAbs(cfg.DataDir) {
		abs, err := filepath.Abs(cfg.DataDir)
		if err != nil {
			return Config{}, fmt.Errorf("resolve data dir: %w", err)
		}
		cfg.DataDir = abs
	}
	cfg.LibraryDir = filepath.Join(cfg.DataDir, "document_library")
	cfg.AudioDir = filepath.Join(cfg.DataDir, "audio")

	if cfg.LLM.Model == "" {
		return Config{}, fmt.Errorf("LLM_MODEL must not be empty")
	}
	if cfg.Embed.Model == "" {
		return Config{}, fmt.Errorf("EMBEDDING_MODEL must not be empty")
	}
	if cfg.Embed.Dimension <= 0 {
		return Config{}, fmt.Errorf("EMBEDDING_DIM must be positive")
	}
	if cfg.TTS.Workers <= 0 {
		cfg.TTS.Workers = 2
	}
	if cfg.Ingest.BGWorkers <= 0 {
		cfg.Ingest.BGWorkers = 4
	}
	if cfg.Timeouts.Request <= 0 {
		cfg.Timeouts.Request = 300 * time.Second
	}
	if cfg.Timeouts.Provider <= 0 {
		cfg.Timeouts.Provider = 60 * time.Second
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func parseExtSet(raw string) map[string]bool {
	set := make(map[string]bool)
	for _, ext := range strings.Split(raw, ",") {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}
