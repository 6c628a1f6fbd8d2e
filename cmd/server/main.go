package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pagecast/pagecast/internal/config"
	"github.com/pagecast/pagecast/internal/embeddings"
	"github.com/pagecast/pagecast/internal/ingest"
	"github.com/pagecast/pagecast/internal/insights"
	"github.com/pagecast/pagecast/internal/library"
	"github.com/pagecast/pagecast/internal/llm"
	"github.com/pagecast/pagecast/internal/mux"
	"github.com/pagecast/pagecast/internal/pipeline"
	"github.com/pagecast/pagecast/internal/scriptsynth"
	"github.com/pagecast/pagecast/internal/server"
	"github.com/pagecast/pagecast/internal/tts"
	"github.com/pagecast/pagecast/internal/vectorindex"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("pagecast dev build")
		return
	}

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	lib, err := library.NewManager(cfg.LibraryDir, cfg.AudioDir)
	if err != nil {
		log.Error("failed to set up library directories", "error", err)
		os.Exit(1)
	}

	ingestor := ingest.New(log)

	embedder := buildEmbedder(cfg)

	index := vectorindex.New(cfg.Embed.Dimension)

	llmClient, err := llm.New(cfg.LLM)
	if err != nil {
		log.Error("failed to construct LLM client", "provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}
	synth := scriptsynth.New(llmClient)

	providers := buildTTSProviders(cfg, log)
	dispatcher := tts.New(providers, cfg.AudioDir, cfg.TTS.Workers, log)

	muxer := mux.New(cfg.AudioDir, log)

	pl := pipeline.New(synth, dispatcher, muxer, cfg.AudioDir, log)
	ins := insights.New(index, embedder, llmClient)

	rehydrate(cfg, lib, dispatcher, index, ingestor, embedder, log)

	srv := server.New(lib, ingestor, embedder, index, pl, ins, log)

	httpServer := &http.Server{
		Addr:    cfg.Address,
		Handler: srv,
	}

	log.Info("starting server", "address", cfg.Address, "data_dir", cfg.DataDir, "llm_provider", cfg.LLM.Provider, "tts_provider", firstOrDefault(cfg.TTS.ForcedProvider, "fallback chain"))

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	waitForShutdown(httpServer, log)
}

// buildEmbedder wires the Ollama-backed embedder behind the bounded LRU
// cache (spec.md §4.8 "hashicorp/golang-lru/v2"). Other embedding
// providers are not named in spec.md §6's configuration surface, so only
// the "ollama" path is wired.
func buildEmbedder(cfg config.Config) embeddings.Embedder {
	inner := embeddings.NewOllamaEmbedder(cfg.Embed.Host, cfg.Embed.Model, cfg.Embed.Dimension, 90*time.Second)
	return embeddings.NewCachedEmbedder(inner, cfg.Embed.CacheSize)
}

// buildTTSProviders constructs the ordered fallback chain of spec.md §4.8:
// Gemini, Google, Edge, HuggingFace, then Offline as the always-succeeding
// terminator — unless TTS_PROVIDER forces a single provider, in which case
// fallback is disabled entirely (spec.md §6 TTS_PROVIDER).
func buildTTSProviders(cfg config.Config, log *slog.Logger) []tts.Provider {
	all := map[string]func() (tts.Provider, error){
		"gemini": func() (tts.Provider, error) {
			return tts.NewGeminiProvider(cfg.TTS.GeminiAPIKey, "", cfg.TTS.GeminiVoiceA, cfg.TTS.GeminiVoiceB)
		},
		"google": func() (tts.Provider, error) {
			return tts.NewGoogleProvider(cfg.TTS.GoogleAPIKey), nil
		},
		"edge": func() (tts.Provider, error) {
			return tts.NewEdgeProvider(""), nil
		},
		"huggingface": func() (tts.Provider, error) {
			return tts.NewHuggingFaceProvider(cfg.TTS.HFAPIKey, ""), nil
		},
		"offline": func() (tts.Provider, error) {
			return tts.NewOfflineProvider(), nil
		},
	}

	order := []string{"gemini", "google", "edge", "huggingface", "offline"}
	if cfg.TTS.ForcedProvider != "" {
		order = []string{cfg.TTS.ForcedProvider}
	}

	var providers []tts.Provider
	for _, name := range order {
		build, ok := all[name]
		if !ok {
			log.Warn("unknown TTS provider requested, skipping", "provider", name)
			continue
		}
		provider, err := build()
		if err != nil {
			log.Warn("TTS provider unavailable, skipping", "provider", name, "error", err)
			continue
		}
		providers = append(providers, provider)
	}

	// Offline must always be reachable so AllProvidersFailed only occurs
	// when the operator explicitly forces a single non-offline provider
	// (spec.md §4.5/§9).
	if cfg.TTS.ForcedProvider == "" {
		hasOffline := false
		for _, p := range providers {
			if p.Name() == "offline" {
				hasOffline = true
			}
		}
		if !hasOffline {
			providers = append(providers, tts.NewOfflineProvider())
		}
	}

	return providers
}

// rehydrate implements spec.md §6's startup step: re-index any PDF already
// on disk, and seed the TTS dispatcher's in-process clip cache with every
// basename already present in audio/ so step (b) is not a no-op — the
// dispatcher's disk-stat fallback would eventually pick these up lazily,
// but seeding eagerly avoids a stat() per candidate basename on first use.
func rehydrate(cfg config.Config, lib *library.Manager, dispatcher *tts.Dispatcher, index *vectorindex.Index, ingestor *ingest.Ingestor, embedder embeddings.Embedder, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Request)
	defer cancel()

	if err := lib.RehydrateIndex(ctx, index, ingestor, embedder, log); err != nil {
		log.Warn("startup rehydration of vector index failed", "error", err)
	}

	seeds, err := lib.RehydrateAudioCache()
	if err != nil {
		log.Warn("startup rehydration of audio cache failed", "error", err)
		return
	}
	cacheSeeds := make([]tts.CacheSeed, len(seeds))
	for i, s := range seeds {
		cacheSeeds[i] = tts.CacheSeed{Basename: s.Basename, URL: s.URL}
	}
	dispatcher.SeedCache(cacheSeeds)
	log.Info("rehydrated audio clip cache", "clips", len(cacheSeeds))
}

func waitForShutdown(srv *http.Server, log *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		if err := srv.Close(); err != nil {
			log.Error("forced close failed", "error", err)
		}
	}

	log.Info("server stopped")
}

func firstOrDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
