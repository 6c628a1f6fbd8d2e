// Package server exposes pagecast's HTTP surface: the inbound request
// contract of spec.md §6 implemented with github.com/go-chi/chi/v5,
// github.com/go-chi/cors, and chi's own request-scoped middleware
// (spec.md §4.7).
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/pagecast/pagecast/internal/apierr"
	"github.com/pagecast/pagecast/internal/embeddings"
	"github.com/pagecast/pagecast/internal/ingest"
	"github.com/pagecast/pagecast/internal/insights"
	"github.com/pagecast/pagecast/internal/library"
	"github.com/pagecast/pagecast/internal/pipeline"
	"github.com/pagecast/pagecast/internal/vectorindex"
)

// Server wires HTTP handlers to the core pipeline and retrieval substrate.
type Server struct {
	router   http.Handler
	library  *library.Manager
	ingestor *ingest.Ingestor
	embedder embeddings.Embedder
	index    *vectorindex.Index
	pipeline *pipeline.Pipeline
	insights *insights.Engine
	log      *slog.Logger
}

// New constructs a Server with the provided dependencies.
func New(lib *library.Manager, ingestor *ingest.Ingestor, embedder embeddings.Embedder, index *vectorindex.Index, pl *pipeline.Pipeline, ins *insights.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s := &Server{
		router:   r,
		library:  lib,
		ingestor: ingestor,
		embedder: embedder,
		index:    index,
		pipeline: pl,
		insights: ins,
		log:      log,
	}

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/library/documents", s.handleIngestDocuments)
	r.Post("/api/audio/generate", s.handleGenerateAudio)
	r.Post("/api/search", s.handleSearch)
	r.Post("/api/insights", s.handleInsights)
	r.Post("/api/insights/cross", s.handleInsightsCross)
	r.Get("/audio/{basename}", s.handleServeAudio)

	return s
}

// ServeHTTP exposes the router so Server satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleServeAudio(w http.ResponseWriter, r *http.Request) {
	basename := chi.URLParam(r, "basename")
	if basename == "" {
		s.writeAPIError(w, r, apierr.New(apierr.CodeInvalidRequest, "missing audio basename"))
		return
	}
	http.ServeFile(w, r, s.library.AudioPath(basename))
}

// handleIngestDocuments implements IngestRequest over a multipart upload:
// one or more PDFs under the "files" form field. Each file is stored under
// document_library/, ingested, embedded, and added to the shared
// VectorIndex. A file that fails any stage is skipped and reported under
// "errors" rather than failing the whole request, mirroring the
// rehydration step's "skip and log" tolerance (spec.md §6).
func (s *Server) handleIngestDocuments(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		s.writeAPIError(w, r, apierr.Wrap(apierr.CodeInvalidRequest, "parse multipart form", err))
		return
	}

	files := formFiles(r)
	if len(files) == 0 {
		s.writeAPIError(w, r, apierr.New(apierr.CodeInvalidRequest, `request must include at least one file under "files"`))
		return
	}

	type ingestedDocument struct {
		Filename   string `json:"filename"`
		DocumentID string `json:"document_id"`
	}

	var indexed []string
	var documents []ingestedDocument
	errs := make(map[string]string)

	for _, header := range files {
		documentID := uuid.NewString()
		filename, err := s.ingestOne(r.Context(), documentID, header)
		if err != nil {
			errs[header.Filename] = err.Error()
			s.log.Warn("ingest failed for uploaded file", "filename", header.Filename, "document_id", documentID, "error", err)
			continue
		}
		indexed = append(indexed, filename)
		documents = append(documents, ingestedDocument{Filename: filename, DocumentID: documentID})
	}

	payload := map[string]any{"indexed_filenames": indexed, "documents": documents}
	if len(errs) > 0 {
		payload["errors"] = errs
	}
	writeJSON(w, http.StatusOK, payload)
}

// ingestOne stores, ingests, embeds, and indexes a single uploaded file,
// returning its sanitized (indexed) filename on success. documentID is a
// per-document correlation identifier (github.com/google/uuid) distinct
// from the per-request correlation ID (middleware.GetReqID): a single
// ingest request can carry several files, and documentID is what ties the
// store/ingest/embed/index log lines for one of them together, and what a
// caller can use to refer back to this ingestion event later.
func (s *Server) ingestOne(ctx context.Context, documentID string, header *multipart.FileHeader) (string, error) {
	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	sanitized, err := s.library.StorePDF(header.Filename, data)
	if err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}
	s.log.Info("stored uploaded document", "filename", sanitized, "document_id", documentID)

	chunks, err := s.ingestor.Ingest(s.library.PDFPath(sanitized))
	if err != nil {
		return "", err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return "", apierr.Wrap(apierr.CodeEmbedderUnavail, "embed document chunks", err).WithInput(sanitized)
	}

	if err := s.index.Add(chunks, vectors); err != nil {
		return "", err
	}

	s.log.Info("indexed document", "filename", sanitized, "document_id", documentID, "chunks", len(chunks))
	return sanitized, nil
}

func formFiles(r *http.Request) []*multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	if files, ok := r.MultipartForm.File["files"]; ok && len(files) > 0 {
		return files
	}
	return r.MultipartForm.File["file"]
}

func (s *Server) handleGenerateAudio(w http.ResponseWriter, r *http.Request) {
	var req generateAudioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeAPIError(w, r, apierr.Wrap(apierr.CodeInvalidRequest, "decode request body", err))
		return
	}

	sourceText, err := s.resolveSourceText(req)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	artifact, err := s.pipeline.Generate(r.Context(), pipeline.Request{
		SourceText:       sourceText,
		Podcast:          req.Podcast,
		TwoSpeakers:      req.TwoSpeakers,
		Accent:           req.Accent,
		Style:            req.Style,
		Expressiveness:   req.Expressiveness,
		SpeakersOverride: req.SpeakersOverride,
		DefaultVoiceA:    req.Voices.A,
		DefaultVoiceB:    req.Voices.B,
	})
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, artifactResponse(artifact))
}

// resolveSourceText enforces "exactly one of {text, (filename,
// page_number), (filename, entire_pdf=true)}" (spec.md §6) and resolves
// the chosen source against the shared VectorIndex's already-ingested
// chunk text.
func (s *Server) resolveSourceText(req generateAudioRequest) (string, error) {
	sources := 0
	if req.Text != "" {
		sources++
	}
	if req.Filename != "" {
		sources++
	}
	if sources != 1 {
		return "", apierr.New(apierr.CodeInvalidRequest, "exactly one of text or (filename, page_number)/(filename, entire_pdf) is required")
	}

	if req.Text != "" {
		return req.Text, nil
	}

	if req.EntirePDF {
		text, ok := s.index.TextForFilename(req.Filename)
		if !ok {
			return "", apierr.New(apierr.CodeInvalidRequest, "filename is not indexed").WithInput(req.Filename)
		}
		return text, nil
	}

	text, ok := s.index.TextForPage(req.Filename, req.PageNumber)
	if !ok {
		return "", apierr.New(apierr.CodeInvalidRequest, fmt.Sprintf("no indexed text for page %d", req.PageNumber)).WithInput(req.Filename)
	}
	return text, nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeAPIError(w, r, apierr.Wrap(apierr.CodeInvalidRequest, "decode request body", err))
		return
	}

	queryText, anchorFilename, anchorPage, err := req.resolveAnchor(s.index)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	queryVec, err := s.embedder.EmbedQuery(r.Context(), queryText)
	if err != nil {
		s.writeAPIError(w, r, apierr.Wrap(apierr.CodeEmbedderUnavail, "embed search query", err))
		return
	}

	opts := vectorindex.SearchOptions{K: req.K, FetchK: req.FetchK, MinScore: req.MinScore}
	if req.ExcludeSelf && anchorFilename != "" {
		opts.Exclude = vectorindex.ExcludePage(anchorFilename, anchorPage)
	}

	results, err := s.index.Search(queryVec, opts)
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": resultsResponse(results)})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	var req insightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeAPIError(w, r, apierr.Wrap(apierr.CodeInvalidRequest, "decode request body", err))
		return
	}

	result, err := s.insights.Generate(r.Context(), insights.Request{
		Text:       req.Text,
		Filename:   req.Filename,
		PageNumber: req.PageNumber,
		K:          req.K,
	})
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, insightsResultResponse(result))
}

func (s *Server) handleInsightsCross(w http.ResponseWriter, r *http.Request) {
	var req crossInsightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeAPIError(w, r, apierr.Wrap(apierr.CodeInvalidRequest, "decode request body", err))
		return
	}

	result, err := s.insights.GenerateCross(r.Context(), insights.CrossRequest{
		Filenames: req.Filenames,
		MaxPerDoc: req.MaxPerDoc,
		Deep:      req.Deep,
		Focus:     req.Focus,
	})
	if err != nil {
		s.writeAPIError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, crossResultResponse(result))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		fmt.Printf("failed to write JSON response: %v\n", err)
	}
}

// writeAPIError translates err into the structured error response of
// spec.md §7: a code from the taxonomy, a human-readable reason, the
// offending input where applicable, and a correlation identifier taken
// from the chi request ID.
func (s *Server) writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	correlationID := middleware.GetReqID(r.Context())

	apiErr, ok := apierr.As(err)
	if !ok {
		s.log.Error("unhandled error reached HTTP boundary", "error", err, "correlation_id", correlationID)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]any{
			"code":           apierr.CodeInternal,
			"reason":         "internal error",
			"correlation_id": correlationID,
		}})
		return
	}

	body := map[string]any{
		"code":           apiErr.Code,
		"reason":         apiErr.Reason,
		"correlation_id": correlationID,
	}
	if apiErr.Input != "" {
		body["input"] = apiErr.Input
	}
	writeJSON(w, apierr.HTTPStatus(apiErr.Code), map[string]any{"error": body})
}
