package insights

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pagecast/pagecast/internal/apierr"
	"github.com/pagecast/pagecast/internal/llm"
	"github.com/pagecast/pagecast/internal/vectorindex"
)

// CrossRequest mirrors CrossInsightsRequest (spec.md §6): compare claims
// across the named documents, capped at MaxPerDoc chunks per document,
// optionally with a narrowing Focus string. Filenames must be non-empty;
// there is no whole-corpus mode.
type CrossRequest struct {
	Filenames []string
	MaxPerDoc int
	Deep      bool
	Focus     string
}

// agreementLine / contradictionLine match the LLM's structured-by-prefix
// response format, the same "parse the labeled lines" strategy ScriptSynth
// uses for dialogue (spec.md §4.9).
var (
	agreementLine     = regexp.MustCompile(`(?i)^\s*agreement\s*:\s*(.+)$`)
	contradictionLine = regexp.MustCompile(`(?i)^\s*contradiction\s*:\s*(.+)$`)
	citationRef       = regexp.MustCompile(`\[(\d+)\]`)
)

// GenerateCross retrieves up to MaxPerDoc chunks per named document, then
// asks the LLM to identify agreements and contradictions across them,
// each annotated with citations back to the numbered source excerpts. An
// empty Filenames list fails with apierr.CodeInvalidRequest.
func (e *Engine) GenerateCross(ctx context.Context, req CrossRequest) (CrossResult, error) {
	if len(req.Filenames) == 0 {
		return CrossResult{}, apierr.New(apierr.CodeInvalidRequest, "cross-insights requires at least one filename")
	}
	maxPerDoc := req.MaxPerDoc
	if maxPerDoc <= 0 {
		maxPerDoc = 5
	}

	excerpts, citations := e.collectExcerpts(ctx, req.Filenames, maxPerDoc)
	if len(excerpts) == 0 {
		return CrossResult{}, apierr.New(apierr.CodeInvalidRequest, "none of the requested filenames are indexed")
	}

	raw, err := e.client.Generate(ctx, buildCrossPrompt(excerpts, req.Focus, req.Deep), llm.GenerateOptions{Temperature: 0.2, MaxTokens: 2048})
	if err != nil {
		return CrossResult{}, err
	}

	return parseCrossResponse(raw, citations), nil
}

func (e *Engine) collectExcerpts(ctx context.Context, filenames []string, maxPerDoc int) ([]string, []Citation) {
	var excerpts []string
	var citations []Citation

	for _, filename := range filenames {
		perDoc, docCitations := e.searchWithinDocument(ctx, filename, maxPerDoc)
		excerpts = append(excerpts, perDoc...)
		citations = append(citations, docCitations...)
	}

	return excerpts, citations
}

// searchWithinDocument retrieves up to maxPerDoc chunks belonging to
// filename, using the filename itself as a broad query seed (cross-doc
// comparison has no single natural query string, unlike InsightsRequest's
// anchored search).
func (e *Engine) searchWithinDocument(ctx context.Context, filename string, maxPerDoc int) ([]string, []Citation) {
	queryVec, err := e.embedder.EmbedQuery(ctx, filename)
	if err != nil {
		return nil, nil
	}

	results, err := e.index.Search(queryVec, vectorindex.SearchOptions{
		K:      maxPerDoc,
		FetchK: maxPerDoc * 3,
		Exclude: func(k vectorindex.PageKey) bool {
			return k.Filename != filename
		},
	})
	if err != nil {
		return nil, nil
	}

	excerpts := make([]string, len(results))
	citations := make([]Citation, len(results))
	for i, r := range results {
		excerpts[i] = fmt.Sprintf("(%s, page %d) %s", r.Chunk.Filename, r.Chunk.PageNumber, r.Chunk.Text)
		citations[i] = Citation{Filename: r.Chunk.Filename, PageNumber: r.Chunk.PageNumber, Score: r.Score}
	}
	return excerpts, citations
}

func buildCrossPrompt(excerpts []string, focus string, deep bool) []llm.Message {
	var context strings.Builder
	for i, e := range excerpts {
		fmt.Fprintf(&context, "[%d] %s\n\n", i+1, e)
	}

	depthNote := "Keep your analysis concise."
	if deep {
		depthNote = "Be thorough: consider subtle and indirect agreements or contradictions, not only explicit restatements."
	}

	focusNote := ""
	if focus != "" {
		focusNote = fmt.Sprintf(" Focus specifically on: %s.", focus)
	}

	system := "You compare claims across multiple source excerpts and report where they agree or contradict each other. " +
		"Respond with one finding per line, each starting with either \"Agreement:\" or \"Contradiction:\", " +
		"followed by the claim and the bracketed source numbers it draws from, e.g. \"Agreement: Both sources state X. [1][3]\"."

	user := fmt.Sprintf("%s%s\n\nSource excerpts:\n%s", depthNote, focusNote, context.String())

	return []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

func parseCrossResponse(raw string, citations []Citation) CrossResult {
	var result CrossResult
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if m := agreementLine.FindStringSubmatch(trimmed); m != nil {
			result.Agreements = append(result.Agreements, claimGroupFrom(m[1], citations))
			continue
		}
		if m := contradictionLine.FindStringSubmatch(trimmed); m != nil {
			result.Contradictions = append(result.Contradictions, claimGroupFrom(m[1], citations))
			continue
		}
	}
	return result
}

func claimGroupFrom(claimText string, citations []Citation) ClaimGroup {
	var matched []Citation
	for _, ref := range citationRef.FindAllStringSubmatch(claimText, -1) {
		idx := 0
		fmt.Sscanf(ref[1], "%d", &idx)
		if idx >= 1 && idx <= len(citations) {
			matched = append(matched, citations[idx-1])
		}
	}
	claim := strings.TrimSpace(citationRef.ReplaceAllString(claimText, ""))
	return ClaimGroup{Claim: claim, Citations: matched}
}
