package server

import (
	"github.com/pagecast/pagecast/internal/apierr"
	"github.com/pagecast/pagecast/internal/insights"
	"github.com/pagecast/pagecast/internal/pipeline"
	"github.com/pagecast/pagecast/internal/vectorindex"
)

// generateAudioRequest mirrors GenerateAudioRequest (spec.md §6).
type generateAudioRequest struct {
	Text       string `json:"text"`
	Filename   string `json:"filename"`
	PageNumber int    `json:"page_number"`
	EntirePDF  bool   `json:"entire_pdf"`

	Podcast          bool              `json:"podcast"`
	TwoSpeakers      bool              `json:"two_speakers"`
	Accent           string            `json:"accent"`
	Style            string            `json:"style"`
	Expressiveness   string            `json:"expressiveness"`
	SpeakersOverride map[string]string `json:"speakers_override"`
	Voices           voicesRequest     `json:"voices"`
}

type voicesRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

type chapterResponse struct {
	Index   int    `json:"index"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
	StartMS int64  `json:"start_ms"`
	EndMS   int64  `json:"end_ms"`
	PartURL string `json:"part_url"`
}

type artifactJSON struct {
	URL        string            `json:"url"`
	Parts      []string          `json:"parts,omitempty"`
	Chapters   []chapterResponse `json:"chapters"`
	DurationMS int64             `json:"duration_ms"`
	Degraded   bool              `json:"degraded"`
	CacheKey   string            `json:"cache_key"`
}

func artifactResponse(a pipeline.Artifact) artifactJSON {
	chapters := make([]chapterResponse, len(a.Chapters))
	for i, c := range a.Chapters {
		chapters[i] = chapterResponse{
			Index:   c.Index,
			Speaker: c.Speaker,
			Text:    c.Text,
			StartMS: c.StartMS,
			EndMS:   c.EndMS,
			PartURL: c.PartURL,
		}
	}
	return artifactJSON{
		URL:        a.URL,
		Parts:      a.Parts,
		Chapters:   chapters,
		DurationMS: a.DurationMS,
		Degraded:   a.Degraded,
		CacheKey:   a.CacheKey,
	}
}

// searchRequest mirrors SearchRequest (spec.md §6).
type searchRequest struct {
	Text        string   `json:"text"`
	Filename    string   `json:"filename"`
	PageNumber  int      `json:"page_number"`
	K           int      `json:"k"`
	FetchK      int      `json:"fetch_k"`
	MinScore    *float32 `json:"min_score"`
	ExcludeSelf bool     `json:"exclude_self"`
}

// resolveAnchor picks the query text and, when the request is page-anchored,
// the (filename, page_number) pair used for the optional exclude_self
// predicate.
func (r searchRequest) resolveAnchor(index *vectorindex.Index) (queryText, anchorFilename string, anchorPage int, err error) {
	if r.Text != "" {
		return r.Text, r.Filename, r.PageNumber, nil
	}
	if r.Filename == "" {
		return "", "", 0, apierr.New(apierr.CodeInvalidRequest, "search requires text or (filename, page_number)")
	}
	text, ok := index.TextForPage(r.Filename, r.PageNumber)
	if !ok {
		return "", "", 0, apierr.New(apierr.CodeInvalidRequest, "no indexed text for the given (filename, page_number)").WithInput(r.Filename)
	}
	return text, r.Filename, r.PageNumber, nil
}

type resultJSON struct {
	Filename     string  `json:"filename"`
	PageNumber   int     `json:"page_number"`
	SectionIndex int     `json:"section_index"`
	Text         string  `json:"text"`
	Score        float32 `json:"score"`
	Distance     float32 `json:"distance"`
}

func resultsResponse(results []vectorindex.Result) []resultJSON {
	out := make([]resultJSON, len(results))
	for i, r := range results {
		out[i] = resultJSON{
			Filename:     r.Chunk.Filename,
			PageNumber:   r.Chunk.PageNumber,
			SectionIndex: r.Chunk.SectionIndex,
			Text:         r.Chunk.Text,
			Score:        r.Score,
			Distance:     r.Distance,
		}
	}
	return out
}

// insightsRequest mirrors InsightsRequest (spec.md §6). include_web/web_k
// are accepted but unused: web search is out of scope (no web-search
// collaborator is wired anywhere in this system).
type insightsRequest struct {
	Text       string `json:"text"`
	Filename   string `json:"filename"`
	PageNumber int    `json:"page_number"`
	K          int    `json:"k"`
}

type citationJSON struct {
	Filename   string  `json:"filename"`
	PageNumber int     `json:"page_number"`
	Score      float32 `json:"score"`
}

type insightsResultJSON struct {
	Answer    string         `json:"answer"`
	Citations []citationJSON `json:"citations"`
}

func insightsResultResponse(r insights.Result) insightsResultJSON {
	return insightsResultJSON{Answer: r.Answer, Citations: citationsResponse(r.Citations)}
}

func citationsResponse(cs []insights.Citation) []citationJSON {
	out := make([]citationJSON, len(cs))
	for i, c := range cs {
		out[i] = citationJSON{Filename: c.Filename, PageNumber: c.PageNumber, Score: c.Score}
	}
	return out
}

// crossInsightsRequest mirrors CrossInsightsRequest (spec.md §6).
type crossInsightsRequest struct {
	Filenames []string `json:"filenames"`
	MaxPerDoc int      `json:"max_per_doc"`
	Deep      bool     `json:"deep"`
	Focus     string   `json:"focus"`
}

type claimGroupJSON struct {
	Claim     string         `json:"claim"`
	Citations []citationJSON `json:"citations"`
}

type crossResultJSON struct {
	Agreements     []claimGroupJSON `json:"agreements"`
	Contradictions []claimGroupJSON `json:"contradictions"`
}

func crossResultResponse(r insights.CrossResult) crossResultJSON {
	return crossResultJSON{
		Agreements:     claimGroupsResponse(r.Agreements),
		Contradictions: claimGroupsResponse(r.Contradictions),
	}
}

func claimGroupsResponse(groups []insights.ClaimGroup) []claimGroupJSON {
	out := make([]claimGroupJSON, len(groups))
	for i, g := range groups {
		out[i] = claimGroupJSON{Claim: g.Claim, Citations: citationsResponse(g.Citations)}
	}
	return out
}
