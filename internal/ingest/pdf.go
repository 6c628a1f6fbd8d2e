// Package ingest turns a PDF document into an ordered sequence of Chunks
// (spec.md §4.1, component C1).
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/pagecast/pagecast/internal/apierr"
)

// Ingestor extracts text from PDFs and splits it into Chunks.
type Ingestor struct {
	log *slog.Logger
}

// New constructs an Ingestor.
func New(log *slog.Logger) *Ingestor {
	return &Ingestor{log: log}
}

// Ingest reads the PDF at path and returns its chunks in page then
// section order. Fails with apierr.CodeInvalidDocument when the file is
// unreadable, apierr.CodeEmptyExtraction when zero chunks result.
func (ing *Ingestor) Ingest(path string) ([]Chunk, error) {
	filename := SanitizeFilename(filepath.Base(path))

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeInvalidDocument, fmt.Sprintf("open pdf %q", filename), err).WithInput(filename)
	}
	defer f.Close()

	totalPages := r.NumPage()
	var chunks []Chunk

	for pageIndex := 1; pageIndex <= totalPages; pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := extractPageText(page)
		if err != nil {
			ing.logf("page %d of %s: primary extraction failed: %v", pageIndex, filename, err)
			text = ""
		}

		if strings.TrimSpace(text) == "" {
			// Retry using block-level extraction (spec.md §4.1).
			text, err = extractPageBlocks(page)
			if err != nil || strings.TrimSpace(text) == "" {
				ing.logf("page %d of %s: empty after block-level retry, skipping", pageIndex, filename)
				continue
			}
		}

		pageChunks := chunkPage(filename, pageIndex, text)
		chunks = append(chunks, pageChunks...)
	}

	if len(chunks) == 0 {
		return nil, apierr.New(apierr.CodeEmptyExtraction, "document yielded no extractable text").WithInput(filename)
	}

	return chunks, nil
}

// extractPageText uses the primary plain-text extractor.
func extractPageText(page pdf.Page) (string, error) {
	return page.GetPlainText(nil)
}

// extractPageBlocks retries extraction at the block/row level for pages
// whose primary extraction came back empty — some PDFs encode glyphs in a
// way the simple text extractor misses but the row reader recovers.
func extractPageBlocks(page pdf.Page) (string, error) {
	rows, err := page.GetTextByRow()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	for _, row := range rows {
		for _, word := range row.Content {
			buf.WriteString(word.S)
			buf.WriteByte(' ')
		}
		buf.WriteByte('\n')
	}
	return buf.String(), nil
}

func (ing *Ingestor) logf(format string, args ...any) {
	if ing.log == nil {
		return
	}
	ing.log.Debug(fmt.Sprintf(format, args...))
}

// SanitizeFilename reduces a path to a stable leaf name suitable for use as
// a document identifier (spec.md §3 "sanitized to a leaf name").
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." {
		return "document.pdf"
	}
	return name
}

// ErrInvalidExtension reports an upload whose extension is not allowed.
// No code path in this module returns it: uploads are not checked against
// an extension list before they reach Ingest.
var ErrInvalidExtension = errors.New("unsupported file extension")
