// Package extract turns downloaded resolution PDFs into plain text.
//
// A document first passes the IntegrityChecker; valid documents then run through
// a fixed chain of backends, most reliable first:
//
//	native  - embedded text layer, page by page (ledongthuc/pdf)
//	layout  - glyph geometry regrouped into lines with explicit tolerances (ledongthuc/pdf)
//	legacy  - raw content-stream text operators (pdfcpu)
//	ocr     - pages rasterized at 300 DPI and recognized (pdftoppm + tesseract or Vertex AI)
//
// The first backend returning non-empty text wins. OCR only joins the chain when
// the startup probe found a recognition engine.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/Lllllllleong/resolutionflow/internal/models"
)

// Backend is one text-extraction strategy. TryExtract returns the concatenated
// page texts of at most maxPages pages (0 means all pages). An empty string means
// the backend found nothing; an error means it failed. The pipeline treats both
// as "try the next backend".
type Backend interface {
	Method() models.Method
	TryExtract(ctx context.Context, path string, maxPages int) (string, error)
}

// BackendError wraps a failure raised inside a single backend.
type BackendError struct {
	Backend models.Method
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// pageLimit bounds a document's page count by maxPages when maxPages > 0.
func pageLimit(pageCount, maxPages int) int {
	if maxPages > 0 && maxPages < pageCount {
		return maxPages
	}
	return pageCount
}

// joinPages trims every page text and joins the non-empty ones with a single space.
func joinPages(pages []string) string {
	kept := make([]string, 0, len(pages))
	for _, p := range pages {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
