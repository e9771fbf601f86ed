// Package extract turns fetched documents into plain text and links.
package extract

import (
	"context"
	"strings"

	"github.com/sitelore-ai/sitelore/internal/domain"
)

// Content is the extraction result for a single fetched document
type Content struct {
	Text  string
	Links []string
}

// OCRFunc recognizes text in a scanned document. OCR itself is an
// external service; the extractor only decides when to consult it.
type OCRFunc func(ctx context.Context, data []byte) (string, error)

// Extractor dispatches on content type. Unsupported types extract to an
// empty result without error so the crawler simply skips them.
type Extractor struct {
	ocr OCRFunc
}

// NewExtractor creates an extractor without OCR support
func NewExtractor() *Extractor {
	return &Extractor{}
}

// NewExtractorWithOCR creates an extractor that consults ocr for
// scanned PDFs
func NewExtractorWithOCR(ocr OCRFunc) *Extractor {
	return &Extractor{ocr: ocr}
}

// Extract returns plain text and discovered links for the document at
// baseURL. Links are absolute, http(s) only, fragment-stripped.
func (e *Extractor) Extract(ctx context.Context, baseURL string, data []byte, contentType string) (*Content, error) {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "html"):
		return extractHTML(baseURL, data)
	case strings.Contains(ct, "pdf"):
		return e.extractPDF(ctx, data)
	default:
		return &Content{}, nil
	}
}

func wrapExtractionErr(err error) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeExtractionFailure, "content extraction failed", err)
}
