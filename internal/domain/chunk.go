package domain

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Chunk represents a retrieval-sized span of extracted text with its embedding
type Chunk struct {
	ID        string
	SourceURL string
	PageURL   string
	Position  int
	Text      string
	Embedding []float32
	CreatedAt time.Time
}

// ChunkID derives a stable chunk identifier from its source, page,
// position and text. Re-ingesting identical content yields the same id,
// which keeps re-crawls idempotent.
func ChunkID(sourceURL, pageURL string, position int, text string) string {
	h := xxhash.New()
	fmt.Fprintf(h, "%s|%s|%d|", sourceURL, pageURL, position)
	_, _ = h.WriteString(text)
	return fmt.Sprintf("%016x", h.Sum64())
}

// ValidateChunk validates a Chunk instance. A chunk is never persisted
// without its embedding.
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}
	if c.SourceURL == "" {
		return fmt.Errorf("chunk SourceURL is required")
	}
	if c.PageURL == "" {
		return fmt.Errorf("chunk PageURL is required")
	}
	if c.Text == "" {
		return fmt.Errorf("chunk Text is required")
	}
	if len(c.Embedding) == 0 {
		return fmt.Errorf("chunk Embedding is required")
	}
	if c.Position < 0 {
		return fmt.Errorf("chunk Position cannot be negative")
	}
	return nil
}

// ScoredChunk pairs a chunk with its similarity to a query embedding.
// Similarity is float64 to match the SQL expression that computes it.
type ScoredChunk struct {
	Chunk      *Chunk
	Similarity float64
}
