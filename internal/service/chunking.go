package service

import (
	"strings"
	"time"
	"unicode"

	"github.com/sitelore-ai/sitelore/internal/domain"
)

// ChunkConfig controls how extracted page text is split for indexing.
type ChunkConfig struct {
	MaxChars int
	MinChars int
	Overlap  int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxChars: 1200,
		MinChars: 200,
		Overlap:  200,
	}
}

// ChunkText splits text into retrieval-sized segments. Paragraphs are the
// preferred unit; a paragraph that exceeds MaxChars is windowed with the
// configured overlap, cutting backward to a sentence or word boundary
// where one exists. No empty segments are emitted and a segment identical
// to its predecessor is dropped.
func ChunkText(text string, cfg ChunkConfig) []string {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.MaxChars <= 0 {
		cfg = DefaultChunkConfig()
	}

	var chunks []string
	appendChunk := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if len(chunks) > 0 && chunks[len(chunks)-1] == s {
			return
		}
		chunks = append(chunks, s)
	}

	for _, para := range splitParagraphs(clean) {
		if len([]rune(para)) <= cfg.MaxChars {
			appendChunk(para)
			continue
		}
		for _, window := range windowText(para, cfg) {
			appendChunk(window)
		}
	}

	return chunks
}

func splitParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// windowText is the fixed-size fallback for oversized units, generalized
// from rune windows with a backward boundary scan.
func windowText(text string, cfg ChunkConfig) []string {
	runes := []rune(text)
	var out []string
	start := 0

	for start < len(runes) {
		end := start + cfg.MaxChars
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			cut := end
			minCut := start + cfg.MinChars
			if minCut > end {
				minCut = start
			}
			// Prefer a sentence end, then any whitespace.
			boundary := -1
			for i := end; i > minCut; i-- {
				r := runes[i-1]
				if r == '.' || r == '!' || r == '?' {
					boundary = i
					break
				}
			}
			if boundary == -1 {
				for i := end; i > minCut; i-- {
					if unicode.IsSpace(runes[i-1]) {
						boundary = i
						break
					}
				}
			}
			if boundary != -1 {
				cut = boundary
			}
			end = cut
		}

		if end <= start {
			break
		}

		segment := strings.TrimSpace(string(runes[start:end]))
		if segment != "" {
			out = append(out, segment)
		}

		if end >= len(runes) {
			break
		}

		nextStart := end
		if cfg.Overlap > 0 && end-start > cfg.Overlap {
			nextStart = end - cfg.Overlap
		}
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return out
}

// BuildChunks turns page text into chunk drafts with positions and stable
// ids. Embeddings are attached by the ingestion pipeline before persisting.
func BuildChunks(sourceURL, pageURL, text string, cfg ChunkConfig, now time.Time) []*domain.Chunk {
	segments := ChunkText(text, cfg)
	chunks := make([]*domain.Chunk, 0, len(segments))
	for i, segment := range segments {
		chunks = append(chunks, &domain.Chunk{
			ID:        domain.ChunkID(sourceURL, pageURL, i, segment),
			SourceURL: sourceURL,
			PageURL:   pageURL,
			Position:  i,
			Text:      segment,
			CreatedAt: now,
		})
	}
	return chunks
}
