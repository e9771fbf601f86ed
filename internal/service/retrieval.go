package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/sitelore-ai/sitelore/internal/domain"
	"github.com/sitelore-ai/sitelore/internal/telemetry"
)

// Embedder turns text into a vector for similarity search
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcher runs a nearest-neighbor query over indexed chunks,
// restricted to the given source URLs.
type ChunkSearcher interface {
	Query(ctx context.Context, embedding []float32, sourceURLs []string, topK int) ([]*domain.ScoredChunk, error)
}

// GlossaryLookup resolves one word against one source's glossary
type GlossaryLookup interface {
	Lookup(ctx context.Context, sourceURL, word string) (*domain.GlossaryEntry, error)
}

// RetrievalConfig tunes context assembly
type RetrievalConfig struct {
	TopK             int
	MinScore         float64
	HistoryTurnPairs int
}

// DefaultRetrievalConfig returns the retrieval defaults
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:             5,
		MinScore:         0.15,
		HistoryTurnPairs: 5,
	}
}

// PromptContext is everything assembled for one question: the scored
// chunks that cleared the similarity floor, glossary entries matched
// against the question's words, the trailing conversation window, and
// the rendered prompt.
type PromptContext struct {
	Chunks   []*domain.ScoredChunk
	Glossary []*domain.GlossaryEntry
	History  []domain.Message
	Prompt   string
}

// RetrievalService assembles the model prompt for a question
type RetrievalService struct {
	embedder Embedder
	chunks   ChunkSearcher
	glossary GlossaryLookup
	cfg      RetrievalConfig
}

// NewRetrievalService creates a new RetrievalService
func NewRetrievalService(embedder Embedder, chunks ChunkSearcher, glossary GlossaryLookup, cfg RetrievalConfig) *RetrievalService {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultRetrievalConfig().TopK
	}
	if cfg.HistoryTurnPairs <= 0 {
		cfg.HistoryTurnPairs = DefaultRetrievalConfig().HistoryTurnPairs
	}
	return &RetrievalService{
		embedder: embedder,
		chunks:   chunks,
		glossary: glossary,
		cfg:      cfg,
	}
}

// BuildContext assembles the prompt for a question against the selected
// sources. The glossary pass always runs, even when no chunk clears the
// similarity floor, so acronym questions get an answer surface when
// vector recall comes up empty.
func (s *RetrievalService) BuildContext(ctx context.Context, question string, sourceURLs []string, history []domain.Message) (*PromptContext, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.BuildContext", telemetry.SpanAttributes{
		Operation: "build_context",
	})
	defer span.End()

	if len(sourceURLs) == 0 {
		return nil, domain.ErrNoSourcesSelected
	}
	if strings.TrimSpace(question) == "" {
		return nil, domain.ErrEmptyQuestion
	}

	embedding, err := s.embedder.GenerateEmbedding(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	scored, err := s.chunks.Query(ctx, embedding, sourceURLs, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("chunk query failed: %w", err)
	}
	kept := scored[:0]
	for _, c := range scored {
		if c.Similarity >= s.cfg.MinScore {
			kept = append(kept, c)
		}
	}

	entries, err := s.lookupGlossary(ctx, question, sourceURLs)
	if err != nil {
		return nil, err
	}

	window := historyWindow(history, s.cfg.HistoryTurnPairs)

	pc := &PromptContext{
		Chunks:   kept,
		Glossary: entries,
		History:  window,
	}
	pc.Prompt = renderPrompt(question, pc)
	return pc, nil
}

// lookupGlossary checks every distinct word of the question against each
// selected source's glossary. Misses are expected and skipped.
func (s *RetrievalService) lookupGlossary(ctx context.Context, question string, sourceURLs []string) ([]*domain.GlossaryEntry, error) {
	words := questionWords(question)
	seen := make(map[string]struct{})
	var entries []*domain.GlossaryEntry
	for _, src := range sourceURLs {
		for _, w := range words {
			entry, err := s.glossary.Lookup(ctx, src, w)
			if err != nil {
				if errors.Is(err, domain.ErrTermNotFound) {
					continue
				}
				return nil, fmt.Errorf("glossary lookup failed: %w", err)
			}
			key := entry.SourceURL + "\x00" + entry.Term
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// questionWords returns the distinct alphanumeric words of length >= 3,
// in first-seen order
func questionWords(question string) []string {
	fields := strings.FieldsFunc(question, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]struct{}, len(fields))
	var words []string
	for _, f := range fields {
		w := strings.ToLower(f)
		if len(w) < 3 {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	return words
}

// historyWindow keeps the trailing turn pairs, dropping error messages
// first so a failed exchange never displaces usable history
func historyWindow(history []domain.Message, turnPairs int) []domain.Message {
	filtered := make([]domain.Message, 0, len(history))
	for _, m := range history {
		if m.Role == domain.MessageRoleError {
			continue
		}
		filtered = append(filtered, m)
	}
	max := turnPairs * 2
	if len(filtered) > max {
		filtered = filtered[len(filtered)-max:]
	}
	return filtered
}

func renderPrompt(question string, pc *PromptContext) string {
	var b strings.Builder

	if len(pc.Chunks) > 0 {
		b.WriteString("Knowledge Base Context:\n")
		for _, c := range pc.Chunks {
			fmt.Fprintf(&b, "[Source: %s]\n%s\n\n", c.Chunk.PageURL, c.Chunk.Text)
		}
	}

	if len(pc.Glossary) > 0 {
		b.WriteString("Semantic Concepts:\n")
		for _, e := range pc.Glossary {
			fmt.Fprintf(&b, "- %s: %s", e.Display, e.Definition)
			if len(e.Related) > 0 {
				fmt.Fprintf(&b, " (related: %s)", strings.Join(e.Related, ", "))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(pc.History) > 0 {
		b.WriteString("Chat History:\n")
		for _, m := range pc.History {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}
