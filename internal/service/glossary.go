package service

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/sitelore-ai/sitelore/internal/domain"
)

// Concept is a term/definition pair extracted from chunk text
type Concept struct {
	Term       string
	Definition string
}

// maxDefinitionChars bounds a stored definition snippet
const maxDefinitionChars = 300

// acronymContextChars is the window captured around a bare acronym when
// no explicit expansion is present
const acronymContextChars = 150

// Extraction patterns in precedence order: acronym patterns run before the
// defined-term pattern, and within a batch the first pattern to produce a
// term wins, so merges are deterministic regardless of processing order.
var (
	// ACL (Access Control List)
	acronymThenExpansion = regexp.MustCompile(`\b([A-Z][A-Z0-9]{1,9})\s*\(([A-Za-z][A-Za-z0-9 ,\-]{2,80})\)`)
	// Access Control List (ACL)
	expansionThenAcronym = regexp.MustCompile(`\b([A-Z][a-z][A-Za-z]*(?:\s+(?:of|and|the|for|[A-Z][A-Za-z]*)){1,6})\s*\(([A-Z][A-Z0-9]{1,9})\)`)
	// Bare all-caps token, defined by its surrounding context
	bareAcronym = regexp.MustCompile(`\b([A-Z]{3,})\b`)
	// Capitalized Phrase: explanation / Capitalized Phrase is|refers to explanation
	definedTerm = regexp.MustCompile(`\b([A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+)+)\s*(?::\s*|\bis\s+|\brefers\s+to\s+)([a-z][^.!?\n]{9,250}[.!?]?)`)
)

// GlossaryRepository persists per-source glossary entries
type GlossaryRepository interface {
	GetEntries(ctx context.Context, sourceURL string, terms []string) ([]*domain.GlossaryEntry, error)
	UpsertEntries(ctx context.Context, entries []*domain.GlossaryEntry) error
	Lookup(ctx context.Context, sourceURL, term string) (*domain.GlossaryEntry, error)
}

// GlossaryService extracts site-specific concepts from chunk text and
// maintains each source's term graph.
type GlossaryService struct {
	repo GlossaryRepository

	mu      sync.Mutex
	sources map[string]*sync.Mutex
}

// NewGlossaryService creates a new GlossaryService
func NewGlossaryService(repo GlossaryRepository) *GlossaryService {
	return &GlossaryService{
		repo:    repo,
		sources: make(map[string]*sync.Mutex),
	}
}

// ExtractConcepts finds acronyms and defined terms in text. The result is
// ordered and deduplicated by case-folded term; the earliest (highest
// precedence) match supplies the definition.
func ExtractConcepts(text string) []Concept {
	var concepts []Concept
	seen := make(map[string]struct{})

	add := func(term, definition string) {
		term = strings.TrimSpace(term)
		definition = strings.TrimSpace(definition)
		if term == "" || definition == "" {
			return
		}
		key := strings.ToLower(term)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		concepts = append(concepts, Concept{Term: term, Definition: truncate(definition, maxDefinitionChars)})
	}

	for _, m := range acronymThenExpansion.FindAllStringSubmatch(text, -1) {
		add(m[1], m[2])
	}
	for _, m := range expansionThenAcronym.FindAllStringSubmatch(text, -1) {
		add(m[2], stripArticle(m[1]))
	}
	for _, idx := range bareAcronym.FindAllStringSubmatchIndex(text, -1) {
		term := text[idx[2]:idx[3]]
		add(term, contextWindow(text, idx[2], idx[3]))
	}
	for _, m := range definedTerm.FindAllStringSubmatch(text, -1) {
		add(m[1], m[2])
	}

	return concepts
}

// Merge folds extracted concepts into a source's glossary. Terms already
// present get their definition refreshed; relation edges accumulate as a
// set and are linked symmetrically for every pair of terms co-occurring
// in this batch. Merges for the same source are serialized; different
// sources proceed independently.
func (s *GlossaryService) Merge(ctx context.Context, sourceURL string, concepts []Concept) error {
	if len(concepts) == 0 {
		return nil
	}

	lock := s.sourceLock(sourceURL)
	lock.Lock()
	defer lock.Unlock()

	keys := make([]string, 0, len(concepts))
	for _, c := range concepts {
		keys = append(keys, strings.ToLower(c.Term))
	}

	existing, err := s.repo.GetEntries(ctx, sourceURL, keys)
	if err != nil {
		return err
	}
	byTerm := make(map[string]*domain.GlossaryEntry, len(existing))
	for _, e := range existing {
		byTerm[e.Term] = e
	}

	entries := make([]*domain.GlossaryEntry, 0, len(concepts))
	for _, c := range concepts {
		key := strings.ToLower(c.Term)
		entry, ok := byTerm[key]
		if !ok {
			entry = domain.NewGlossaryEntry(sourceURL, c.Term, c.Definition)
			byTerm[key] = entry
		} else {
			entry.Definition = c.Definition
		}
		entries = append(entries, entry)
	}

	// Co-occurrence in one batch links every pair both ways.
	for i, a := range entries {
		for _, b := range entries[i+1:] {
			a.AddRelated(b.Term)
			b.AddRelated(a.Term)
		}
	}

	return s.repo.UpsertEntries(ctx, entries)
}

// Lookup resolves a single word against one source's glossary,
// case-insensitively. A miss returns domain.ErrTermNotFound.
func (s *GlossaryService) Lookup(ctx context.Context, sourceURL, word string) (*domain.GlossaryEntry, error) {
	return s.repo.Lookup(ctx, sourceURL, strings.ToLower(strings.TrimSpace(word)))
}

func (s *GlossaryService) sourceLock(sourceURL string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.sources[sourceURL]
	if !ok {
		lock = &sync.Mutex{}
		s.sources[sourceURL] = lock
	}
	return lock
}

// contextWindow snips the text around a bare acronym. The window is
// sized in bytes but cut on rune boundaries so multibyte text stays
// valid UTF-8.
func contextWindow(text string, start, end int) string {
	from := start - acronymContextChars
	if from < 0 {
		from = 0
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	to := end + acronymContextChars
	if to > len(text) {
		to = len(text)
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return strings.ReplaceAll(strings.TrimSpace(text[from:to]), "\n", " ")
}

func stripArticle(s string) string {
	for _, article := range []string{"The ", "A ", "An "} {
		if strings.HasPrefix(s, article) {
			return s[len(article):]
		}
	}
	return s
}

// truncate caps s at max bytes without splitting a rune
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
