package domain

import (
	"fmt"
	"sort"
	"strings"
)

// GlossaryEntry represents a term local to one source. The Term field is
// the lowercased lookup key; Display preserves the casing the term was
// first seen with.
type GlossaryEntry struct {
	SourceURL  string
	Term       string
	Display    string
	Definition string
	Related    []string
}

// NewGlossaryEntry creates an entry keyed by the case-folded term
func NewGlossaryEntry(sourceURL, term, definition string) *GlossaryEntry {
	return &GlossaryEntry{
		SourceURL:  sourceURL,
		Term:       strings.ToLower(term),
		Display:    term,
		Definition: definition,
		Related:    nil,
	}
}

// AddRelated links another term to this entry. Links are a set: adding an
// existing or self link is a no-op. Related terms are kept sorted so merge
// order never changes the stored entry.
func (e *GlossaryEntry) AddRelated(term string) {
	key := strings.ToLower(term)
	if key == "" || key == e.Term {
		return
	}
	for _, r := range e.Related {
		if r == key {
			return
		}
	}
	e.Related = append(e.Related, key)
	sort.Strings(e.Related)
}

// ValidateGlossaryEntry validates a GlossaryEntry instance
func ValidateGlossaryEntry(e *GlossaryEntry) error {
	if e == nil {
		return fmt.Errorf("glossary entry cannot be nil")
	}
	if e.SourceURL == "" {
		return fmt.Errorf("glossary entry SourceURL is required")
	}
	if e.Term == "" {
		return fmt.Errorf("glossary entry Term is required")
	}
	if e.Term != strings.ToLower(e.Term) {
		return fmt.Errorf("glossary entry Term must be lowercase: %s", e.Term)
	}
	if e.Definition == "" {
		return fmt.Errorf("glossary entry Definition is required")
	}
	return nil
}
