// Package embed provides embedding clients for chunk and query text.
package embed

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const (
	// DefaultDimensions is the vector width of the local embedder
	DefaultDimensions = 256
)

// Local is a deterministic feature-hashing embedder. Tokens are
// case-folded, hashed into a fixed-width vector and L2-normalized, so
// identical text always yields an identical vector. That property keeps
// re-indexing idempotent and lets tests assert on retrieval results.
type Local struct {
	dimensions int
}

// NewLocal creates a Local embedder with the given vector width
func NewLocal(dimensions int) *Local {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &Local{dimensions: dimensions}
}

// Dimensions returns the width of vectors this embedder produces
func (l *Local) Dimensions() int {
	return l.dimensions
}

// GenerateEmbedding embeds text. A context is accepted to satisfy the
// embedding client contract; the computation itself is local and fast.
func (l *Local) GenerateEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, l.dimensions)

	for _, token := range tokenize(text) {
		h := xxhash.Sum64String(token)
		idx := int(h % uint64(l.dimensions))
		// Second hash decides the sign so colliding tokens can cancel
		// instead of always accumulating.
		sign := float32(1)
		if xxhash.Sum64String(token+"\x00")%2 == 1 {
			sign = -1
		}
		vec[idx] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}

	return vec, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
