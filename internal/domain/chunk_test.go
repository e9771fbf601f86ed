package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkIDDeterministic(t *testing.T) {
	a := ChunkID("https://example.com", "https://example.com/page", 3, "some text")
	b := ChunkID("https://example.com", "https://example.com/page", 3, "some text")
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
}

func TestChunkIDVariesByInput(t *testing.T) {
	base := ChunkID("https://example.com", "https://example.com/page", 0, "text")
	assert.NotEqual(t, base, ChunkID("https://example.com", "https://example.com/page", 1, "text"))
	assert.NotEqual(t, base, ChunkID("https://example.com", "https://example.com/other", 0, "text"))
	assert.NotEqual(t, base, ChunkID("https://example.com", "https://example.com/page", 0, "other"))
}

func TestValidateChunk(t *testing.T) {
	valid := &Chunk{
		ID:        "abc",
		SourceURL: "https://example.com",
		PageURL:   "https://example.com/page",
		Position:  0,
		Text:      "hello",
		Embedding: []float32{0.1, 0.2},
	}
	require.NoError(t, ValidateChunk(valid))

	tests := []struct {
		name   string
		mutate func(*Chunk)
	}{
		{"missing id", func(c *Chunk) { c.ID = "" }},
		{"missing source", func(c *Chunk) { c.SourceURL = "" }},
		{"missing page", func(c *Chunk) { c.PageURL = "" }},
		{"empty text", func(c *Chunk) { c.Text = "" }},
		{"no embedding", func(c *Chunk) { c.Embedding = nil }},
		{"negative position", func(c *Chunk) { c.Position = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *valid
			c.Embedding = append([]float32(nil), valid.Embedding...)
			tt.mutate(&c)
			assert.Error(t, ValidateChunk(&c))
		})
	}
}
