package service

import (
	"strings"
	"testing"
	"time"

	"github.com/sitelore-ai/sitelore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText_Empty(t *testing.T) {
	assert.Nil(t, ChunkText("", DefaultChunkConfig()))
	assert.Nil(t, ChunkText("   \n\n  ", DefaultChunkConfig()))
}

func TestChunkText_ShortTextSingleChunk(t *testing.T) {
	chunks := ChunkText("A short paragraph.", DefaultChunkConfig())
	require.Len(t, chunks, 1)
	assert.Equal(t, "A short paragraph.", chunks[0])
}

func TestChunkText_ParagraphBoundaries(t *testing.T) {
	text := "First paragraph about crawling.\n\nSecond paragraph about indexing.\n\nThird paragraph about retrieval."
	chunks := ChunkText(text, DefaultChunkConfig())

	require.Len(t, chunks, 3)
	assert.Equal(t, "First paragraph about crawling.", chunks[0])
	assert.Equal(t, "Second paragraph about indexing.", chunks[1])
	assert.Equal(t, "Third paragraph about retrieval.", chunks[2])
}

func TestChunkText_OversizedParagraphWindowed(t *testing.T) {
	sentence := "This sentence talks about the indexing pipeline in some detail. "
	text := strings.Repeat(sentence, 40) // ~2560 chars, one paragraph

	cfg := ChunkConfig{MaxChars: 500, MinChars: 100, Overlap: 100}
	chunks := ChunkText(text, cfg)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.NotEmpty(t, c)
		assert.LessOrEqual(t, len([]rune(c)), cfg.MaxChars)
	}
}

func TestChunkText_OverlapRetainsBoundaryText(t *testing.T) {
	words := make([]string, 0, 400)
	for i := 0; i < 400; i++ {
		words = append(words, "token")
	}
	text := strings.Join(words, " ")

	cfg := ChunkConfig{MaxChars: 300, MinChars: 50, Overlap: 80}
	chunks := ChunkText(text, cfg)
	require.Greater(t, len(chunks), 1)

	// Consecutive windows share their overlap region.
	for i := 1; i < len(chunks); i++ {
		tail := chunks[i-1][len(chunks[i-1])-20:]
		assert.Contains(t, chunks[i-1]+chunks[i], tail)
	}
}

func TestChunkText_Deterministic(t *testing.T) {
	text := strings.Repeat("Repeatable content about the system. ", 100)
	cfg := ChunkConfig{MaxChars: 400, MinChars: 100, Overlap: 50}

	assert.Equal(t, ChunkText(text, cfg), ChunkText(text, cfg))
}

func TestChunkText_NoDuplicateAdjacent(t *testing.T) {
	text := "Same line.\n\nSame line.\n\nDifferent line."
	chunks := ChunkText(text, DefaultChunkConfig())

	require.Len(t, chunks, 2)
	assert.Equal(t, "Same line.", chunks[0])
	assert.Equal(t, "Different line.", chunks[1])
}

func TestBuildChunks(t *testing.T) {
	now := time.Now().UTC()
	text := "First part.\n\nSecond part."
	chunks := BuildChunks("https://example.com", "https://example.com/page", text, DefaultChunkConfig(), now)

	require.Len(t, chunks, 2)
	assert.Equal(t, 0, chunks[0].Position)
	assert.Equal(t, 1, chunks[1].Position)
	assert.Equal(t, "https://example.com", chunks[0].SourceURL)
	assert.Equal(t, "https://example.com/page", chunks[0].PageURL)
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID)

	// Stable ids across re-chunking of identical content.
	again := BuildChunks("https://example.com", "https://example.com/page", text, DefaultChunkConfig(), now.Add(time.Hour))
	assert.Equal(t, chunks[0].ID, again[0].ID)
	assert.Equal(t, chunks[1].ID, again[1].ID)
}

func TestBuildChunks_ValidAfterEmbedding(t *testing.T) {
	chunks := BuildChunks("https://example.com", "https://example.com/p", "Some text.", DefaultChunkConfig(), time.Now().UTC())
	require.Len(t, chunks, 1)

	chunks[0].Embedding = []float32{0.5, 0.5}
	assert.NoError(t, domain.ValidateChunk(chunks[0]))
}
