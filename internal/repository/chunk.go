package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/sitelore-ai/sitelore/internal/domain"
)

// ChunkRepository handles persistence and vector search of text chunks
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// Upsert writes chunks keyed by their deterministic id. Re-ingesting
// unchanged content rewrites identical rows, so repeated crawls are
// idempotent.
func (r *ChunkRepository) Upsert(ctx context.Context, chunks []*domain.Chunk) error {
	for _, c := range chunks {
		if err := domain.ValidateChunk(c); err != nil {
			return err
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO chunks (id, source_url, page_url, position, content, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (id) DO UPDATE SET
				content = EXCLUDED.content,
				embedding = EXCLUDED.embedding`,
			c.ID, c.SourceURL, c.PageURL, c.Position, c.Text, pgvector.NewVector(c.Embedding), createdAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Query returns the topK most similar chunks from the selected sources.
// Similarity is cosine (1 - distance); ties break on id so results are
// deterministic.
func (r *ChunkRepository) Query(ctx context.Context, embedding []float32, sourceURLs []string, topK int) ([]*domain.ScoredChunk, error) {
	if len(sourceURLs) == 0 {
		return nil, domain.ErrNoSourcesSelected
	}
	if topK <= 0 {
		topK = 5
	}

	vec := pgvector.NewVector(embedding)
	rows, err := r.db.Query(ctx,
		`SELECT id, source_url, page_url, position, content, created_at,
		        1 - (embedding <=> $1) AS similarity
		 FROM chunks
		 WHERE source_url = ANY($2)
		 ORDER BY embedding <=> $1 ASC, id ASC
		 LIMIT $3`,
		vec, sourceURLs, topK,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.ScoredChunk
	for rows.Next() {
		sc := domain.ScoredChunk{Chunk: &domain.Chunk{}}
		if err := rows.Scan(&sc.Chunk.ID, &sc.Chunk.SourceURL, &sc.Chunk.PageURL, &sc.Chunk.Position,
			&sc.Chunk.Text, &sc.Chunk.CreatedAt, &sc.Similarity); err != nil {
			return nil, err
		}
		results = append(results, &sc)
	}
	return results, rows.Err()
}

// CountBySource returns the number of indexed chunks for a source
func (r *ChunkRepository) CountBySource(ctx context.Context, sourceURL string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE source_url = $1`,
		sourceURL,
	).Scan(&count)
	return count, err
}
