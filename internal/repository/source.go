package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitelore-ai/sitelore/internal/domain"
)

// SourceRepository handles persistence of crawled sources
type SourceRepository struct {
	db dbtx
}

func NewSourceRepository(pool *pgxpool.Pool) *SourceRepository {
	return &SourceRepository{db: pool}
}

func NewSourceRepositoryWithTx(tx pgx.Tx) *SourceRepository {
	return &SourceRepository{db: tx}
}

// Upsert inserts a source or refreshes its crawl state. The original
// created_at is preserved on conflict.
func (r *SourceRepository) Upsert(ctx context.Context, src *domain.Source) error {
	createdAt := src.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := src.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO sources (url, status, pages_indexed, total_pages_estimate, message, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (url) DO UPDATE SET
			status = EXCLUDED.status,
			pages_indexed = EXCLUDED.pages_indexed,
			total_pages_estimate = EXCLUDED.total_pages_estimate,
			message = EXCLUDED.message,
			updated_at = EXCLUDED.updated_at`,
		src.URL, src.Status, src.PagesIndexed, src.TotalPagesEstimate, src.Message, createdAt, updatedAt,
	)
	return err
}

func (r *SourceRepository) GetByURL(ctx context.Context, url string) (*domain.Source, error) {
	var src domain.Source
	err := r.db.QueryRow(ctx,
		`SELECT url, status, pages_indexed, total_pages_estimate, message, created_at, updated_at
		 FROM sources WHERE url = $1`,
		url,
	).Scan(&src.URL, &src.Status, &src.PagesIndexed, &src.TotalPagesEstimate, &src.Message, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSourceNotFound
		}
		return nil, err
	}
	return &src, nil
}

func (r *SourceRepository) List(ctx context.Context) ([]*domain.Source, error) {
	rows, err := r.db.Query(ctx,
		`SELECT url, status, pages_indexed, total_pages_estimate, message, created_at, updated_at
		 FROM sources ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*domain.Source
	for rows.Next() {
		var src domain.Source
		if err := rows.Scan(&src.URL, &src.Status, &src.PagesIndexed, &src.TotalPagesEstimate, &src.Message, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, err
		}
		sources = append(sources, &src)
	}
	return sources, rows.Err()
}
