package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitelore-ai/sitelore/internal/domain"
)

// GlossaryRepository handles persistence of per-source glossary entries
type GlossaryRepository struct {
	db dbtx
}

func NewGlossaryRepository(pool *pgxpool.Pool) *GlossaryRepository {
	return &GlossaryRepository{db: pool}
}

func NewGlossaryRepositoryWithTx(tx pgx.Tx) *GlossaryRepository {
	return &GlossaryRepository{db: tx}
}

// GetEntries returns the entries for the given lowercased terms. Missing
// terms are simply absent from the result.
func (r *GlossaryRepository) GetEntries(ctx context.Context, sourceURL string, terms []string) ([]*domain.GlossaryEntry, error) {
	if len(terms) == 0 {
		return []*domain.GlossaryEntry{}, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT source_url, term, display, definition, related
		 FROM glossary_entries
		 WHERE source_url = $1 AND term = ANY($2)`,
		sourceURL, terms,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanGlossaryRows(rows)
}

// UpsertEntries writes entries keyed by (source_url, term)
func (r *GlossaryRepository) UpsertEntries(ctx context.Context, entries []*domain.GlossaryEntry) error {
	for _, e := range entries {
		if err := domain.ValidateGlossaryEntry(e); err != nil {
			return err
		}
		related := e.Related
		if related == nil {
			related = []string{}
		}
		_, err := r.db.Exec(ctx,
			`INSERT INTO glossary_entries (source_url, term, display, definition, related, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (source_url, term) DO UPDATE SET
				display = EXCLUDED.display,
				definition = EXCLUDED.definition,
				related = EXCLUDED.related,
				updated_at = EXCLUDED.updated_at`,
			e.SourceURL, e.Term, e.Display, e.Definition, related, time.Now().UTC(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Lookup resolves one lowercased term for one source
func (r *GlossaryRepository) Lookup(ctx context.Context, sourceURL, term string) (*domain.GlossaryEntry, error) {
	var e domain.GlossaryEntry
	err := r.db.QueryRow(ctx,
		`SELECT source_url, term, display, definition, related
		 FROM glossary_entries
		 WHERE source_url = $1 AND term = $2`,
		sourceURL, term,
	).Scan(&e.SourceURL, &e.Term, &e.Display, &e.Definition, &e.Related)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTermNotFound
		}
		return nil, err
	}
	return &e, nil
}

// ListBySource returns every entry for a source ordered by term
func (r *GlossaryRepository) ListBySource(ctx context.Context, sourceURL string) ([]*domain.GlossaryEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT source_url, term, display, definition, related
		 FROM glossary_entries
		 WHERE source_url = $1 ORDER BY term ASC`,
		sourceURL,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanGlossaryRows(rows)
}

func scanGlossaryRows(rows pgx.Rows) ([]*domain.GlossaryEntry, error) {
	var entries []*domain.GlossaryEntry
	for rows.Next() {
		var e domain.GlossaryEntry
		if err := rows.Scan(&e.SourceURL, &e.Term, &e.Display, &e.Definition, &e.Related); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
