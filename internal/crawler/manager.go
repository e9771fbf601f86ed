package crawler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/sitelore-ai/sitelore/internal/domain"
	"github.com/sitelore-ai/sitelore/internal/telemetry"
)

// SourceStore persists sources and their crawl state
type SourceStore interface {
	Upsert(ctx context.Context, src *domain.Source) error
	GetByURL(ctx context.Context, url string) (*domain.Source, error)
	List(ctx context.Context) ([]*domain.Source, error)
}

// Manager owns crawl jobs. It enforces the one-active-job-per-source
// invariant through an in-memory job table keyed by normalized URL and
// keeps the sources table current so status polling survives restarts.
type Manager struct {
	store   SourceStore
	crawler *Crawler

	mu   sync.Mutex
	jobs map[string]*domain.CrawlSnapshot

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a Manager. Jobs run on a context owned by the
// manager, not the request that started them; Stop cancels it.
func NewManager(store SourceStore, crawler *Crawler) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:   store,
		crawler: crawler,
		jobs:    make(map[string]*domain.CrawlSnapshot),
		runCtx:  ctx,
		cancel:  cancel,
	}
}

// Start queues a crawl for rawURL and returns the normalized source URL.
// A source with a live job returns ErrCrawlAlreadyRunning. Restarting a
// source whose previous crawl finished (or was lost to a restart) is
// allowed and re-ingests it.
func (m *Manager) Start(ctx context.Context, rawURL string) (string, error) {
	norm, err := domain.NormalizeURL(rawURL)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	if snap, ok := m.jobs[norm]; ok && snap.Status.Active() {
		m.mu.Unlock()
		return "", domain.ErrCrawlAlreadyRunning
	}
	snap := &domain.CrawlSnapshot{
		URL:                norm,
		Status:             domain.CrawlStatusQueued,
		TotalPagesEstimate: 1,
		Message:            "crawl queued",
	}
	m.jobs[norm] = snap
	m.mu.Unlock()

	src := domain.NewSource(norm, time.Now())
	if err := m.store.Upsert(ctx, src); err != nil {
		m.mu.Lock()
		delete(m.jobs, norm)
		m.mu.Unlock()
		return "", fmt.Errorf("failed to persist source: %w", err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(norm)
	}()

	return norm, nil
}

// Status returns the crawl snapshot for rawURL. Live jobs answer from
// memory; finished or pre-restart sources answer from the store.
func (m *Manager) Status(ctx context.Context, rawURL string) (*domain.CrawlSnapshot, error) {
	norm, err := domain.NormalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if snap, ok := m.jobs[norm]; ok {
		copied := *snap
		m.mu.Unlock()
		return &copied, nil
	}
	m.mu.Unlock()

	src, err := m.store.GetByURL(ctx, norm)
	if err != nil {
		if errors.Is(err, domain.ErrSourceNotFound) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	return &domain.CrawlSnapshot{
		URL:                src.URL,
		Status:             src.Status,
		PagesIndexed:       src.PagesIndexed,
		TotalPagesEstimate: src.TotalPagesEstimate,
		Message:            src.Message,
	}, nil
}

// ListSources returns all known sources
func (m *Manager) ListSources(ctx context.Context) ([]*domain.Source, error) {
	return m.store.List(ctx)
}

// Stop cancels running jobs and waits for them to finish
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) run(sourceURL string) {
	log.Printf("Crawl started for %s", sourceURL)

	ctx, span := telemetry.StartTransaction(m.runCtx, "crawl "+sourceURL, "crawl.job")
	defer span.End()

	m.update(sourceURL, func(snap *domain.CrawlSnapshot) {
		snap.Status = domain.CrawlStatusRunning
		snap.Message = "crawl running"
	})

	progress, err := m.crawler.Crawl(ctx, sourceURL, func(p Progress) {
		m.update(sourceURL, func(snap *domain.CrawlSnapshot) {
			applyProgress(snap, p)
		})
	})

	m.update(sourceURL, func(snap *domain.CrawlSnapshot) {
		applyProgress(snap, progress)
		switch {
		case err != nil:
			snap.Status = domain.CrawlStatusFailed
			snap.Message = fmt.Sprintf("crawl failed: %v", err)
		case progress.PagesFailed > 0:
			snap.Status = domain.CrawlStatusCompletedWithErrors
			snap.Message = fmt.Sprintf("crawl completed, %d of %d pages failed (last: %s)",
				progress.PagesFailed, progress.PagesIndexed+progress.PagesFailed, progress.LastError)
		default:
			snap.Status = domain.CrawlStatusCompleted
			snap.Message = fmt.Sprintf("crawl completed, %d pages indexed", progress.PagesIndexed)
		}
	})

	if err != nil {
		span.SetError(err)
		log.Printf("Crawl failed for %s: %v", sourceURL, err)
	} else {
		log.Printf("Crawl finished for %s: %d indexed, %d failed", sourceURL, progress.PagesIndexed, progress.PagesFailed)
	}

	// Finished jobs leave the table; polling falls through to the store.
	m.mu.Lock()
	delete(m.jobs, sourceURL)
	m.mu.Unlock()
}

// update mutates the in-memory snapshot and mirrors it to the store.
// Progress counters only move forward even if callbacks race persistence.
func (m *Manager) update(sourceURL string, mutate func(*domain.CrawlSnapshot)) {
	m.mu.Lock()
	snap, ok := m.jobs[sourceURL]
	if !ok {
		m.mu.Unlock()
		return
	}
	mutate(snap)
	copied := *snap
	m.mu.Unlock()

	src := &domain.Source{
		URL:                copied.URL,
		Status:             copied.Status,
		PagesIndexed:       copied.PagesIndexed,
		TotalPagesEstimate: copied.TotalPagesEstimate,
		Message:            copied.Message,
		UpdatedAt:          time.Now(),
	}
	if err := m.store.Upsert(context.Background(), src); err != nil {
		log.Printf("Failed to persist crawl progress for %s: %v", sourceURL, err)
	}
}

func applyProgress(snap *domain.CrawlSnapshot, p Progress) {
	if p.PagesIndexed > snap.PagesIndexed {
		snap.PagesIndexed = p.PagesIndexed
	}
	estimate := p.PagesDiscovered
	if estimate < snap.PagesIndexed {
		estimate = snap.PagesIndexed
	}
	if estimate > snap.TotalPagesEstimate {
		snap.TotalPagesEstimate = estimate
	}
	if p.LastError != "" {
		snap.Message = fmt.Sprintf("last page error: %s", p.LastError)
	}
}
