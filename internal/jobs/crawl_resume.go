package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/sitelore-ai/sitelore/internal/domain"
)

// CrawlStarter launches a crawl for a source URL
type CrawlStarter interface {
	Start(ctx context.Context, url string) (string, error)
}

// SourceLister lists persisted sources
type SourceLister interface {
	List(ctx context.Context) ([]*domain.Source, error)
}

// CrawlResumeWorker re-queues crawls that were interrupted by a restart.
// A source stuck in queued or running with no live job is an orphan: its
// progress row survived the crash but the goroutine did not. Restarting
// it is safe because ingestion is idempotent.
type CrawlResumeWorker struct {
	sources SourceLister
	crawls  CrawlStarter
}

// NewCrawlResumeWorker creates a new CrawlResumeWorker instance
func NewCrawlResumeWorker(sources SourceLister, crawls CrawlStarter) *CrawlResumeWorker {
	return &CrawlResumeWorker{
		sources: sources,
		crawls:  crawls,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *CrawlResumeWorker) ProcessJobs(ctx context.Context) error {
	sources, err := w.sources.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}

	for _, src := range sources {
		if !src.Status.Active() {
			continue
		}
		_, err := w.crawls.Start(ctx, src.URL)
		if errors.Is(err, domain.ErrCrawlAlreadyRunning) {
			// A live job owns this source, nothing to resume.
			continue
		}
		if err != nil {
			log.Printf("Failed to resume crawl for %s: %v", src.URL, err)
			continue
		}
		log.Printf("Resumed interrupted crawl for %s", src.URL)
	}

	return nil
}
