// Package crawler walks a website breadth-first and feeds every page
// through the indexing pipeline: fetch, extract, chunk, embed, upsert,
// glossary merge.
package crawler

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sitelore-ai/sitelore/internal/domain"
	"github.com/sitelore-ai/sitelore/internal/extract"
	"github.com/sitelore-ai/sitelore/internal/fetch"
	"github.com/sitelore-ai/sitelore/internal/service"
)

// Fetcher retrieves one URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*fetch.Result, error)
}

// Extractor turns a fetched document into text and links
type Extractor interface {
	Extract(ctx context.Context, baseURL string, data []byte, contentType string) (*extract.Content, error)
}

// Embedder turns chunk text into a vector
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// ChunkStore persists embedded chunks
type ChunkStore interface {
	Upsert(ctx context.Context, chunks []*domain.Chunk) error
}

// GlossaryMerger folds extracted concepts into a source's glossary
type GlossaryMerger interface {
	Merge(ctx context.Context, sourceURL string, concepts []service.Concept) error
}

// Archiver stores raw fetched documents. Archiving is best effort: an
// archive failure never fails the page.
type Archiver interface {
	PutRawDocument(ctx context.Context, pageURL, contentType string, body []byte) error
}

// Config tunes a crawl
type Config struct {
	MaxDepth    int
	MaxPages    int
	Concurrency int
	RatePerHost float64
	Chunk       service.ChunkConfig
}

// DefaultConfig returns the crawl defaults
func DefaultConfig() Config {
	return Config{
		MaxDepth:    2,
		MaxPages:    200,
		Concurrency: 8,
		RatePerHost: 4,
		Chunk:       service.DefaultChunkConfig(),
	}
}

// Progress is a point-in-time view of a running crawl. PagesIndexed and
// PagesDiscovered only ever grow.
type Progress struct {
	PagesIndexed    int
	PagesFailed     int
	PagesDiscovered int
	LastError       string
}

// Crawler runs the per-page pipeline over a site
type Crawler struct {
	fetcher   Fetcher
	extractor Extractor
	embedder  Embedder
	chunks    ChunkStore
	glossary  GlossaryMerger
	archive   Archiver
	limiter   *hostLimiter
	cfg       Config
}

// New creates a Crawler
func New(fetcher Fetcher, extractor Extractor, embedder Embedder, chunks ChunkStore, glossary GlossaryMerger, cfg Config) *Crawler {
	def := DefaultConfig()
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = def.MaxPages
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.RatePerHost <= 0 {
		cfg.RatePerHost = def.RatePerHost
	}
	return &Crawler{
		fetcher:   fetcher,
		extractor: extractor,
		embedder:  embedder,
		chunks:    chunks,
		glossary:  glossary,
		limiter:   newHostLimiter(cfg.RatePerHost),
		cfg:       cfg,
	}
}

// SetArchive enables raw-document archiving for subsequent crawls
func (c *Crawler) SetArchive(archive Archiver) {
	c.archive = archive
}

// pageResult is the outcome of one page's pipeline run
type pageResult struct {
	ref   pageRef
	links []string
	err   error
}

// Crawl walks the site rooted at rootURL. The root page is processed
// first and inline: if it cannot be fetched or extracted the whole crawl
// fails. Every other page failure is recorded and skipped. onProgress is
// called from the coordinator goroutine only.
func (c *Crawler) Crawl(ctx context.Context, rootURL string, onProgress func(Progress)) (Progress, error) {
	var progress Progress
	report := func() {
		if onProgress != nil {
			onProgress(progress)
		}
	}

	rootHost := hostOf(rootURL)
	if rootHost == "" {
		return progress, domain.ErrInvalidURL
	}

	f := newFrontier()
	f.push(rootURL, 0)
	progress.PagesDiscovered = 1
	report()

	rootRes := c.crawlPage(ctx, rootURL, pageRef{URL: rootURL, Depth: 0})
	if rootRes.err != nil {
		return progress, fmt.Errorf("%w: %v", domain.ErrRootFetchFailure, rootRes.err)
	}
	progress.PagesIndexed = 1
	c.enqueueLinks(f, rootHost, rootRes)
	progress.PagesDiscovered = f.seenCount()
	report()

	workCh := make(chan pageRef)
	resultCh := make(chan pageResult)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.cfg.Concurrency; i++ {
		g.Go(func() error {
			for ref := range workCh {
				res := c.crawlPage(gctx, rootURL, ref)
				select {
				case resultCh <- res:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	// Coordinator: dispatch from the frontier and fold results until the
	// frontier drains or the page cap is reached.
	dispatched := 1 // the root
	pending := 0
	var next *pageRef
	f.pop() // drop the root entry, it was processed inline
	if ref, ok := f.pop(); ok {
		next = &ref
	}

	for (next != nil || pending > 0) && ctx.Err() == nil {
		if next != nil && dispatched < c.cfg.MaxPages {
			select {
			case <-ctx.Done():
			case workCh <- *next:
				dispatched++
				pending++
				next = nil
			case res := <-resultCh:
				pending--
				c.foldResult(f, rootHost, res, &progress)
				report()
			}
		} else if pending > 0 {
			select {
			case <-ctx.Done():
			case res := <-resultCh:
				pending--
				c.foldResult(f, rootHost, res, &progress)
				report()
			}
		} else {
			// Frontier has work but the page cap is reached.
			break
		}
		if next == nil && dispatched < c.cfg.MaxPages {
			if ref, ok := f.pop(); ok {
				next = &ref
			}
		}
	}

	close(workCh)
	waitErr := g.Wait()
	close(resultCh)

	if err := ctx.Err(); err != nil {
		return progress, err
	}
	if waitErr != nil {
		return progress, waitErr
	}
	return progress, nil
}

// foldResult records one finished page and feeds its links back into the
// frontier
func (c *Crawler) foldResult(f *frontier, rootHost string, res pageResult, progress *Progress) {
	if res.err != nil {
		progress.PagesFailed++
		progress.LastError = fmt.Sprintf("%s: %v", res.ref.URL, res.err)
	} else {
		progress.PagesIndexed++
		c.enqueueLinks(f, rootHost, res)
	}
	if n := f.seenCount(); n > progress.PagesDiscovered {
		progress.PagesDiscovered = n
	}
}

func (c *Crawler) enqueueLinks(f *frontier, rootHost string, res pageResult) {
	if res.ref.Depth+1 > c.cfg.MaxDepth {
		return
	}
	for _, link := range res.links {
		norm, ok := admissible(rootHost, link)
		if !ok {
			continue
		}
		f.push(norm, res.ref.Depth+1)
	}
}

// crawlPage runs the full pipeline for one page. Chunks become visible
// only after the upsert succeeds, so a failed page contributes nothing.
func (c *Crawler) crawlPage(ctx context.Context, rootURL string, ref pageRef) pageResult {
	res := pageResult{ref: ref}

	if err := c.limiter.wait(ctx, hostOf(ref.URL)); err != nil {
		res.err = err
		return res
	}

	fetched, err := c.fetcher.Fetch(ctx, ref.URL)
	if err != nil {
		res.err = err
		return res
	}

	if c.archive != nil {
		if err := c.archive.PutRawDocument(ctx, ref.URL, fetched.ContentType, fetched.Body); err != nil {
			log.Printf("archive failed for %s: %v", ref.URL, err)
		}
	}

	content, err := c.extractor.Extract(ctx, fetched.FinalURL, fetched.Body, fetched.ContentType)
	if err != nil {
		res.err = err
		return res
	}
	res.links = content.Links

	text := strings.TrimSpace(content.Text)
	if text == "" {
		return res
	}

	chunks := service.BuildChunks(rootURL, ref.URL, text, c.cfg.Chunk, time.Now())
	for _, chunk := range chunks {
		embedding, err := c.embedder.GenerateEmbedding(ctx, chunk.Text)
		if err != nil {
			res.err = fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
			return res
		}
		chunk.Embedding = embedding
	}
	if len(chunks) > 0 {
		if err := c.chunks.Upsert(ctx, chunks); err != nil {
			res.err = err
			return res
		}
	}

	if concepts := service.ExtractConcepts(text); len(concepts) > 0 {
		if err := c.glossary.Merge(ctx, rootURL, concepts); err != nil {
			res.err = err
			return res
		}
	}

	return res
}

// admissible normalizes a discovered link and checks it stays on the
// root's origin
func admissible(rootHost, link string) (string, bool) {
	norm, err := domain.NormalizeURL(link)
	if err != nil {
		return "", false
	}
	u, err := url.Parse(norm)
	if err != nil {
		return "", false
	}
	if !domain.SameOrigin(rootHost, u.Host) {
		return "", false
	}
	return norm, true
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
