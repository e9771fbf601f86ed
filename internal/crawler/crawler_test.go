package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitelore-ai/sitelore/internal/domain"
	"github.com/sitelore-ai/sitelore/internal/embed"
	"github.com/sitelore-ai/sitelore/internal/extract"
	"github.com/sitelore-ai/sitelore/internal/fetch"
	"github.com/sitelore-ai/sitelore/internal/service"
)

type fakeChunkStore struct {
	mu     sync.Mutex
	chunks map[string]*domain.Chunk
}

func newFakeChunkStore() *fakeChunkStore {
	return &fakeChunkStore{chunks: make(map[string]*domain.Chunk)}
}

func (s *fakeChunkStore) Upsert(_ context.Context, chunks []*domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		s.chunks[c.ID] = c
	}
	return nil
}

func (s *fakeChunkStore) pages() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	pages := make(map[string]int)
	for _, c := range s.chunks {
		pages[c.PageURL]++
	}
	return pages
}

type fakeGlossary struct {
	mu       sync.Mutex
	concepts map[string][]service.Concept
}

func newFakeGlossary() *fakeGlossary {
	return &fakeGlossary{concepts: make(map[string][]service.Concept)}
}

func (g *fakeGlossary) Merge(_ context.Context, sourceURL string, concepts []service.Concept) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.concepts[sourceURL] = append(g.concepts[sourceURL], concepts...)
	return nil
}

func (g *fakeGlossary) terms(sourceURL string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var terms []string
	for _, c := range g.concepts[sourceURL] {
		terms = append(terms, c.Term)
	}
	return terms
}

func page(title, body string) string {
	return fmt.Sprintf(`<html><head><title>%s</title></head><body>
<nav><a href="/ignored-by-extraction">nav</a></nav>
%s
</body></html>`, title, body)
}

func testCrawler(chunks ChunkStore, glossary GlossaryMerger, cfg Config) *Crawler {
	fetcher := fetch.NewClient(fetch.Config{Timeout: 2 * time.Second, UserAgent: "test-crawler/1.0"})
	return New(fetcher, extract.NewExtractor(), embed.NewLocal(64), chunks, glossary, cfg)
}

func TestCrawler_IndexesThreePageSite(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, page("home", `<p>Welcome to the product documentation portal for our customers.</p>
<a href="/pricing">pricing</a> <a href="/terms">terms</a>`))
	})
	mux.HandleFunc("/pricing", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("pricing", `<p>Plans are billed monthly under the SLA (Service Level Agreement) published here.</p>`))
	})
	mux.HandleFunc("/terms", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("terms", `<p>These terms of service apply to every subscription and renewal.</p>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := newFakeChunkStore()
	glossary := newFakeGlossary()
	c := testCrawler(store, glossary, Config{MaxDepth: 2, MaxPages: 50, Concurrency: 2, RatePerHost: 100})

	var snapshots []Progress
	progress, err := c.Crawl(context.Background(), srv.URL, func(p Progress) {
		snapshots = append(snapshots, p)
	})
	require.NoError(t, err)

	assert.Equal(t, 3, progress.PagesIndexed)
	assert.Equal(t, 0, progress.PagesFailed)
	assert.GreaterOrEqual(t, progress.PagesDiscovered, 3)

	pages := store.pages()
	assert.Len(t, pages, 3)
	assert.Contains(t, pages, srv.URL+"/pricing")
	assert.Contains(t, glossary.terms(srv.URL), "SLA")

	// Progress only moves forward and the estimate never undercounts.
	prev := Progress{}
	for _, p := range snapshots {
		assert.GreaterOrEqual(t, p.PagesIndexed, prev.PagesIndexed)
		assert.GreaterOrEqual(t, p.PagesDiscovered, p.PagesIndexed)
		prev = p
	}
}

func TestCrawler_PerPageFailureContinues(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("home", `<p>Start here for an overview of everything we ship.</p>
<a href="/ok">ok</a> <a href="/broken">broken</a>`))
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("ok", `<p>This page loads fine and gets indexed normally.</p>`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	store := newFakeChunkStore()
	c := testCrawler(store, newFakeGlossary(), Config{MaxDepth: 2, MaxPages: 50, Concurrency: 2, RatePerHost: 100})

	progress, err := c.Crawl(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, progress.PagesIndexed)
	assert.Equal(t, 1, progress.PagesFailed)
	assert.Contains(t, progress.LastError, "/broken")
	assert.NotContains(t, store.pages(), srv.URL+"/broken")
}

func TestCrawler_RootFailureFailsCrawl(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testCrawler(newFakeChunkStore(), newFakeGlossary(), Config{Concurrency: 2, RatePerHost: 100})

	_, err := c.Crawl(context.Background(), srv.URL, nil)
	assert.ErrorIs(t, err, domain.ErrRootFetchFailure)
}

func TestCrawler_StaysOnOrigin(t *testing.T) {
	var othersHit int32
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&othersHit, 1)
		fmt.Fprint(w, page("other", `<p>External content that must never be crawled.</p>`))
	}))
	defer other.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("home", fmt.Sprintf(`<p>Internal documentation landing page for the crawler.</p>
<a href=%q>external</a> <a href="/local">local</a>`, other.URL+"/page")))
	})
	mux.HandleFunc("/local", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("local", `<p>Only local pages belong to this source's index.</p>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testCrawler(newFakeChunkStore(), newFakeGlossary(), Config{MaxDepth: 2, MaxPages: 50, Concurrency: 2, RatePerHost: 100})

	progress, err := c.Crawl(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, progress.PagesIndexed)
	assert.Zero(t, atomic.LoadInt32(&othersHit))
}

func TestCrawler_DepthCap(t *testing.T) {
	deepHit := false
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("home", `<p>Top of the site hierarchy with a single child.</p><a href="/mid">mid</a>`))
	})
	mux.HandleFunc("/mid", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("mid", `<p>One level down, links further into the site.</p><a href="/deep">deep</a>`))
	})
	mux.HandleFunc("/deep", func(w http.ResponseWriter, r *http.Request) {
		deepHit = true
		fmt.Fprint(w, page("deep", `<p>Too deep for the configured crawl.</p>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testCrawler(newFakeChunkStore(), newFakeGlossary(), Config{MaxDepth: 1, MaxPages: 50, Concurrency: 2, RatePerHost: 100})

	progress, err := c.Crawl(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, progress.PagesIndexed)
	assert.False(t, deepHit)
}

func TestCrawler_PageCap(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body := `<p>Hub page linking to many children for cap testing.</p>`
		for i := 0; i < 20; i++ {
			body += fmt.Sprintf(`<a href="/page-%d">p%d</a> `, i, i)
		}
		fmt.Fprint(w, page("hub", body))
	})
	for i := 0; i < 20; i++ {
		i := i
		mux.HandleFunc(fmt.Sprintf("/page-%d", i), func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, page("child", fmt.Sprintf(`<p>Child page number %d with enough words to chunk.</p>`, i)))
		})
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testCrawler(newFakeChunkStore(), newFakeGlossary(), Config{MaxDepth: 2, MaxPages: 5, Concurrency: 2, RatePerHost: 100})

	progress, err := c.Crawl(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	assert.LessOrEqual(t, progress.PagesIndexed+progress.PagesFailed, 5)
	assert.GreaterOrEqual(t, progress.PagesDiscovered, progress.PagesIndexed)
}

type fakeArchive struct {
	mu   sync.Mutex
	docs map[string][]byte
	fail bool
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{docs: make(map[string][]byte)}
}

func (a *fakeArchive) PutRawDocument(_ context.Context, pageURL, _ string, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return fmt.Errorf("archive unavailable")
	}
	a.docs[pageURL] = append([]byte(nil), body...)
	return nil
}

func (a *fakeArchive) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.docs)
}

func TestCrawler_ArchivesRawDocuments(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("home", `<p>Landing page whose raw HTML lands in the archive.</p><a href="/about">about</a>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("about", `<p>About page, also archived verbatim.</p>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	archive := newFakeArchive()
	c := testCrawler(newFakeChunkStore(), newFakeGlossary(), Config{MaxDepth: 2, MaxPages: 50, Concurrency: 2, RatePerHost: 100})
	c.SetArchive(archive)

	progress, err := c.Crawl(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, progress.PagesIndexed)
	assert.Equal(t, 2, archive.count())
}

func TestCrawler_ArchiveFailureDoesNotFailPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, page("home", `<p>Single page site, indexing must survive a dead archive.</p>`))
	}))
	defer srv.Close()

	archive := newFakeArchive()
	archive.fail = true

	store := newFakeChunkStore()
	c := testCrawler(store, newFakeGlossary(), Config{Concurrency: 2, RatePerHost: 100})
	c.SetArchive(archive)

	progress, err := c.Crawl(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, progress.PagesIndexed)
	assert.NotEmpty(t, store.pages())
}

func TestFrontier(t *testing.T) {
	f := newFrontier()

	assert.True(t, f.push("https://example.com", 0))
	assert.False(t, f.push("https://example.com", 0))
	assert.True(t, f.push("https://example.com/a", 1))
	assert.Equal(t, 2, f.seenCount())

	ref, ok := f.pop()
	require.True(t, ok)
	assert.Equal(t, "https://example.com", ref.URL)
	assert.Equal(t, 0, ref.Depth)

	ref, ok = f.pop()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/a", ref.URL)

	_, ok = f.pop()
	assert.False(t, ok)
}
