//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitelore-ai/sitelore/internal/api/handlers"
	"github.com/sitelore-ai/sitelore/internal/crawler"
	"github.com/sitelore-ai/sitelore/internal/embed"
	"github.com/sitelore-ai/sitelore/internal/extract"
	"github.com/sitelore-ai/sitelore/internal/fetch"
	"github.com/sitelore-ai/sitelore/internal/repository"
	"github.com/sitelore-ai/sitelore/internal/server"
	"github.com/sitelore-ai/sitelore/internal/service"
	"github.com/sitelore-ai/sitelore/internal/testutil"
)

// embeddingDim must match the vector column width in migrations
const embeddingDim = 256

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	Manager      *crawler.Manager
	ServerURL    string
	ServerCloser func()
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with a database
// container and an in-process server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, mgr, serverCloser := startServer(t, pool, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		Pool:         pool,
		Manager:      mgr,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, int, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, int, error) {
	return e.doRequest("POST", path, body)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path string) (*APIResponse, int, error) {
	return e.doRequest("DELETE", path, nil)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, int, error) {
	endpoint := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, endpoint, reqBody)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	if len(respBody) == 0 {
		return &APIResponse{}, resp.StatusCode, nil
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return &apiResp, resp.StatusCode, nil
}

// WaitForCrawl polls the status endpoint until the crawl leaves a live
// state or the timeout elapses, returning the terminal status string.
func (e *E2ETestEnv) WaitForCrawl(sourceURL string, timeout time.Duration) string {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, code, err := e.Get("/scrape/status?url=" + url.QueryEscape(sourceURL))
		if err == nil && code == http.StatusOK {
			var status struct {
				Status string `json:"status"`
			}
			if json.Unmarshal(resp.Data, &status) == nil {
				if status.Status != "queued" && status.Status != "running" {
					return status.Status
				}
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	e.T.Fatalf("crawl of %s did not finish within %v", sourceURL, timeout)
	return ""
}

// startServer wires the full stack against the test database
func startServer(t *testing.T, pool *pgxpool.Pool, port int) (string, *crawler.Manager, func()) {
	sourceRepo := repository.NewSourceRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	glossaryRepo := repository.NewGlossaryRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)

	embedder := embed.NewLocal(embeddingDim)
	glossarySvc := service.NewGlossaryService(glossaryRepo)
	retrievalSvc := service.NewRetrievalService(embedder, chunkRepo, glossarySvc, service.RetrievalConfig{
		TopK:             5,
		MinScore:         0,
		HistoryTurnPairs: 5,
	})
	chatSvc := service.NewChatService(sessionRepo, retrievalSvc, &echoCompleter{})

	fetcher := fetch.NewClient(fetch.Config{Timeout: 5 * time.Second, UserAgent: "sitelore-e2e/1.0"})
	siteCrawler := crawler.New(fetcher, extract.NewExtractor(), embedder, chunkRepo, glossarySvc, crawler.Config{
		MaxDepth:    2,
		MaxPages:    50,
		Concurrency: 4,
		RatePerHost: 100,
	})
	mgr := crawler.NewManager(sourceRepo, siteCrawler)

	router := server.NewRouter(server.RouterConfig{
		ScrapeHandler:  handlers.NewScrapeHandler(mgr),
		ChatHandler:    handlers.NewChatHandler(chatSvc),
		SessionHandler: handlers.NewSessionHandler(chatSvc),
	})

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, mgr, func() {
		mgr.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, baseURL string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

var sourceTagRe = regexp.MustCompile(`\[Source: ([^\]]+)\]`)

// echoCompleter answers by restating the page URLs found in the prompt's
// context tags, which makes citation behavior observable without a real
// completion backend.
type echoCompleter struct{}

func (*echoCompleter) Complete(_ context.Context, _ string, prompt string) (string, error) {
	matches := sourceTagRe.FindAllStringSubmatch(prompt, -1)
	if len(matches) == 0 {
		return "The indexed content does not cover that question.", nil
	}

	seen := make(map[string]struct{})
	var urls []string
	for _, m := range matches {
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		urls = append(urls, m[1])
	}
	return "According to " + strings.Join(urls, " and ") + ", that is covered by the documentation.", nil
}
