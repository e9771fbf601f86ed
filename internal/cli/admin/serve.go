package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/sitelore-ai/sitelore/internal/api/handlers"
	"github.com/sitelore-ai/sitelore/internal/config"
	"github.com/sitelore-ai/sitelore/internal/crawler"
	"github.com/sitelore-ai/sitelore/internal/database"
	"github.com/sitelore-ai/sitelore/internal/embed"
	"github.com/sitelore-ai/sitelore/internal/extract"
	"github.com/sitelore-ai/sitelore/internal/fetch"
	"github.com/sitelore-ai/sitelore/internal/jobs"
	"github.com/sitelore-ai/sitelore/internal/openai"
	"github.com/sitelore-ai/sitelore/internal/repository"
	"github.com/sitelore-ai/sitelore/internal/server"
	"github.com/sitelore-ai/sitelore/internal/service"
	"github.com/sitelore-ai/sitelore/internal/storage"
	"github.com/sitelore-ai/sitelore/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the sitelore API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	sourceRepo := repository.NewSourceRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	glossaryRepo := repository.NewGlossaryRepository(pool)
	sessionRepo := repository.NewSessionRepository(pool)

	// Embeddings come from OpenAI when a key is configured; otherwise the
	// local feature-hash embedder keeps the index fully self-contained.
	var embedder service.Embedder
	var completer service.Completer
	if cfg.HasOpenAI() {
		client := openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			CompletionModel:     cfg.OpenAIModel,
			EmbeddingDimensions: cfg.EmbeddingDimensions,
		})
		embedder = client
		completer = client
		log.Println("using OpenAI embeddings and completions")
	} else {
		embedder = embed.NewLocal(cfg.EmbeddingDimensions)
		completer = &noOpCompleter{}
		log.Println("no OpenAI key configured: using local embeddings, chat completion disabled")
	}

	glossarySvc := service.NewGlossaryService(glossaryRepo)
	retrievalSvc := service.NewRetrievalService(embedder, chunkRepo, glossarySvc, service.RetrievalConfig{
		TopK:             cfg.RetrievalTopK,
		MinScore:         cfg.RetrievalMinScore,
		HistoryTurnPairs: cfg.HistoryTurnPairs,
	})
	chatSvc := service.NewChatService(sessionRepo, retrievalSvc, completer)

	fetcher := fetch.NewClient(fetch.Config{
		Timeout:   cfg.FetchTimeout,
		UserAgent: cfg.FetchUserAgent,
	})
	siteCrawler := crawler.New(fetcher, extract.NewExtractor(), embedder, chunkRepo, glossarySvc, crawler.Config{
		MaxDepth:    cfg.CrawlMaxDepth,
		MaxPages:    cfg.CrawlMaxPages,
		Concurrency: cfg.CrawlConcurrency,
		RatePerHost: cfg.FetchRatePerHost,
		Chunk: service.ChunkConfig{
			MaxChars: cfg.ChunkMaxChars,
			MinChars: cfg.ChunkMinChars,
			Overlap:  cfg.ChunkOverlap,
		},
	})

	if cfg.HasS3() {
		archive, err := storage.NewArchive(ctx, storage.ArchiveConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create archive client: %w", err)
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure archive bucket: %w", err)
		}
		siteCrawler.SetArchive(archive)
		log.Printf("raw-document archive bucket '%s' ready", cfg.S3Bucket)
	}

	mgr := crawler.NewManager(sourceRepo, siteCrawler)

	// Crawls interrupted by a restart are re-queued by the resume worker.
	resumeWorker := jobs.NewWorker(jobs.NewCrawlResumeWorker(sourceRepo, mgr), 30*time.Second)
	go resumeWorker.Start(ctx)
	log.Println("crawl resume worker started")

	routerCfg := server.RouterConfig{
		ScrapeHandler:  handlers.NewScrapeHandler(mgr),
		ChatHandler:    handlers.NewChatHandler(chatSvc),
		SessionHandler: handlers.NewSessionHandler(chatSvc),
	}

	router := server.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	resumeWorker.Stop()
	mgr.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// noOpCompleter rejects every completion so the transcript records the
// failure instead of hanging without an answer source.
type noOpCompleter struct{}

func (*noOpCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	return "", fmt.Errorf("completion service not configured: SITELORE_OPENAI_API_KEY required")
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
