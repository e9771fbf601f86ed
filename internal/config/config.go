package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Crawling
	CrawlMaxDepth    int           `envconfig:"CRAWL_MAX_DEPTH" default:"2"`
	CrawlMaxPages    int           `envconfig:"CRAWL_MAX_PAGES" default:"200"`
	CrawlConcurrency int           `envconfig:"CRAWL_CONCURRENCY" default:"8"`
	FetchTimeout     time.Duration `envconfig:"FETCH_TIMEOUT" default:"10s"`
	FetchUserAgent   string        `envconfig:"FETCH_USER_AGENT" default:"sitelore-crawler/1.0"`
	FetchRatePerHost float64       `envconfig:"FETCH_RATE_PER_HOST" default:"4"`

	// Chunking
	ChunkMaxChars int `envconfig:"CHUNK_MAX_CHARS" default:"1200"`
	ChunkMinChars int `envconfig:"CHUNK_MIN_CHARS" default:"200"`
	ChunkOverlap  int `envconfig:"CHUNK_OVERLAP" default:"200"`

	// Retrieval
	RetrievalTopK     int     `envconfig:"RETRIEVAL_TOP_K" default:"5"`
	RetrievalMinScore float64 `envconfig:"RETRIEVAL_MIN_SCORE" default:"0.15"`
	HistoryTurnPairs  int     `envconfig:"HISTORY_TURN_PAIRS" default:"5"`

	// Embeddings: dimensions of the local deterministic embedder
	EmbeddingDimensions int `envconfig:"EMBEDDING_DIMENSIONS" default:"256"`

	// Completion service
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel  string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`

	// Optional raw-document archive
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"sitelore-raw"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("SITELORE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
