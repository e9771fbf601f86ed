package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultCompletionModel is the model used for answering questions
	DefaultCompletionModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is used when the caller configures an embedding
	// width; text-embedding-3 models honor the Dimensions request field
	DefaultEmbeddingModel = openai.SmallEmbedding3
	// LegacyEmbeddingModel is the fallback when no width is configured;
	// ada-002 emits a fixed 1536 and rejects the Dimensions field
	LegacyEmbeddingModel = openai.AdaEmbeddingV2
	// LegacyEmbeddingDimensions is ada-002's fixed output width
	LegacyEmbeddingDimensions = 1536

	// completionRetries bounds retries against transient API failures
	completionRetries = 2
	retryBackoff      = 500 * time.Millisecond
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
)

// CompletionAPI defines the interface for chat completion calls
type CompletionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
}

// Config holds client configuration
type Config struct {
	APIKey              string
	CompletionModel     string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
}

// Client wraps the OpenAI API for completions and embeddings
type Client struct {
	completions CompletionAPI
	embeddings  EmbeddingAPI
	model       string
	dimensions  int
}

type embeddingAdapter struct {
	client *openai.Client
	model  openai.EmbeddingModel
	// dimensions is forwarded on the request when set so the model
	// reduces its output to the configured width; zero omits the field
	// for models that reject it
	dimensions int
}

func (a *embeddingAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      a.model,
		Dimensions: a.dimensions,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// NewClient creates a new OpenAI client using defaults
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration
func NewClientWithConfig(cfg Config) *Client {
	model := cfg.CompletionModel
	if model == "" {
		model = DefaultCompletionModel
	}
	embeddingModel := cfg.EmbeddingModel
	dimensions := cfg.EmbeddingDimensions
	requestDimensions := dimensions
	switch {
	case dimensions > 0:
		if embeddingModel == "" {
			embeddingModel = DefaultEmbeddingModel
		}
	default:
		if embeddingModel == "" {
			embeddingModel = LegacyEmbeddingModel
		}
		dimensions = LegacyEmbeddingDimensions
		requestDimensions = 0
	}

	api := openai.NewClient(cfg.APIKey)
	return &Client{
		completions: api,
		embeddings:  &embeddingAdapter{client: api, model: embeddingModel, dimensions: requestDimensions},
		model:       model,
		dimensions:  dimensions,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// Complete sends the assembled prompt payload to the completion model and
// returns its raw answer text. Transient failures are retried a bounded
// number of times with backoff before the error is surfaced.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	if prompt == "" {
		return "", ErrEmptyText
	}

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	var lastErr error
	for attempt := 0; attempt <= completionRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryBackoff * time.Duration(attempt)):
			}
		}

		resp, err := c.completions.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = errors.New("no completion choices returned")
			continue
		}
		return resp.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("completion failed after %d attempts: %w", completionRetries+1, lastErr)
}

// GenerateEmbedding generates an embedding for the given text via the
// OpenAI API. Most deployments use the local deterministic embedder
// instead; this adapter exists for setups that prefer hosted embeddings.
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	embedding, err := c.embeddings.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(embedding) != c.dimensions {
		return nil, ErrWrongDimensions
	}

	return embedding, nil
}
