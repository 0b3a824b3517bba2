// Package embedding turns question text into fixed-dimension vectors for
// semantic similarity search.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/doculord/doculord/pkg/resilience"
)

// Provider generates dense vector embeddings.
type Provider interface {
	// EmbedText embeds a single text.
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// EmbedTexts embeds a batch; the i-th vector corresponds to the i-th
	// text. An empty batch returns an empty slice without a provider call.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the configured vector dimension.
	Dimensions() int
}

// Config selects the embedding backend.
type Config struct {
	Provider        string // "ollama" or "openai"
	Model           string
	Dimensions      int
	OllamaServerURL string
}

// LoadConfigFromEnv reads the EMBEDDING_* environment variables.
func LoadConfigFromEnv() (Config, error) {
	cfg := Config{
		Provider:        getEnv("EMBEDDING_PROVIDER", "ollama"),
		Model:           getEnv("EMBEDDING_MODEL", "all-minilm"),
		Dimensions:      384,
		OllamaServerURL: os.Getenv("OLLAMA_SERVER_URL"),
	}
	if v := os.Getenv("EMBEDDING_DIMENSIONS"); v != "" {
		dims, err := strconv.Atoi(v)
		if err != nil || dims <= 0 {
			return Config{}, fmt.Errorf("invalid EMBEDDING_DIMENSIONS %q", v)
		}
		cfg.Dimensions = dims
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// provider wraps a langchaingo embedder with retry and a circuit breaker.
type provider struct {
	embedder   embeddings.Embedder
	dimensions int
	breaker    *resilience.CircuitBreaker
	retryCfg   resilience.RetryConfig
}

// NewProvider creates the embedding provider named by cfg.Provider.
func NewProvider(cfg Config) (Provider, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("Embedding provider initialized",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"dimensions", cfg.Dimensions)
	return &provider{
		embedder:   embedder,
		dimensions: cfg.Dimensions,
		breaker:    resilience.GetBreaker("embedding"),
		retryCfg: resilience.RetryConfig{
			MaxRetries:      2,
			BaseDelay:       1 * time.Second,
			ExponentialBase: 2.0,
		},
	}, nil
}

func newEmbedder(cfg Config) (embeddings.Embedder, error) {
	switch cfg.Provider {
	case "openai":
		client, err := openai.New(
			openai.WithEmbeddingModel(cfg.Model),
			openai.WithToken(os.Getenv("OPENAI_API_KEY")),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI embedding client: %w", err)
		}
		return embeddings.NewEmbedder(client)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.OllamaServerURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.OllamaServerURL))
		}
		client, err := ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama embedding client: %w", err)
		}
		return embeddings.NewEmbedder(client)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (want \"ollama\" or \"openai\")", cfg.Provider)
	}
}

func (p *provider) Dimensions() int { return p.dimensions }

func (p *provider) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *provider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	return p.embed(ctx, texts)
}

func (p *provider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := p.breaker.Check(); err != nil {
		return nil, err
	}

	var vectors [][]float32
	err := resilience.Do(ctx, p.retryCfg, "embedding", func(error) bool { return true }, func(ctx context.Context) error {
		result, err := p.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return resilience.Transient(err)
		}
		vectors = result
		return nil
	})
	p.breaker.Observe(err)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d texts", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != p.dimensions {
			return nil, fmt.Errorf("embedding %d has dimension %d, model configured for %d", i, len(v), p.dimensions)
		}
	}
	return vectors, nil
}
