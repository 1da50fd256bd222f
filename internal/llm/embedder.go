// Package llm wraps the langchaingo embedding and chat models behind the
// two narrow surfaces the rest of the system needs: vector embedding and
// answer synthesis.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/philippgille/chromem-go"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"sopgraph/internal/config"
)

// Embedder produces chunk vectors through a langchaingo provider and
// rejects vectors whose dimension disagrees with the configured index.
type Embedder struct {
	inner     embeddings.Embedder
	dimension int
	modelName string
}

// NewEmbedder picks the provider from configuration.
func NewEmbedder(cfg config.Config) (*Embedder, error) {
	inner, err := newProviderEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	return &Embedder{
		inner:     inner,
		dimension: cfg.EmbedDimension,
		modelName: cfg.EmbedModel,
	}, nil
}

func newProviderEmbedder(cfg config.Config) (embeddings.Embedder, error) {
	switch cfg.EmbedProvider {
	case config.ProviderOllama:
		client, err := ollama.New(
			ollama.WithModel(cfg.EmbedModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		return embeddings.NewEmbedder(client)

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		client, err := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithEmbeddingModel(cfg.EmbedModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return embeddings.NewEmbedder(client)

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.EmbedProvider)
	}
}

// EmbedBatch embeds texts in one provider round trip.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	start := time.Now()
	vectors, err := e.inner.EmbedDocuments(ctx, texts)
	if err != nil {
		slog.Warn("embedding failed", "model", e.modelName, "texts", len(texts), "error", err)
		return nil, fmt.Errorf("embed %d texts: %w", len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != e.dimension {
			return nil, fmt.Errorf("embedding %d dimension mismatch: got %d, want %d", i, len(v), e.dimension)
		}
	}
	slog.Debug("embedding complete", "model", e.modelName, "texts", len(texts), "duration_ms", time.Since(start).Milliseconds())
	return vectors, nil
}

// EmbeddingFunc adapts the embedder to the chunk index's callback shape.
func (e *Embedder) EmbeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vectors, err := e.EmbedBatch(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vectors) == 0 {
			return nil, fmt.Errorf("no embedding returned")
		}
		return vectors[0], nil
	}
}

// ModelName returns the embedding model in use.
func (e *Embedder) ModelName() string { return e.modelName }

// Dimension returns the expected embedding dimension.
func (e *Embedder) Dimension() int { return e.dimension }
