// Package embedding provides the Embedding Service (spec §2, §9 "Vector
// dimension changes"): fixed-dimension vector generation from text, with
// per-tenant model binding and optional truncation to a smaller prefix.
// Adapted from codenerd's internal/embedding, which supports the same two
// backends (Ollama local, Google GenAI cloud) behind one interface.
package embedding

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/mkc-dev/mkc/internal/mkcerr"
)

// Engine generates vector embeddings for text.
type Engine interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Name() string
}

// HealthChecker is implemented by engines that can verify the backing
// service is reachable before a batch operation.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config selects and configures a backend.
type Config struct {
	Provider string // "ollama" or "genai"

	OllamaEndpoint string
	OllamaModel    string

	GenAIAPIKey string
	GenAIModel  string
	TaskType    string // "SEMANTIC_SIMILARITY", "RETRIEVAL_QUERY", "RETRIEVAL_DOCUMENT"
}

// DefaultConfig mirrors codenerd's DefaultConfig: local Ollama by default.
func DefaultConfig() Config {
	return Config{
		Provider:       "ollama",
		OllamaEndpoint: "http://localhost:11434",
		OllamaModel:    "embeddinggemma",
		GenAIModel:     "gemini-embedding-001",
		TaskType:       "SEMANTIC_SIMILARITY",
	}
}

// New builds an Engine from cfg.
func New(cfg Config, log *zap.Logger) (Engine, error) {
	switch cfg.Provider {
	case "ollama":
		return newOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel, log)
	case "genai":
		return newGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel, cfg.TaskType, log)
	default:
		return nil, mkcerr.New(mkcerr.ConfigurationError, "embedding.New",
			fmt.Sprintf("unsupported embedding provider %q (use 'ollama' or 'genai')", cfg.Provider))
	}
}

// CosineSimilarity computes cosine similarity between two equal-length
// vectors (spec §4.1 merge algorithm, §4.1 consolidation threshold).
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, mkcerr.New(mkcerr.VectorDimensionMismatch, "embedding.CosineSimilarity",
			fmt.Sprintf("vector dimension mismatch: %d != %d", len(a), len(b)))
	}
	var dot, am, bm float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		am += float64(a[i]) * float64(a[i])
		bm += float64(b[i]) * float64(b[i])
	}
	if am == 0 || bm == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(am) * math.Sqrt(bm)), nil
}

// Truncate returns the first dims components of v, used for
// variable-dimension embeddings (spec §9): the caller is responsible for
// marking the result as truncated and never mixing it with full-dimension
// vectors in the same nearest-neighbor query.
func Truncate(v []float32, dims int) []float32 {
	if dims <= 0 || dims >= len(v) {
		return v
	}
	out := make([]float32, dims)
	copy(out, v[:dims])
	return out
}
