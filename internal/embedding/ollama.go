package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mkc-dev/mkc/internal/mkcerr"
)

// ollamaEngine generates embeddings using a local Ollama server. Adapted
// from codenerd's internal/embedding/ollama.go.
type ollamaEngine struct {
	endpoint string
	model    string
	client   *http.Client
	dims     int
	log      *zap.Logger
}

func newOllamaEngine(endpoint, model string, log *zap.Logger) (*ollamaEngine, error) {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = "embeddinggemma"
	}
	return &ollamaEngine{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 30 * time.Second},
		log:      log,
	}, nil
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func (e *ollamaEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	req := ollamaEmbedRequest{Model: e.model, Prompt: text}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.EmbeddingFailed, "embedding.Ollama.Embed", "", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.EmbeddingFailed, "embedding.Ollama.Embed", "", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		e.log.Warn("ollama embed request failed", zap.Error(err))
		return nil, mkcerr.Wrap(mkcerr.EmbeddingFailed, "embedding.Ollama.Embed", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, mkcerr.New(mkcerr.EmbeddingFailed, "embedding.Ollama.Embed",
			fmt.Sprintf("ollama returned status %d: %s", resp.StatusCode, string(data)))
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, mkcerr.Wrap(mkcerr.EmbeddingFailed, "embedding.Ollama.Embed", "", err)
	}

	if e.dims == 0 {
		e.dims = len(out.Embedding)
	}
	return out.Embedding, nil
}

func (e *ollamaEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *ollamaEngine) Dimensions() int { return e.dims }
func (e *ollamaEngine) Name() string    { return "ollama:" + e.model }

func (e *ollamaEngine) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint+"/api/tags", nil)
	if err != nil {
		return mkcerr.Wrap(mkcerr.EmbeddingFailed, "embedding.Ollama.HealthCheck", "", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return mkcerr.Wrap(mkcerr.EmbeddingFailed, "embedding.Ollama.HealthCheck", "", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return mkcerr.New(mkcerr.EmbeddingFailed, "embedding.Ollama.HealthCheck",
			fmt.Sprintf("unhealthy status %d", resp.StatusCode))
	}
	return nil
}
