package embedding

import (
	"fmt"
	"context"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/mkc-dev/mkc/internal/mkcerr"
)

// maxBatchSize is the GenAI API's per-request batch limit.
const maxBatchSize = 100

const defaultGenAIDimensions = 3072

func int32Ptr(i int32) *int32 { return &i }

// genAIEngine generates embeddings via Google's Gemini API. Adapted from
// codenerd's internal/embedding/genai.go, with OutputDimensionality
// exposed so callers can request a truncated, variable-dimension
// embedding (spec §9).
type genAIEngine struct {
	client   *genai.Client
	model    string
	taskType string
	dims     int32
	log      *zap.Logger
}

func newGenAIEngine(apiKey, model, taskType string, log *zap.Logger) (*genAIEngine, error) {
	if apiKey == "" {
		return nil, mkcerr.New(mkcerr.ConfigurationError, "embedding.GenAI.New", "GenAI API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	if taskType == "" {
		taskType = "SEMANTIC_SIMILARITY"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.ConfigurationError, "embedding.GenAI.New", "", err)
	}

	return &genAIEngine{
		client:   client,
		model:    model,
		taskType: taskType,
		dims:     defaultGenAIDimensions,
		log:      log,
	}, nil
}

// WithDimensions returns a copy of the engine requesting a smaller
// OutputDimensionality — the truncated-prefix variable-dimension path
// from spec §9. Callers must mark resulting vectors as truncated.
func (e *genAIEngine) WithDimensions(dims int32) *genAIEngine {
	clone := *e
	clone.dims = dims
	return &clone
}

func (e *genAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents,
		&genai.EmbedContentConfig{OutputDimensionality: int32Ptr(e.dims)})
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.EmbeddingFailed, "embedding.GenAI.Embed", "", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, mkcerr.New(mkcerr.EmbeddingFailed, "embedding.GenAI.Embed", "no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}

func (e *genAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) <= maxBatchSize {
		return e.embedChunk(ctx, texts)
	}

	numBatches := (len(texts) + maxBatchSize - 1) / maxBatchSize
	all := make([][]float32, 0, len(texts))
	for i := 0; i < numBatches; i++ {
		select {
		case <-ctx.Done():
			return nil, mkcerr.Wrap(mkcerr.Timeout, "embedding.GenAI.EmbedBatch", "", ctx.Err())
		default:
		}
		start, end := i*maxBatchSize, (i+1)*maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk, err := e.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d failed: %w", i+1, numBatches, err)
		}
		all = append(all, chunk...)
	}
	return all, nil
}

func (e *genAIEngine) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents,
		&genai.EmbedContentConfig{OutputDimensionality: int32Ptr(e.dims)})
	if err != nil {
		return nil, mkcerr.Wrap(mkcerr.EmbeddingFailed, "embedding.GenAI.EmbedBatch", "", err)
	}
	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

func (e *genAIEngine) Dimensions() int { return int(e.dims) }
func (e *genAIEngine) Name() string    { return fmt.Sprintf("genai:%s", e.model) }
