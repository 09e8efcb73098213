package embed

import (
	"context"
	"fmt"

	"github.com/austinfhunter/voyageai"
	"golang.org/x/sync/errgroup"
)

// Dimensions is the output dimensionality of the embedding model. The
// vector index must be configured to match, on both write and query paths.
const Dimensions = 1024

// Model is the VoyageAI embedding model used for all embeddings.
const Model = "voyage-3.5-lite"

// InputType tells the model whether it is embedding stored content or a
// search query.
type InputType string

const (
	InputTypeDocument InputType = "document"
	InputTypeQuery    InputType = "query"
)

// VoyageEmbedder generates text embeddings via the VoyageAI API.
type VoyageEmbedder struct {
	client *voyageai.VoyageClient
}

// NewVoyageEmbedder creates a VoyageEmbedder with the given API key.
func NewVoyageEmbedder(apiKey string) *VoyageEmbedder {
	return &VoyageEmbedder{
		client: voyageai.NewClient(&voyageai.VoyageClientOpts{
			Key: apiKey,
		}),
	}
}

// Embed returns the embedding vector for a single text.
func (e *VoyageEmbedder) Embed(ctx context.Context, text string, inputType InputType) ([]float32, error) {
	dimensions := Dimensions
	it := string(inputType)
	res, err := e.client.Embed(
		[]string{text},
		Model,
		&voyageai.EmbeddingRequestOpts{
			InputType:       &it,
			OutputDimension: &dimensions,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("could not get embedding: %w", err)
	}
	if len(res.Data) == 0 {
		return nil, fmt.Errorf("no embedding data in response")
	}
	return res.Data[0].Embedding, nil
}

// EmbedDocument embeds text for storage in the vector index.
func (e *VoyageEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return e.Embed(ctx, text, InputTypeDocument)
}

// EmbedQuery embeds a search query.
func (e *VoyageEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.Embed(ctx, text, InputTypeQuery)
}

// DocumentEmbedder is the single-text write-path embedding dependency.
type DocumentEmbedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
}

// Batch embeds multiple documents concurrently with bounded parallelism.
// Returns nil (not error) for empty input.
func Batch(ctx context.Context, e DocumentEmbedder, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to stay inside the API rate limits.

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.EmbedDocument(gCtx, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
