package search

import (
	"context"
	"fmt"

	"github.com/openintake/plaint/internal/vector"
)

// QueryEmbedder embeds search queries. The model and dimensionality must
// match what the write path used, or the index returns nonsense.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the query gateway: free text in, top-K similar complaints out.
type Searcher struct {
	embedder QueryEmbedder
	store    vector.Store
}

// New creates a Searcher backed by the given embedder and vector store.
func New(embedder QueryEmbedder, store vector.Store) *Searcher {
	return &Searcher{embedder: embedder, store: store}
}

// Search embeds the query and returns up to topK matches in the store's
// native relevance order. A topK of zero or less falls back to 5; backends
// take an unsigned count.
func (s *Searcher) Search(ctx context.Context, query string, topK int) ([]vector.Match, error) {
	if topK <= 0 {
		topK = 5
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := s.store.Search(ctx, vec, topK)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	return matches, nil
}
