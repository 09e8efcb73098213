package vector

import (
	"context"
)

// Metadata is the structured payload stored alongside each embedding. The
// field names are part of the search response contract.
type Metadata struct {
	Company            string `json:"company"`
	ProductCategory    string `json:"productCategory"`
	SubProductCategory string `json:"subProductCategory"`
	DateCreated        string `json:"dateCreated,omitempty"`
}

// Entry is one (text, metadata, vector) triple to upsert.
type Entry struct {
	ID       string
	Text     string
	Vector   []float32
	Metadata Metadata
}

// Match is one similarity search hit, in the index's native relevance order.
type Match struct {
	Text     string
	Metadata Metadata
	Score    float32
}

// Store is the interface for hosted vector index backends.
type Store interface {
	// Upsert writes entries to the index.
	Upsert(ctx context.Context, entries []Entry) error

	// Search returns the top-K nearest entries for the vector, ordered by
	// descending similarity. No minimum-score filtering is applied.
	Search(ctx context.Context, vec []float32, topK int) ([]Match, error)
}
