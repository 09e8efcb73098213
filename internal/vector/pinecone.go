package vector

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeStore implements Store against a hosted Pinecone index.
type PineconeStore struct {
	index *pinecone.IndexConnection
}

// NewPineconeStore connects to the index at host within the given namespace.
func NewPineconeStore(apiKey, host, namespace string) (*PineconeStore, error) {
	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating pinecone client: %w", err)
	}

	index, err := client.Index(pinecone.NewIndexConnParams{
		Host:      host,
		Namespace: namespace,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to pinecone index: %w", err)
	}

	return &PineconeStore{index: index}, nil
}

// Upsert writes entries to the index, carrying the text inside the metadata
// so search results can return it without a second lookup.
func (s *PineconeStore) Upsert(ctx context.Context, entries []Entry) error {
	vectors := make([]*pinecone.Vector, len(entries))
	for i, e := range entries {
		md, err := structpb.NewStruct(metadataMap(e.Text, e.Metadata))
		if err != nil {
			return fmt.Errorf("building metadata for %s: %w", e.ID, err)
		}
		vectors[i] = &pinecone.Vector{
			Id:       e.ID,
			Values:   e.Vector,
			Metadata: md,
		}
	}

	if _, err := s.index.UpsertVectors(ctx, vectors); err != nil {
		return fmt.Errorf("upserting vectors: %w", err)
	}
	return nil
}

// Search performs a nearest-neighbor query and returns matches in the
// index's native relevance order.
func (s *PineconeStore) Search(ctx context.Context, vec []float32, topK int) ([]Match, error) {
	resp, err := s.index.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vec,
		TopK:            uint32(topK),
		IncludeValues:   false,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}

	matches := make([]Match, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m.Vector == nil {
			continue
		}
		text, md := metadataFromStruct(m.Vector.Metadata)
		matches = append(matches, Match{
			Text:     text,
			Metadata: md,
			Score:    m.Score,
		})
	}
	return matches, nil
}

func metadataMap(text string, md Metadata) map[string]any {
	m := map[string]any{
		"text":               text,
		"company":            md.Company,
		"productCategory":    md.ProductCategory,
		"subProductCategory": md.SubProductCategory,
	}
	if md.DateCreated != "" {
		m["dateCreated"] = md.DateCreated
	}
	return m
}

func metadataFromStruct(s *structpb.Struct) (string, Metadata) {
	if s == nil {
		return "", Metadata{}
	}
	field := func(key string) string {
		if v, ok := s.Fields[key]; ok {
			return v.GetStringValue()
		}
		return ""
	}
	return field("text"), Metadata{
		Company:            field("company"),
		ProductCategory:    field("productCategory"),
		SubProductCategory: field("subProductCategory"),
		DateCreated:        field("dateCreated"),
	}
}
