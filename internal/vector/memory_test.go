package vector

import (
	"context"
	"testing"
)

func TestMemoryStore_SearchOrdersByDescendingSimilarity(t *testing.T) {
	s := NewMemoryStore()
	err := s.Upsert(context.Background(), []Entry{
		{ID: "a", Text: "far", Vector: []float32{0, 1}},
		{ID: "b", Text: "near", Vector: []float32{1, 0.1}},
		{ID: "c", Text: "exact", Vector: []float32{1, 0}},
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	matches, err := s.Search(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("len = %d, want 3", len(matches))
	}
	if matches[0].Text != "exact" || matches[1].Text != "near" || matches[2].Text != "far" {
		t.Errorf("order = %q, %q, %q", matches[0].Text, matches[1].Text, matches[2].Text)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("scores not descending: %v", matches)
		}
	}
}

func TestMemoryStore_TopKBound(t *testing.T) {
	s := NewMemoryStore()
	entries := make([]Entry, 5)
	for i := range entries {
		entries[i] = Entry{ID: string(rune('a' + i)), Vector: []float32{float32(i + 1), 1}}
	}
	if err := s.Upsert(context.Background(), entries); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	matches, err := s.Search(context.Background(), []float32{1, 1}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("len = %d, want exactly topK", len(matches))
	}
}

func TestMemoryStore_UpsertOverwrites(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Upsert(ctx, []Entry{{ID: "a", Text: "old", Vector: []float32{1, 0}}})
	s.Upsert(ctx, []Entry{{ID: "a", Text: "new", Vector: []float32{1, 0}}})

	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	matches, _ := s.Search(ctx, []float32{1, 0}, 1)
	if matches[0].Text != "new" {
		t.Errorf("Text = %q, want overwritten value", matches[0].Text)
	}
}
