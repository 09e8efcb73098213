package ingest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/openintake/plaint/internal/storage"
	"github.com/openintake/plaint/internal/vector"
)

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) ([]float32, error)
}

func (m *mockEmbedder) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return m.embedFn(ctx, text)
}

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func enqueueTestComplaint(t *testing.T, store *storage.Store, text, dateCreated string) int64 {
	t.Helper()
	cat := "Credit card"
	rec, err := store.SaveComplaint(storage.NewComplaint{
		Company:         "Acme Bank",
		Complaint:       text,
		ProductCategory: &cat,
		IsComplaint:     true,
	})
	if err != nil {
		t.Fatalf("SaveComplaint: %v", err)
	}
	job, err := NewEmbedJob(rec.ID, dateCreated)
	if err != nil {
		t.Fatalf("NewEmbedJob: %v", err)
	}
	if err := store.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	return rec.ID
}

// resetRunAfter sets run_after to now so a failed job is immediately claimable.
func resetRunAfter(t *testing.T, store *storage.Store) {
	t.Helper()
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := store.DB().Exec(`UPDATE jobs SET run_after = ?`, now); err != nil {
		t.Fatalf("resetRunAfter: %v", err)
	}
}

func jobStatuses(t *testing.T, store *storage.Store) map[string]int {
	t.Helper()
	counts, err := store.JobCounts()
	if err != nil {
		t.Fatalf("JobCounts: %v", err)
	}
	return counts
}

func TestWorker_ProcessesBatch(t *testing.T) {
	store := openTestStore(t)
	for i := 0; i < 3; i++ {
		enqueueTestComplaint(t, store, fmt.Sprintf("complaint %d", i), "2024-03-15")
	}

	vectors := vector.NewMemoryStore()
	w := NewWorker(store, &mockEmbedder{
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			return []float32{0.1, 0.2, 0.3}, nil
		},
	}, vectors, 0)

	n, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if n != 3 {
		t.Fatalf("handled %d jobs, want 3", n)
	}
	if vectors.Len() != 3 {
		t.Fatalf("indexed %d vectors, want 3", vectors.Len())
	}
	if got := jobStatuses(t, store)["completed"]; got != 3 {
		t.Errorf("completed = %d, want 3", got)
	}

	matches, err := vectors.Search(context.Background(), []float32{0.1, 0.2, 0.3}, 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if matches[0].Metadata.DateCreated != "2024-03-15" {
		t.Errorf("DateCreated = %q, want payload value", matches[0].Metadata.DateCreated)
	}
	if matches[0].Metadata.Company != "Acme Bank" {
		t.Errorf("Company = %q", matches[0].Metadata.Company)
	}
}

func TestWorker_NoJobs(t *testing.T) {
	store := openTestStore(t)
	w := NewWorker(store, &mockEmbedder{}, vector.NewMemoryStore(), 0)

	n, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if n != 0 {
		t.Errorf("handled %d jobs, want 0", n)
	}
}

func TestWorker_RetryOnFailure(t *testing.T) {
	store := openTestStore(t)
	enqueueTestComplaint(t, store, "retry me", "")

	attempt := 0
	vectors := vector.NewMemoryStore()
	w := NewWorker(store, &mockEmbedder{
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			attempt++
			if attempt == 1 {
				return nil, fmt.Errorf("transient error")
			}
			return []float32{0.1, 0.2, 0.3}, nil
		},
	}, vectors, 0)

	ctx := context.Background()

	// 1st attempt fails and reschedules with backoff.
	n, err := w.RunOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RunOnce 1: n=%d err=%v", n, err)
	}
	if got := jobStatuses(t, store)["pending"]; got != 1 {
		t.Fatalf("pending after 1st fail = %d, want 1", got)
	}

	resetRunAfter(t, store)

	// 2nd attempt succeeds.
	n, err = w.RunOnce(ctx)
	if err != nil || n != 1 {
		t.Fatalf("RunOnce 2: n=%d err=%v", n, err)
	}
	if got := jobStatuses(t, store)["completed"]; got != 1 {
		t.Errorf("completed = %d, want 1", got)
	}
	if vectors.Len() != 1 {
		t.Errorf("indexed %d vectors, want 1", vectors.Len())
	}
}

func TestWorker_MaxRetriesExceeded(t *testing.T) {
	store := openTestStore(t)
	enqueueTestComplaint(t, store, "always fails", "")

	w := NewWorker(store, &mockEmbedder{
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			return nil, fmt.Errorf("permanent error")
		},
	}, vector.NewMemoryStore(), 0)

	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		n, err := w.RunOnce(ctx)
		if err != nil || n != 1 {
			t.Fatalf("RunOnce %d: n=%d err=%v", i, n, err)
		}
		if i < 3 {
			resetRunAfter(t, store)
		}
	}

	if got := jobStatuses(t, store)["failed"]; got != 1 {
		t.Errorf("failed = %d, want 1", got)
	}
}

func TestWorker_MissingComplaintFailsOnlyThatJob(t *testing.T) {
	store := openTestStore(t)
	enqueueTestComplaint(t, store, "good one", "")

	orphan, err := NewEmbedJob(99999, "")
	if err != nil {
		t.Fatalf("NewEmbedJob: %v", err)
	}
	orphan.MaxAttempts = 1
	if err := store.EnqueueJob(orphan); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	vectors := vector.NewMemoryStore()
	w := NewWorker(store, &mockEmbedder{
		embedFn: func(_ context.Context, _ string) ([]float32, error) {
			return []float32{1}, nil
		},
	}, vectors, 0)

	n, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if n != 2 {
		t.Fatalf("handled %d jobs, want 2", n)
	}

	counts := jobStatuses(t, store)
	if counts["completed"] != 1 || counts["failed"] != 1 {
		t.Errorf("counts = %v, want 1 completed and 1 failed", counts)
	}
	if vectors.Len() != 1 {
		t.Errorf("indexed %d vectors, want 1", vectors.Len())
	}
}
