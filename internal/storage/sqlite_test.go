package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func strPtr(s string) *string { return &s }

func TestSaveComplaint_AssignsIDAndCreatedAt(t *testing.T) {
	store := openTestStore(t)

	rec, err := store.SaveComplaint(NewComplaint{
		Company:            "Acme",
		Complaint:          "Charged twice for the same purchase",
		ProductCategory:    strPtr("Credit card"),
		ProductSubcategory: strPtr("Store credit card"),
		IsComplaint:        true,
	})
	if err != nil {
		t.Fatalf("SaveComplaint failed: %v", err)
	}

	if rec.ID == 0 {
		t.Error("ID not assigned")
	}
	if rec.CreatedAt.IsZero() {
		t.Error("CreatedAt not assigned")
	}
	if got := time.Since(rec.CreatedAt); got < 0 || got > time.Minute {
		t.Errorf("CreatedAt %v not close to now", rec.CreatedAt)
	}

	got, err := store.GetComplaint(rec.ID)
	if err != nil {
		t.Fatalf("GetComplaint failed: %v", err)
	}
	if got.Complaint != rec.Complaint {
		t.Errorf("Complaint = %q, want %q", got.Complaint, rec.Complaint)
	}
	if !got.IsComplaint {
		t.Error("IsComplaint not persisted")
	}
	if got.ProductCategory == nil || *got.ProductCategory != "Credit card" {
		t.Errorf("ProductCategory = %v, want Credit card", got.ProductCategory)
	}
}

func TestSaveComplaint_NullCategories(t *testing.T) {
	store := openTestStore(t)

	rec, err := store.SaveComplaint(NewComplaint{
		Company:   "Acme",
		Complaint: "Not really a complaint",
	})
	if err != nil {
		t.Fatalf("SaveComplaint failed: %v", err)
	}

	got, err := store.GetComplaint(rec.ID)
	if err != nil {
		t.Fatalf("GetComplaint failed: %v", err)
	}
	if got.ProductCategory != nil {
		t.Errorf("ProductCategory = %v, want nil", *got.ProductCategory)
	}
	if got.ProductSubcategory != nil {
		t.Errorf("ProductSubcategory = %v, want nil", *got.ProductSubcategory)
	}
}

func TestGetComplaint_NotFound(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.GetComplaint(12345); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListComplaints_Idempotent(t *testing.T) {
	store := openTestStore(t)

	for _, c := range []string{"first", "second", "third"} {
		if _, err := store.SaveComplaint(NewComplaint{Company: "Acme", Complaint: c, IsComplaint: true}); err != nil {
			t.Fatalf("SaveComplaint(%q) failed: %v", c, err)
		}
	}

	a, err := store.ListComplaints()
	if err != nil {
		t.Fatalf("ListComplaints failed: %v", err)
	}
	b, err := store.ListComplaints()
	if err != nil {
		t.Fatalf("second ListComplaints failed: %v", err)
	}

	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("lengths = %d, %d, want 3, 3", len(a), len(b))
	}
	seen := make(map[int64]string, len(a))
	for _, rec := range a {
		seen[rec.ID] = rec.Complaint
	}
	for _, rec := range b {
		if seen[rec.ID] != rec.Complaint {
			t.Errorf("record %d differs between calls", rec.ID)
		}
	}
}

func TestJobQueue_ClaimCompleteFail(t *testing.T) {
	store := openTestStore(t)

	job := Job{ID: uuid.New().String(), Type: "embed_complaint", PayloadJSON: `{"complaint_id":1}`}
	if err := store.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}

	claimed, err := store.ClaimNextJob("embed_complaint")
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if claimed == nil {
		t.Fatal("expected a claimed job")
	}
	if claimed.Status != "running" {
		t.Errorf("Status = %q, want running", claimed.Status)
	}

	// A second claim finds nothing while the first is running.
	again, err := store.ClaimNextJob("embed_complaint")
	if err != nil {
		t.Fatalf("second ClaimNextJob failed: %v", err)
	}
	if again != nil {
		t.Errorf("claimed running job %s twice", again.ID)
	}

	if err := store.CompleteJob(claimed.ID); err != nil {
		t.Fatalf("CompleteJob failed: %v", err)
	}

	counts, err := store.JobCounts()
	if err != nil {
		t.Fatalf("JobCounts failed: %v", err)
	}
	if counts["completed"] != 1 {
		t.Errorf("completed = %d, want 1", counts["completed"])
	}
}

func TestFailJob_BackoffThenFailed(t *testing.T) {
	store := openTestStore(t)

	job := Job{ID: uuid.New().String(), Type: "embed_complaint", PayloadJSON: `{}`, MaxAttempts: 2}
	if err := store.EnqueueJob(job); err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}

	if err := store.FailJob(job.ID, "embedding failed"); err != nil {
		t.Fatalf("FailJob failed: %v", err)
	}
	// Rescheduled with backoff: not claimable right away.
	claimed, err := store.ClaimNextJob("embed_complaint")
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if claimed != nil {
		t.Error("backoff job should not be claimable immediately")
	}

	if err := store.FailJob(job.ID, "embedding failed again"); err != nil {
		t.Fatalf("second FailJob failed: %v", err)
	}
	counts, err := store.JobCounts()
	if err != nil {
		t.Fatalf("JobCounts failed: %v", err)
	}
	if counts["failed"] != 1 {
		t.Errorf("failed = %d, want 1", counts["failed"])
	}
}

func TestClaimNextJob_WrongType(t *testing.T) {
	store := openTestStore(t)

	if err := store.EnqueueJob(Job{ID: uuid.New().String(), Type: "embed_complaint", PayloadJSON: `{}`}); err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	claimed, err := store.ClaimNextJob("something_else")
	if err != nil {
		t.Fatalf("ClaimNextJob failed: %v", err)
	}
	if claimed != nil {
		t.Error("claimed a job of the wrong type")
	}
}

func TestGetRecentComplaints(t *testing.T) {
	store := openTestStore(t)

	for i := 0; i < 5; i++ {
		if _, err := store.SaveComplaint(NewComplaint{
			Company:   "Acme",
			Complaint: "complaint",
		}); err != nil {
			t.Fatalf("SaveComplaint failed: %v", err)
		}
	}

	recent, err := store.GetRecentComplaints(3)
	if err != nil {
		t.Fatalf("GetRecentComplaints failed: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("len = %d, want 3", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].ID > recent[i-1].ID {
			t.Errorf("ids not descending: %d before %d", recent[i-1].ID, recent[i].ID)
		}
	}
}
