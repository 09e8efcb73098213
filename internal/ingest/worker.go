package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openintake/plaint/internal/embed"
	"github.com/openintake/plaint/internal/storage"
	"github.com/openintake/plaint/internal/vector"
)

// JobTypeEmbedComplaint is the queue type for backfill embedding jobs.
const JobTypeEmbedComplaint = "embed_complaint"

// JobStore abstracts the job queue and complaint lookups.
type JobStore interface {
	ClaimNextJob(jobType string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetComplaint(id int64) (storage.ComplaintRecord, error)
}

// EmbedPayload is the JSON payload of an embed_complaint job. DateCreated
// carries the original record date from the imported dataset, which is not
// the same as the row's insert time.
type EmbedPayload struct {
	ComplaintID int64  `json:"complaint_id"`
	DateCreated string `json:"date_created,omitempty"`
}

// NewEmbedJob builds a queue job for one imported complaint.
func NewEmbedJob(complaintID int64, dateCreated string) (storage.Job, error) {
	payload, err := json.Marshal(EmbedPayload{ComplaintID: complaintID, DateCreated: dateCreated})
	if err != nil {
		return storage.Job{}, fmt.Errorf("encoding job payload: %w", err)
	}
	return storage.Job{
		ID:          uuid.NewString(),
		Type:        JobTypeEmbedComplaint,
		PayloadJSON: string(payload),
	}, nil
}

// Worker drains embed_complaint jobs from the SQLite queue, embedding the
// referenced complaints and upserting them into the vector index. Jobs are
// claimed in batches so embeddings can run concurrently.
type Worker struct {
	store     JobStore
	embedder  embed.DocumentEmbedder
	vectors   vector.Store
	poll      time.Duration
	batchSize int
	logger    *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, embedder embed.DocumentEmbedder, vectors vector.Store, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:     store,
		embedder:  embedder,
		vectors:   vectors,
		poll:      pollInterval,
		batchSize: 16,
		logger:    slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		n, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if n > 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims up to one batch of embed_complaint jobs and processes them.
// Returns the number of jobs handled (completed or failed).
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	var jobs []*storage.Job
	for len(jobs) < w.batchSize {
		job, err := w.store.ClaimNextJob(JobTypeEmbedComplaint)
		if err != nil {
			return len(jobs), fmt.Errorf("claiming job: %w", err)
		}
		if job == nil {
			break
		}
		jobs = append(jobs, job)
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	w.processBatch(ctx, jobs)
	return len(jobs), nil
}

// processBatch resolves each job to its complaint, embeds all texts with
// bounded concurrency, and upserts the batch. A failure before the upsert
// fails every claimed job; per-job payload problems fail only that job.
func (w *Worker) processBatch(ctx context.Context, jobs []*storage.Job) {
	type item struct {
		job       *storage.Job
		record    storage.ComplaintRecord
		dateAdded string
	}

	var items []item
	for _, job := range jobs {
		var payload EmbedPayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
			w.fail(job, fmt.Errorf("parsing payload: %w", err))
			continue
		}
		rec, err := w.store.GetComplaint(payload.ComplaintID)
		if err != nil {
			w.fail(job, fmt.Errorf("loading complaint %d: %w", payload.ComplaintID, err))
			continue
		}
		items = append(items, item{job: job, record: rec, dateAdded: payload.DateCreated})
	}
	if len(items) == 0 {
		return
	}

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.record.Complaint
	}

	vecs, err := embed.Batch(ctx, w.embedder, texts)
	if err != nil {
		for _, it := range items {
			w.fail(it.job, fmt.Errorf("embedding batch: %w", err))
		}
		return
	}

	entries := make([]vector.Entry, len(items))
	for i, it := range items {
		entries[i] = vector.Entry{
			ID:     uuid.NewString(),
			Text:   it.record.Complaint,
			Vector: vecs[i],
			Metadata: vector.Metadata{
				Company:            it.record.Company,
				ProductCategory:    deref(it.record.ProductCategory),
				SubProductCategory: deref(it.record.ProductSubcategory),
				DateCreated:        it.dateAdded,
			},
		}
	}

	if err := w.vectors.Upsert(ctx, entries); err != nil {
		for _, it := range items {
			w.fail(it.job, fmt.Errorf("upserting batch: %w", err))
		}
		return
	}

	for _, it := range items {
		if err := w.store.CompleteJob(it.job.ID); err != nil {
			w.logger.Error("failed to mark job completed", "job_id", it.job.ID, "error", err)
		}
	}
	w.logger.Info("backfill batch indexed", "jobs", len(items))
}

func (w *Worker) fail(job *storage.Job, err error) {
	w.logger.Warn("job failed", "job_id", job.ID, "error", err)
	if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
		w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
