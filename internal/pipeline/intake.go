package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/openintake/plaint/internal/classify"
	"github.com/openintake/plaint/internal/embed"
	"github.com/openintake/plaint/internal/normalize"
	"github.com/openintake/plaint/internal/storage"
	"github.com/openintake/plaint/internal/vector"
)

// TextNormalizer resolves a multi-modal submission to plain text.
type TextNormalizer interface {
	Normalize(ctx context.Context, sub normalize.Submission) (string, error)
}

// Classifier turns complaint text into a structured classification.
type Classifier interface {
	Classify(ctx context.Context, text string) (classify.Result, error)
}

// ComplaintStore is the relational persistence dependency.
type ComplaintStore interface {
	SaveComplaint(c storage.NewComplaint) (storage.ComplaintRecord, error)
}

// Intake orchestrates the end-to-end submission pipeline: normalize the
// input, classify it, then persist to both the relational store and the
// vector index.
type Intake struct {
	normalizer TextNormalizer
	classifier Classifier
	store      ComplaintStore
	embedder   embed.DocumentEmbedder
	vectors    vector.Store
}

// NewIntake wires an Intake from its five collaborators.
func NewIntake(
	normalizer TextNormalizer,
	classifier Classifier,
	store ComplaintStore,
	embedder embed.DocumentEmbedder,
	vectors vector.Store,
) *Intake {
	return &Intake{
		normalizer: normalizer,
		classifier: classifier,
		store:      store,
		embedder:   embedder,
		vectors:    vectors,
	}
}

// Process runs the full pipeline for one submission. The persisted
// complaint text is the classifier's summary, not the raw input. Each
// stage is attempted once; the first failure aborts the rest.
func (p *Intake) Process(ctx context.Context, company string, sub normalize.Submission) (storage.ComplaintRecord, error) {
	text, err := p.normalizer.Normalize(ctx, sub)
	if err != nil {
		return storage.ComplaintRecord{}, err
	}

	result, err := p.classifier.Classify(ctx, text)
	if err != nil {
		return storage.ComplaintRecord{}, err
	}

	record, err := p.Persist(ctx, newComplaintFrom(company, result))
	if err != nil {
		return storage.ComplaintRecord{}, err
	}

	slog.Info("complaint processed",
		"id", record.ID,
		"company", record.Company,
		"is_complaint", record.IsComplaint,
	)
	return record, nil
}

// Persist writes the complaint to the relational store and upserts its
// embedding into the vector index. The two writes are independent: a
// failed insert does not stop the upsert, and neither is rolled back
// when the other fails. When both fail, the insert error is returned.
func (p *Intake) Persist(ctx context.Context, c storage.NewComplaint) (storage.ComplaintRecord, error) {
	record, insertErr := p.store.SaveComplaint(c)
	if insertErr != nil {
		slog.Error("complaint insert failed", "company", c.Company, "error", insertErr)
	}

	if upsertErr := p.index(ctx, c); upsertErr != nil {
		slog.Error("vector upsert failed", "company", c.Company, "error", upsertErr)
		if insertErr != nil {
			return storage.ComplaintRecord{}, insertErr
		}
		return storage.ComplaintRecord{}, upsertErr
	}

	if insertErr != nil {
		return storage.ComplaintRecord{}, insertErr
	}
	return record, nil
}

// index embeds the complaint text and upserts it with its metadata.
func (p *Intake) index(ctx context.Context, c storage.NewComplaint) error {
	vec, err := p.embedder.EmbedDocument(ctx, c.Complaint)
	if err != nil {
		return fmt.Errorf("embedding complaint: %w", err)
	}

	entry := vector.Entry{
		ID:     uuid.NewString(),
		Text:   c.Complaint,
		Vector: vec,
		Metadata: vector.Metadata{
			Company:            c.Company,
			ProductCategory:    deref(c.ProductCategory),
			SubProductCategory: deref(c.ProductSubcategory),
		},
	}
	return p.vectors.Upsert(ctx, []vector.Entry{entry})
}

// newComplaintFrom maps a classification onto an insert row. Empty labels
// become NULL columns rather than empty strings.
func newComplaintFrom(company string, result classify.Result) storage.NewComplaint {
	return storage.NewComplaint{
		Company:            company,
		Complaint:          result.Summary,
		ProductCategory:    optional(result.Category),
		ProductSubcategory: optional(result.Subcategory),
		IsComplaint:        result.IsComplaint,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
