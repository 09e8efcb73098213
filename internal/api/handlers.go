package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openintake/plaint/internal/classify"
	"github.com/openintake/plaint/internal/ingest"
	"github.com/openintake/plaint/internal/normalize"
	"github.com/openintake/plaint/internal/pipeline"
	"github.com/openintake/plaint/internal/storage"
	"github.com/openintake/plaint/internal/vector"
)

const maxRequestBodySize = 1 << 20  // 1MB
const maxUploadBodySize = 25 << 20 // 25MB, audio and image uploads

// Searcher abstracts similarity search for the API layer.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]vector.Match, error)
}

// Deps holds everything the HTTP handlers need.
type Deps struct {
	Store      *storage.Store
	Intake     *pipeline.Intake
	Classifier pipeline.Classifier
	Speech     normalize.Transcriber
	OCR        normalize.ImageParser
	Searcher   Searcher
	Token      string
}

// NewHandler returns the service's HTTP handler. Every route except /health
// sits behind bearer auth.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/submit", handleSubmit(deps))
		r.Post("/classify", handleClassify(deps))
		r.Post("/transcribe", handleTranscribe(deps))
		r.Post("/extract-text", handleExtractText(deps))
		r.Post("/persist-complaint", handlePersistComplaint(deps))
		r.Get("/list-complaints", handleListComplaints(deps))
		r.Post("/similarity-search", handleSimilaritySearch(deps))
		r.Post("/import", handleImport(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleSubmit accepts one multipart submission and runs the full pipeline:
// normalize, classify, persist. Fields: company (required), and at least one
// of text, voice, or image.
func handleSubmit(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
		defer r.Body.Close()

		if err := r.ParseMultipartForm(maxUploadBodySize); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart form: %v", err)
			return
		}

		company := r.FormValue("company")
		if company == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "company is required")
			return
		}

		sub := normalize.Submission{Text: r.FormValue("text")}

		if audio, err := readUpload(r, "voice"); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading voice upload: %v", err)
			return
		} else if audio != nil {
			sub.Audio = &normalize.Audio{Filename: audio.filename, Data: audio.data}
		}

		if image, err := readUpload(r, "image"); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading image upload: %v", err)
			return
		} else if image != nil {
			sub.Image = &normalize.Image{ContentType: image.contentType, Data: image.data}
		}

		record, err := deps.Intake.Process(r.Context(), company, sub)
		if err != nil {
			pipelineError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(record)
	}
}

// handleClassify classifies a piece of text without persisting anything.
func handleClassify(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		result, err := deps.Classifier.Classify(r.Context(), req.Query)
		if err != nil {
			pipelineError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

// handleTranscribe converts an uploaded voice recording to text.
func handleTranscribe(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
		defer r.Body.Close()

		if err := r.ParseMultipartForm(maxUploadBodySize); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart form: %v", err)
			return
		}

		upload, err := readUpload(r, "voice")
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading voice upload: %v", err)
			return
		}
		if upload == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "voice file is required")
			return
		}

		text, err := deps.Speech.Transcribe(r.Context(), upload.filename, upload.reader())
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "transcription failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": text})
	}
}

// handleExtractText runs OCR on a base64-encoded image and returns the
// provider's raw response under "data".
func handleExtractText(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
		defer r.Body.Close()

		var req struct {
			Base64String string `json:"base64String"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Base64String == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "base64String is required")
			return
		}

		_, raw, err := deps.OCR.ParseImage(r.Context(), req.Base64String)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "text extraction failed: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]json.RawMessage{"data": raw})
	}
}

// handlePersistComplaint writes an already-classified complaint to both the
// relational store and the vector index.
func handlePersistComplaint(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req struct {
			Company            string `json:"company"`
			Complaint          string `json:"complaint"`
			ProductCategory    string `json:"productCategory"`
			ProductSubcategory string `json:"productSubcategory"`
			IsComplaint        bool   `json:"isComplaint"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Company == "" || req.Complaint == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "company and complaint are required")
			return
		}

		record, err := deps.Intake.Persist(r.Context(), storage.NewComplaint{
			Company:            req.Company,
			Complaint:          req.Complaint,
			ProductCategory:    optional(req.ProductCategory),
			ProductSubcategory: optional(req.ProductSubcategory),
			IsComplaint:        req.IsComplaint,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to persist complaint: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"data": record})
	}
}

// handleListComplaints returns every stored complaint.
func handleListComplaints(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		complaints, err := deps.Store.ListComplaints()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list complaints: %v", err)
			return
		}

		if complaints == nil {
			complaints = []storage.ComplaintRecord{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"complaints": complaints})
	}
}

// SearchResult is one similarity-search hit as exposed over HTTP.
type SearchResult struct {
	PageContent string          `json:"pageContent"`
	Metadata    vector.Metadata `json:"metadata"`
	Score       float32         `json:"score"`
}

// handleSimilaritySearch embeds the query text and returns the nearest
// stored complaints in the index's relevance order.
func handleSimilaritySearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req struct {
			Query string `json:"query"`
			TopK  int    `json:"topK"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}
		if req.TopK <= 0 {
			req.TopK = 5
		}
		if req.TopK > 50 {
			req.TopK = 50
		}

		matches, err := deps.Searcher.Search(r.Context(), req.Query, req.TopK)
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "search failed: %v", err)
			return
		}

		results := make([]SearchResult, len(matches))
		for i, m := range matches {
			results[i] = SearchResult{PageContent: m.Text, Metadata: m.Metadata, Score: m.Score}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(results)
	}
}

// ImportRow is one historical complaint to backfill. DateCreated is the
// record's original date, carried into the vector metadata.
type ImportRow struct {
	Company            string `json:"company"`
	Complaint          string `json:"complaint"`
	ProductCategory    string `json:"productCategory"`
	SubProductCategory string `json:"subProductCategory"`
	DateCreated        string `json:"dateCreated"`
}

// handleImport inserts historical complaints and queues an embedding job for
// each; the backfill worker indexes them asynchronously.
func handleImport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBodySize)
		defer r.Body.Close()

		var req struct {
			Rows []ImportRow `json:"rows"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if len(req.Rows) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "rows is required and must not be empty")
			return
		}

		queued := 0
		for i, row := range req.Rows {
			if row.Company == "" || row.Complaint == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "row %d: company and complaint are required", i)
				return
			}

			rec, err := deps.Store.SaveComplaint(storage.NewComplaint{
				Company:            row.Company,
				Complaint:          row.Complaint,
				ProductCategory:    optional(row.ProductCategory),
				ProductSubcategory: optional(row.SubProductCategory),
				IsComplaint:        true,
			})
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "row %d: failed to save complaint: %v", i, err)
				return
			}

			job, err := ingest.NewEmbedJob(rec.ID, row.DateCreated)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "row %d: failed to create job: %v", i, err)
				return
			}
			if err := deps.Store.EnqueueJob(job); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "row %d: failed to enqueue job: %v", i, err)
				return
			}
			queued++
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"queued": queued,
			"status": "queued",
		})
	}
}

// pipelineError maps an intake pipeline failure onto an HTTP status: bad
// input is the caller's fault, unparseable model output and upstream
// failures are gateway errors.
func pipelineError(w http.ResponseWriter, err error) {
	var parseErr *classify.ParseError
	switch {
	case errors.Is(err, normalize.ErrNoInput):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.As(err, &parseErr):
		httpError(w, http.StatusBadGateway, "parse_error", "%v", err)
	default:
		httpError(w, http.StatusBadGateway, "api_error", "%v", err)
	}
}

type upload struct {
	filename    string
	contentType string
	data        []byte
}

func (u *upload) reader() io.Reader {
	return bytes.NewReader(u.data)
}

// readUpload reads the named multipart file. Returns nil when the field is
// absent, which is not an error.
func readUpload(r *http.Request, field string) (*upload, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &upload{
		filename:    header.Filename,
		contentType: header.Header.Get("Content-Type"),
		data:        data,
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
