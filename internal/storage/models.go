package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ComplaintRecord is one persisted, classified submission. ID and CreatedAt
// are assigned by the database at insert time and never regenerated.
type ComplaintRecord struct {
	ID                 int64     `json:"id"`
	Company            string    `json:"company"`
	Complaint          string    `json:"complaint"`
	ProductCategory    *string   `json:"productCategory"`
	ProductSubcategory *string   `json:"productSubcategory"`
	IsComplaint        bool      `json:"isComplaint"`
	CreatedAt          time.Time `json:"createdAt"`
}

// NewComplaint carries the caller-supplied fields of a complaint insert.
type NewComplaint struct {
	Company            string
	Complaint          string
	ProductCategory    *string
	ProductSubcategory *string
	IsComplaint        bool
}

// Job is one queued backfill task.
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
