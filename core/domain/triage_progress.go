package domain

import (
	"time"

	"github.com/google/uuid"
)

// UploadStatus is the lifecycle state of an ingestion job.
type UploadStatus string

const (
	UploadProcessing UploadStatus = "processing"
	UploadCompleted  UploadStatus = "completed"
	UploadFailed     UploadStatus = "failed"
)

// IsTerminal reports whether the job will see no further updates.
func (s UploadStatus) IsTerminal() bool {
	return s == UploadCompleted || s == UploadFailed
}

// UploadProgress tracks an ingestion job. processed_rows is monotonically
// non-decreasing over a job's lifetime.
type UploadProgress struct {
	ID            string       `json:"id"`
	Filename      string       `json:"filename"`
	Status        UploadStatus `json:"status"`
	TotalRows     int          `json:"total_rows"`
	ProcessedRows int          `json:"processed_rows"`
	ErrorCount    int          `json:"error_count"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// NewUploadProgress creates a progress record in the processing state.
func NewUploadProgress(filename string) *UploadProgress {
	now := time.Now().UTC()
	return &UploadProgress{
		ID:        uuid.NewString(),
		Filename:  filename,
		Status:    UploadProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Percentage returns processed/total as a percentage, 0 when total is 0.
func (p *UploadProgress) Percentage() float64 {
	if p.TotalRows == 0 {
		return 0
	}
	return float64(p.ProcessedRows) / float64(p.TotalRows) * 100
}
