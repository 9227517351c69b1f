// Package out defines outbound ports (driven ports) for the application.
package out

import (
	"context"
	"time"

	"triage_server/core/domain"
)

// EmailFilters narrows an email query by classified fields. Empty slices
// mean "no constraint" for that field.
type EmailFilters struct {
	Priority       []domain.Priority
	Sentiment      []domain.Sentiment
	Classification []domain.Classification
	Filtered       *bool
}

// EmailQuery is a store-level query: field filters, an optional
// case-insensitive text OR-group, an optional sender OR-group, and
// pagination.
type EmailQuery struct {
	Filters       EmailFilters
	TextTerms     []string
	SenderFilters []string
	Offset        int
	Limit         int
}

// EmailStats aggregates record counts for the dashboard.
type EmailStats struct {
	Total            int64                           `json:"total"`
	Filtered         int64                           `json:"filtered"`
	ByPriority       map[domain.Priority]int64       `json:"by_priority"`
	BySentiment      map[domain.Sentiment]int64      `json:"by_sentiment"`
	ByClassification map[domain.Classification]int64 `json:"by_classification"`
}

// EmailRepository is the outbound port for email record storage.
type EmailRepository interface {
	Save(ctx context.Context, email *domain.EmailRecord) error
	GetByID(ctx context.Context, id string) (*domain.EmailRecord, error)

	// Find returns a page of matching records plus the unpaginated total,
	// newest first by metadata date epoch.
	Find(ctx context.Context, query EmailQuery) ([]*domain.EmailRecord, int64, error)

	// RecentWithEmbeddings returns up to limit most recent records that
	// carry an embedding vector, for semantic candidate scans.
	RecentWithEmbeddings(ctx context.Context, limit int) ([]*domain.EmailRecord, error)

	// ExistsBySourceMessageID reports whether a synced message was already
	// ingested, keyed by the provider message id.
	ExistsBySourceMessageID(ctx context.Context, sourceMessageID string) (bool, error)

	// SetEmbeddings attaches a vector to an already-persisted record.
	SetEmbeddings(ctx context.Context, id string, emb *domain.Embeddings) error

	Stats(ctx context.Context) (*EmailStats, error)
}

// ResponseUpdate is the field set applied by a status transition. Nil
// pointers leave the stored value untouched.
type ResponseUpdate struct {
	Status       domain.ResponseStatus
	ResponseText *string
	ApprovedBy   *string
	ApprovedAt   *time.Time
	SentAt       *time.Time
}

// ResponseRepository is the outbound port for draft response storage.
type ResponseRepository interface {
	Save(ctx context.Context, resp *domain.DraftResponse) error
	GetByID(ctx context.Context, id string) (*domain.DraftResponse, error)

	// List returns responses filtered by status (empty status means all),
	// newest first, plus the unpaginated total.
	List(ctx context.Context, status domain.ResponseStatus, offset, limit int) ([]*domain.DraftResponse, int64, error)

	// ApplyIfStatus applies upd to the response only when its stored
	// status equals current (compare-and-set). Returns false when the
	// status did not match and nothing was changed.
	ApplyIfStatus(ctx context.Context, id string, current domain.ResponseStatus, upd ResponseUpdate) (bool, error)

	StatusCounts(ctx context.Context) (map[domain.ResponseStatus]int64, error)
}

// ProgressRepository is the outbound port for upload progress records.
type ProgressRepository interface {
	Save(ctx context.Context, progress *domain.UploadProgress) error
	GetByID(ctx context.Context, id string) (*domain.UploadProgress, error)

	SetTotal(ctx context.Context, id string, total int) error
	UpdateCounts(ctx context.Context, id string, processed, errorCount int) error
	MarkCompleted(ctx context.Context, id string, processed, errorCount int) error
	MarkFailed(ctx context.Context, id string, message string) error
}
