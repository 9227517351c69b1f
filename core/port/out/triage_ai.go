package out

import (
	"context"
	"time"

	"triage_server/core/domain"
)

// ClassificationResult is the fully-populated output of a classify call.
// The gateway guarantees valid enum values even on provider failure.
type ClassificationResult struct {
	Filtered           bool
	Priority           domain.Priority
	Classification     domain.Classification
	Sentiment          domain.Sentiment
	Summary            string
	SuggestedResponses []string
	OtherDetails       domain.OtherDetails
}

// QueryIntent is the interpretation of a natural-language search query.
type QueryIntent struct {
	Priorities      []domain.Priority
	Sentiments      []domain.Sentiment
	Classifications []domain.Classification
	SearchTerms     []string
	SenderFilters   []string
	Intent          string
}

// Classifier is the classification gateway port. Every operation absorbs
// provider failures into a deterministic fallback and never returns an
// error.
type Classifier interface {
	Classify(ctx context.Context, subject, body, sender string) ClassificationResult
	GenerateReply(ctx context.Context, subject, body string, classification domain.Classification) string
	InterpretQuery(ctx context.Context, query string) QueryIntent
}

// Embedder is the embedding gateway port. Embed returns nil on any
// failure; callers treat nil as "no embedding available".
type Embedder interface {
	Embed(ctx context.Context, text string) []float64
	Model() string
}

// RawMessage is a message fetched from a mailbox provider, before any
// pipeline processing.
type RawMessage struct {
	SourceMessageID string
	Sender          string
	Subject         string
	Body            string
	Timestamp       time.Time
}

// MailboxProvider supplies recent messages for sync ingestion.
type MailboxProvider interface {
	FetchRecent(ctx context.Context, max int) ([]RawMessage, error)
}

// ProgressPublisher pushes progress snapshots to live subscribers.
type ProgressPublisher interface {
	PublishProgress(jobID string, progress *domain.UploadProgress)
}
