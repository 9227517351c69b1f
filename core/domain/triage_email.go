package domain

import (
	"time"

	"github.com/google/uuid"
)

// Priority buckets assigned by the classification step.
type Priority string

const (
	PriorityHigh   Priority = "High Priority"
	PriorityMedium Priority = "Medium Priority"
	PriorityLow    Priority = "Low Priority"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Sentiment of the email body as judged by the classifier.
type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNeutral  Sentiment = "Neutral"
	SentimentNegative Sentiment = "Negative"
)

func (s Sentiment) IsValid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

// Classification is the triage category of an email.
type Classification string

const (
	ClassSupport   Classification = "Support"
	ClassQuery     Classification = "Query"
	ClassRequest   Classification = "Request"
	ClassHelp      Classification = "Help"
	ClassComplaint Classification = "Complaint"
	ClassGeneral   Classification = "General"
)

func (c Classification) IsValid() bool {
	switch c {
	case ClassSupport, ClassQuery, ClassRequest, ClassHelp, ClassComplaint, ClassGeneral:
		return true
	}
	return false
}

// OtherDetails carries contact details either returned by the classifier
// or backfilled from pattern extraction.
type OtherDetails struct {
	PhoneNumber    string `json:"phone_number,omitempty"`
	Address        string `json:"address,omitempty"`
	AlternateEmail string `json:"alternate_email,omitempty"`
}

// Embeddings is the stored vector for semantic search. Absent (nil) until
// the embedding step succeeds for a record.
type Embeddings struct {
	Vector []float64 `json:"vector"`
	Model  string    `json:"model"`
	Dim    int       `json:"dim"`
	Text   string    `json:"text"`
}

// EmailMetadata holds the original send date and provider bookkeeping.
type EmailMetadata struct {
	Date            string `json:"date,omitempty"`
	DateEpoch       int64  `json:"date_epoch,omitempty"`
	SourceMessageID string `json:"source_message_id,omitempty"`
}

// EmailRecord is a triaged email as persisted by the ingestion pipeline.
type EmailRecord struct {
	ID                 string         `json:"id"`
	Sender             string         `json:"sender"`
	Subject            string         `json:"subject"`
	Body               string         `json:"body"`
	Filtered           bool           `json:"filtered"`
	Priority           Priority       `json:"priority"`
	Classification     Classification `json:"classification"`
	Sentiment          Sentiment      `json:"sentiment"`
	Summary            string         `json:"summary"`
	SuggestedResponses []string       `json:"suggested_responses"`
	OtherDetails       OtherDetails   `json:"other_details"`
	Metadata           EmailMetadata  `json:"metadata"`
	Embeddings         *Embeddings    `json:"embeddings,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// NewEmailRecord creates an email record with a fresh identity and
// timestamps.
func NewEmailRecord(sender, subject, body string) *EmailRecord {
	now := time.Now().UTC()
	return &EmailRecord{
		ID:             uuid.NewString(),
		Sender:         sender,
		Subject:        subject,
		Body:           body,
		Priority:       PriorityLow,
		Classification: ClassGeneral,
		Sentiment:      SentimentNeutral,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Touch refreshes the updated timestamp.
func (e *EmailRecord) Touch() {
	e.UpdatedAt = time.Now().UTC()
}

// HasEmbedding reports whether the record carries a usable vector.
func (e *EmailRecord) HasEmbedding() bool {
	return e.Embeddings != nil && len(e.Embeddings.Vector) > 0
}
