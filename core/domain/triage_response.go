package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResponseStatus is the approval state of a draft response.
type ResponseStatus string

const (
	ResponsePending  ResponseStatus = "pending"
	ResponseApproved ResponseStatus = "approved"
	ResponseRejected ResponseStatus = "rejected"
	ResponseSent     ResponseStatus = "sent"
)

func (s ResponseStatus) IsValid() bool {
	switch s {
	case ResponsePending, ResponseApproved, ResponseRejected, ResponseSent:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is legal from s.
func (s ResponseStatus) IsTerminal() bool {
	return s == ResponseSent || s == ResponseRejected
}

// DraftResponse is a reply awaiting review before sending.
//
// Legal transitions: pending -> approved -> sent, pending -> rejected,
// approved -> pending (text edit only).
type DraftResponse struct {
	ID           string         `json:"id"`
	EmailID      string         `json:"email_id"`
	Recipient    string         `json:"recipient"`
	Subject      string         `json:"subject"`
	ResponseText string         `json:"response_text"`
	Priority     Priority       `json:"priority"`
	Status       ResponseStatus `json:"status"`
	ApprovedBy   string         `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time     `json:"approved_at,omitempty"`
	SentAt       *time.Time     `json:"sent_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewDraftResponse creates a pending draft for an email.
func NewDraftResponse(emailID, recipient, subject, text string, priority Priority) *DraftResponse {
	now := time.Now().UTC()
	return &DraftResponse{
		ID:           uuid.NewString(),
		EmailID:      emailID,
		Recipient:    recipient,
		Subject:      subject,
		ResponseText: text,
		Priority:     priority,
		Status:       ResponsePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CanApprove reports whether an approve action is legal.
func (r *DraftResponse) CanApprove() bool {
	return r.Status == ResponsePending
}

// CanReject reports whether a reject action is legal.
func (r *DraftResponse) CanReject() bool {
	return r.Status == ResponsePending
}

// CanSend reports whether a send action is legal.
func (r *DraftResponse) CanSend() bool {
	return r.Status == ResponseApproved
}

// CanEdit reports whether the response text may still be changed.
// Editing an approved draft resets it to pending for re-review.
func (r *DraftResponse) CanEdit() bool {
	return r.Status == ResponsePending || r.Status == ResponseApproved
}
