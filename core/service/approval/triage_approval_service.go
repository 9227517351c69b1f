// Package approval implements the draft response review workflow:
// pending -> approved -> sent, pending -> rejected, approved -> pending
// via text edit.
package approval

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
)

type Service struct {
	responses  out.ResponseRepository
	emails     out.EmailRepository
	classifier out.Classifier
	log        zerolog.Logger
}

func NewService(responses out.ResponseRepository, emails out.EmailRepository, classifier out.Classifier, log zerolog.Logger) *Service {
	return &Service{
		responses:  responses,
		emails:     emails,
		classifier: classifier,
		log:        log,
	}
}

// CreateDraft builds a pending draft for an email, using its first
// suggested response or a freshly generated reply.
func (s *Service) CreateDraft(ctx context.Context, emailID string) (*domain.DraftResponse, error) {
	email, err := s.emails.GetByID(ctx, emailID)
	if err != nil {
		return nil, err
	}
	if email == nil {
		return nil, apperr.NotFound("email")
	}

	text := ""
	if len(email.SuggestedResponses) > 0 {
		text = email.SuggestedResponses[0]
	}
	if text == "" {
		text = s.classifier.GenerateReply(ctx, email.Subject, email.Body, email.Classification)
	}

	draft := domain.NewDraftResponse(emailID, email.Sender, "Re: "+email.Subject, text, email.Priority)
	if err := s.responses.Save(ctx, draft); err != nil {
		return nil, err
	}

	s.log.Info().Str("response_id", draft.ID).Str("email_id", emailID).Msg("draft created")
	return draft, nil
}

// Approve moves a pending draft to approved. The guard is enforced with a
// compare-and-set against the stored status, so concurrent approve and
// reject attempts cannot both win.
func (s *Service) Approve(ctx context.Context, id, approvedBy string) (*domain.DraftResponse, error) {
	resp, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !resp.CanApprove() {
		return nil, apperr.InvalidTransition(string(resp.Status), "approve")
	}

	now := time.Now().UTC()
	applied, err := s.responses.ApplyIfStatus(ctx, id, domain.ResponsePending, out.ResponseUpdate{
		Status:     domain.ResponseApproved,
		ApprovedBy: &approvedBy,
		ApprovedAt: &now,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, apperr.InvalidTransition(string(resp.Status), "approve")
	}

	return s.get(ctx, id)
}

// Reject moves a pending draft to rejected, a terminal state.
func (s *Service) Reject(ctx context.Context, id string) (*domain.DraftResponse, error) {
	resp, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !resp.CanReject() {
		return nil, apperr.InvalidTransition(string(resp.Status), "reject")
	}

	applied, err := s.responses.ApplyIfStatus(ctx, id, domain.ResponsePending, out.ResponseUpdate{
		Status: domain.ResponseRejected,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, apperr.InvalidTransition(string(resp.Status), "reject")
	}

	return s.get(ctx, id)
}

// Send moves an approved draft to sent, a terminal state.
func (s *Service) Send(ctx context.Context, id string) (*domain.DraftResponse, error) {
	resp, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !resp.CanSend() {
		return nil, apperr.InvalidTransition(string(resp.Status), "send")
	}

	now := time.Now().UTC()
	applied, err := s.responses.ApplyIfStatus(ctx, id, domain.ResponseApproved, out.ResponseUpdate{
		Status: domain.ResponseSent,
		SentAt: &now,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, apperr.InvalidTransition(string(resp.Status), "send")
	}

	return s.get(ctx, id)
}

// EditText updates the draft text. Editing an approved draft resets it to
// pending so the edit is re-reviewed; editing a sent or rejected draft is
// rejected.
func (s *Service) EditText(ctx context.Context, id, text string) (*domain.DraftResponse, error) {
	resp, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !resp.CanEdit() {
		return nil, apperr.InvalidTransition(string(resp.Status), "edit")
	}

	applied, err := s.responses.ApplyIfStatus(ctx, id, resp.Status, out.ResponseUpdate{
		Status:       domain.ResponsePending,
		ResponseText: &text,
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, apperr.InvalidTransition(string(resp.Status), "edit")
	}

	return s.get(ctx, id)
}

// Get returns one draft response.
func (s *Service) Get(ctx context.Context, id string) (*domain.DraftResponse, error) {
	return s.get(ctx, id)
}

// List returns drafts filtered by status (empty for all), newest first.
func (s *Service) List(ctx context.Context, status domain.ResponseStatus, offset, limit int) ([]*domain.DraftResponse, int64, error) {
	if limit < 1 {
		limit = 20
	}
	return s.responses.List(ctx, status, offset, limit)
}

// StatusCounts returns response totals per status.
func (s *Service) StatusCounts(ctx context.Context) (map[domain.ResponseStatus]int64, error) {
	return s.responses.StatusCounts(ctx)
}

func (s *Service) get(ctx context.Context, id string) (*domain.DraftResponse, error) {
	resp, err := s.responses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, apperr.NotFound("response")
	}
	return resp, nil
}
