package approval

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/apperr"
)

type memResponseRepo struct {
	mu        sync.Mutex
	responses map[string]*domain.DraftResponse
}

func newMemResponseRepo() *memResponseRepo {
	return &memResponseRepo{responses: make(map[string]*domain.DraftResponse)}
}

func (m *memResponseRepo) Save(_ context.Context, r *domain.DraftResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.responses[r.ID] = &cp
	return nil
}

func (m *memResponseRepo) GetByID(_ context.Context, id string) (*domain.DraftResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.responses[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (m *memResponseRepo) List(_ context.Context, status domain.ResponseStatus, offset, limit int) ([]*domain.DraftResponse, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*domain.DraftResponse
	for _, r := range m.responses {
		if status == "" || r.Status == status {
			cp := *r
			all = append(all, &cp)
		}
	}
	return all, int64(len(all)), nil
}

// ApplyIfStatus implements the compare-and-set semantics of the real
// store adapter.
func (m *memResponseRepo) ApplyIfStatus(_ context.Context, id string, current domain.ResponseStatus, upd out.ResponseUpdate) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.responses[id]
	if !ok || r.Status != current {
		return false, nil
	}
	r.Status = upd.Status
	if upd.ResponseText != nil {
		r.ResponseText = *upd.ResponseText
	}
	if upd.ApprovedBy != nil {
		r.ApprovedBy = *upd.ApprovedBy
	}
	if upd.ApprovedAt != nil {
		r.ApprovedAt = upd.ApprovedAt
	}
	if upd.SentAt != nil {
		r.SentAt = upd.SentAt
	}
	return true, nil
}

func (m *memResponseRepo) StatusCounts(_ context.Context) (map[domain.ResponseStatus]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[domain.ResponseStatus]int64)
	for _, r := range m.responses {
		counts[r.Status]++
	}
	return counts, nil
}

type stubEmailRepo struct {
	email *domain.EmailRecord
}

func (s *stubEmailRepo) Save(_ context.Context, _ *domain.EmailRecord) error   { return nil }
func (s *stubEmailRepo) Update(_ context.Context, _ *domain.EmailRecord) error { return nil }

func (s *stubEmailRepo) GetByID(_ context.Context, id string) (*domain.EmailRecord, error) {
	if s.email != nil && s.email.ID == id {
		return s.email, nil
	}
	return nil, nil
}

func (s *stubEmailRepo) Find(_ context.Context, _ out.EmailQuery) ([]*domain.EmailRecord, int64, error) {
	return nil, 0, nil
}

func (s *stubEmailRepo) RecentWithEmbeddings(_ context.Context, _ int) ([]*domain.EmailRecord, error) {
	return nil, nil
}

func (s *stubEmailRepo) ExistsBySourceMessageID(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (s *stubEmailRepo) SetEmbeddings(_ context.Context, _ string, _ *domain.Embeddings) error {
	return nil
}

func (s *stubEmailRepo) Stats(_ context.Context) (*out.EmailStats, error) { return nil, nil }

type templateClassifier struct{}

func (templateClassifier) Classify(_ context.Context, _, _, _ string) out.ClassificationResult {
	return out.ClassificationResult{}
}

func (templateClassifier) GenerateReply(_ context.Context, _, _ string, _ domain.Classification) string {
	return "generated reply"
}

func (templateClassifier) InterpretQuery(_ context.Context, _ string) out.QueryIntent {
	return out.QueryIntent{}
}

func newTestService(repo *memResponseRepo, emails *stubEmailRepo) *Service {
	return NewService(repo, emails, templateClassifier{}, zerolog.Nop())
}

func pendingDraft(t *testing.T, repo *memResponseRepo) *domain.DraftResponse {
	t.Helper()
	draft := domain.NewDraftResponse("email-1", "a@x.com", "Re: hello", "draft text", domain.PriorityMedium)
	if err := repo.Save(context.Background(), draft); err != nil {
		t.Fatal(err)
	}
	return draft
}

func assertInvalidTransition(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected invalid transition error")
	}
	var appErr *apperr.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperr.CodeInvalidTransition {
		t.Fatalf("expected %s, got %v", apperr.CodeInvalidTransition, err)
	}
}

func TestApproveFromPending(t *testing.T) {
	repo := newMemResponseRepo()
	svc := newTestService(repo, &stubEmailRepo{})
	draft := pendingDraft(t, repo)

	got, err := svc.Approve(context.Background(), draft.ID, "reviewer")
	if err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if got.Status != domain.ResponseApproved {
		t.Errorf("status = %q", got.Status)
	}
	if got.ApprovedBy != "reviewer" || got.ApprovedAt == nil {
		t.Errorf("approval fields not set: %+v", got)
	}
}

func TestTerminalStatesAreFrozen(t *testing.T) {
	tests := []struct {
		name   string
		status domain.ResponseStatus
	}{
		{name: "sent", status: domain.ResponseSent},
		{name: "rejected", status: domain.ResponseRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemResponseRepo()
			svc := newTestService(repo, &stubEmailRepo{})
			draft := pendingDraft(t, repo)
			repo.responses[draft.ID].Status = tt.status

			_, err := svc.Approve(context.Background(), draft.ID, "reviewer")
			assertInvalidTransition(t, err)

			_, err = svc.Reject(context.Background(), draft.ID)
			assertInvalidTransition(t, err)

			_, err = svc.EditText(context.Background(), draft.ID, "new text")
			assertInvalidTransition(t, err)

			// State unchanged after rejected attempts.
			stored, _ := repo.GetByID(context.Background(), draft.ID)
			if stored.Status != tt.status {
				t.Errorf("status mutated to %q", stored.Status)
			}
			if stored.ResponseText != "draft text" {
				t.Errorf("text mutated to %q", stored.ResponseText)
			}
		})
	}
}

func TestSendRequiresApproved(t *testing.T) {
	repo := newMemResponseRepo()
	svc := newTestService(repo, &stubEmailRepo{})
	draft := pendingDraft(t, repo)

	_, err := svc.Send(context.Background(), draft.ID)
	assertInvalidTransition(t, err)

	if _, err := svc.Approve(context.Background(), draft.ID, "reviewer"); err != nil {
		t.Fatal(err)
	}
	got, err := svc.Send(context.Background(), draft.ID)
	if err != nil {
		t.Fatalf("Send error: %v", err)
	}
	if got.Status != domain.ResponseSent || got.SentAt == nil {
		t.Errorf("sent fields not set: %+v", got)
	}
}

func TestApproveEditResetsToPending(t *testing.T) {
	repo := newMemResponseRepo()
	svc := newTestService(repo, &stubEmailRepo{})
	draft := pendingDraft(t, repo)

	approved, err := svc.Approve(context.Background(), draft.ID, "reviewer")
	if err != nil {
		t.Fatal(err)
	}
	if approved.Status != domain.ResponseApproved || approved.ApprovedBy != "reviewer" || approved.ApprovedAt == nil {
		t.Fatalf("approve fields: %+v", approved)
	}

	edited, err := svc.EditText(context.Background(), draft.ID, "revised text")
	if err != nil {
		t.Fatalf("EditText error: %v", err)
	}
	if edited.Status != domain.ResponsePending {
		t.Errorf("status = %q, want pending after edit", edited.Status)
	}
	if edited.ResponseText != "revised text" {
		t.Errorf("text = %q", edited.ResponseText)
	}
	// Edit clears no other field.
	if edited.ApprovedBy != "reviewer" || edited.ApprovedAt == nil {
		t.Errorf("edit should not clear approval bookkeeping: %+v", edited)
	}
}

func TestCreateDraftUsesSuggestedResponse(t *testing.T) {
	email := domain.NewEmailRecord("cust@x.com", "billing issue", "please fix")
	email.Priority = domain.PriorityHigh
	email.SuggestedResponses = []string{"suggested reply"}

	repo := newMemResponseRepo()
	svc := newTestService(repo, &stubEmailRepo{email: email})

	draft, err := svc.CreateDraft(context.Background(), email.ID)
	if err != nil {
		t.Fatalf("CreateDraft error: %v", err)
	}
	if draft.ResponseText != "suggested reply" {
		t.Errorf("text = %q", draft.ResponseText)
	}
	if draft.Recipient != "cust@x.com" || draft.Subject != "Re: billing issue" {
		t.Errorf("snapshot fields: %+v", draft)
	}
	if draft.Priority != domain.PriorityHigh || draft.Status != domain.ResponsePending {
		t.Errorf("draft = %+v", draft)
	}
}

func TestCreateDraftGeneratesWhenNoSuggestion(t *testing.T) {
	email := domain.NewEmailRecord("cust@x.com", "hello", "body")

	repo := newMemResponseRepo()
	svc := newTestService(repo, &stubEmailRepo{email: email})

	draft, err := svc.CreateDraft(context.Background(), email.ID)
	if err != nil {
		t.Fatalf("CreateDraft error: %v", err)
	}
	if draft.ResponseText != "generated reply" {
		t.Errorf("text = %q", draft.ResponseText)
	}
}

func TestCreateDraftEmailNotFound(t *testing.T) {
	repo := newMemResponseRepo()
	svc := newTestService(repo, &stubEmailRepo{})

	_, err := svc.CreateDraft(context.Background(), "missing")
	var appErr *apperr.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperr.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
