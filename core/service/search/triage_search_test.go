package search

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

type memEmailRepo struct {
	emails    []*domain.EmailRecord
	lastQuery out.EmailQuery
}

func (m *memEmailRepo) Save(_ context.Context, e *domain.EmailRecord) error {
	m.emails = append(m.emails, e)
	return nil
}

func (m *memEmailRepo) GetByID(_ context.Context, id string) (*domain.EmailRecord, error) {
	for _, e := range m.emails {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (m *memEmailRepo) Update(_ context.Context, _ *domain.EmailRecord) error { return nil }

// Find applies field filters, sender filters, and text terms in memory,
// mimicking the store-side query semantics.
func (m *memEmailRepo) Find(_ context.Context, q out.EmailQuery) ([]*domain.EmailRecord, int64, error) {
	m.lastQuery = q
	var matched []*domain.EmailRecord
	for _, e := range m.emails {
		if !matchesFilters(e, q.Filters) {
			continue
		}
		if !matchesSenders(e, q.SenderFilters) {
			continue
		}
		if len(q.TextTerms) > 0 && !textMatch(e, q.TextTerms) {
			continue
		}
		matched = append(matched, e)
	}
	total := int64(len(matched))
	if q.Offset >= len(matched) {
		return nil, total, nil
	}
	end := q.Offset + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[q.Offset:end], total, nil
}

func textMatch(e *domain.EmailRecord, terms []string) bool {
	haystack := strings.ToLower(e.Sender + " " + e.Subject + " " + e.Body + " " + string(e.Classification))
	for _, t := range terms {
		if strings.Contains(haystack, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

func (m *memEmailRepo) RecentWithEmbeddings(_ context.Context, limit int) ([]*domain.EmailRecord, error) {
	var result []*domain.EmailRecord
	for _, e := range m.emails {
		if e.HasEmbedding() {
			result = append(result, e)
		}
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (m *memEmailRepo) ExistsBySourceMessageID(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (m *memEmailRepo) SetEmbeddings(_ context.Context, _ string, _ *domain.Embeddings) error {
	return nil
}

func (m *memEmailRepo) Stats(_ context.Context) (*out.EmailStats, error) { return nil, nil }

type fallbackOnlyClassifier struct{}

func (fallbackOnlyClassifier) Classify(_ context.Context, _, _, _ string) out.ClassificationResult {
	return out.ClassificationResult{}
}

func (fallbackOnlyClassifier) GenerateReply(_ context.Context, _, _ string, _ domain.Classification) string {
	return "ok"
}

// InterpretQuery mimics the gateway's keyword fallback for the filter
// phrases used in these tests.
func (fallbackOnlyClassifier) InterpretQuery(_ context.Context, query string) out.QueryIntent {
	lower := strings.ToLower(query)
	intent := out.QueryIntent{Intent: "Search for: " + query}
	if strings.Contains(lower, "high priority") || strings.Contains(lower, "urgent") {
		intent.Priorities = []domain.Priority{domain.PriorityHigh}
	}
	for _, w := range strings.Fields(lower) {
		switch w {
		case "high", "priority", "urgent", "emails", "from":
		default:
			intent.SearchTerms = append(intent.SearchTerms, w)
		}
	}
	return intent
}

type vecEmbedder struct {
	vecs map[string][]float64
}

func (v vecEmbedder) Embed(_ context.Context, text string) []float64 {
	if v.vecs == nil {
		return nil
	}
	return v.vecs[text]
}

func (v vecEmbedder) Model() string { return "test-model" }

func record(sender, subject, body string, priority domain.Priority, vec []float64) *domain.EmailRecord {
	e := domain.NewEmailRecord(sender, subject, body)
	e.Priority = priority
	if vec != nil {
		e.Embeddings = &domain.Embeddings{Vector: vec, Model: "test-model", Dim: len(vec)}
	}
	return e
}

func TestSearchFilterUnion(t *testing.T) {
	repo := &memEmailRepo{}
	repo.emails = []*domain.EmailRecord{
		record("a@x.com", "outage", "the server is down", domain.PriorityHigh, nil),
		record("b@x.com", "billing", "invoice attached", domain.PriorityMedium, nil),
		record("c@x.com", "newsletter", "monthly news", domain.PriorityLow, nil),
	}
	svc := NewService(repo, fallbackOnlyClassifier{}, vecEmbedder{}, zerolog.Nop())

	result, err := svc.Search(context.Background(), "high priority",
		out.EmailFilters{Priority: []domain.Priority{domain.PriorityMedium}}, 1, 10)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}

	want := []domain.Priority{domain.PriorityMedium, domain.PriorityHigh}
	if !reflect.DeepEqual(repo.lastQuery.Filters.Priority, want) {
		t.Errorf("merged priorities = %v, want union %v", repo.lastQuery.Filters.Priority, want)
	}
	if result.Total != 0 {
		// "high priority" carries no residual search terms matching these
		// records, so the text search finds nothing; the union still
		// reached the store query.
		for _, r := range result.Results {
			if r.Email.Priority != domain.PriorityHigh && r.Email.Priority != domain.PriorityMedium {
				t.Errorf("result outside union: %q", r.Email.Priority)
			}
		}
	}
}

func TestSearchSemanticRanking(t *testing.T) {
	queryVec := []float64{1, 0}
	repo := &memEmailRepo{}
	close1 := record("a@x.com", "server outage", "production is down", domain.PriorityHigh, []float64{0.9, 0.1})
	close2 := record("b@x.com", "downtime", "partial outage", domain.PriorityHigh, []float64{0.8, 0.6})
	far := record("c@x.com", "lunch", "sandwiches today", domain.PriorityLow, []float64{0, 1})
	noVec := record("d@x.com", "outage question", "is it down", domain.PriorityMedium, nil)
	repo.emails = []*domain.EmailRecord{close1, close2, far, noVec}

	svc := NewService(repo, fallbackOnlyClassifier{}, vecEmbedder{vecs: map[string][]float64{"outage": queryVec}}, zerolog.Nop())

	result, err := svc.Search(context.Background(), "outage", out.EmailFilters{}, 1, 10)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if result.Mode != ModeSemantic {
		t.Fatalf("mode = %q, want semantic", result.Mode)
	}
	if len(result.Results) != 2 {
		t.Fatalf("got %d results, want 2 above threshold", len(result.Results))
	}
	if result.Results[0].Email.ID != close1.ID {
		t.Errorf("results not sorted by similarity desc")
	}
	for _, r := range result.Results {
		if r.Score < SimilarityThreshold || r.Score > 1 {
			t.Errorf("score %v outside [threshold, 1]", r.Score)
		}
	}
}

func TestSearchBelowThresholdFallsBackToText(t *testing.T) {
	queryVec := []float64{1, 0}
	repo := &memEmailRepo{}
	repo.emails = []*domain.EmailRecord{
		record("a@x.com", "refund request", "please refund my order", domain.PriorityMedium, []float64{0, 1}),
	}
	svc := NewService(repo, fallbackOnlyClassifier{}, vecEmbedder{vecs: map[string][]float64{"refund": queryVec}}, zerolog.Nop())

	result, err := svc.Search(context.Background(), "refund", out.EmailFilters{}, 1, 10)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if result.Mode != ModeText {
		t.Fatalf("mode = %q, want text fallback", result.Mode)
	}
	if len(result.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(result.Results))
	}
	if result.Results[0].Score != textMatchScore {
		t.Errorf("score = %v, want %v", result.Results[0].Score, textMatchScore)
	}
}

func TestSearchEmbeddingUnavailableFallsBackToText(t *testing.T) {
	repo := &memEmailRepo{}
	repo.emails = []*domain.EmailRecord{
		record("a@x.com", "refund request", "please refund my order", domain.PriorityMedium, nil),
	}
	svc := NewService(repo, fallbackOnlyClassifier{}, vecEmbedder{}, zerolog.Nop())

	result, err := svc.Search(context.Background(), "refund", out.EmailFilters{}, 1, 10)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if result.Mode != ModeText {
		t.Errorf("mode = %q, want text", result.Mode)
	}
}

func TestSearchFilterOnly(t *testing.T) {
	repo := &memEmailRepo{}
	repo.emails = []*domain.EmailRecord{
		record("a@x.com", "outage", "down", domain.PriorityHigh, nil),
		record("b@x.com", "news", "fyi", domain.PriorityLow, nil),
	}
	svc := NewService(repo, fallbackOnlyClassifier{}, vecEmbedder{}, zerolog.Nop())

	result, err := svc.Search(context.Background(), "",
		out.EmailFilters{Priority: []domain.Priority{domain.PriorityHigh}}, 1, 10)
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if result.Mode != ModeFilterOnly {
		t.Fatalf("mode = %q, want filter", result.Mode)
	}
	if len(result.Results) != 1 || result.Results[0].Score != filterMatchScore {
		t.Errorf("results = %+v", result.Results)
	}
	if len(result.Results[0].Highlights) != 0 {
		t.Errorf("filter-only results should carry no highlights")
	}
}

func TestMergeFiltersUnion(t *testing.T) {
	caller := out.EmailFilters{
		Priority:  []domain.Priority{domain.PriorityMedium},
		Sentiment: []domain.Sentiment{domain.SentimentNegative},
	}
	intent := out.QueryIntent{
		Priorities: []domain.Priority{domain.PriorityHigh, domain.PriorityMedium},
		Sentiments: []domain.Sentiment{domain.SentimentNegative},
	}

	merged := mergeFilters(caller, intent)
	if !reflect.DeepEqual(merged.Priority, []domain.Priority{domain.PriorityMedium, domain.PriorityHigh}) {
		t.Errorf("Priority = %v", merged.Priority)
	}
	if !reflect.DeepEqual(merged.Sentiment, []domain.Sentiment{domain.SentimentNegative}) {
		t.Errorf("Sentiment should be deduplicated, got %v", merged.Sentiment)
	}
}

func TestBuildHighlights(t *testing.T) {
	longBody := strings.Repeat("a", 200) + " refund " + strings.Repeat("b", 200)

	tests := []struct {
		name    string
		subject string
		body    string
		terms   []string
		count   int
	}{
		{name: "subject and body", subject: "refund request", body: "please refund me", terms: []string{"refund"}, count: 2},
		{name: "body only with ellipses", subject: "other", body: longBody, terms: []string{"refund"}, count: 1},
		{name: "no match", subject: "hello", body: "world", terms: []string{"refund"}, count: 0},
		{name: "no terms", subject: "hello", body: "world", terms: nil, count: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildHighlights(tt.subject, tt.body, tt.terms)
			if len(got) != tt.count {
				t.Fatalf("got %d highlights (%v), want %d", len(got), got, tt.count)
			}
		})
	}
}

func TestBodySnippetEllipses(t *testing.T) {
	body := strings.Repeat("x", 100) + "needle" + strings.Repeat("y", 100)
	snippet := bodySnippet(body, []string{"needle"})
	if !strings.HasPrefix(snippet, "...") || !strings.HasSuffix(snippet, "...") {
		t.Errorf("snippet should be ellipsized on both ends: %q", snippet)
	}
	if !strings.Contains(snippet, "needle") {
		t.Errorf("snippet should contain the matched term: %q", snippet)
	}
}

func TestSuggestions(t *testing.T) {
	svc := NewService(&memEmailRepo{}, fallbackOnlyClassifier{}, vecEmbedder{}, zerolog.Nop())

	got := svc.Suggestions("emails from alice")
	if len(got) == 0 || len(got) > 5 {
		t.Fatalf("got %d suggestions", len(got))
	}
	found := false
	for _, s := range got {
		if s == "emails from alice" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected sender suggestion, got %v", got)
	}
}
