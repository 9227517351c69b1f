package search

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"triage_server/core/agent/rag"
	"triage_server/core/domain"
	"triage_server/core/port/out"
)

const (
	// SimilarityThreshold is the minimum cosine similarity for a semantic
	// candidate to count as a match.
	SimilarityThreshold = 0.7

	// semanticCandidateCap bounds the scan to the most recent embedded
	// records, for cost control.
	semanticCandidateCap = 1000

	// textMatchScore is the fixed score annotated on text-search results.
	textMatchScore = 0.5

	// filterMatchScore is the score for exact filter-only matches.
	filterMatchScore = 1.0

	defaultPerPage = 10
	maxPerPage     = 100
)

// Search modes reported on results.
const (
	ModeSemantic   = "semantic"
	ModeText       = "text"
	ModeFilterOnly = "filter"
)

// ScoredEmail is one search hit with its similarity score and highlight
// snippets.
type ScoredEmail struct {
	Email      *domain.EmailRecord `json:"email"`
	Score      float64             `json:"score"`
	Highlights []string            `json:"highlights,omitempty"`
}

// Result is a page of scored hits.
type Result struct {
	Results []ScoredEmail `json:"results"`
	Total   int64         `json:"total"`
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
	Mode    string        `json:"mode"`
	Intent  string        `json:"intent,omitempty"`
}

// Service runs the search degradation chain: semantic, then text, then
// filter-only.
type Service struct {
	emails     out.EmailRepository
	classifier out.Classifier
	embedder   out.Embedder
	log        zerolog.Logger
}

func NewService(emails out.EmailRepository, classifier out.Classifier, embedder out.Embedder, log zerolog.Logger) *Service {
	return &Service{
		emails:     emails,
		classifier: classifier,
		embedder:   embedder,
		log:        log,
	}
}

// Search interprets query, merges interpreted filters with caller
// filters (set union per field), and runs the appropriate search mode.
func (s *Service) Search(ctx context.Context, query string, caller out.EmailFilters, page, perPage int) (*Result, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	offset := (page - 1) * perPage

	trimmed := strings.TrimSpace(query)
	merged := caller
	var intent out.QueryIntent
	if trimmed != "" {
		intent = s.classifier.InterpretQuery(ctx, trimmed)
		merged = mergeFilters(caller, intent)
	}

	// Pure filter query: no text intent, no ranking.
	if trimmed == "" {
		return s.filterOnlySearch(ctx, merged, offset, page, perPage)
	}

	terms := intent.SearchTerms
	if len(terms) == 0 {
		terms = strings.Fields(trimmed)
	}

	if result, ok := s.semanticSearch(ctx, trimmed, merged, intent, terms, offset, page, perPage); ok {
		return result, nil
	}

	return s.textSearch(ctx, merged, intent, terms, offset, page, perPage)
}

// semanticSearch ranks embedded records by cosine similarity against the
// embedded query. Returns ok=false when the query cannot be embedded or
// no candidate clears the threshold, so the caller falls back to text
// search.
func (s *Service) semanticSearch(ctx context.Context, query string, filters out.EmailFilters, intent out.QueryIntent, terms []string, offset, page, perPage int) (*Result, bool) {
	queryVec := s.embedder.Embed(ctx, query)
	if queryVec == nil {
		return nil, false
	}

	candidates, err := s.emails.RecentWithEmbeddings(ctx, semanticCandidateCap)
	if err != nil {
		s.log.Warn().Err(err).Msg("semantic candidate scan failed")
		return nil, false
	}

	var hits []ScoredEmail
	for _, email := range candidates {
		if !email.HasEmbedding() {
			continue
		}
		score := rag.CosineSimilarity(queryVec, email.Embeddings.Vector)
		if score < SimilarityThreshold {
			continue
		}
		if !matchesFilters(email, filters) || !matchesSenders(email, intent.SenderFilters) {
			continue
		}
		hits = append(hits, ScoredEmail{
			Email:      email,
			Score:      score,
			Highlights: buildHighlights(email.Subject, email.Body, terms),
		})
	}
	if len(hits) == 0 {
		return nil, false
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	total := int64(len(hits))
	hits = paginate(hits, offset, perPage)

	return &Result{
		Results: hits,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Mode:    ModeSemantic,
		Intent:  intent.Intent,
	}, true
}

// textSearch pushes a filter+regex query down to the store; no in-process
// ranking.
func (s *Service) textSearch(ctx context.Context, filters out.EmailFilters, intent out.QueryIntent, terms []string, offset, page, perPage int) (*Result, error) {
	emails, total, err := s.emails.Find(ctx, out.EmailQuery{
		Filters:       filters,
		TextTerms:     terms,
		SenderFilters: intent.SenderFilters,
		Offset:        offset,
		Limit:         perPage,
	})
	if err != nil {
		return nil, err
	}

	results := make([]ScoredEmail, 0, len(emails))
	for _, email := range emails {
		results = append(results, ScoredEmail{
			Email:      email,
			Score:      textMatchScore,
			Highlights: buildHighlights(email.Subject, email.Body, terms),
		})
	}

	return &Result{
		Results: results,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Mode:    ModeText,
		Intent:  intent.Intent,
	}, nil
}

func (s *Service) filterOnlySearch(ctx context.Context, filters out.EmailFilters, offset, page, perPage int) (*Result, error) {
	emails, total, err := s.emails.Find(ctx, out.EmailQuery{
		Filters: filters,
		Offset:  offset,
		Limit:   perPage,
	})
	if err != nil {
		return nil, err
	}

	results := make([]ScoredEmail, 0, len(emails))
	for _, email := range emails {
		results = append(results, ScoredEmail{Email: email, Score: filterMatchScore})
	}

	return &Result{
		Results: results,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Mode:    ModeFilterOnly,
	}, nil
}

// Interpret exposes raw query interpretation for the API.
func (s *Service) Interpret(ctx context.Context, query string) out.QueryIntent {
	return s.classifier.InterpretQuery(ctx, query)
}

// Suggestions proposes up to 5 refinements for a partial query.
func (s *Service) Suggestions(query string) []string {
	lower := strings.ToLower(query)
	var suggestions []string

	switch {
	case strings.Contains(lower, "negative"):
		suggestions = append(suggestions, "negative sentiment emails", "complaints", "angry customers")
	case strings.Contains(lower, "positive"):
		suggestions = append(suggestions, "positive feedback", "satisfied customers", "thank you emails")
	case strings.Contains(lower, "high"), strings.Contains(lower, "urgent"):
		suggestions = append(suggestions, "high priority emails", "urgent requests", "critical issues")
	case strings.Contains(lower, "support"):
		suggestions = append(suggestions, "support tickets", "help requests", "technical issues")
	}

	for _, word := range strings.Fields(query) {
		if len(word) > 2 && isAlpha(word) {
			suggestions = append(suggestions, "emails from "+word)
		}
	}

	if len(suggestions) > 5 {
		suggestions = suggestions[:5]
	}
	return suggestions
}

func matchesSenders(email *domain.EmailRecord, senders []string) bool {
	if len(senders) == 0 {
		return true
	}
	lowerSender := strings.ToLower(email.Sender)
	for _, s := range senders {
		if strings.Contains(lowerSender, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

func paginate(hits []ScoredEmail, offset, limit int) []ScoredEmail {
	if offset >= len(hits) {
		return nil
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	return hits[offset:end]
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
