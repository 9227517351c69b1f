// Package search classifies queries as filter-only vs semantic, ranks by
// vector similarity with a text-search fallback, and scores results.
package search

import (
	"triage_server/core/domain"
	"triage_server/core/port/out"
)

// mergeFilters unions caller-supplied filters with interpreted ones. When
// both specify values for a field, the result is the deduplicated union,
// never a single winner.
func mergeFilters(caller out.EmailFilters, intent out.QueryIntent) out.EmailFilters {
	return out.EmailFilters{
		Priority:       unionPriorities(caller.Priority, intent.Priorities),
		Sentiment:      unionSentiments(caller.Sentiment, intent.Sentiments),
		Classification: unionClassifications(caller.Classification, intent.Classifications),
		Filtered:       caller.Filtered,
	}
}

func unionPriorities(a, b []domain.Priority) []domain.Priority {
	seen := make(map[domain.Priority]struct{}, len(a)+len(b))
	var result []domain.Priority
	for _, v := range append(append([]domain.Priority{}, a...), b...) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

func unionSentiments(a, b []domain.Sentiment) []domain.Sentiment {
	seen := make(map[domain.Sentiment]struct{}, len(a)+len(b))
	var result []domain.Sentiment
	for _, v := range append(append([]domain.Sentiment{}, a...), b...) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

func unionClassifications(a, b []domain.Classification) []domain.Classification {
	seen := make(map[domain.Classification]struct{}, len(a)+len(b))
	var result []domain.Classification
	for _, v := range append(append([]domain.Classification{}, a...), b...) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// matchesFilters applies merged field filters to a record in-process,
// used to post-filter semantic candidates.
func matchesFilters(email *domain.EmailRecord, filters out.EmailFilters) bool {
	if len(filters.Priority) > 0 && !containsPriority(filters.Priority, email.Priority) {
		return false
	}
	if len(filters.Sentiment) > 0 && !containsSentiment(filters.Sentiment, email.Sentiment) {
		return false
	}
	if len(filters.Classification) > 0 && !containsClassification(filters.Classification, email.Classification) {
		return false
	}
	if filters.Filtered != nil && email.Filtered != *filters.Filtered {
		return false
	}
	return true
}

func containsPriority(values []domain.Priority, v domain.Priority) bool {
	for _, val := range values {
		if val == v {
			return true
		}
	}
	return false
}

func containsSentiment(values []domain.Sentiment, v domain.Sentiment) bool {
	for _, val := range values {
		if val == v {
			return true
		}
	}
	return false
}

func containsClassification(values []domain.Classification, v domain.Classification) bool {
	for _, val := range values {
		if val == v {
			return true
		}
	}
	return false
}
