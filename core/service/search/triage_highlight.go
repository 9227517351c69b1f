package search

import "strings"

const (
	maxHighlights      = 3
	subjectTruncateLen = 100
	snippetContext     = 50
)

// buildHighlights produces up to 3 snippets for a result: a subject-line
// highlight when any query term appears in the subject, and at most one
// body snippet showing context around the first matching term.
func buildHighlights(subject, body string, terms []string) []string {
	if len(terms) == 0 {
		return nil
	}

	var highlights []string

	lowerSubject := strings.ToLower(subject)
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(lowerSubject, strings.ToLower(term)) {
			highlights = append(highlights, "Subject: "+truncate(subject, subjectTruncateLen))
			break
		}
	}

	if snippet := bodySnippet(body, terms); snippet != "" {
		highlights = append(highlights, snippet)
	}

	if len(highlights) > maxHighlights {
		highlights = highlights[:maxHighlights]
	}
	return highlights
}

// bodySnippet returns ±50 characters of context around the first query
// term found in the body, with ellipsis markers when truncated.
func bodySnippet(body string, terms []string) string {
	lowerBody := strings.ToLower(body)
	for _, term := range terms {
		if term == "" {
			continue
		}
		idx := strings.Index(lowerBody, strings.ToLower(term))
		if idx < 0 {
			continue
		}

		start := idx - snippetContext
		if start < 0 {
			start = 0
		}
		end := idx + len(term) + snippetContext
		if end > len(body) {
			end = len(body)
		}

		snippet := body[start:end]
		if start > 0 {
			snippet = "..." + snippet
		}
		if end < len(body) {
			snippet = snippet + "..."
		}
		return snippet
	}
	return ""
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
