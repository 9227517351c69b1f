package llm

import (
	"fmt"
	"strings"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

// Keyword tables for the rule fallback. Matching is substring-based over
// the lower-cased subject+body concatenation, first matching rule wins.
var (
	highPriorityKeywords   = []string{"urgent", "emergency", "asap", "critical", "problem", "error", "issue", "broken", "failed", "help"}
	mediumPriorityKeywords = []string{"question", "inquiry", "request", "need", "want", "how", "when", "where"}

	positiveKeywords = []string{"thank", "great", "excellent", "good", "happy", "satisfied", "love"}
	negativeKeywords = []string{"problem", "issue", "error", "failed", "broken", "angry", "frustrated", "terrible"}

	classificationRules = []struct {
		class    domain.Classification
		keywords []string
	}{
		{domain.ClassSupport, []string{"support", "help", "assist"}},
		{domain.ClassQuery, []string{"question", "how", "what", "why"}},
		{domain.ClassRequest, []string{"request", "need", "want"}},
		{domain.ClassHelp, []string{"problem", "issue", "error"}},
	}
)

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// fallbackClassify is the deterministic keyword classifier used when the
// provider is unavailable or returns unparseable output.
func fallbackClassify(subject, body string) out.ClassificationResult {
	text := strings.ToLower(subject + " " + body)

	priority := domain.PriorityLow
	if containsAny(text, highPriorityKeywords) {
		priority = domain.PriorityHigh
	} else if containsAny(text, mediumPriorityKeywords) {
		priority = domain.PriorityMedium
	}

	sentiment := domain.SentimentNeutral
	if containsAny(text, positiveKeywords) {
		sentiment = domain.SentimentPositive
	} else if containsAny(text, negativeKeywords) {
		sentiment = domain.SentimentNegative
	}

	classification := domain.ClassGeneral
	for _, rule := range classificationRules {
		if containsAny(text, rule.keywords) {
			classification = rule.class
			break
		}
	}

	return out.ClassificationResult{
		Priority:           priority,
		Sentiment:          sentiment,
		Classification:     classification,
		Summary:            fmt.Sprintf("Email from sender regarding %s", strings.ToLower(string(classification))),
		SuggestedResponses: []string{fallbackReply(classification)},
	}
}

var replyTemplates = map[domain.Classification]string{
	domain.ClassSupport:   "Thank you for contacting our support team. We have received your request and will respond within 24 hours. If this is urgent, please call our support line.",
	domain.ClassQuery:     "Thank you for your inquiry. We will review your question and provide a detailed response shortly. Please allow 1-2 business days for our response.",
	domain.ClassRequest:   "We have received your request and will process it as soon as possible. You will receive an update within 2-3 business days.",
	domain.ClassHelp:      "We understand you're experiencing an issue and we're here to help. Our technical team will investigate and respond with a solution within 24 hours.",
	domain.ClassComplaint: "We apologize for any inconvenience you've experienced. Your feedback is important to us and we will address your concerns promptly.",
	domain.ClassGeneral:   "Thank you for your email. We have received your message and will respond appropriately.",
}

// fallbackReply returns the fixed template for a classification, with the
// generic template for anything unrecognized.
func fallbackReply(classification domain.Classification) string {
	if tpl, ok := replyTemplates[classification]; ok {
		return tpl
	}
	return replyTemplates[domain.ClassGeneral]
}

// queryStopwords are tokens excluded from fallback search terms.
var queryStopwords = map[string]struct{}{
	"emails": {}, "email": {}, "list": {}, "all": {}, "with": {},
	"from": {}, "by": {}, "high": {}, "medium": {}, "low": {},
	"priority": {}, "positive": {}, "negative": {}, "neutral": {},
}

// tokenPriorities etc. map explicit "key:value" query tokens to enums.
var (
	tokenPriorities = map[string]domain.Priority{
		"high":   domain.PriorityHigh,
		"medium": domain.PriorityMedium,
		"low":    domain.PriorityLow,
	}
	tokenSentiments = map[string]domain.Sentiment{
		"positive": domain.SentimentPositive,
		"neutral":  domain.SentimentNeutral,
		"negative": domain.SentimentNegative,
	}
	tokenClassifications = map[string]domain.Classification{
		"support":   domain.ClassSupport,
		"query":     domain.ClassQuery,
		"request":   domain.ClassRequest,
		"help":      domain.ClassHelp,
		"complaint": domain.ClassComplaint,
		"general":   domain.ClassGeneral,
	}
)

// fallbackInterpret is the deterministic keyword scan used when query
// interpretation cannot reach the provider. Explicit "priority:high",
// "sentiment:negative", "classification:support", and "from:alice"
// tokens are consumed first; bare keywords fill any field the tokens
// left empty.
func fallbackInterpret(query string) out.QueryIntent {
	intent := out.QueryIntent{Intent: "Search for: " + query}

	words := strings.Fields(query)
	consumed := make(map[int]struct{})
	senderSet := make(map[string]struct{})

	for i, word := range words {
		key, value, found := strings.Cut(strings.ToLower(word), ":")
		if !found || value == "" {
			continue
		}
		switch key {
		case "priority":
			if p, ok := tokenPriorities[value]; ok {
				intent.Priorities = append(intent.Priorities, p)
				consumed[i] = struct{}{}
			}
		case "sentiment":
			if s, ok := tokenSentiments[value]; ok {
				intent.Sentiments = append(intent.Sentiments, s)
				consumed[i] = struct{}{}
			}
		case "classification":
			if c, ok := tokenClassifications[value]; ok {
				intent.Classifications = append(intent.Classifications, c)
				consumed[i] = struct{}{}
			}
		case "from":
			raw := word[len("from:"):]
			intent.SenderFilters = append(intent.SenderFilters, raw)
			senderSet[raw] = struct{}{}
			consumed[i] = struct{}{}
		}
	}

	lower := strings.ToLower(query)

	if len(intent.Priorities) == 0 {
		if containsAny(lower, []string{"high priority", "urgent", "critical"}) {
			intent.Priorities = []domain.Priority{domain.PriorityHigh}
		} else if containsAny(lower, []string{"medium priority", "normal"}) {
			intent.Priorities = []domain.Priority{domain.PriorityMedium}
		} else if strings.Contains(lower, "low priority") {
			intent.Priorities = []domain.Priority{domain.PriorityLow}
		}
	}

	if len(intent.Sentiments) == 0 {
		if containsAny(lower, []string{"negative", "bad", "angry", "frustrated"}) {
			intent.Sentiments = []domain.Sentiment{domain.SentimentNegative}
		} else if containsAny(lower, []string{"positive", "good", "happy", "satisfied"}) {
			intent.Sentiments = []domain.Sentiment{domain.SentimentPositive}
		} else if strings.Contains(lower, "neutral") {
			intent.Sentiments = []domain.Sentiment{domain.SentimentNeutral}
		}
	}

	if len(intent.Classifications) == 0 {
		if containsAny(lower, []string{"support", "help"}) {
			intent.Classifications = []domain.Classification{domain.ClassSupport}
		} else if containsAny(lower, []string{"question", "query"}) {
			intent.Classifications = []domain.Classification{domain.ClassQuery}
		} else if strings.Contains(lower, "request") {
			intent.Classifications = []domain.Classification{domain.ClassRequest}
		} else if strings.Contains(lower, "complaint") {
			intent.Classifications = []domain.Classification{domain.ClassComplaint}
		}
	}

	// Sender names follow "from"/"by" tokens.
	for i, word := range words {
		w := strings.ToLower(word)
		if (w == "from" || w == "by") && i+1 < len(words) {
			if _, dup := senderSet[words[i+1]]; !dup {
				intent.SenderFilters = append(intent.SenderFilters, words[i+1])
				senderSet[words[i+1]] = struct{}{}
			}
		}
	}

	for i, word := range words {
		if _, skip := consumed[i]; skip {
			continue
		}
		if _, stop := queryStopwords[strings.ToLower(word)]; stop {
			continue
		}
		if _, isSender := senderSet[word]; isSender {
			continue
		}
		intent.SearchTerms = append(intent.SearchTerms, word)
	}

	return intent
}
