package llm

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

const interpretSystemPrompt = `You interpret natural language queries for an email search engine. Respond with JSON only:
{
  "filters": {
    "priority": ["High Priority" | "Medium Priority" | "Low Priority"],
    "sentiment": ["Positive" | "Neutral" | "Negative"],
    "classification": ["Support" | "Query" | "Request" | "Help" | "Complaint" | "General"]
  },
  "search_terms": ["keywords to match in email content"],
  "sender_filters": ["sender names or addresses mentioned"],
  "intent": "brief description of what the user is looking for"
}
Omit filter keys that do not apply.`

type intentPayload struct {
	Filters struct {
		Priority       []string `json:"priority"`
		Sentiment      []string `json:"sentiment"`
		Classification []string `json:"classification"`
	} `json:"filters"`
	SearchTerms   []string `json:"search_terms"`
	SenderFilters []string `json:"sender_filters"`
	Intent        string   `json:"intent"`
}

// InterpretQuery extracts filters, search terms, and sender filters from
// a natural-language query. Provider failures degrade to a deterministic
// keyword scan; it never fails.
func (c *Client) InterpretQuery(ctx context.Context, query string) out.QueryIntent {
	if !c.available {
		return fallbackInterpret(query)
	}

	userPrompt := fmt.Sprintf("Query: %q", query)

	for _, model := range c.models {
		content, err := c.complete(ctx, model, interpretSystemPrompt, userPrompt)
		if err != nil {
			c.log.Debug().Err(err).Str("model", model).Msg("interpret call failed")
			continue
		}
		if intent, ok := parseIntent(content, query); ok {
			return intent
		}
	}

	c.log.Warn().Msg("all models failed query interpretation, using keyword scan")
	return fallbackInterpret(query)
}

func parseIntent(content, query string) (out.QueryIntent, bool) {
	var payload intentPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		if err := json.Unmarshal([]byte(stripFences(content)), &payload); err != nil {
			return out.QueryIntent{}, false
		}
	}

	intent := out.QueryIntent{
		SearchTerms:   payload.SearchTerms,
		SenderFilters: payload.SenderFilters,
		Intent:        payload.Intent,
	}
	if intent.Intent == "" {
		intent.Intent = "Search for: " + query
	}

	for _, p := range payload.Filters.Priority {
		if v := domain.Priority(p); v.IsValid() {
			intent.Priorities = append(intent.Priorities, v)
		}
	}
	for _, s := range payload.Filters.Sentiment {
		if v := domain.Sentiment(s); v.IsValid() {
			intent.Sentiments = append(intent.Sentiments, v)
		}
	}
	for _, cl := range payload.Filters.Classification {
		if v := domain.Classification(cl); v.IsValid() {
			intent.Classifications = append(intent.Classifications, v)
		}
	}

	return intent, true
}
