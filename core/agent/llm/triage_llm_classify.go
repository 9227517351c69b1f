package llm

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

var _ out.Classifier = (*Client)(nil)

const classifySystemPrompt = `You are an email triage assistant. Analyze the email and respond with JSON only.

Respond with this exact JSON format:
{
  "priority": "High Priority" | "Medium Priority" | "Low Priority",
  "sentiment": "Positive" | "Neutral" | "Negative",
  "classification": "Support" | "Query" | "Request" | "Help" | "Complaint" | "General",
  "summary": "brief 1-2 sentence summary",
  "suggested_responses": ["up to 3 short reply suggestions"],
  "other_details": {
    "phone_number": "phone number mentioned in the email or empty",
    "address": "postal address mentioned in the email or empty",
    "alternate_email": "alternate email address mentioned or empty"
  }
}`

type classifyPayload struct {
	Filtered           bool     `json:"filtered"`
	Priority           string   `json:"priority"`
	Sentiment          string   `json:"sentiment"`
	Classification     string   `json:"classification"`
	Summary            string   `json:"summary"`
	SuggestedResponses []string `json:"suggested_responses"`
	OtherDetails       struct {
		PhoneNumber    string `json:"phone_number"`
		Address        string `json:"address"`
		AlternateEmail string `json:"alternate_email"`
	} `json:"other_details"`
}

// Classify runs the structured classification call against each model in
// preference order, repairs fenced output once, and falls back to the
// keyword rules when nothing parseable comes back. It never fails.
func (c *Client) Classify(ctx context.Context, subject, body, sender string) out.ClassificationResult {
	if !c.available {
		return fallbackClassify(subject, body)
	}

	userPrompt := fmt.Sprintf("From: %s\nSubject: %s\n\nBody:\n%s", sender, subject, truncateBody(body, 4000))

	for _, model := range c.models {
		content, err := c.complete(ctx, model, classifySystemPrompt, userPrompt)
		if err != nil {
			c.log.Debug().Err(err).Str("model", model).Msg("classify call failed")
			continue
		}
		if result, ok := parseClassification(content); ok {
			return result
		}
		c.log.Debug().Str("model", model).Msg("classify output not parseable")
	}

	c.log.Warn().Msg("all models failed classification, using rule fallback")
	return fallbackClassify(subject, body)
}

func parseClassification(content string) (out.ClassificationResult, bool) {
	var payload classifyPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		// One repair attempt: strip markdown fences and retry.
		if err := json.Unmarshal([]byte(stripFences(content)), &payload); err != nil {
			return out.ClassificationResult{}, false
		}
	}

	priority := domain.Priority(payload.Priority)
	sentiment := domain.Sentiment(payload.Sentiment)
	classification := domain.Classification(payload.Classification)
	if !priority.IsValid() || !sentiment.IsValid() || !classification.IsValid() {
		return out.ClassificationResult{}, false
	}

	suggestions := payload.SuggestedResponses
	if len(suggestions) > 3 {
		suggestions = suggestions[:3]
	}

	summary := payload.Summary
	if summary == "" {
		summary = fmt.Sprintf("Email regarding %s", classification)
	}

	return out.ClassificationResult{
		Filtered:           payload.Filtered,
		Priority:           priority,
		Sentiment:          sentiment,
		Classification:     classification,
		Summary:            summary,
		SuggestedResponses: suggestions,
		OtherDetails: domain.OtherDetails{
			PhoneNumber:    payload.OtherDetails.PhoneNumber,
			Address:        payload.OtherDetails.Address,
			AlternateEmail: payload.OtherDetails.AlternateEmail,
		},
	}, true
}
