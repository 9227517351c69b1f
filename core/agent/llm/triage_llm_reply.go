package llm

import (
	"context"
	"fmt"
	"strings"

	"triage_server/core/domain"
)

const replySystemPrompt = `You are a customer service assistant. Generate a helpful, professional, and empathetic email reply that acknowledges the customer's concern, provides helpful information or next steps, and maintains a courteous tone. Respond with the reply text only, no preamble.`

// GenerateReply produces a reply draft for an email. On any provider
// failure it returns the fixed template for the classification; it never
// fails and never returns an empty string.
func (c *Client) GenerateReply(ctx context.Context, subject, body string, classification domain.Classification) string {
	if !c.available {
		return fallbackReply(classification)
	}

	userPrompt := fmt.Sprintf("Subject: %s\nClassification: %s\n\nBody:\n%s", subject, classification, truncateBody(body, 4000))

	content, err := c.completeAny(ctx, replySystemPrompt, userPrompt)
	if err != nil {
		c.log.Warn().Err(err).Msg("reply generation failed, using template")
		return fallbackReply(classification)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return fallbackReply(classification)
	}
	return content
}
