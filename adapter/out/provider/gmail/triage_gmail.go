// Package gmail provides the Gmail mailbox provider.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"triage_server/core/port/out"
)

// Provider implements out.MailboxProvider for Gmail.
type Provider struct {
	service *gmail.Service
	email   string
}

var _ out.MailboxProvider = (*Provider)(nil)

// Config holds the OAuth material needed to talk to the Gmail API on
// behalf of a single mailbox.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// NewProvider creates a Gmail provider from a stored refresh token.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}
	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}

	client := oauthCfg.Client(ctx, token)
	service, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	profile, err := service.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}

	return &Provider{
		service: service,
		email:   profile.EmailAddress,
	}, nil
}

// Email returns the address of the connected mailbox.
func (p *Provider) Email() string {
	return p.email
}

// FetchRecent lists the newest inbox messages and fetches each one in
// full. Fetches run with bounded concurrency (5 workers) to avoid rate
// limiting; individual fetch failures drop the message rather than fail
// the batch.
func (p *Provider) FetchRecent(ctx context.Context, max int) ([]out.RawMessage, error) {
	req := p.service.Users.Messages.List("me").LabelIds("INBOX")
	if max > 0 {
		req = req.MaxResults(int64(max))
	}

	resp, err := req.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	if len(resp.Messages) == 0 {
		return []out.RawMessage{}, nil
	}

	const maxConcurrency = 5
	type result struct {
		index int
		msg   *out.RawMessage
	}

	results := make(chan result, len(resp.Messages))
	semaphore := make(chan struct{}, maxConcurrency)

	for i, m := range resp.Messages {
		go func(idx int, msgID string) {
			semaphore <- struct{}{}        // acquire
			defer func() { <-semaphore }() // release

			full, err := p.service.Users.Messages.Get("me", msgID).
				Format("full").
				Context(ctx).
				Do()
			if err != nil {
				results <- result{index: idx}
				return
			}
			results <- result{index: idx, msg: parseMessage(full)}
		}(i, m.Id)
	}

	ordered := make([]*out.RawMessage, len(resp.Messages))
	for range resp.Messages {
		r := <-results
		if r.msg != nil {
			ordered[r.index] = r.msg
		}
	}

	messages := make([]out.RawMessage, 0, len(ordered))
	for _, msg := range ordered {
		if msg != nil {
			messages = append(messages, *msg)
		}
	}
	return messages, nil
}

func parseMessage(msg *gmail.Message) *out.RawMessage {
	rm := &out.RawMessage{
		SourceMessageID: msg.Id,
		Timestamp:       time.Unix(msg.InternalDate/1000, 0).UTC(),
	}

	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch header.Name {
			case "From":
				rm.Sender = parseSenderAddress(header.Value)
			case "Subject":
				rm.Subject = header.Value
			case "Date":
				if t, err := time.Parse(time.RFC1123Z, header.Value); err == nil {
					rm.Timestamp = t.UTC()
				}
			}
		}

		htmlBody, textBody := parseBody(msg.Payload)
		if textBody != "" {
			rm.Body = textBody
		} else if htmlBody != "" {
			rm.Body = stripHTML(htmlBody)
		}
	}

	if rm.Body == "" {
		rm.Body = msg.Snippet
	}
	return rm
}

// parseSenderAddress strips the display name from a From header,
// leaving the bare address.
func parseSenderAddress(value string) string {
	if start := strings.Index(value, "<"); start >= 0 {
		if end := strings.Index(value[start:], ">"); end > 0 {
			return strings.TrimSpace(value[start+1 : start+end])
		}
	}
	return strings.TrimSpace(value)
}

func parseBody(payload *gmail.MessagePart) (htmlBody, textBody string) {
	if payload == nil {
		return "", ""
	}

	if payload.MimeType == "text/html" && payload.Body != nil {
		data, _ := base64.URLEncoding.DecodeString(payload.Body.Data)
		htmlBody = string(data)
	}
	if payload.MimeType == "text/plain" && payload.Body != nil {
		data, _ := base64.URLEncoding.DecodeString(payload.Body.Data)
		textBody = string(data)
	}

	for _, part := range payload.Parts {
		h, t := parseBody(part)
		if htmlBody == "" && h != "" {
			htmlBody = h
		}
		if textBody == "" && t != "" {
			textBody = t
		}
	}

	return htmlBody, textBody
}

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

func stripHTML(s string) string {
	stripped := htmlTagPattern.ReplaceAllString(s, " ")
	stripped = html.UnescapeString(stripped)
	return strings.Join(strings.Fields(stripped), " ")
}
