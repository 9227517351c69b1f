// Package textutil provides deterministic text cleaning and PII extraction.
package textutil

import (
	"regexp"
	"strings"
)

var (
	markupRe     = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)

	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// Phone formats, tried in order: ddd-ddd-dddd, (ddd) ddd-dddd,
	// ddd ddd dddd, bare 10-digit runs.
	phoneRes = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`),
		regexp.MustCompile(`\(\d{3}\)\s?\d{3}-\d{4}`),
		regexp.MustCompile(`\b\d{3}\s\d{3}\s\d{4}\b`),
		regexp.MustCompile(`\b\d{10}\b`),
	}

	// Address patterns, tried in order; only the first match across all
	// patterns is kept.
	addressRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b\d+\s+[A-Za-z0-9 .]+?\s(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct|Place|Pl|Way)\b\.?`),
		regexp.MustCompile(`\b[A-Z][a-z]+(?: [A-Z][a-z]+)*,\s*[A-Z]{2}\s+\d{5}(?:-\d{4})?\b`),
	}
)

// CleanText strips markup tags, collapses whitespace runs to single
// spaces, and trims the ends. Total: empty in, empty out.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = markupRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// PII holds pattern-extracted contact details from a text.
type PII struct {
	Emails  []string
	Phones  []string
	Address string
}

// ExtractPII scans text for email addresses, phone numbers, and a postal
// address. Collections are empty when nothing is found; it never fails.
func ExtractPII(text string) PII {
	pii := PII{
		Emails: dedupe(emailRe.FindAllString(text, -1)),
	}

	var phones []string
	for _, re := range phoneRes {
		phones = append(phones, re.FindAllString(text, -1)...)
	}
	pii.Phones = dedupe(phones)

	for _, re := range addressRes {
		if m := re.FindString(text); m != "" {
			pii.Address = strings.TrimSpace(m)
			break
		}
	}
	return pii
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
