// Package ingest implements the ingestion pipeline: CSV batch uploads and
// mailbox sync, tracked through upload progress records.
package ingest

import "strings"

// Canonical field names a pipeline step expects, regardless of source
// column naming.
const (
	FieldSender  = "sender"
	FieldSubject = "subject"
	FieldBody    = "body"
	FieldDate    = "date"
)

// headerSynonyms maps each canonical field to its accepted column names,
// in priority order. Matching is case-insensitive.
var headerSynonyms = map[string][]string{
	FieldSender:  {"sender", "from", "email", "sender_mail", "from_email"},
	FieldSubject: {"subject", "email_subject", "title"},
	FieldBody:    {"body", "email_body", "content", "message", "text"},
	FieldDate:    {"sent_date", "date", "timestamp", "sent_time", "created_at"},
}

// MapHeaders resolves canonical fields to actual column names from the
// available header set. Each field independently takes its first synonym
// present; fields with no match are absent from the result.
func MapHeaders(available []string) map[string]string {
	lookup := make(map[string]string, len(available))
	for _, h := range available {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, exists := lookup[key]; !exists {
			lookup[key] = h
		}
	}

	mapping := make(map[string]string, len(headerSynonyms))
	for field, synonyms := range headerSynonyms {
		for _, syn := range synonyms {
			if actual, ok := lookup[syn]; ok {
				mapping[field] = actual
				break
			}
		}
	}
	return mapping
}

// MissingRequired returns the canonical fields absent from a header
// mapping that row processing cannot proceed without. Date is optional.
func MissingRequired(mapping map[string]string) []string {
	var missing []string
	for _, field := range []string{FieldSender, FieldSubject, FieldBody} {
		if _, ok := mapping[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}
