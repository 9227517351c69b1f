// Package rag provides the embedding gateway used for semantic search.
package rag

import (
	"context"
	"math"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"triage_server/core/agent/llm"
	"triage_server/core/port/out"
)

// MaxEmbedChars bounds the text sent to the embedding provider.
const MaxEmbedChars = 8000

type Embedder struct {
	client *llm.Client
	log    zerolog.Logger
}

var _ out.Embedder = (*Embedder)(nil)

func NewEmbedder(client *llm.Client, log zerolog.Logger) *Embedder {
	return &Embedder{client: client, log: log}
}

// Embed returns a vector for text, or nil on any failure. Callers treat
// nil as "no embedding available", never as an error.
func (e *Embedder) Embed(ctx context.Context, text string) []float64 {
	if !e.client.Available() || text == "" {
		return nil
	}
	text = truncateRunes(text, MaxEmbedChars)

	vec, err := e.client.Embedding(ctx, text)
	if err != nil {
		e.log.Warn().Err(err).Msg("embedding failed")
		return nil
	}
	return vec
}

// Model returns the embedding model name recorded on stored vectors.
func (e *Embedder) Model() string {
	return e.client.EmbeddingModel()
}

// PrepareText builds the canonical embedding input for an email.
func PrepareText(subject, body string) string {
	return truncateRunes(subject+"\n\n"+body, MaxEmbedChars)
}

// truncateRunes caps text at max bytes without splitting a UTF-8 rune;
// the cut backs off to the preceding rune boundary.
func truncateRunes(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// CosineSimilarity returns the cosine of the angle between a and b, in
// [-1, 1], or 0 when either vector has zero norm or lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
