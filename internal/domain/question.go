package domain

import (
	"fmt"
	"strings"
)

// Question is a validated user question.
type Question struct {
	raw string
}

// NewQuestion validates and wraps a raw question string.
// A question that is empty after trimming fails with ErrInvalidInput.
func NewQuestion(raw string) (Question, error) {
	if strings.TrimSpace(raw) == "" {
		return Question{}, fmt.Errorf("question must not be empty: %w", ErrInvalidInput)
	}
	return Question{raw: raw}, nil
}

// Raw returns the question exactly as submitted.
func (q Question) Raw() string { return q.raw }

// CacheKey returns the normalized form used as the response cache key:
// trimmed and case-folded, so " What is Sample X? " and "what is sample x?"
// share one cache entry.
func (q Question) CacheKey() string {
	return strings.ToLower(strings.TrimSpace(q.raw))
}

// EmbeddingText returns the question prepared for the embedding API:
// newlines collapsed to single spaces.
func (q Question) EmbeddingText() string {
	return strings.TrimSpace(strings.ReplaceAll(q.raw, "\n", " "))
}
