package domain

import "errors"

var (
	// ErrInvalidInput signals a missing or empty question.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotReady signals that the startup readiness gate has not passed yet.
	ErrNotReady = errors.New("system not ready")
	// ErrEmbeddingUnavailable signals an exhausted or non-retryable embedding failure.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrIndexUnavailable signals that the similarity index cannot be queried.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrGenerationUnavailable signals an answer generation failure.
	ErrGenerationUnavailable = errors.New("generation unavailable")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)
