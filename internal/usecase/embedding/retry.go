// Package embedding decorates the embedding provider with bounded
// retry, matching the upstream service's throttling behavior.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/biorag/internal/domain"
	"github.com/kailas-cloud/biorag/internal/metrics"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	MaxAttempts int           // total attempts including the first
	BaseDelay   time.Duration // first backoff upper bound
	MaxDelay    time.Duration // backoff upper bound cap
	IsRetryable func(error) bool
}

// DefaultRetryConfig mirrors the embedding service's recommended client
// behavior: up to 6 attempts, random exponential wait between 1s and 20s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 6,
		BaseDelay:   time.Second,
		MaxDelay:    20 * time.Second,
	}
}

// RetryingEmbedder retries transient failures of the inner embedder with
// exponential backoff and full jitter. Permanent failures (authentication,
// malformed requests) and invalid input fail immediately.
type RetryingEmbedder struct {
	inner  domain.Embedder
	cfg    RetryConfig
	model  string
	logger *zap.Logger
}

// NewRetryingEmbedder creates the retry decorator. Zero config fields
// fall back to DefaultRetryConfig values.
func NewRetryingEmbedder(inner domain.Embedder, cfg RetryConfig, model string, logger *zap.Logger) *RetryingEmbedder {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.IsRetryable == nil {
		cfg.IsRetryable = func(error) bool { return true }
	}
	return &RetryingEmbedder{inner: inner, cfg: cfg, model: model, logger: logger}
}

// Embed implements domain.Embedder. On exhausting all attempts the last
// underlying error is carried inside ErrEmbeddingUnavailable for diagnostics.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var lastErr error

	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			metrics.EmbeddingRetriesTotal.WithLabelValues(r.model).Inc()
		}

		result, err := r.inner.Embed(ctx, text)
		if err == nil {
			return result, nil
		}

		if errors.Is(err, domain.ErrInvalidInput) {
			return domain.EmbeddingResult{}, err
		}
		if !r.cfg.IsRetryable(err) {
			return domain.EmbeddingResult{}, fmt.Errorf("embedding failed: %w: %w",
				domain.ErrEmbeddingUnavailable, err)
		}

		lastErr = err
		r.logger.Warn("Transient embedding failure",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", r.cfg.MaxAttempts),
			zap.Error(err),
		)

		if attempt < r.cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return domain.EmbeddingResult{}, fmt.Errorf("embedding canceled: %w", ctx.Err())
			case <-time.After(r.backoff(attempt)):
			}
		}
	}

	return domain.EmbeddingResult{}, fmt.Errorf("embedding failed after %d attempts: %w: %w",
		r.cfg.MaxAttempts, domain.ErrEmbeddingUnavailable, lastErr)
}

// backoff returns a full-jitter delay: uniform in (0, min(cap, base*2^attempt)).
func (r *RetryingEmbedder) backoff(attempt int) time.Duration {
	ceiling := r.cfg.BaseDelay << uint(attempt)
	if ceiling > r.cfg.MaxDelay || ceiling <= 0 {
		ceiling = r.cfg.MaxDelay
	}
	return time.Duration(rand.Float64() * float64(ceiling))
}

// HealthCheck forwards to the inner embedder if it supports health checks.
// A health check failure is reported immediately, never retried.
func (r *RetryingEmbedder) HealthCheck(ctx context.Context) error {
	if hc, ok := r.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}
