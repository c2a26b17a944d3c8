package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/biorag/internal/domain"
)

// --- Mocks ---

type flakyEmbedder struct {
	failures int // errors returned before the first success
	err      error
	calls    int
}

func (f *flakyEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return domain.EmbeddingResult{}, f.err
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 6,
		BaseDelay:   time.Microsecond,
		MaxDelay:    time.Millisecond,
	}
}

// --- Tests ---

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	inner := &flakyEmbedder{failures: 5, err: errors.New("rate limited")}
	r := NewRetryingEmbedder(inner, fastRetryConfig(), "test-model", zap.NewNop())

	res, err := r.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("expected success on 6th attempt, got %v", err)
	}
	if len(res.Embedding) == 0 {
		t.Error("expected an embedding")
	}
	if inner.calls != 6 {
		t.Errorf("expected 6 attempts, got %d", inner.calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	cause := errors.New("rate limited")
	inner := &flakyEmbedder{failures: 100, err: cause}
	r := NewRetryingEmbedder(inner, fastRetryConfig(), "test-model", zap.NewNop())

	_, err := r.Embed(context.Background(), "some text")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("expected the last underlying error to be wrapped")
	}
	if inner.calls != 6 {
		t.Errorf("expected exactly 6 attempts, got %d", inner.calls)
	}
}

func TestRetry_PermanentErrorNotRetried(t *testing.T) {
	cause := errors.New("invalid api key")
	inner := &flakyEmbedder{failures: 100, err: cause}
	cfg := fastRetryConfig()
	cfg.IsRetryable = func(error) bool { return false }
	r := NewRetryingEmbedder(inner, cfg, "test-model", zap.NewNop())

	_, err := r.Embed(context.Background(), "some text")
	if !errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("permanent failure must not be retried, got %d attempts", inner.calls)
	}
}

func TestRetry_InvalidInputPassesThrough(t *testing.T) {
	inner := &flakyEmbedder{failures: 100, err: domain.ErrInvalidInput}
	r := NewRetryingEmbedder(inner, fastRetryConfig(), "test-model", zap.NewNop())

	_, err := r.Embed(context.Background(), "")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if errors.Is(err, domain.ErrEmbeddingUnavailable) {
		t.Error("invalid input is the caller's fault, not an availability problem")
	}
	if inner.calls != 1 {
		t.Errorf("invalid input must not be retried, got %d attempts", inner.calls)
	}
}

func TestRetry_ContextCanceled(t *testing.T) {
	inner := &flakyEmbedder{failures: 100, err: errors.New("timeout")}
	cfg := fastRetryConfig()
	cfg.BaseDelay = time.Hour // force the wait branch
	cfg.MaxDelay = time.Hour
	r := NewRetryingEmbedder(inner, cfg, "test-model", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Embed(ctx, "some text")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected a single attempt before the canceled wait, got %d", inner.calls)
	}
}

func TestRetry_BackoffBounded(t *testing.T) {
	r := NewRetryingEmbedder(&flakyEmbedder{}, RetryConfig{
		MaxAttempts: 6,
		BaseDelay:   time.Second,
		MaxDelay:    20 * time.Second,
	}, "test-model", zap.NewNop())

	for attempt := 0; attempt < 10; attempt++ {
		for i := 0; i < 20; i++ {
			d := r.backoff(attempt)
			if d < 0 || d > 20*time.Second {
				t.Fatalf("backoff(%d) = %v outside [0, 20s]", attempt, d)
			}
		}
	}
}
