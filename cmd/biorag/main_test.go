package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	healthuc "github.com/kailas-cloud/biorag/internal/usecase/health"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(_ context.Context) error { return s.err }

type stubCounter struct {
	count int
	err   error
}

func (s stubCounter) Count(_ context.Context) (int, error) { return s.count, s.err }

func TestRetryInitialize_StopsOnCancel(t *testing.T) {
	// Initialize never succeeds here; cancellation must be the exit.
	svc := healthuc.New(stubPinger{}, nil, stubCounter{err: errors.New("store down")}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		retryInitialize(ctx, svc, time.Millisecond, zap.NewNop())
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop did not stop after cancel")
	}
	if svc.Ready() {
		t.Error("service must not become ready")
	}
}

func TestRetryInitialize_ReturnsOnceReady(t *testing.T) {
	svc := healthuc.New(stubPinger{}, nil, stubCounter{count: 7}, zap.NewNop())

	done := make(chan struct{})
	go func() {
		retryInitialize(context.Background(), svc, time.Millisecond, zap.NewNop())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop did not return after a successful pass")
	}
	if !svc.Ready() {
		t.Error("service should be ready")
	}
}
