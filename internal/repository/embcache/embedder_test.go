package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/biorag/internal/db"
	"github.com/kailas-cloud/biorag/internal/domain"
)

// --- Mocks ---

type kvMock struct {
	data   map[string][]byte
	getErr error
	setErr error
}

func newKVMock() *kvMock {
	return &kvMock{data: make(map[string][]byte)}
}

func (m *kvMock) Get(_ context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *kvMock) Set(_ context.Context, key string, value []byte) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

type innerMock struct {
	vec   []float32
	err   error
	calls int
}

func (m *innerMock) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 9}, nil
}

// --- Tests ---

func TestEmbed_MissThenHit(t *testing.T) {
	kv := newKVMock()
	inner := &innerMock{vec: []float32{0.1, 0.2}}
	c := New(inner, kv, nil, zap.NewNop())

	first, err := c.Embed(context.Background(), "what is sample x?")
	if err != nil {
		t.Fatalf("first Embed: %v", err)
	}
	if first.TotalTokens != 9 {
		t.Errorf("miss should report real token usage, got %d", first.TotalTokens)
	}

	second, err := c.Embed(context.Background(), "what is sample x?")
	if err != nil {
		t.Fatalf("second Embed: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected a single upstream call, got %d", inner.calls)
	}
	if second.TotalTokens != 0 {
		t.Errorf("hit must report zero tokens, got %d", second.TotalTokens)
	}
	if len(second.Embedding) != 2 || second.Embedding[0] != 0.1 {
		t.Errorf("cached vector mismatch: %v", second.Embedding)
	}
}

func TestEmbed_KeyIsNamespacedHash(t *testing.T) {
	kv := newKVMock()
	c := New(&innerMock{vec: []float32{1}}, kv, nil, zap.NewNop())

	if _, err := c.Embed(context.Background(), "text"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	for key := range kv.data {
		if !strings.HasPrefix(key, "biorag:emb_cache:") {
			t.Errorf("cache key %q missing namespace prefix", key)
		}
		if strings.Contains(key, "text") {
			t.Errorf("cache key %q leaks raw text", key)
		}
	}
}

func TestEmbed_StoreFailureFallsThrough(t *testing.T) {
	kv := newKVMock()
	kv.getErr = errors.New("store down")
	kv.setErr = errors.New("store down")
	inner := &innerMock{vec: []float32{0.3}}
	c := New(inner, kv, nil, zap.NewNop())

	res, err := c.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("a dead cache must not fail embedding: %v", err)
	}
	if len(res.Embedding) != 1 {
		t.Errorf("expected upstream result, got %v", res.Embedding)
	}
	if inner.calls != 1 {
		t.Errorf("expected upstream call, got %d", inner.calls)
	}
}

func TestEmbed_CorruptEntryIgnored(t *testing.T) {
	kv := newKVMock()
	inner := &innerMock{vec: []float32{0.5}}
	c := New(inner, kv, nil, zap.NewNop())

	// Seed a blob whose length is not a multiple of 4.
	kv.data[c.cacheKey("q")] = []byte{1, 2, 3}

	res, err := c.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.calls != 1 {
		t.Error("corrupt cache entry should fall through to upstream")
	}
	if len(res.Embedding) != 1 {
		t.Errorf("unexpected embedding %v", res.Embedding)
	}
}

func TestEmbed_UpstreamErrorNotCached(t *testing.T) {
	kv := newKVMock()
	inner := &innerMock{err: errors.New("quota exceeded")}
	c := New(inner, kv, nil, zap.NewNop())

	if _, err := c.Embed(context.Background(), "q"); err == nil {
		t.Fatal("expected upstream error")
	}
	if len(kv.data) != 0 {
		t.Error("failed embeddings must not be cached")
	}
}
