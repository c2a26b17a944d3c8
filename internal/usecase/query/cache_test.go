package query

import (
	"sync"
	"testing"

	"github.com/kailas-cloud/biorag/internal/domain"
)

func TestResponseCache_GetPut(t *testing.T) {
	c := NewResponseCache(nil)

	if _, ok := c.Get("missing"); ok {
		t.Error("empty cache should miss")
	}

	res := domain.QueryResult{Answer: "a", Status: 200}
	c.Put("what is sample x?", res)

	got, ok := c.Get("what is sample x?")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Answer != "a" {
		t.Errorf("unexpected cached answer %q", got.Answer)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestResponseCache_Concurrent(t *testing.T) {
	c := NewResponseCache(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Put("key", domain.QueryResult{Answer: "x"})
			c.Get("key")
		}()
	}
	wg.Wait()

	if c.Len() != 1 {
		t.Errorf("expected a single entry after concurrent writes, got %d", c.Len())
	}
}
