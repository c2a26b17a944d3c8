package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/biorag/internal/domain"
)

func newGeneratorServer(t *testing.T, handler http.HandlerFunc) *Generator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewGenerator(&GeneratorConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1",
		Model:   "gpt-4o-mini",
		Logger:  zap.NewNop(),
	})
}

func TestGenerate_Success(t *testing.T) {
	var gotBody map[string]any
	g := newGeneratorServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "Sample X is frozen."}}],
			"usage": {"prompt_tokens": 40, "completion_tokens": 8}
		}`))
	})

	answer, err := g.Generate(context.Background(), "Is sample X frozen?", "Record 1 (Similarity: 0.93):\n...")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if answer != "Sample X is frozen." {
		t.Errorf("unexpected answer %q", answer)
	}

	msgs, _ := gotBody["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system + user turns, got %d", len(msgs))
	}
	system := msgs[0].(map[string]any)
	if system["role"] != "system" || !strings.Contains(system["content"].(string), "biomedical research assistant") {
		t.Errorf("unexpected system turn: %v", system)
	}
	user := msgs[1].(map[string]any)
	content := user["content"].(string)
	if !strings.Contains(content, "Question: Is sample X frozen?") || !strings.Contains(content, "Context:\nRecord 1") {
		t.Errorf("user turn missing question or context: %q", content)
	}

	if temp, _ := gotBody["temperature"].(float64); temp != 0.2 {
		t.Errorf("expected default temperature 0.2, got %v", gotBody["temperature"])
	}
	if maxTok, _ := gotBody["max_tokens"].(float64); maxTok != 500 {
		t.Errorf("expected default max_tokens 500, got %v", gotBody["max_tokens"])
	}
}

func TestGenerate_APIFailure(t *testing.T) {
	g := newGeneratorServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	})

	_, err := g.Generate(context.Background(), "q", "ctx")
	if !errors.Is(err, domain.ErrGenerationUnavailable) {
		t.Fatalf("expected ErrGenerationUnavailable, got %v", err)
	}
}

func TestGenerate_EmptyChoices(t *testing.T) {
	g := newGeneratorServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [], "usage": {}}`))
	})

	_, err := g.Generate(context.Background(), "q", "ctx")
	if !errors.Is(err, domain.ErrGenerationUnavailable) {
		t.Fatalf("expected ErrGenerationUnavailable, got %v", err)
	}
}
