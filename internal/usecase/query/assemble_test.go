package query

import (
	"strings"
	"testing"

	"github.com/kailas-cloud/biorag/internal/domain"
)

func TestAssembleContext_Empty(t *testing.T) {
	if got := AssembleContext(nil); got != "" {
		t.Errorf("expected empty context, got %q", got)
	}
}

func TestAssembleContext_Format(t *testing.T) {
	sources := []domain.ScoredRecord{
		{
			Content:    "Frozen lung adenocarcinoma specimen",
			Metadata:   map[string]string{domain.MetaSampleType: "Primary Tumor"},
			Similarity: 0.934,
		},
		{
			Content:    "FFPE liver specimen",
			Metadata:   map[string]string{},
			Similarity: 0.5,
		},
	}

	got := AssembleContext(sources)

	if !strings.Contains(got, "Record 1 (Similarity: 0.93):") {
		t.Errorf("missing first record header with rounded similarity:\n%s", got)
	}
	if !strings.Contains(got, "Record 2 (Similarity: 0.50):") {
		t.Errorf("missing second record header:\n%s", got)
	}
	if !strings.Contains(got, "Content: Frozen lung adenocarcinoma specimen") {
		t.Errorf("missing content line:\n%s", got)
	}
	if !strings.Contains(got, `Metadata: {"sample_type":"Primary Tumor"}`) {
		t.Errorf("missing metadata JSON:\n%s", got)
	}
	if strings.Index(got, "Record 1") > strings.Index(got, "Record 2") {
		t.Error("records out of rank order")
	}
}

func TestAssembleContext_Deterministic(t *testing.T) {
	sources := []domain.ScoredRecord{
		{Content: "a", Metadata: map[string]string{"k": "v"}, Similarity: 1},
	}
	if AssembleContext(sources) != AssembleContext(sources) {
		t.Error("same input must produce identical output")
	}
}
