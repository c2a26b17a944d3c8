package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/biorag/internal/domain"
)

// AssembleContext formats ranked records into the context block the
// generator receives. Pure and deterministic: one block per record with
// its 1-based rank, similarity to two decimals, content, and metadata.
// Empty input yields an empty string; the orchestrator decides what
// that means.
func AssembleContext(sources []domain.ScoredRecord) string {
	if len(sources) == 0 {
		return ""
	}

	var b strings.Builder
	for i, src := range sources {
		meta, err := json.Marshal(src.Metadata)
		if err != nil {
			meta = []byte("{}")
		}
		fmt.Fprintf(&b, "Record %d (Similarity: %.2f):\nContent: %s\nMetadata: %s\n",
			i+1, src.Similarity, src.Content, meta)
	}
	return b.String()
}
