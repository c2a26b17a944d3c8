package query

import (
	"context"

	"github.com/kailas-cloud/biorag/internal/domain"
)

// Embedder vectorizes question text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher returns the records most similar to a query vector,
// descending by cosine similarity.
type Searcher interface {
	Search(ctx context.Context, vector []float32, limit int) ([]domain.ScoredRecord, error)
}

// Generator produces a grounded answer from a question and context block.
type Generator interface {
	Generate(ctx context.Context, question, context string) (string, error)
}

// ReadinessChecker gates query handling until the startup smoke test passed.
type ReadinessChecker interface {
	Ready() bool
}
