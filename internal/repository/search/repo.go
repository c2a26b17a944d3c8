// Package search builds KNN queries against the record index and parses
// the hits into scored records.
package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/biorag/internal/db"
	"github.com/kailas-cloud/biorag/internal/domain"
	"github.com/kailas-cloud/biorag/internal/repository/record"
)

// store is the consumer interface for search operations (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Repo implements the orchestrator's Searcher contract.
type Repo struct {
	store store
}

// New creates a search repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Search returns up to limit records ranked by descending cosine
// similarity to the query vector. Fewer stored records than limit is
// not an error; the caller gets whatever exists.
func (r *Repo) Search(ctx context.Context, vector []float32, limit int) ([]domain.ScoredRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d: %w", limit, domain.ErrInvalidInput)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector is empty: %w", domain.ErrInvalidInput)
	}

	// The score field must be requested explicitly: without it in
	// RETURN the server never sends the distance back and every hit
	// would parse with similarity 0.
	q := &db.KNNQuery{
		IndexName:    record.IndexName,
		Vector:       vector,
		K:            limit,
		ReturnFields: []string{record.FieldContent, record.FieldMetadata, db.VectorScoreField},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search knn: %w: %w", domain.ErrIndexUnavailable, err)
	}

	return parseResults(sr), nil
}

// parseResults converts store hits into ScoredRecords, re-sorting
// defensively so the descending-similarity contract holds regardless of
// backend ordering quirks. The sort is stable: ties keep store order.
func parseResults(sr *db.SearchResult) []domain.ScoredRecord {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	results := make([]domain.ScoredRecord, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		results = append(results, domain.ScoredRecord{
			Content:    entry.Fields[record.FieldContent],
			Metadata:   record.ParseMetadata(entry.Fields[record.FieldMetadata]),
			Similarity: entry.Score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	return results
}
