package search

import (
	"context"

	"github.com/kailas-cloud/biorag/internal/db"
)

// mockStore records the last KNN query and returns a canned result.
type mockStore struct {
	result    *db.SearchResult
	err       error
	lastQuery *db.KNNQuery
}

func (m *mockStore) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	m.lastQuery = q
	return m.result, m.err
}

func entry(key string, score float64, content, metadata string) db.SearchEntry {
	return db.SearchEntry{
		Key:   key,
		Score: score,
		Fields: map[string]string{
			"content":  content,
			"metadata": metadata,
		},
	}
}
