package db

// VectorScoreField is the synthetic field under which FT.SEARCH reports
// the KNN distance for the @vector attribute. Queries must request it
// explicitly in RETURN or the server omits it; drivers consume it into
// SearchEntry.Score and strip it from Fields.
const VectorScoreField = "__vector_score"

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search, with Score as
// cosine similarity (1 = identical direction), descending.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
