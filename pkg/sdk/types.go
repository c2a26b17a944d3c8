package biorag

// Record is a biospecimen document to ingest.
type Record struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// ScoredRecord is a retrieved record with its cosine similarity to the question.
type ScoredRecord struct {
	Content    string
	Metadata   map[string]string
	Similarity float64
}

// QueryResult is the outcome of one pipeline run.
type QueryResult struct {
	Answer         string
	Sources        []ScoredRecord
	ProcessingTime string
}

// StatusInfo describes the current system state.
type StatusInfo struct {
	Ready   bool
	Records int
}
