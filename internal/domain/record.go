package domain

// KeyPrefix namespaces every key the service writes to the store.
const KeyPrefix = "biorag:"

// Well-known metadata attribute names for biospecimen records.
const (
	MetaSampleType  = "sample_type"
	MetaPrimarySite = "primary_site"
	MetaAliquotID   = "aliquot_id"
)

// Record is a stored biospecimen document. Immutable once ingested.
type Record struct {
	ID       string
	Content  string
	Metadata map[string]string
	Vector   []float32
}

// ScoredRecord is a Record plus its cosine similarity to a query vector.
// Rank is implied by position after descending sort by Similarity.
type ScoredRecord struct {
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata"`
	Similarity float64           `json:"similarity"`
}
