package domain

// NoResultsAnswer is returned when the similarity search matches nothing.
const NoResultsAnswer = "No relevant records found"

// DegradedAnswer is returned when retrieval succeeded but answer
// generation was unavailable; the sources are still useful on their own.
const DegradedAnswer = "Answer generation is temporarily unavailable; " +
	"the retrieved source records are included below."

// QueryResult is the externally visible outcome of one pipeline run.
type QueryResult struct {
	Answer         string         `json:"answer"`
	Sources        []ScoredRecord `json:"sources"`
	ProcessingTime string         `json:"processing_time"`
	Status         int            `json:"status"`
}

// Complete reports whether the result is a fully successful response,
// i.e. eligible for caching. Degraded answers are recomputed on the next
// request so a recovered generator can fill them in.
func (r QueryResult) Complete() bool {
	return r.Answer != DegradedAnswer
}
