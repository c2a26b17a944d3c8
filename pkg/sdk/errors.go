package biorag

import "github.com/kailas-cloud/biorag/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput          = domain.ErrInvalidInput
	ErrEmbeddingUnavailable  = domain.ErrEmbeddingUnavailable
	ErrIndexUnavailable      = domain.ErrIndexUnavailable
	ErrGenerationUnavailable = domain.ErrGenerationUnavailable
)
