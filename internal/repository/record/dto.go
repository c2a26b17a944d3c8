package record

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/biorag/internal/db"
	"github.com/kailas-cloud/biorag/internal/domain"
)

// toFields encodes a record into hash fields: metadata as JSON, vector
// as the little-endian float32 blob the index expects.
func toFields(rec domain.Record) (map[string]string, error) {
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	return map[string]string{
		FieldContent:  rec.Content,
		FieldMetadata: string(meta),
		FieldVector:   db.VectorToBytes(rec.Vector),
	}, nil
}

// ParseMetadata decodes the metadata hash field. A missing or malformed
// field yields an empty map rather than an error: metadata is advisory.
func ParseMetadata(raw string) map[string]string {
	if raw == "" {
		return map[string]string{}
	}
	var meta map[string]string
	if err := json.Unmarshal([]byte(raw), &meta); err != nil || meta == nil {
		return map[string]string{}
	}
	return meta
}
