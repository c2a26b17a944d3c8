// Package record persists biospecimen records as hashes behind a vector index.
package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/biorag/internal/db"
	"github.com/kailas-cloud/biorag/internal/domain"
)

// IndexName is the vector index covering all stored records.
const IndexName = domain.KeyPrefix + "records:idx"

// HashPrefix namespaces record hash keys.
const HashPrefix = domain.KeyPrefix + "records:"

// Hash field names shared with the search repository.
const (
	FieldContent  = "content"
	FieldMetadata = "metadata"
	FieldVector   = "vector"
)

// store is the consumer interface for record persistence (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchCount(ctx context.Context, index string) (int, error)
}

// HNSWConfig tunes the index build for the redis backend.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo stores and counts records.
type Repo struct {
	store      store
	dimensions int
	hnsw       HNSWConfig
}

// New creates a record repository for vectors of the given dimensionality.
func New(s store, dimensions int) *Repo {
	return &Repo{store: s, dimensions: dimensions}
}

// WithHNSW switches the vector index from FLAT to HNSW with the given parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	r.hnsw = cfg
	return r
}

// EnsureIndex creates the record index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, IndexName)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def := r.indexDefinition()
	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Upsert writes one record. The vector must match the configured dimensionality.
func (r *Repo) Upsert(ctx context.Context, rec domain.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("record id is required: %w", domain.ErrInvalidInput)
	}
	if len(rec.Vector) != r.dimensions {
		return fmt.Errorf("vector has %d dimensions, index expects %d: %w",
			len(rec.Vector), r.dimensions, domain.ErrInvalidInput)
	}

	fields, err := toFields(rec)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}

	if err := r.store.HSet(ctx, HashPrefix+rec.ID, fields); err != nil {
		return fmt.Errorf("store record %s: %w", rec.ID, err)
	}
	return nil
}

// Count returns the number of indexed records.
func (r *Repo) Count(ctx context.Context) (int, error) {
	n, err := r.store.SearchCount(ctx, IndexName)
	if err != nil {
		return 0, fmt.Errorf("count records: %w: %w", domain.ErrIndexUnavailable, err)
	}
	return n, nil
}

func (r *Repo) indexDefinition() *db.IndexDefinition {
	vecField := db.IndexField{
		Name:           FieldVector,
		Type:           db.IndexFieldVector,
		VectorDim:      r.dimensions,
		VectorDistance: db.DistanceCosine,
		VectorAlgo:     db.VectorFlat,
	}
	if r.hnsw.M > 0 {
		vecField.VectorAlgo = db.VectorHNSW
		vecField.VectorM = r.hnsw.M
		vecField.VectorEFConstruct = r.hnsw.EFConstruct
	}

	return &db.IndexDefinition{
		Name:     IndexName,
		Prefixes: []string{HashPrefix},
		Fields: []db.IndexField{
			{Name: FieldContent, Type: db.IndexFieldText},
			vecField,
		},
	}
}
