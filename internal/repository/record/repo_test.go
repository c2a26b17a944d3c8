package record

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/biorag/internal/db"
	"github.com/kailas-cloud/biorag/internal/domain"
)

// --- Mocks ---

type mockStore struct {
	hsetKey    string
	hsetFields map[string]string
	hsetErr    error

	indexExists bool
	existsErr   error
	created     *db.IndexDefinition
	createErr   error

	count    int
	countErr error
}

func (m *mockStore) HSet(_ context.Context, key string, fields map[string]string) error {
	m.hsetKey = key
	m.hsetFields = fields
	return m.hsetErr
}

func (m *mockStore) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	m.created = def
	return m.createErr
}

func (m *mockStore) IndexExists(_ context.Context, _ string) (bool, error) {
	return m.indexExists, m.existsErr
}

func (m *mockStore) SearchCount(_ context.Context, _ string) (int, error) {
	return m.count, m.countErr
}

// --- Tests ---

func TestUpsert_EncodesFields(t *testing.T) {
	store := &mockStore{}
	repo := New(store, 2)

	rec := domain.Record{
		ID:       "rec-1",
		Content:  "Frozen lung specimen",
		Metadata: map[string]string{domain.MetaSampleType: "Primary Tumor"},
		Vector:   []float32{0.5, -0.5},
	}
	if err := repo.Upsert(context.Background(), rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if store.hsetKey != HashPrefix+"rec-1" {
		t.Errorf("unexpected key %q", store.hsetKey)
	}
	if store.hsetFields[FieldContent] != "Frozen lung specimen" {
		t.Errorf("content not stored: %v", store.hsetFields)
	}
	if store.hsetFields[FieldMetadata] != `{"sample_type":"Primary Tumor"}` {
		t.Errorf("metadata not JSON-encoded: %q", store.hsetFields[FieldMetadata])
	}

	vec, err := db.VectorFromBytes([]byte(store.hsetFields[FieldVector]))
	if err != nil {
		t.Fatalf("vector blob: %v", err)
	}
	if len(vec) != 2 || vec[0] != 0.5 || vec[1] != -0.5 {
		t.Errorf("vector round-trip mismatch: %v", vec)
	}
}

func TestUpsert_Validation(t *testing.T) {
	repo := New(&mockStore{}, 2)

	err := repo.Upsert(context.Background(), domain.Record{Content: "x", Vector: []float32{1, 2}})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("missing id: expected ErrInvalidInput, got %v", err)
	}

	err = repo.Upsert(context.Background(), domain.Record{ID: "a", Vector: []float32{1, 2, 3}})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("dimension mismatch: expected ErrInvalidInput, got %v", err)
	}
}

func TestEnsureIndex_CreatesOnce(t *testing.T) {
	store := &mockStore{}
	repo := New(store, 4)

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if store.created == nil {
		t.Fatal("expected index creation")
	}
	if store.created.Name != IndexName {
		t.Errorf("unexpected index name %q", store.created.Name)
	}

	// Existing index short-circuits.
	store.created = nil
	store.indexExists = true
	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	if store.created != nil {
		t.Error("index must not be recreated")
	}
}

func TestEnsureIndex_RaceTolerated(t *testing.T) {
	store := &mockStore{createErr: db.ErrIndexExists}
	repo := New(store, 4)

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("concurrent creation should be tolerated: %v", err)
	}
}

func TestEnsureIndex_HNSW(t *testing.T) {
	store := &mockStore{}
	repo := New(store, 4).WithHNSW(HNSWConfig{M: 16, EFConstruct: 200})

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("EnsureIndex: %v", err)
	}
	var vecField *db.IndexField
	for i := range store.created.Fields {
		if store.created.Fields[i].Type == db.IndexFieldVector {
			vecField = &store.created.Fields[i]
		}
	}
	if vecField == nil {
		t.Fatal("no vector field in index definition")
	}
	if vecField.VectorAlgo != db.VectorHNSW || vecField.VectorM != 16 {
		t.Errorf("HNSW config not applied: %+v", vecField)
	}
}

func TestCount(t *testing.T) {
	repo := New(&mockStore{count: 7}, 4)

	n, err := repo.Count(context.Background())
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 7 {
		t.Errorf("expected 7, got %d", n)
	}

	repo = New(&mockStore{countErr: errors.New("down")}, 4)
	if _, err := repo.Count(context.Background()); !errors.Is(err, domain.ErrIndexUnavailable) {
		t.Errorf("expected ErrIndexUnavailable, got %v", err)
	}
}
