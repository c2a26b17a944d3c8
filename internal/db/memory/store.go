// Package memory provides an in-process db.Store with exact brute-force
// vector search. Every KNN query scans the full corpus, so it is only
// suitable for small corpora and tests; the redis driver is the one that
// scales past that.
package memory

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/biorag/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

type kvEntry struct {
	value     []byte
	expiresAt time.Time // zero = no expiry
}

// Store is a mutex-guarded in-memory implementation of db.Store.
type Store struct {
	mu        sync.RWMutex
	kv        map[string]*kvEntry
	hashes    map[string]map[string]string
	hashOrder []string // insertion order, for deterministic tie-breaking
	indexes   map[string]*db.IndexDefinition
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		kv:      make(map[string]*kvEntry),
		hashes:  make(map[string]map[string]string),
		indexes: make(map[string]*db.IndexDefinition),
	}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// --- KVStore ---

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.kv[key]
	if !ok || e.expired() {
		return nil, db.ErrKeyNotFound
	}
	return e.value, nil
}

// Set stores a value at the given key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.kv[key] = &kvEntry{value: value}
	return nil
}

// SetWithTTL stores a value with an expiration.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.kv[key] = &kvEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

// IncrBy atomically increments an integer key and returns the new value.
func (s *Store) IncrBy(_ context.Context, key string, val int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.kv[key]
	if !ok || e.expired() {
		e = &kvEntry{}
		s.kv[key] = e
	}
	n := parseInt(string(e.value)) + val
	e.value = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

// Expire sets TTL on a key. With nx=true only keys without an expiry are touched.
func (s *Store) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.kv[key]
	if !ok || e.expired() {
		return nil
	}
	if nx && !e.expiresAt.IsZero() {
		return nil
	}
	e.expiresAt = time.Now().Add(ttl)
	return nil
}

// --- HashStore ---

// HSet sets hash fields.
func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hashes[key]
	if !ok {
		h = make(map[string]string, len(fields))
		s.hashes[key] = h
		s.hashOrder = append(s.hashOrder, key)
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

// HGetAll returns all fields of a hash; absent keys yield an empty map.
func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.hashes[key]))
	for k, v := range s.hashes[key] {
		out[k] = v
	}
	return out, nil
}

// Del deletes a key from both the hash and KV spaces.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.hashes[key]; ok {
		delete(s.hashes, key)
		for i, k := range s.hashOrder {
			if k == key {
				s.hashOrder = append(s.hashOrder[:i], s.hashOrder[i+1:]...)
				break
			}
		}
	}
	delete(s.kv, key)
	return nil
}

// Exists checks if a key exists.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.hashes[key]; ok {
		return true, nil
	}
	e, ok := s.kv[key]
	return ok && !e.expired(), nil
}

// Scan returns hash keys matching a prefix pattern ("prefix*").
func (s *Store) Scan(_ context.Context, pattern string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for _, k := range s.hashOrder {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// --- IndexManager ---

// CreateIndex registers an index definition.
func (s *Store) CreateIndex(_ context.Context, def *db.IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[def.Name]; ok {
		return db.ErrIndexExists
	}
	s.indexes[def.Name] = def
	return nil
}

// DropIndex removes an index definition.
func (s *Store) DropIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[name]; !ok {
		return db.ErrIndexNotFound
	}
	delete(s.indexes, name)
	return nil
}

// IndexExists reports whether an index is registered.
func (s *Store) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.indexes[name]
	return ok, nil
}

// --- VectorSearcher ---

// SearchKNN scans every indexed hash, computes exact cosine similarity,
// and returns the K best entries descending. Equal scores keep insertion
// order (stable sort), matching the ranking contract of the redis driver.
func (s *Store) SearchKNN(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[q.IndexName]
	if !ok {
		return nil, db.ErrIndexNotFound
	}
	vecField := vectorFieldName(idx)

	var entries []db.SearchEntry
	for _, key := range s.hashOrder {
		if !matchesPrefix(key, idx.Prefixes) {
			continue
		}
		h := s.hashes[key]
		stored, err := db.VectorFromBytes([]byte(h[vecField]))
		if err != nil || len(stored) != len(q.Vector) {
			continue
		}

		fields := make(map[string]string, len(h))
		for k, v := range h {
			if k == vecField {
				continue
			}
			if len(q.ReturnFields) > 0 && !contains(q.ReturnFields, k) {
				continue
			}
			fields[k] = v
		}

		entries = append(entries, db.SearchEntry{
			Key:    key,
			Score:  cosineSimilarity(q.Vector, stored),
			Fields: fields,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})

	total := len(entries)
	if len(entries) > q.K {
		entries = entries[:q.K]
	}

	return &db.SearchResult{Total: total, Entries: entries}, nil
}

// SearchCount returns the number of hashes covered by an index.
func (s *Store) SearchCount(_ context.Context, index string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[index]
	if !ok {
		return 0, db.ErrIndexNotFound
	}

	count := 0
	for _, key := range s.hashOrder {
		if matchesPrefix(key, idx.Prefixes) {
			count++
		}
	}
	return count, nil
}

// --- helpers ---

func (e *kvEntry) expired() bool {
	return !e.expiresAt.IsZero() && time.Now().After(e.expiresAt)
}

func vectorFieldName(idx *db.IndexDefinition) string {
	for i := range idx.Fields {
		if idx.Fields[i].Type == db.IndexFieldVector {
			return idx.Fields[i].Name
		}
	}
	return "vector"
}

func matchesPrefix(key string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func parseInt(s string) int64 {
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}
