// Package vectorindex provides approximate nearest-neighbor search over
// file embeddings: named collections of {id, content, vector, metadata}
// rows backed by a pure-Go HNSW graph, persisted to disk alongside the
// rest of the index.
package vectorindex

import (
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/basinlabs/symgraph/internal/sgerrors"
)

// Metadata is the per-row metadata persisted with each vector.
type Metadata struct {
	Partition     string  `json:"partition"`
	Authority     float64 `json:"authority"`
	OriginalScore float64 `json:"original_score"`
	ContentHash   string  `json:"content_hash"`
}

// Row is one vector entry.
type Row struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata Metadata
}

// Result is one nearest-neighbor hit. Score = max(0, 1 - Distance).
type Result struct {
	ID       string
	Content  string
	Metadata Metadata
	Score    float64
	Distance float64
}

// collection owns one HNSW graph plus the row payloads. String ids map
// to uint64 graph keys; replacement uses lazy deletion (the old key is
// orphaned rather than removed from the graph, which coder/hnsw handles
// poorly for the last node).
type collection struct {
	name    string
	dim     int
	graph   *hnsw.Graph[uint64]
	rows    map[string]*Row
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64
}

// Store manages named collections. Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// CreateCollection ensures a collection exists. Idempotent; the vector
// dimension is fixed by the first row added.
func (s *Store) CreateCollection(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createLocked(name)
}

func (s *Store) createLocked(name string) *collection {
	if c, ok := s.collections[name]; ok {
		return c
	}
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25
	c := &collection{
		name:   name,
		graph:  graph,
		rows:   make(map[string]*Row),
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}
	s.collections[name] = c
	return c
}

// Drop removes a collection and all its rows. Unknown names are a no-op.
func (s *Store) Drop(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
}

// Add upserts rows into the named collection, creating it on first use.
// A row whose vector dimension disagrees with the collection's is fatal.
func (s *Store) Add(name string, rows []Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.createLocked(name)
	for i := range rows {
		row := rows[i]
		if len(row.Vector) == 0 {
			return sgerrors.StoreErr("vectorindex: empty vector", nil).WithFile(row.ID)
		}
		if c.dim == 0 {
			c.dim = len(row.Vector)
		} else if len(row.Vector) != c.dim {
			return sgerrors.StoreErr("vectorindex: vector dimension mismatch", nil).
				WithFile(row.ID).
				WithDetail("collection", name)
		}

		if oldKey, exists := c.idMap[row.ID]; exists {
			delete(c.keyMap, oldKey)
			delete(c.idMap, row.ID)
		}
		key := c.nextKey
		c.nextKey++

		vec := normalize(row.Vector)
		c.graph.Add(hnsw.MakeNode(key, vec))
		c.idMap[row.ID] = key
		c.keyMap[key] = row.ID
		c.rows[row.ID] = &row
	}
	return nil
}

// Remove deletes rows by id using lazy deletion. Unknown ids are no-ops.
func (s *Store) Remove(name string, ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return
	}
	for _, id := range ids {
		if key, exists := c.idMap[id]; exists {
			delete(c.keyMap, key)
			delete(c.idMap, id)
			delete(c.rows, id)
		}
	}
}

// Search returns the top-k rows nearest to query with score >= threshold,
// sorted descending by score, ties broken by id ascending.
func (s *Store) Search(name string, query []float32, k int, threshold float64) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collections[name]
	if !ok || c.graph.Len() == 0 || k <= 0 {
		return nil, nil
	}
	if c.dim != 0 && len(query) != c.dim {
		return nil, sgerrors.StoreErr("vectorindex: query dimension mismatch", nil).
			WithDetail("collection", name)
	}

	normalized := normalize(query)
	// Overfetch to compensate for lazily deleted nodes still in the graph.
	fetch := k + (c.graph.Len() - len(c.idMap))
	nodes := c.graph.Search(normalized, fetch)

	results := make([]Result, 0, len(nodes))
	for _, node := range nodes {
		id, live := c.keyMap[node.Key]
		if !live {
			continue
		}
		row := c.rows[id]
		distance := float64(c.graph.Distance(normalized, node.Value))
		score := 1 - distance
		if score < 0 {
			score = 0
		}
		if score < threshold {
			continue
		}
		results = append(results, Result{
			ID:       id,
			Content:  row.Content,
			Metadata: row.Metadata,
			Score:    score,
			Distance: distance,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of live rows in a collection.
func (s *Store) Count(name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return 0
	}
	return len(c.rows)
}

// Contains reports whether a row id is present in a collection.
func (s *Store) Contains(name, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return false
	}
	_, exists := c.rows[id]
	return exists
}

// IDs lists the live row ids in a collection.
func (s *Store) IDs(name string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c.rows))
	for id := range c.rows {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return append([]float32{}, v...)
	}
	inv := 1.0 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
