// Package vectorindex implements the optional dense-vector index (C8, spec
// §4.8): fixed-dimension embeddings scored by cosine similarity, blended
// with BM25 results by the query pipeline. Cosine similarity is computed
// with gonum's floats package rather than a hand-rolled loop, matching the
// rest of the domain stack's preference for the pack's numerical library
// over reimplementing linear algebra.
package vectorindex

import (
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/floats"
)

// DimensionMismatchError carries the expected vs. actual vector dimension
// (spec §4.8). Defined here rather than in internal/memory so the manager
// can import this package without a cycle.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Index holds fixed-dimension vectors keyed by document ID. The dimension
// is fixed by the first Upsert and every later vector must match it,
// surfaced via DimensionMismatchError (spec §4.8).
type Index struct {
	mu        sync.RWMutex
	dimension int
	vectors   map[string][]float64
	norms     map[string]float64
}

// New returns an empty index with no dimension committed yet.
func New() *Index {
	return &Index{vectors: make(map[string][]float64), norms: make(map[string]float64)}
}

// Dimension reports the committed vector dimension, or 0 if no vector has
// been upserted yet.
func (idx *Index) Dimension() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dimension
}

// Upsert adds or replaces a document's vector. The first call fixes the
// index's dimension; later calls with a different length return a
// DimensionMismatchError.
func (idx *Index) Upsert(id string, vec []float64) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.dimension == 0 {
		idx.dimension = len(vec)
	} else if len(vec) != idx.dimension {
		return &DimensionMismatchError{Expected: idx.dimension, Actual: len(vec)}
	}

	cp := make([]float64, len(vec))
	copy(cp, vec)
	idx.vectors[id] = cp
	idx.norms[id] = floats.Norm(cp, 2)
	return nil
}

// Remove deletes a document's vector, if present.
func (idx *Index) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.vectors, id)
	delete(idx.norms, id)
}

// Clear drops every vector but keeps the committed dimension, for callers
// that rebuild the index from a fresh catalog rather than replacing it.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vectors = make(map[string][]float64)
	idx.norms = make(map[string]float64)
}

// Scored is one query result: a document ID and its cosine similarity.
type Scored struct {
	ID    string
	Score float64
}

// Query returns every document's cosine similarity to vec, highest first.
// Ties are broken by document ID ascending, for deterministic ordering
// across runs.
func (idx *Index) Query(vec []float64) ([]Scored, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.dimension != 0 && len(vec) != idx.dimension {
		return nil, &DimensionMismatchError{Expected: idx.dimension, Actual: len(vec)}
	}
	qNorm := floats.Norm(vec, 2)
	if qNorm == 0 {
		return nil, nil
	}

	results := make([]Scored, 0, len(idx.vectors))
	for id, v := range idx.vectors {
		dNorm := idx.norms[id]
		if dNorm == 0 {
			results = append(results, Scored{ID: id, Score: 0})
			continue
		}
		dot := floats.Dot(vec, v)
		results = append(results, Scored{ID: id, Score: dot / (qNorm * dNorm)})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

// Len reports how many vectors are indexed.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Blend combines BM25 and vector result sets into a single ranking using a
// weighted-sum hybrid, normalizing each side's scores to 0..1 first so
// neither scale dominates just because BM25 and cosine live on different
// ranges (spec §4.8 hybrid blend).
func Blend(bm25 map[string]float64, vector map[string]float64, bm25Weight, vectorWeight float64) []Scored {
	normBM25 := normalize(bm25)
	normVector := normalize(vector)

	ids := make(map[string]struct{}, len(bm25)+len(vector))
	for id := range bm25 {
		ids[id] = struct{}{}
	}
	for id := range vector {
		ids[id] = struct{}{}
	}

	results := make([]Scored, 0, len(ids))
	for id := range ids {
		score := bm25Weight*normBM25[id] + vectorWeight*normVector[id]
		results = append(results, Scored{ID: id, Score: score})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results
}

func normalize(m map[string]float64) map[string]float64 {
	if len(m) == 0 {
		return map[string]float64{}
	}
	max := 0.0
	for _, v := range m {
		if v > max {
			max = v
		}
	}
	out := make(map[string]float64, len(m))
	if max == 0 {
		for id := range m {
			out[id] = 0
		}
		return out
	}
	for id, v := range m {
		out[id] = v / max
	}
	return out
}
