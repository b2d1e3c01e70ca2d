// Package invindex implements the BM25 inverted index (C7, spec §4.7):
// per-field-weighted term frequencies, phrase/title bonuses, and documents
// added/removed incrementally with periodic flush to disk. Indexing and
// scoring structure is grounded on the standalone BM25Index/VectorStore
// reference design in the pack, built out in the teacher's RWMutex +
// named-logger style.
package invindex

import (
	"math"
	"sync"

	"github.com/andreahaku/llm-memory-mcp/internal/hashutil"
	"github.com/andreahaku/llm-memory-mcp/internal/memlog"
)

var log = memlog.Named("invindex")

// FieldWeights controls how much each field's term frequency contributes
// to a document's combined score (spec §4.7).
type FieldWeights struct {
	Title float64
	Text  float64
	Code  float64
	Tags  float64
}

// DefaultFieldWeights mirrors spec §4.7's defaults: titles and tags count
// for more than body text or code tokens.
func DefaultFieldWeights() FieldWeights {
	return FieldWeights{Title: 5.0, Text: 2.0, Code: 1.5, Tags: 3.0}
}

// BM25Params are the classic k1/b tuning knobs.
type BM25Params struct {
	K1 float64
	B  float64
	// TitleBonus multiplies a document's score when every query token also
	// appears, in order, inside its title (spec §4.7 phrase bonus).
	PhraseBonus float64
}

// DefaultBM25Params mirrors spec §4.7's defaults.
func DefaultBM25Params() BM25Params {
	return BM25Params{K1: 1.5, B: 0.75, PhraseBonus: 1.15}
}

// Document is one item's field text, pre-tokenization.
type Document struct {
	ID    string
	Title string
	Text  string
	Code  string
	Tags  []string
}

type docEntry struct {
	titleTokens []string
	weightedLen float64
	termFreq    map[string]float64
	removed     bool
}

// Index is the mutable in-memory BM25 posting store.
type Index struct {
	mu sync.RWMutex

	weights FieldWeights
	params  BM25Params

	docs         map[string]*docEntry
	postings     map[string]map[string]float64 // term -> docID -> weighted tf
	docFreq      map[string]int                // term -> number of docs containing it
	totalWeighted float64
	liveDocs     int

	pendingOps int
}

// New builds an empty index with the given weights/params (zero values
// fall back to the package defaults).
func New(weights FieldWeights, params BM25Params) *Index {
	if (weights == FieldWeights{}) {
		weights = DefaultFieldWeights()
	}
	if params.K1 == 0 && params.B == 0 {
		params = DefaultBM25Params()
	}
	return &Index{
		weights:  weights,
		params:   params,
		docs:     make(map[string]*docEntry),
		postings: make(map[string]map[string]float64),
		docFreq:  make(map[string]int),
	}
}

// Upsert adds or replaces a document's postings.
func (idx *Index) Upsert(doc Document) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.docs[doc.ID]; ok && !existing.removed {
		idx.removeLocked(doc.ID)
	}

	tf := make(map[string]float64)
	accumulate := func(text string, weight float64) {
		if weight == 0 || text == "" {
			return
		}
		for _, tok := range hashutil.Tokenize(text) {
			tf[tok] += weight
		}
	}
	accumulate(doc.Title, idx.weights.Title)
	accumulate(doc.Text, idx.weights.Text)
	accumulate(doc.Code, idx.weights.Code)
	for _, tag := range doc.Tags {
		accumulate(tag, idx.weights.Tags)
	}

	weightedLen := 0.0
	for _, w := range tf {
		weightedLen += w
	}

	entry := &docEntry{
		titleTokens: hashutil.Tokenize(doc.Title),
		weightedLen: weightedLen,
		termFreq:    tf,
	}
	idx.docs[doc.ID] = entry
	idx.liveDocs++
	idx.totalWeighted += weightedLen

	for term, w := range tf {
		if idx.postings[term] == nil {
			idx.postings[term] = make(map[string]float64)
		}
		idx.postings[term][doc.ID] = w
		idx.docFreq[term]++
	}
	idx.pendingOps++
}

// Remove deletes a document from the index, if present.
func (idx *Index) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)
	idx.pendingOps++
}

func (idx *Index) removeLocked(id string) {
	entry, ok := idx.docs[id]
	if !ok || entry.removed {
		return
	}
	for term := range entry.termFreq {
		delete(idx.postings[term], id)
		idx.docFreq[term]--
		if idx.docFreq[term] <= 0 {
			delete(idx.docFreq, term)
			delete(idx.postings, term)
		}
	}
	idx.totalWeighted -= entry.weightedLen
	idx.liveDocs--
	entry.removed = true
	delete(idx.docs, id)
}

// PendingOps reports how many upserts/removes have happened since the last
// reset, for flush-trigger accounting.
func (idx *Index) PendingOps() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.pendingOps
}

func (idx *Index) resetPendingOps() {
	idx.pendingOps = 0
}

func (idx *Index) avgDocLength() float64 {
	if idx.liveDocs == 0 {
		return 0
	}
	return idx.totalWeighted / float64(idx.liveDocs)
}

// Scored is one query result: a document ID and its BM25(+phrase bonus)
// score.
type Scored struct {
	ID    string
	Score float64
}

// Query scores every document containing at least one query token and
// returns results sorted by score descending, highest first.
func (idx *Index) Query(query string) []Scored {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms := hashutil.Tokenize(query)
	if len(terms) == 0 || idx.liveDocs == 0 {
		return nil
	}
	avgLen := idx.avgDocLength()
	n := float64(idx.liveDocs)

	scores := make(map[string]float64)
	for _, term := range terms {
		df := idx.docFreq[term]
		if df == 0 {
			continue
		}
		idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
		for docID, tf := range idx.postings[term] {
			entry := idx.docs[docID]
			norm := 1 - idx.params.B + idx.params.B*(entry.weightedLen/maxf(avgLen, 1))
			scores[docID] += idf * (tf * (idx.params.K1 + 1)) / (tf + idx.params.K1*norm)
		}
	}

	results := make([]Scored, 0, len(scores))
	for docID, score := range scores {
		if idx.phraseMatchesTitle(docID, terms) {
			score *= idx.params.PhraseBonus
		}
		results = append(results, Scored{ID: docID, Score: score})
	}
	sortScoredDesc(results)
	return results
}

func (idx *Index) phraseMatchesTitle(docID string, queryTerms []string) bool {
	entry, ok := idx.docs[docID]
	if !ok || len(queryTerms) == 0 {
		return false
	}
	title := entry.titleTokens
	if len(queryTerms) > len(title) {
		return false
	}
	for start := 0; start+len(queryTerms) <= len(title); start++ {
		match := true
		for i, qt := range queryTerms {
			if title[start+i] != qt {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func sortScoredDesc(s []Scored) {
	// insertion sort: result sets are small (top-K over a local memory
	// store), so this avoids pulling in sort for a few dozen elements.
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].Score > s[j-1].Score; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Len reports the number of live (non-removed) documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.liveDocs
}
