package invindex

import (
	"bufio"
	"os"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// schemaVersion bumps whenever the persisted snapshot layout changes; a
// mismatch on load triggers a full rebuild from the catalog instead of a
// best-effort partial read (spec §4.7).
const schemaVersion = 1

type snapshot struct {
	SchemaVersion int                          `json:"schemaVersion"`
	Weights       FieldWeights                 `json:"weights"`
	Params        BM25Params                   `json:"params"`
	Docs          map[string]snapshotDoc       `json:"docs"`
}

type snapshotDoc struct {
	TitleTokens []string           `json:"titleTokens"`
	WeightedLen float64            `json:"weightedLen"`
	TermFreq    map[string]float64 `json:"termFreq"`
}

// FlushPolicy decides whether accumulated pending ops are worth writing to
// disk yet (spec §4.7: "flush on whichever of max-ops or max-interval is
// reached first").
type FlushPolicy struct {
	MaxOps      int
	MaxInterval time.Duration
}

// DefaultFlushPolicy mirrors spec §4.7's defaults.
func DefaultFlushPolicy() FlushPolicy {
	return FlushPolicy{MaxOps: 50, MaxInterval: 5 * time.Second}
}

// FlushScheduler tracks time since the last flush so callers can ask
// ShouldFlush after every mutating op without threading a ticker through
// the index itself.
type FlushScheduler struct {
	policy    FlushPolicy
	mu        sync.Mutex
	lastFlush time.Time
}

// NewFlushScheduler starts a scheduler whose clock begins now.
func NewFlushScheduler(policy FlushPolicy) *FlushScheduler {
	return &FlushScheduler{policy: policy, lastFlush: time.Now()}
}

// ShouldFlush reports whether idx has accumulated enough pending ops, or
// enough time has elapsed, to warrant a flush.
func (s *FlushScheduler) ShouldFlush(idx *Index) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx.PendingOps() >= s.policy.MaxOps {
		return true
	}
	return time.Since(s.lastFlush) >= s.policy.MaxInterval
}

func (s *FlushScheduler) markFlushed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFlush = time.Now()
}

// Flush writes idx's full posting state to path atomically (tmp write,
// fsync, rename) and clears the pending-op counter.
func Flush(idx *Index, path string, sched *FlushScheduler) error {
	idx.mu.Lock()
	snap := snapshot{
		SchemaVersion: schemaVersion,
		Weights:       idx.weights,
		Params:        idx.params,
		Docs:          make(map[string]snapshotDoc, len(idx.docs)),
	}
	for id, d := range idx.docs {
		snap.Docs[id] = snapshotDoc{TitleTokens: d.titleTokens, WeightedLen: d.weightedLen, TermFreq: d.termFreq}
	}
	idx.mu.Unlock()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	enc := jsonAPI.NewEncoder(bw)
	if err := enc.Encode(snap); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}

	idx.mu.Lock()
	idx.resetPendingOps()
	idx.mu.Unlock()
	if sched != nil {
		sched.markFlushed()
	}
	return nil
}

// Load rebuilds an Index from a snapshot written by Flush. A schema
// mismatch is returned as an error so the caller can fall back to
// rebuilding the index from the catalog (spec §4.7).
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var snap snapshot
	if err := jsonAPI.NewDecoder(bufio.NewReader(f)).Decode(&snap); err != nil {
		return nil, err
	}
	if snap.SchemaVersion != schemaVersion {
		return nil, &SchemaMismatchError{Want: schemaVersion, Got: snap.SchemaVersion}
	}

	idx := New(snap.Weights, snap.Params)
	for id, d := range snap.Docs {
		entry := &docEntry{titleTokens: d.TitleTokens, weightedLen: d.WeightedLen, termFreq: d.TermFreq}
		idx.docs[id] = entry
		idx.liveDocs++
		idx.totalWeighted += d.WeightedLen
		for term, w := range d.TermFreq {
			if idx.postings[term] == nil {
				idx.postings[term] = make(map[string]float64)
			}
			idx.postings[term][id] = w
			idx.docFreq[term]++
		}
	}
	return idx, nil
}

// SchemaMismatchError signals a persisted snapshot from an older/newer
// layout; the caller should rebuild rather than try to interpret it.
type SchemaMismatchError struct {
	Want int
	Got  int
}

func (e *SchemaMismatchError) Error() string {
	return "invindex: schema version mismatch"
}
