package invindex

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleIndex() *Index {
	idx := New(DefaultFieldWeights(), DefaultBM25Params())
	idx.Upsert(Document{ID: "a", Title: "retry backoff helper", Text: "exponential backoff for HTTP retries", Tags: []string{"go", "networking"}})
	idx.Upsert(Document{ID: "b", Title: "postgres connection pool", Text: "tuning pgx pool size under load", Tags: []string{"go", "postgres"}})
	idx.Upsert(Document{ID: "c", Title: "unrelated note", Text: "grocery list and other nonsense", Tags: []string{"misc"}})
	return idx
}

func TestQueryRanksRelevantDocHigher(t *testing.T) {
	idx := sampleIndex()
	results := idx.Query("backoff retry")
	require.NotEmpty(t, results)
	require.Equal(t, "a", results[0].ID)
}

func TestQueryEmptyReturnsNil(t *testing.T) {
	idx := sampleIndex()
	require.Nil(t, idx.Query(""))
}

func TestRemoveDropsFromPostings(t *testing.T) {
	idx := sampleIndex()
	idx.Remove("a")
	require.Equal(t, 2, idx.Len())
	results := idx.Query("backoff retry")
	for _, r := range results {
		require.NotEqual(t, "a", r.ID)
	}
}

func TestUpsertReplacesExisting(t *testing.T) {
	idx := sampleIndex()
	idx.Upsert(Document{ID: "a", Title: "totally different content", Text: "nothing about networking here"})
	results := idx.Query("backoff retry")
	for _, r := range results {
		require.NotEqual(t, "a", r.ID)
	}
}

func TestPhraseBonusFavorsTitleMatch(t *testing.T) {
	idx := New(DefaultFieldWeights(), DefaultBM25Params())
	idx.Upsert(Document{ID: "title-match", Title: "connection pool tuning", Text: "misc body text unrelated to the query at all"})
	idx.Upsert(Document{ID: "body-match", Title: "unrelated title here", Text: "connection pool tuning mentioned deep in the body text of this document with extra padding words"})

	results := idx.Query("connection pool")
	require.Len(t, results, 2)
	require.Equal(t, "title-match", results[0].ID)
}

func TestFlushAndLoadRoundTrip(t *testing.T) {
	idx := sampleIndex()
	path := filepath.Join(t.TempDir(), "bm25.json")
	sched := NewFlushScheduler(DefaultFlushPolicy())

	require.NoError(t, Flush(idx, path, sched))
	require.Equal(t, 0, idx.PendingOps())

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, idx.Len(), loaded.Len())

	results := loaded.Query("backoff retry")
	require.NotEmpty(t, results)
	require.Equal(t, "a", results[0].ID)
}

func TestFlushSchedulerTriggersOnMaxOps(t *testing.T) {
	idx := New(DefaultFieldWeights(), DefaultBM25Params())
	sched := NewFlushScheduler(FlushPolicy{MaxOps: 2, MaxInterval: time.Hour})
	require.False(t, sched.ShouldFlush(idx))
	idx.Upsert(Document{ID: "x", Title: "one"})
	idx.Upsert(Document{ID: "y", Title: "two"})
	require.True(t, sched.ShouldFlush(idx))
}

func TestLoadRejectsSchemaMismatch(t *testing.T) {
	idx := sampleIndex()
	path := filepath.Join(t.TempDir(), "bm25.json")
	require.NoError(t, Flush(idx, path, nil))

	// Simulate a future schema by writing a bumped version directly.
	loaded, err := Load(path)
	require.NoError(t, err)
	_ = loaded

	badSnap := snapshot{SchemaVersion: schemaVersion + 1, Docs: map[string]snapshotDoc{}}
	raw, err := jsonAPI.Marshal(badSnap)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = Load(path)
	require.Error(t, err)
	var mismatch *SchemaMismatchError
	require.ErrorAs(t, err, &mismatch)
}
