package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andreahaku/llm-memory-mcp/internal/config"
	"github.com/andreahaku/llm-memory-mcp/internal/engine"
	"github.com/andreahaku/llm-memory-mcp/internal/memory"
)

func newTestManager(t *testing.T) *memory.Manager {
	t.Helper()
	cfg, err := config.Load(
		config.WithHomeDir(t.TempDir()),
		config.WithForceBackend(config.BackendFile),
	)
	require.NoError(t, err)

	m, err := engine.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func newTestManagerWithClock(t *testing.T, now func() time.Time) *memory.Manager {
	t.Helper()
	cfg, err := config.Load(
		config.WithHomeDir(t.TempDir()),
		config.WithForceBackend(config.BackendFile),
	)
	require.NoError(t, err)

	m, err := engine.Open(context.Background(), cfg, memory.WithClock(now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func sampleItem(scope memory.Scope, title, text string) memory.MemoryItem {
	return memory.MemoryItem{
		Type:  memory.TypeSnippet,
		Scope: scope,
		Title: title,
		Text:  text,
		Facets: memory.Facets{Tags: []string{"retry"}},
	}
}

func TestUpsertAssignsIDAndVersion(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	item, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "retry helper", "exponential backoff"))
	require.NoError(t, err)
	require.NotEmpty(t, item.ID)
	require.Equal(t, 1, item.Version)

	item.Text = "exponential backoff with jitter"
	updated, err := m.Upsert(ctx, item)
	require.NoError(t, err)
	require.Equal(t, item.ID, updated.ID)
	require.Equal(t, 2, updated.Version)
}

func TestUpsertRejectsMissingScopeOrType(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Upsert(context.Background(), memory.MemoryItem{Title: "no type or scope"})
	require.ErrorIs(t, err, memory.ErrInvalidInput)
}

func TestGetResolvesAcrossScopesInPriorityOrder(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	global, err := m.Upsert(ctx, sampleItem(memory.ScopeGlobal, "shared note", "global body"))
	require.NoError(t, err)

	item := sampleItem(memory.ScopeCommitted, "shared note", "committed body")
	item.ID = global.ID
	committed, err := m.Upsert(ctx, item)
	require.NoError(t, err)
	require.Equal(t, global.ID, committed.ID)

	got, err := m.Get(ctx, global.ID, nil)
	require.NoError(t, err)
	require.Equal(t, "committed body", got.Text)
}

func TestGetReturnsNotFound(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Get(context.Background(), "missing-id", nil)
	require.ErrorIs(t, err, memory.ErrNotFound)
}

func TestDeleteRemovesFromListAndQuery(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	item, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "cache warmer", "fills the LRU on boot"))
	require.NoError(t, err)

	ok, err := m.Delete(ctx, item.ID, memory.ScopeLocal)
	require.NoError(t, err)
	require.True(t, ok)

	list, err := m.List(ctx, memory.ScopeLocal)
	require.NoError(t, err)
	require.Empty(t, list)

	_, err = m.Get(ctx, item.ID, nil)
	require.ErrorIs(t, err, memory.ErrNotFound)
}

func TestDeleteMissingReturnsNotFound(t *testing.T) {
	m := newTestManager(t)
	ok, err := m.Delete(context.Background(), "missing-id", memory.ScopeLocal)
	require.False(t, ok)
	require.ErrorIs(t, err, memory.ErrNotFound)
}

func TestQueryRanksPinnedAndScopedItemsAbove(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	localItem, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "retry helper", "exponential backoff with jitter"))
	require.NoError(t, err)

	pinned := sampleItem(memory.ScopeGlobal, "retry helper pinned", "exponential backoff with jitter")
	pinned.Quality.Pinned = true
	pinnedItem, err := m.Upsert(ctx, pinned)
	require.NoError(t, err)

	results, err := m.Query(ctx, memory.QueryRequest{Q: "retry backoff jitter", K: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	require.True(t, results[0].Score >= results[len(results)-1].Score)

	var sawPinned, sawLocal bool
	for _, r := range results {
		if r.Item.ID == pinnedItem.ID {
			sawPinned = true
		}
		if r.Item.ID == localItem.ID {
			sawLocal = true
		}
	}
	require.True(t, sawPinned)
	require.True(t, sawLocal)
}

func TestQueryFiltersByTypeAndTag(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "retry helper", "exponential backoff"))
	require.NoError(t, err)

	other := memory.MemoryItem{Type: memory.TypeFact, Scope: memory.ScopeLocal, Title: "unrelated fact", Text: "retry has nothing to do with this"}
	_, err = m.Upsert(ctx, other)
	require.NoError(t, err)

	results, err := m.Query(ctx, memory.QueryRequest{Q: "retry", Types: []memory.ItemType{memory.TypeSnippet}, K: 10})
	require.NoError(t, err)
	for _, r := range results {
		require.Equal(t, memory.TypeSnippet, r.Item.Type)
	}
}

func TestQueryCacheServesRepeatedQueriesUntilInvalidated(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "retry helper", "exponential backoff with jitter"))
	require.NoError(t, err)

	first, err := m.Query(ctx, memory.QueryRequest{Q: "retry backoff", K: 10})
	require.NoError(t, err)
	require.NotEmpty(t, first)

	_, err = m.Upsert(ctx, sampleItem(memory.ScopeLocal, "retry backoff variant", "retry backoff with exponential jitter"))
	require.NoError(t, err)

	second, err := m.Query(ctx, memory.QueryRequest{Q: "retry backoff", K: 10})
	require.NoError(t, err)
	require.Len(t, second, len(first)+1)
}

func TestQueryWithVectorBlendsWithBM25(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	itemA := sampleItem(memory.ScopeLocal, "vector match", "alpha beta gamma")
	itemA.Vector = []float64{1, 0, 0}
	_, err := m.Upsert(ctx, itemA)
	require.NoError(t, err)

	itemB := sampleItem(memory.ScopeLocal, "vector match", "alpha beta gamma")
	itemB.Vector = []float64{0, 1, 0}
	_, err = m.Upsert(ctx, itemB)
	require.NoError(t, err)

	results, err := m.Query(ctx, memory.QueryRequest{Q: "alpha beta gamma", Vector: []float64{1, 0, 0}, K: 10})
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, results[0].Components["vector"], 1.0)
}

func TestQueryDeterministicTieBreakByID(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		item, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "identical item", "identical body text"))
		require.NoError(t, err)
		ids = append(ids, item.ID)
	}

	results, err := m.Query(ctx, memory.QueryRequest{Q: "identical", K: 10})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		require.True(t, results[i-1].Item.ID < results[i].Item.ID)
	}
}

func TestPinnedItemConfidenceMeetsFloor(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	item := sampleItem(memory.ScopeLocal, "pinned note", "always surfaced")
	item.Quality.Pinned = true
	_, err := m.Upsert(ctx, item)
	require.NoError(t, err)

	results, err := m.Query(ctx, memory.QueryRequest{Q: "pinned note", K: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.GreaterOrEqual(t, results[0].Components["confidence"], 0.8)
}

func TestManagerWithClockAffectsRecencyBoost(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg, err := config.Load(config.WithHomeDir(t.TempDir()), config.WithForceBackend(config.BackendFile))
	require.NoError(t, err)

	m, err := engine.Open(context.Background(), cfg, memory.WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	_, err = m.Upsert(context.Background(), sampleItem(memory.ScopeLocal, "clocked item", "body text"))
	require.NoError(t, err)

	results, err := m.Query(context.Background(), memory.QueryRequest{Q: "clocked", K: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
}
