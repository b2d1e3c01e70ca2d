package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andreahaku/llm-memory-mcp/internal/memory"
)

func TestPinUnpin(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	item, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "pin me", "body"))
	require.NoError(t, err)
	require.False(t, item.Quality.Pinned)

	pinned, err := m.Pin(ctx, item.ID, memory.ScopeLocal)
	require.NoError(t, err)
	require.True(t, pinned.Quality.Pinned)
	require.Equal(t, item.Version+1, pinned.Version)

	unpinned, err := m.Unpin(ctx, item.ID, memory.ScopeLocal)
	require.NoError(t, err)
	require.False(t, unpinned.Quality.Pinned)
}

func TestTagAddAndRemove(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	item, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "tag me", "body"))
	require.NoError(t, err)
	require.Equal(t, []string{"retry"}, item.Facets.Tags)

	tagged, err := m.Tag(ctx, item.ID, memory.ScopeLocal, []string{"backoff", "retry"}, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"retry", "backoff"}, tagged.Facets.Tags)

	untagged, err := m.Tag(ctx, item.ID, memory.ScopeLocal, nil, []string{"retry"})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"backoff"}, untagged.Facets.Tags)
}

func TestFeedbackAccumulates(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	item, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "feedback me", "body"))
	require.NoError(t, err)

	updated, err := m.Feedback(ctx, item.ID, memory.ScopeLocal, true)
	require.NoError(t, err)
	require.Equal(t, 1, updated.Quality.HelpfulCount)
	require.NotNil(t, updated.Quality.LastFeedbackAt)

	updated, err = m.Feedback(ctx, item.ID, memory.ScopeLocal, false)
	require.NoError(t, err)
	require.Equal(t, 1, updated.Quality.HelpfulCount)
	require.Equal(t, 1, updated.Quality.NotHelpfulCount)
}

func TestUseIncrementsReuseAndUsage(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	item, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "use me", "body"))
	require.NoError(t, err)
	require.Equal(t, 0, item.Quality.ReuseCount)

	used, err := m.Use(ctx, item.ID, memory.ScopeLocal)
	require.NoError(t, err)
	require.Equal(t, 1, used.Quality.ReuseCount)
	require.InDelta(t, 1.0, used.Quality.DecayedUsage, 0.0001)
	require.NotNil(t, used.Quality.LastAccessedAt)
	require.NotNil(t, used.Quality.LastUsedAt)

	used, err = m.Use(ctx, item.ID, memory.ScopeLocal)
	require.NoError(t, err)
	require.Equal(t, 2, used.Quality.ReuseCount)
	require.Greater(t, used.Quality.DecayedUsage, 1.0)
}

func TestRenewRefreshesRecencyOnly(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	item, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "renew me", "body"))
	require.NoError(t, err)

	renewed, err := m.Renew(ctx, item.ID, memory.ScopeLocal)
	require.NoError(t, err)
	require.NotNil(t, renewed.Quality.LastAccessedAt)
	require.Equal(t, 0, renewed.Quality.ReuseCount)
}

func TestLinkDedupesSameTargetAndRelation(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	a, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "a", "body a"))
	require.NoError(t, err)
	b, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "b", "body b"))
	require.NoError(t, err)

	linked, err := m.Link(ctx, a.ID, memory.ScopeLocal, b.ID, memory.RelationRelates)
	require.NoError(t, err)
	require.Len(t, linked.Links, 1)

	linked, err = m.Link(ctx, a.ID, memory.ScopeLocal, b.ID, memory.RelationRelates)
	require.NoError(t, err)
	require.Len(t, linked.Links, 1)

	linked, err = m.Link(ctx, a.ID, memory.ScopeLocal, b.ID, memory.RelationDepends)
	require.NoError(t, err)
	require.Len(t, linked.Links, 2)
}

func TestPatchOverwritesOnlyProvidedFields(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	item, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "patch me", "original body"))
	require.NoError(t, err)

	newTitle := "patched title"
	patched, err := m.Patch(ctx, item.ID, memory.ScopeLocal, memory.PatchRequest{Title: &newTitle})
	require.NoError(t, err)
	require.Equal(t, "patched title", patched.Title)
	require.Equal(t, "original body", patched.Text)
}

func TestAppendAccumulatesText(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	item, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "append me", "first"))
	require.NoError(t, err)

	appended, err := m.Append(ctx, item.ID, memory.ScopeLocal, "second", "")
	require.NoError(t, err)
	require.Equal(t, "first\n\nsecond", appended.Text)
}

func TestMergeFoldsSecondaryIntoPrimaryAndDeletesIt(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	primary, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "primary", "primary body"))
	require.NoError(t, err)
	secondary, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "secondary", "secondary body"))
	require.NoError(t, err)
	_, err = m.Feedback(ctx, secondary.ID, memory.ScopeLocal, true)
	require.NoError(t, err)

	merged, err := m.Merge(ctx, primary.ID, secondary.ID, memory.ScopeLocal)
	require.NoError(t, err)
	require.Contains(t, merged.Text, "primary body")
	require.Contains(t, merged.Text, "secondary body")
	require.Equal(t, 1, merged.Quality.HelpfulCount)

	foundDup := false
	for _, l := range merged.Links {
		if l.TargetID == secondary.ID && l.Relation == memory.RelationDuplicates {
			foundDup = true
		}
	}
	require.True(t, foundDup)

	_, err = m.Get(ctx, secondary.ID, nil)
	require.ErrorIs(t, err, memory.ErrNotFound)
}

func TestContextPackGroupsByTypeAndRespectsCharBudget(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	snippet := sampleItem(memory.ScopeLocal, "retry snippet", "exponential backoff with jitter")
	_, err := m.Upsert(ctx, snippet)
	require.NoError(t, err)

	fact := memory.MemoryItem{Type: memory.TypeFact, Scope: memory.ScopeLocal, Title: "retry fact", Text: "retries should use jitter"}
	_, err = m.Upsert(ctx, fact)
	require.NoError(t, err)

	result, err := m.ContextPack(ctx, memory.ContextPackRequest{Q: "retry jitter", K: 10})
	require.NoError(t, err)
	require.NotEmpty(t, result.Groups.Snippets)
	require.NotEmpty(t, result.Groups.Facts)
	require.False(t, result.Truncated)

	tight, err := m.ContextPack(ctx, memory.ContextPackRequest{Q: "retry jitter", K: 10, MaxChars: 1})
	require.NoError(t, err)
	require.True(t, tight.Truncated)
}

func TestSetVectorThenQueryBlendsResults(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	item, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "vector me", "body"))
	require.NoError(t, err)
	require.Empty(t, item.Vector)

	withVec, err := m.SetVector(ctx, item.ID, memory.ScopeLocal, []float64{1, 0, 0})
	require.NoError(t, err)
	require.Equal(t, []float64{1, 0, 0}, withVec.Vector)

	results, err := m.Query(ctx, memory.QueryRequest{Vector: []float64{1, 0, 0}, K: 10})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, item.ID, results[0].Item.ID)

	cleared, err := m.RemoveVector(ctx, item.ID, memory.ScopeLocal)
	require.NoError(t, err)
	require.Empty(t, cleared.Vector)
}
