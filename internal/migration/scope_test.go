package migration_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andreahaku/llm-memory-mcp/internal/config"
	"github.com/andreahaku/llm-memory-mcp/internal/engine"
	"github.com/andreahaku/llm-memory-mcp/internal/memory"
	"github.com/andreahaku/llm-memory-mcp/internal/migration"
)

func newScopeTestManager(t *testing.T) *memory.Manager {
	t.Helper()
	cfg, err := config.Load(config.WithHomeDir(t.TempDir()), config.WithForceBackend(config.BackendFile))
	require.NoError(t, err)
	m, err := engine.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestMigrateScopeDryRunReturnsCandidatesOnly(t *testing.T) {
	m := newScopeTestManager(t)
	ctx := context.Background()

	matching, err := m.Upsert(ctx, memory.MemoryItem{Type: memory.TypeSnippet, Scope: memory.ScopeLocal, Title: "retry helper", Text: "x", Facets: memory.Facets{Tags: []string{"retry"}}})
	require.NoError(t, err)
	_, err = m.Upsert(ctx, memory.MemoryItem{Type: memory.TypeSnippet, Scope: memory.ScopeLocal, Title: "unrelated", Text: "y"})
	require.NoError(t, err)

	result, err := migration.MigrateScope(ctx, m, memory.ScopeLocal, memory.ScopeCommitted,
		migration.ScopeFilter{Tags: []string{"retry"}}, true, time.Now())
	require.NoError(t, err)
	require.True(t, result.DryRun)
	require.Equal(t, []string{matching.ID}, result.CandidateIDs)
	require.Empty(t, result.MigratedIDs)

	list, err := m.List(ctx, memory.ScopeLocal)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestMigrateScopeMovesMatchingItems(t *testing.T) {
	m := newScopeTestManager(t)
	ctx := context.Background()

	item, err := m.Upsert(ctx, memory.MemoryItem{Type: memory.TypeSnippet, Scope: memory.ScopeLocal, Title: "promote me", Text: "x", Facets: memory.Facets{Tags: []string{"promote"}}})
	require.NoError(t, err)

	result, err := migration.MigrateScope(ctx, m, memory.ScopeLocal, memory.ScopeCommitted,
		migration.ScopeFilter{Tags: []string{"promote"}}, false, time.Now())
	require.NoError(t, err)
	require.Equal(t, []string{item.ID}, result.MigratedIDs)

	localList, err := m.List(ctx, memory.ScopeLocal)
	require.NoError(t, err)
	require.Empty(t, localList)

	committedList, err := m.List(ctx, memory.ScopeCommitted)
	require.NoError(t, err)
	require.Len(t, committedList, 1)
	require.Equal(t, item.ID, committedList[0].ID)
}

func TestMigrateScopeSubstringFilter(t *testing.T) {
	m := newScopeTestManager(t)
	ctx := context.Background()

	_, err := m.Upsert(ctx, memory.MemoryItem{Type: memory.TypeSnippet, Scope: memory.ScopeLocal, Title: "keep", Text: "nothing special"})
	require.NoError(t, err)
	match, err := m.Upsert(ctx, memory.MemoryItem{Type: memory.TypeSnippet, Scope: memory.ScopeLocal, Title: "keep", Text: "contains MAGIC token"})
	require.NoError(t, err)

	result, err := migration.MigrateScope(ctx, m, memory.ScopeLocal, memory.ScopeGlobal,
		migration.ScopeFilter{Substring: "magic"}, true, time.Now())
	require.NoError(t, err)
	require.Equal(t, []string{match.ID}, result.CandidateIDs)
}
