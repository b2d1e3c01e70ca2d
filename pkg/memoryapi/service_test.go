package memoryapi_test

import (
	"context"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	"github.com/andreahaku/llm-memory-mcp/internal/config"
	"github.com/andreahaku/llm-memory-mcp/internal/engine"
	"github.com/andreahaku/llm-memory-mcp/internal/maintenance"
	"github.com/andreahaku/llm-memory-mcp/internal/memory"
	"github.com/andreahaku/llm-memory-mcp/internal/migration"
	"github.com/andreahaku/llm-memory-mcp/pkg/memoryapi"
)

func newTestService(t *testing.T) *memoryapi.Service {
	t.Helper()
	cfg, err := config.Load(config.WithHomeDir(t.TempDir()), config.WithForceBackend(config.BackendFile))
	require.NoError(t, err)
	mgr, err := engine.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	sched := maintenance.NewScheduler(mgr, cfg.Maintenance)
	return memoryapi.New(cfg, mgr, sched)
}

func TestServiceUpsertGetQueryRoundTrip(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	item, err := s.Upsert(ctx, memory.MemoryItem{Type: memory.TypeSnippet, Scope: memory.ScopeLocal, Title: "retry helper", Text: "exponential backoff"})
	require.NoError(t, err, "spew of input on failure: %s", spew.Sdump(item))
	require.NotEmpty(t, item.ID)

	got, err := s.Get(ctx, item.ID, nil)
	require.NoError(t, err)
	require.Equal(t, item.Title, got.Title)

	results, err := s.Query(ctx, memory.QueryRequest{Q: "backoff", K: 5})
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestServiceProjectConfigRoundTrip(t *testing.T) {
	s := newTestService(t)
	require.NoError(t, s.InitCommitted())

	cfg, err := s.GetProjectConfig()
	require.NoError(t, err)
	require.Empty(t, cfg)

	updated, err := s.SetProjectConfig(map[string]interface{}{"ranking": map[string]interface{}{"pinBonus": 2.0}})
	require.NoError(t, err)
	require.Contains(t, updated, "ranking")

	again, err := s.GetProjectConfig()
	require.NoError(t, err)
	require.Contains(t, again, "ranking")
}

func TestServiceSyncMerge(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, memory.MemoryItem{Type: memory.TypeSnippet, Scope: memory.ScopeLocal, Title: "share me", Text: "x", Facets: memory.Facets{Tags: []string{"share"}}})
	require.NoError(t, err)

	status, err := s.SyncStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, status.LocalCount)
	require.Equal(t, 0, status.CommittedCount)

	result, err := s.MigrateScope(ctx, memory.ScopeLocal, memory.ScopeCommitted, migration.ScopeFilter{Tags: []string{"share"}}, false)
	require.NoError(t, err)
	require.Len(t, result.MigratedIDs, 1)

	status, err = s.SyncStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, status.LocalCount)
	require.Equal(t, 1, status.CommittedCount)
}

func TestServiceVectorsAndImportJsonl(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	item, err := s.Upsert(ctx, memory.MemoryItem{Type: memory.TypeSnippet, Scope: memory.ScopeLocal, Title: "vec", Text: "x"})
	require.NoError(t, err)

	feed := `{"id":"` + item.ID + `","scope":"local","vector":[1,0,0]}` + "\n" + `{"id":"missing","scope":"local","vector":[0,1,0]}` + "\n"
	result, err := s.ImportJsonl(ctx, strings.NewReader(feed))
	require.Error(t, err)
	require.Equal(t, 1, result.Imported)
	require.Equal(t, 1, result.Skipped)

	got, err := s.Get(ctx, item.ID, nil)
	require.NoError(t, err)
	require.Equal(t, []float64{1, 0, 0}, got.Vector)
}

func TestServiceMaintenanceSnapshotAndVerify(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, memory.MemoryItem{Type: memory.TypeSnippet, Scope: memory.ScopeLocal, Title: "a", Text: "a"})
	require.NoError(t, err)

	_, _, err = s.Snapshot(ctx, memory.ScopeLocal)
	require.NoError(t, err)

	result, err := s.Verify(ctx, memory.ScopeLocal)
	require.NoError(t, err)
	require.True(t, result.OK)

	all, err := s.VerifyAll(ctx)
	require.NoError(t, err)
	require.Contains(t, all, memory.ScopeLocal)
}
