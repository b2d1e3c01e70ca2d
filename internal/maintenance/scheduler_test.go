package maintenance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andreahaku/llm-memory-mcp/internal/config"
	"github.com/andreahaku/llm-memory-mcp/internal/engine"
	"github.com/andreahaku/llm-memory-mcp/internal/maintenance"
	"github.com/andreahaku/llm-memory-mcp/internal/memory"
)

func TestSchedulerCompactsWhenOpCountThresholdCrossed(t *testing.T) {
	cfg, err := config.Load(config.WithHomeDir(t.TempDir()), config.WithForceBackend(config.BackendFile))
	require.NoError(t, err)
	cfg.Maintenance.CompactEvery = 2
	cfg.Maintenance.CompactInterval = time.Hour
	cfg.Maintenance.PollInterval = 10 * time.Millisecond

	m, err := engine.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	ctx := context.Background()
	_, err = m.Upsert(ctx, memory.MemoryItem{Type: memory.TypeSnippet, Scope: memory.ScopeLocal, Title: "a", Text: "a"})
	require.NoError(t, err)
	_, err = m.Upsert(ctx, memory.MemoryItem{Type: memory.TypeSnippet, Scope: memory.ScopeLocal, Title: "b", Text: "b"})
	require.NoError(t, err)

	sched := maintenance.NewScheduler(m, cfg.Maintenance)
	sched.Start(ctx)
	defer sched.Stop()

	require.Eventually(t, func() bool {
		status, ok := m.Status(memory.ScopeLocal)
		return ok && status.JournalAppendCount == 0
	}, time.Second, 10*time.Millisecond)
}

func TestReportListsEveryOpenScope(t *testing.T) {
	cfg, err := config.Load(config.WithHomeDir(t.TempDir()), config.WithForceBackend(config.BackendFile))
	require.NoError(t, err)
	m, err := engine.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	report := maintenance.Report(m)
	require.Len(t, report, 3)
}
