package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andreahaku/llm-memory-mcp/internal/memory"
)

func TestSnapshotThenVerifySucceeds(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "snapshot me", "body"))
	require.NoError(t, err)

	checksum, count, err := m.Snapshot(ctx, memory.ScopeLocal)
	require.NoError(t, err)
	require.NotEmpty(t, checksum)
	require.Equal(t, 1, count)

	result, err := m.Verify(ctx, memory.ScopeLocal)
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Equal(t, checksum, result.ComputedChecksum)
}

func TestVerifyWithoutSnapshotReportsNotOK(t *testing.T) {
	m := newTestManager(t)
	result, err := m.Verify(context.Background(), memory.ScopeLocal)
	require.NoError(t, err)
	require.False(t, result.OK)
}

func TestVerifyDetectsDriftAfterUnsnapshottedWrite(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "first", "body"))
	require.NoError(t, err)
	_, _, err = m.Snapshot(ctx, memory.ScopeLocal)
	require.NoError(t, err)

	_, err = m.Upsert(ctx, sampleItem(memory.ScopeLocal, "second", "body"))
	require.NoError(t, err)

	result, err := m.Verify(ctx, memory.ScopeLocal)
	require.NoError(t, err)
	require.False(t, result.OK)
}

func TestCompactRemovesTombstonedItemsPermanently(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	item, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "delete me", "body"))
	require.NoError(t, err)
	_, err = m.Delete(ctx, item.ID, memory.ScopeLocal)
	require.NoError(t, err)

	require.NoError(t, m.Compact(ctx, memory.ScopeLocal, true))

	result, err := m.Verify(ctx, memory.ScopeLocal)
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Equal(t, 0, result.ItemCount)
}

func TestRebuildRestoresQueryability(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "rebuild target", "unique searchable text"))
	require.NoError(t, err)

	require.NoError(t, m.Rebuild(ctx, memory.ScopeLocal))

	results, err := m.Query(ctx, memory.QueryRequest{Q: "unique searchable", K: 10})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestPruneRemovesExpiredItemsOnly(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := newTestManagerWithClock(t, func() time.Time { return fixed })
	ctx := context.Background()

	ttl := 1
	expiring := sampleItem(memory.ScopeLocal, "expiring", "body")
	expiring.Quality.TTLDays = &ttl
	expired, err := m.Upsert(ctx, expiring)
	require.NoError(t, err)

	persistent, err := m.Upsert(ctx, sampleItem(memory.ScopeLocal, "keeper", "body"))
	require.NoError(t, err)

	future := fixed.Add(48 * time.Hour)
	count, err := m.Prune(ctx, memory.ScopeLocal, future)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	_, err = m.Get(ctx, expired.ID, nil)
	require.ErrorIs(t, err, memory.ErrNotFound)
	_, err = m.Get(ctx, persistent.ID, nil)
	require.NoError(t, err)
}
