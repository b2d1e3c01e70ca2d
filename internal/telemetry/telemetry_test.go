package telemetry_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/andreahaku/llm-memory-mcp/internal/telemetry"
)

func TestObserveRecordsLatencyAndOutcome(t *testing.T) {
	err := telemetry.Observe("test.op", func() error { return nil })
	require.NoError(t, err)

	want := errors.New("boom")
	got := telemetry.Observe("test.op", func() error { return want })
	require.ErrorIs(t, got, want)
}

func TestRefreshScopeItemCountsDoesNotPanic(t *testing.T) {
	require.NotPanics(t, func() {
		telemetry.RefreshScopeItemCounts(nil, map[string]int{"local": 3, "committed": 1})
	})
}

func TestNewDiskCollectorImplementsCollector(t *testing.T) {
	c := telemetry.NewDiskCollector(map[string]string{"local": t.TempDir()})
	require.NotNil(t, c)
}
