package hashutil

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func TestIDGeneratorMonotonicOrdering(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	gen := NewIDGeneratorWithClock(mock)

	ids := make([]string, 10)
	for i := range ids {
		ids[i] = gen.New()
	}
	for i := 1; i < len(ids); i++ {
		require.Less(t, ids[i-1], ids[i])
	}
}

func TestIDGeneratorAdvancingClock(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	gen := NewIDGeneratorWithClock(mock)

	first := gen.New()
	mock.Add(time.Second)
	second := gen.New()
	require.Less(t, first, second)
}

func TestValid(t *testing.T) {
	gen := NewIDGenerator()
	require.True(t, Valid(gen.New()))
	require.False(t, Valid("not-a-ulid"))
}
