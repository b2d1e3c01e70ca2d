package videocodec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanSeekNearStart(t *testing.T) {
	plan := planSeek(3, 30, 8)
	require.Equal(t, 0.0, plan.seekSeconds)
	require.Equal(t, 3, plan.skipFrames)
	require.Equal(t, 4, plan.decodeFrames)
}

func TestPlanSeekFarFromStart(t *testing.T) {
	plan := planSeek(100, 30, 8)
	require.InDelta(t, float64(92)/30.0, plan.seekSeconds, 1e-9)
	require.Equal(t, 8, plan.skipFrames)
	require.Equal(t, 9, plan.decodeFrames)
}

func TestPlanSeekDefaultGuard(t *testing.T) {
	plan := planSeek(50, 30, 0)
	require.Equal(t, defaultGuardFrames, uint32(plan.skipFrames))
}

func TestPlanSeekZeroFPSFallsBackToDefault(t *testing.T) {
	plan := planSeek(30, 0, 8)
	require.InDelta(t, float64(22)/float64(DefaultEncodeOptions().FPS), plan.seekSeconds, 1e-9)
}
