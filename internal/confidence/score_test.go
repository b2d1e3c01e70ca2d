package confidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andreahaku/llm-memory-mcp/internal/config"
)

func TestScoreNoSignalsIsNeutral(t *testing.T) {
	w := config.DefaultConfidenceWeights()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := Score(w, Inputs{Now: now})
	require.InDelta(t, 0.5*(w.Feedback+w.Base), s, 1e-9)
}

func TestScoreRewardsHelpfulFeedback(t *testing.T) {
	w := config.DefaultConfidenceWeights()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	helpful := Score(w, Inputs{HelpfulCount: 10, Now: now})
	neutral := Score(w, Inputs{Now: now})
	require.Greater(t, helpful, neutral)
}

func TestScorePenalizesNotHelpfulFeedback(t *testing.T) {
	w := config.DefaultConfidenceWeights()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bad := Score(w, Inputs{NotHelpfulCount: 10, Now: now})
	neutral := Score(w, Inputs{Now: now})
	require.Less(t, bad, neutral)
}

func TestScoreDecaysWithAge(t *testing.T) {
	w := config.DefaultConfidenceWeights()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Hour)
	old := now.Add(-recencyHalfLife * 4)

	fresh := Score(w, Inputs{LastAccessedAt: &recent, Now: now})
	stale := Score(w, Inputs{LastAccessedAt: &old, Now: now})
	require.Greater(t, fresh, stale)
}

func TestScoreClampsContextMatch(t *testing.T) {
	w := config.DefaultConfidenceWeights()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	over := Score(w, Inputs{ContextMatch: 5, Now: now})
	capped := Score(w, Inputs{ContextMatch: 1, Now: now})
	require.InDelta(t, capped, over, 1e-9)
}

func TestApplyPinBoostsAndFloors(t *testing.T) {
	require.Equal(t, 0.1, ApplyPin(0.1, false, 0.75, 1.2))
	require.Equal(t, 0.75, ApplyPin(0.1, true, 0.75, 1.2))
	require.InDelta(t, 0.96, ApplyPin(0.8, true, 0.75, 1.2), 1e-9)
	require.Equal(t, 1.0, ApplyPin(0.99, true, 0.75, 1.5))
}
