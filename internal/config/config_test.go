package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultWeightsSumToOne(t *testing.T) {
	require.NoError(t, DefaultConfidenceWeights().Validate())
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("HOME_DIR", "/tmp/mem-home")
	t.Setenv("MIGRATION_BATCH_SIZE", "50")
	t.Setenv("FORCE_BACKEND", "video")

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/mem-home", c.HomeDir)
	require.Equal(t, 50, c.MigrationBatchSize)
	require.Equal(t, BackendVideo, c.ForceBackend)
}

func TestLoadOptionsOverrideEnv(t *testing.T) {
	t.Setenv("FORCE_BACKEND", "video")
	c, err := Load(WithForceBackend(BackendFile))
	require.NoError(t, err)
	require.Equal(t, BackendFile, c.ForceBackend)
}

func TestLoadRejectsBadWeights(t *testing.T) {
	_, err := Load(WithConfidenceWeights(ConfidenceWeights{Feedback: 1, Usage: 1}))
	require.Error(t, err)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("FORCE_BACKEND", "carrier-pigeon")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsNonBoolSkipReplay(t *testing.T) {
	t.Setenv("SKIP_STARTUP_REPLAY", "maybe")
	_, err := Load()
	require.Error(t, err)
}
