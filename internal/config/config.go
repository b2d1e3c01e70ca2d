// Package config holds the engine's typed configuration: defaults overridable
// by environment variables and, at call sites that need it, by functional
// options. The Option-per-field pattern is grounded on the teacher's
// gsfa/store functional-options config.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"
)

// Backend names the storage back-end a scope is pinned to.
type Backend string

const (
	BackendFile  Backend = "file"
	BackendVideo Backend = "video"
	// BackendAuto lets the manager pick per scope based on availability.
	BackendAuto Backend = "auto"
)

// ConfidenceWeights are the five terms confidence scoring blends (spec
// §4.9). They must sum to 1.0 within weightSumEpsilon.
type ConfidenceWeights struct {
	Feedback float64
	Usage    float64
	Recency  float64
	Context  float64
	Base     float64
}

const weightSumEpsilon = 1e-6

// DefaultConfidenceWeights mirrors spec §4.9's defaults.
func DefaultConfidenceWeights() ConfidenceWeights {
	return ConfidenceWeights{Feedback: 0.35, Usage: 0.25, Recency: 0.20, Context: 0.15, Base: 0.05}
}

func (w ConfidenceWeights) sum() float64 {
	return w.Feedback + w.Usage + w.Recency + w.Context + w.Base
}

// Validate reports an error if the weights do not sum to 1.0.
func (w ConfidenceWeights) Validate() error {
	if math.Abs(w.sum()-1.0) > weightSumEpsilon {
		return fmt.Errorf("config: confidence weights must sum to 1.0, got %f", w.sum())
	}
	return nil
}

// Config is the fully resolved engine configuration.
type Config struct {
	HomeDir string

	SkipStartupReplay bool
	StartupReplayMs   int

	ForceBackend Backend

	MigrationBatchSize int
	MigrationMaxTimeMs int

	ConfidenceWeights ConfidenceWeights

	// PinFloor is the minimum confidence a pinned item is clamped to;
	// PinMultiplier additionally scales a pinned item's raw score upward
	// before that floor is applied (spec §4.9).
	PinFloor      float64
	PinMultiplier float64

	Maintenance MaintenanceConfig
}

// MaintenanceConfig governs when internal/maintenance's scheduler fires a
// scope's compaction, independent of any on-demand maintenance.* call
// (spec §4.10 maintenance schedule).
type MaintenanceConfig struct {
	// CompactEvery triggers compaction once a scope's journal append count
	// reaches this many ops since the last compaction.
	CompactEvery int
	// CompactInterval triggers compaction once this much time has elapsed
	// since the last compaction, regardless of op count.
	CompactInterval time.Duration
	// PollInterval is how often the scheduler checks every open scope
	// against the two thresholds above.
	PollInterval time.Duration
}

// DefaultMaintenanceConfig mirrors spec §4.10's defaults: compact every 500
// ops or 24h, whichever comes first.
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		CompactEvery:    500,
		CompactInterval: 24 * time.Hour,
		PollInterval:    time.Minute,
	}
}

const (
	defaultStartupReplayMs  = 30_000
	defaultMigrationBatch   = 200
	defaultMigrationMaxTime = 60_000
	defaultPinFloor         = 0.8
	defaultPinMultiplier    = 1.05
)

// Option customizes a Config away from its defaults.
type Option func(*Config)

func (c *Config) apply(opts []Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// WithHomeDir overrides the root directory the catalog tree lives under.
func WithHomeDir(dir string) Option {
	return func(c *Config) { c.HomeDir = dir }
}

// WithForceBackend pins every scope to a single storage back-end,
// bypassing per-scope auto-detection.
func WithForceBackend(b Backend) Option {
	return func(c *Config) { c.ForceBackend = b }
}

// WithConfidenceWeights overrides the confidence blend weights.
func WithConfidenceWeights(w ConfidenceWeights) Option {
	return func(c *Config) { c.ConfidenceWeights = w }
}

// WithMigrationBatchSize overrides how many items a migration step moves
// before checking its deadline.
func WithMigrationBatchSize(n int) Option {
	return func(c *Config) { c.MigrationBatchSize = n }
}

// Default returns the engine's default configuration before environment or
// option overrides.
func Default() *Config {
	return &Config{
		HomeDir:            defaultHomeDir(),
		StartupReplayMs:    defaultStartupReplayMs,
		ForceBackend:       BackendAuto,
		MigrationBatchSize: defaultMigrationBatch,
		MigrationMaxTimeMs: defaultMigrationMaxTime,
		ConfidenceWeights:  DefaultConfidenceWeights(),
		PinFloor:           defaultPinFloor,
		PinMultiplier:      defaultPinMultiplier,
		Maintenance:        DefaultMaintenanceConfig(),
	}
}

func defaultHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// Load builds a Config from defaults, then environment variables, then the
// supplied options, in that precedence order (options win).
func Load(opts ...Option) (*Config, error) {
	c := Default()

	if v := os.Getenv("HOME_DIR"); v != "" {
		c.HomeDir = v
	}
	if v := os.Getenv("SKIP_STARTUP_REPLAY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("config: SKIP_STARTUP_REPLAY: %w", err)
		}
		c.SkipStartupReplay = b
	}
	if v := os.Getenv("STARTUP_REPLAY_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: STARTUP_REPLAY_MS: %w", err)
		}
		c.StartupReplayMs = n
	}
	if v := os.Getenv("FORCE_BACKEND"); v != "" {
		c.ForceBackend = Backend(v)
	}
	if v := os.Getenv("MIGRATION_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: MIGRATION_BATCH_SIZE: %w", err)
		}
		c.MigrationBatchSize = n
	}
	if v := os.Getenv("MIGRATION_MAX_TIME_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: MIGRATION_MAX_TIME_MS: %w", err)
		}
		c.MigrationMaxTimeMs = n
	}

	c.apply(opts)

	if err := c.ConfidenceWeights.Validate(); err != nil {
		return nil, err
	}
	if c.ForceBackend != BackendAuto && c.ForceBackend != BackendFile && c.ForceBackend != BackendVideo {
		return nil, fmt.Errorf("config: unknown FORCE_BACKEND %q", c.ForceBackend)
	}
	return c, nil
}
