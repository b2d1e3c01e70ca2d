// Package confidence implements the Bayesian-feedback plus
// exponential-decay scoring pipeline (C9, spec §4.9). Each memory item's
// confidence blends five signals: explicit helpful/not-helpful feedback,
// decayed reuse, recency, how well the item's stored context matches the
// querying context, and a flat base term, weighted by
// config.ConfidenceWeights.
package confidence

import (
	"math"
	"time"

	"github.com/andreahaku/llm-memory-mcp/internal/config"
)

// priorAlpha/priorBeta are the Laplace-smoothing prior pseudo-counts for
// the feedback ratio, so an item with no feedback yet scores a neutral 0.5
// rather than 0.
const (
	priorAlpha = 1.0
	priorBeta  = 1.0
)

// usageSaturation controls how quickly decayed usage approaches 1.0; it is
// the decayedUsage value at which the usage score reaches ~63%.
const usageSaturation = 5.0

// recencyHalfLife is how long it takes the recency score to halve.
const recencyHalfLife = 7 * 24 * time.Hour

// usageHalfLife is decayedUsage's own half-life, distinct from
// recencyHalfLife above: it governs how fast repeated use accumulates
// before being forgotten, not how fast a single item's score decays since
// its last access.
const usageHalfLife = 14 * 24 * time.Hour

// basePrior is the flat base term, scaled by config.ConfidenceWeights.Base.
const basePrior = 0.5

// Inputs are the raw per-item signals fed into Score.
type Inputs struct {
	HelpfulCount    int
	NotHelpfulCount int
	DecayedUsage    float64
	LastAccessedAt  *time.Time
	// ContextMatch is precomputed by the query pipeline: 1.0 when repo,
	// branch, and file all match the querying context, scaled down for
	// partial matches, 0 for no context at all.
	ContextMatch float64
	Now          time.Time
}

func feedbackScore(in Inputs) float64 {
	helpful := float64(in.HelpfulCount)
	total := helpful + float64(in.NotHelpfulCount)
	return (helpful + priorAlpha) / (total + priorAlpha + priorBeta)
}

func usageScore(in Inputs) float64 {
	if in.DecayedUsage <= 0 {
		return 0
	}
	return 1 - math.Exp(-in.DecayedUsage/usageSaturation)
}

func recencyScore(in Inputs) float64 {
	if in.LastAccessedAt == nil {
		return 0
	}
	elapsed := in.Now.Sub(*in.LastAccessedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	halfLives := float64(elapsed) / float64(recencyHalfLife)
	return math.Exp2(-halfLives)
}

// Score computes a weighted 0..1 confidence value from in, before any pin
// adjustment.
func Score(w config.ConfidenceWeights, in Inputs) float64 {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}
	ctx := in.ContextMatch
	if ctx < 0 {
		ctx = 0
	}
	if ctx > 1 {
		ctx = 1
	}

	score := w.Feedback*feedbackScore(in) +
		w.Usage*usageScore(in) +
		w.Recency*recencyScore(in) +
		w.Context*ctx +
		w.Base*basePrior

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

// DecayUsage applies spec §4.9's per-access update to decayedUsage:
// decayedUsage ← decayedUsage * 2^(−Δdays/usageHalfLifeDays) + 1. last is
// the item's previous LastAccessedAt (nil means no prior access, so the
// decay factor is skipped).
func DecayUsage(prev float64, last *time.Time, now time.Time) float64 {
	if last == nil {
		return prev + 1
	}
	elapsed := now.Sub(*last)
	if elapsed < 0 {
		elapsed = 0
	}
	halfLives := float64(elapsed) / float64(usageHalfLife)
	return prev*math.Exp2(-halfLives) + 1
}

// ApplyPin boosts a pinned item's score by multiplier and then clamps it to
// at least floor, so a pin always keeps an item visibly ahead of unpinned
// ones even if its raw signals are weak (spec §4.9).
func ApplyPin(score float64, pinned bool, floor, multiplier float64) float64 {
	if !pinned {
		return score
	}
	boosted := score * multiplier
	if boosted < floor {
		boosted = floor
	}
	if boosted > 1 {
		boosted = 1
	}
	return boosted
}
