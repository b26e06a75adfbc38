// Package signals derives the trend and implied-volatility inputs of strategy selection
// from raw market history.
package signals

import (
	"math"

	"github.com/eddiefleurent/options_advisor/internal/models"
)

// TrendConfig sets the moving-average windows and the bands around the long average.
type TrendConfig struct {
	ShortWindow      int     `yaml:"sma_short"`
	LongWindow       int     `yaml:"sma_long"`
	BullishThreshold float64 `yaml:"bullish_threshold"`
	BearishThreshold float64 `yaml:"bearish_threshold"`
	LookbackDays     int     `yaml:"lookback_days"`
}

// DefaultTrendConfig is SMA10 against SMA30 with 1% bands.
func DefaultTrendConfig() TrendConfig {
	return TrendConfig{
		ShortWindow:      10,
		LongWindow:       30,
		BullishThreshold: 1.01,
		BearishThreshold: 0.99,
		LookbackDays:     50,
	}
}

// SMA averages the last window values; ok is false when there are not enough values.
func SMA(values []float64, window int) (float64, bool) {
	if window <= 0 || len(values) < window {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[len(values)-window:] {
		sum += v
	}
	return sum / float64(window), true
}

// DetectTrend compares the short average of closes (oldest first) against the long one.
// Too little history reads as neutral.
func DetectTrend(closes []float64, cfg TrendConfig) models.Trend {
	long, ok := SMA(closes, cfg.LongWindow)
	if !ok {
		return models.TrendNeutral
	}
	short, ok := SMA(closes, cfg.ShortWindow)
	if !ok {
		return models.TrendNeutral
	}
	switch {
	case short > long*cfg.BullishThreshold:
		return models.TrendBullish
	case short < long*cfg.BearishThreshold:
		return models.TrendBearish
	default:
		return models.TrendNeutral
	}
}

// IVRank places current within the min/max range of history as a fraction in [0,1].
// Non-finite readings are ignored; empty or flat history yields 0.
func IVRank(current float64, history []float64) float64 {
	if math.IsNaN(current) || math.IsInf(current, 0) {
		return 0
	}

	clean := make([]float64, 0, len(history))
	for _, v := range history {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return 0
	}

	minIV, maxIV := clean[0], clean[0]
	for _, iv := range clean {
		minIV = math.Min(minIV, iv)
		maxIV = math.Max(maxIV, iv)
	}
	if maxIV == minIV {
		return 0
	}
	r := (current - minIV) / (maxIV - minIV)
	return math.Max(0, math.Min(1, r))
}

// IVRankFromReadings ranks current against stored readings, falling back when there are
// fewer than minReadings of them.
func IVRankFromReadings(current float64, readings []models.IVReading, minReadings int, fallback float64) (float64, bool) {
	if len(readings) < minReadings || len(readings) == 0 {
		return fallback, false
	}
	history := make([]float64, len(readings))
	for i, r := range readings {
		history[i] = r.IV
	}
	return IVRank(current, history), true
}
