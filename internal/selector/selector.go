// Package selector maps a market regime to an option structure.
package selector

import "github.com/eddiefleurent/options_advisor/internal/models"

const (
	// DefaultLowThreshold separates low from mid implied volatility rank.
	DefaultLowThreshold = 0.3
	// DefaultHighThreshold separates mid from high implied volatility rank.
	DefaultHighThreshold = 0.6
)

// Thresholds bound the IV rank buckets: low is rank < Low, mid is Low <= rank < High,
// high is rank >= High.
type Thresholds struct {
	Low  float64 `json:"low" yaml:"iv_low_threshold"`
	High float64 `json:"high" yaml:"iv_high_threshold"`
}

// DefaultThresholds returns the standard 0.3 / 0.6 split.
func DefaultThresholds() Thresholds {
	return Thresholds{Low: DefaultLowThreshold, High: DefaultHighThreshold}
}

// Bucket is the IV rank class.
type Bucket int

const (
	BucketLow Bucket = iota
	BucketMid
	BucketHigh
)

func (b Bucket) String() string {
	switch b {
	case BucketLow:
		return "low"
	case BucketMid:
		return "mid"
	default:
		return "high"
	}
}

// Classify buckets an IV rank. Ranks outside [0,1] still classify.
func (t Thresholds) Classify(ivRank float64) Bucket {
	switch {
	case ivRank < t.Low:
		return BucketLow
	case ivRank < t.High:
		return BucketMid
	default:
		return BucketHigh
	}
}

var table = map[models.Trend][3]models.StrategyType{
	models.TrendBullish: {models.StrategyBullCallSpread, models.StrategyLongCall, models.StrategyCallRatioBackspread},
	models.TrendBearish: {models.StrategyBearPutSpread, models.StrategyLongPut, models.StrategyPutRatioBackspread},
	models.TrendNeutral: {models.StrategyCalendarSpread, models.StrategyStraddle, models.StrategyIronCondor},
}

// Select returns the strategy for a trend and IV rank. Unknown trends yield hold_cash.
func Select(trend models.Trend, ivRank float64, th Thresholds) models.StrategyType {
	row, ok := table[trend]
	if !ok {
		return models.StrategyHoldCash
	}
	return row[th.Classify(ivRank)]
}
