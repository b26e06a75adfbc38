package models

// StrategyType identifies one of the supported option structures.
type StrategyType string

const (
	StrategyBullCallSpread      StrategyType = "bull_call_spread"
	StrategyBearPutSpread       StrategyType = "bear_put_spread"
	StrategyIronCondor          StrategyType = "iron_condor"
	StrategyStraddle            StrategyType = "straddle"
	StrategyLongCall            StrategyType = "long_call"
	StrategyLongPut             StrategyType = "long_put"
	StrategyCallRatioBackspread StrategyType = "call_ratio_backspread"
	StrategyPutRatioBackspread  StrategyType = "put_ratio_backspread"
	StrategyCalendarSpread      StrategyType = "calendar_spread"
	// StrategyHoldCash means no trade is recommended
	StrategyHoldCash StrategyType = "hold_cash"
)

// TradeStrategies lists every strategy that produces legs, in display order.
var TradeStrategies = []StrategyType{
	StrategyBullCallSpread,
	StrategyBearPutSpread,
	StrategyIronCondor,
	StrategyStraddle,
	StrategyLongCall,
	StrategyLongPut,
	StrategyCallRatioBackspread,
	StrategyPutRatioBackspread,
	StrategyCalendarSpread,
}

// Valid returns true if the StrategyType is one of the defined constants
func (s StrategyType) Valid() bool {
	return s == StrategyHoldCash || s.ExpectedLegs() > 0
}

// ExpectedLegs returns the number of distinct legs the strategy is built from, 0 for hold_cash and unknown values.
func (s StrategyType) ExpectedLegs() int {
	switch s {
	case StrategyLongCall, StrategyLongPut:
		return 1
	case StrategyBullCallSpread, StrategyBearPutSpread, StrategyStraddle,
		StrategyCallRatioBackspread, StrategyPutRatioBackspread, StrategyCalendarSpread:
		return 2
	case StrategyIronCondor:
		return 4
	default:
		return 0
	}
}

// Trend is the directional read of an underlying.
type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
)

// Valid returns true if the Trend is one of the defined constants
func (t Trend) Valid() bool {
	switch t {
	case TrendBullish, TrendBearish, TrendNeutral:
		return true
	default:
		return false
	}
}
