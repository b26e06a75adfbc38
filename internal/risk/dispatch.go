package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/options_advisor/internal/models"
)

var (
	// ErrUnsupportedStrategy is returned for hold_cash and unknown strategy identifiers.
	ErrUnsupportedStrategy = errors.New("no risk model for strategy")
	// ErrLegMismatch is returned when the legs do not form the requested strategy.
	ErrLegMismatch = errors.New("legs do not match strategy")
)

// Market carries the inputs a leg list cannot express.
type Market struct {
	UnderlyingPrice decimal.Decimal  `json:"underlying_price"`
	Delta           *decimal.Decimal `json:"delta,omitempty"`
	DTE             int              `json:"dte"`
	FrontDTE        int              `json:"front_dte"`
	BackDTE         int              `json:"back_dte"`
}

// Evaluate identifies each leg of the strategy by action and option type and calls the
// matching calculator. Calendar legs are told apart by action: the sold leg is the front month.
func (c *Calculator) Evaluate(strategy models.StrategyType, legs []models.Leg, mkt Market) (models.RiskMetrics, error) {
	find := legFinder(legs)

	switch strategy {
	case models.StrategyBullCallSpread, models.StrategyBearPutSpread:
		typ := models.OptionCall
		if strategy == models.StrategyBearPutSpread {
			typ = models.OptionPut
		}
		long, ok1 := find(models.ActionBuy, typ)
		short, ok2 := find(models.ActionSell, typ)
		if !ok1 || !ok2 {
			return models.RiskMetrics{}, mismatch(strategy, legs)
		}
		v := Vertical{LongStrike: long.Strike, ShortStrike: short.Strike, LongPrice: long.Price, ShortPrice: short.Price}
		if strategy == models.StrategyBullCallSpread {
			return c.BullCallSpread(v), nil
		}
		return c.BearPutSpread(v), nil

	case models.StrategyIronCondor:
		lp, ok1 := find(models.ActionBuy, models.OptionPut)
		sp, ok2 := find(models.ActionSell, models.OptionPut)
		sc, ok3 := find(models.ActionSell, models.OptionCall)
		lc, ok4 := find(models.ActionBuy, models.OptionCall)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return models.RiskMetrics{}, mismatch(strategy, legs)
		}
		return c.IronCondor(IronCondor{
			LongPutStrike: lp.Strike, ShortPutStrike: sp.Strike, ShortCallStrike: sc.Strike, LongCallStrike: lc.Strike,
			LongPutPrice: lp.Price, ShortPutPrice: sp.Price, ShortCallPrice: sc.Price, LongCallPrice: lc.Price,
		}), nil

	case models.StrategyStraddle:
		call, ok1 := find(models.ActionBuy, models.OptionCall)
		put, ok2 := find(models.ActionBuy, models.OptionPut)
		if !ok1 || !ok2 {
			return models.RiskMetrics{}, mismatch(strategy, legs)
		}
		return c.Straddle(Straddle{
			Strike: call.Strike, CallPrice: call.Price, PutPrice: put.Price,
			UnderlyingPrice: mkt.UnderlyingPrice, DTE: mkt.DTE,
		}), nil

	case models.StrategyLongCall, models.StrategyLongPut:
		typ := models.OptionCall
		if strategy == models.StrategyLongPut {
			typ = models.OptionPut
		}
		leg, ok := find(models.ActionBuy, typ)
		if !ok {
			return models.RiskMetrics{}, mismatch(strategy, legs)
		}
		o := SingleOption{Strike: leg.Strike, Premium: leg.Price, UnderlyingPrice: mkt.UnderlyingPrice, Delta: mkt.Delta}
		if strategy == models.StrategyLongCall {
			return c.LongCall(o), nil
		}
		return c.LongPut(o), nil

	case models.StrategyCallRatioBackspread, models.StrategyPutRatioBackspread:
		typ := models.OptionCall
		if strategy == models.StrategyPutRatioBackspread {
			typ = models.OptionPut
		}
		short, ok1 := find(models.ActionSell, typ)
		long, ok2 := find(models.ActionBuy, typ)
		if !ok1 || !ok2 {
			return models.RiskMetrics{}, mismatch(strategy, legs)
		}
		r := RatioBackspread{
			ShortStrike: short.Strike, LongStrike: long.Strike,
			ShortPrice: short.Price, LongPrice: long.Price,
			ShortQty: short.Contracts(), LongQty: long.Contracts(),
		}
		if strategy == models.StrategyCallRatioBackspread {
			return c.CallRatioBackspread(r), nil
		}
		return c.PutRatioBackspread(r), nil

	case models.StrategyCalendarSpread:
		front, ok1 := findAny(legs, models.ActionSell)
		back, ok2 := findAny(legs, models.ActionBuy)
		if !ok1 || !ok2 {
			return models.RiskMetrics{}, mismatch(strategy, legs)
		}
		return c.CalendarSpread(Calendar{
			Strike: back.Strike, FrontPrice: front.Price, BackPrice: back.Price,
			FrontDTE: mkt.FrontDTE, BackDTE: mkt.BackDTE,
		}), nil

	default:
		return models.RiskMetrics{}, fmt.Errorf("%w: %q", ErrUnsupportedStrategy, strategy)
	}
}

func legFinder(legs []models.Leg) func(models.Action, models.OptionType) (models.Leg, bool) {
	return func(action models.Action, typ models.OptionType) (models.Leg, bool) {
		for _, l := range legs {
			if l.Action == action && l.Type == typ {
				return l, true
			}
		}
		return models.Leg{}, false
	}
}

func findAny(legs []models.Leg, action models.Action) (models.Leg, bool) {
	for _, l := range legs {
		if l.Action == action {
			return l, true
		}
	}
	return models.Leg{}, false
}

func mismatch(strategy models.StrategyType, legs []models.Leg) error {
	return fmt.Errorf("%w: %s from %d legs", ErrLegMismatch, strategy, len(legs))
}
