// Package risk computes per-share risk profiles for option structures.
//
// Calculators never fail on odd inputs: inverted strikes produce whatever the formula
// yields plus a warning, and the only true division hazard (equal backspread ratio
// counts) is reported as an undefined breakeven. Monetary outputs are rounded to two
// places after all arithmetic is done.
package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/options_advisor/internal/models"
	"github.com/eddiefleurent/options_advisor/internal/util"
)

// Heuristics are the probability-of-profit proxies used where no model is applied.
// They are rules of thumb, not statistically derived.
type Heuristics struct {
	DefaultProbProfit    decimal.Decimal
	StraddleProbProfit   decimal.Decimal
	BackspreadProbProfit decimal.Decimal
	CalendarProbProfit   decimal.Decimal
	// CalendarProfitFactor scales the front-month premium into a max profit estimate.
	CalendarProfitFactor decimal.Decimal
}

// DefaultHeuristics returns the standard proxies.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		DefaultProbProfit:    decimal.RequireFromString("0.50"),
		StraddleProbProfit:   decimal.RequireFromString("0.35"),
		BackspreadProbProfit: decimal.RequireFromString("0.45"),
		CalendarProbProfit:   decimal.RequireFromString("0.55"),
		CalendarProfitFactor: decimal.RequireFromString("0.5"),
	}
}

// Calculator holds the heuristics; it has no other state and is safe for concurrent use.
type Calculator struct {
	h Heuristics
}

// NewCalculator creates a calculator with the given heuristics.
func NewCalculator(h Heuristics) *Calculator {
	return &Calculator{h: h}
}

// Heuristics returns the configured proxies.
func (c *Calculator) Heuristics() Heuristics {
	return c.h
}

// Vertical describes a two-leg debit spread of one option type.
type Vertical struct {
	LongStrike  decimal.Decimal `json:"long_strike"`
	ShortStrike decimal.Decimal `json:"short_strike"`
	LongPrice   decimal.Decimal `json:"long_price"`
	ShortPrice  decimal.Decimal `json:"short_price"`
}

// IronCondor describes a short put spread plus a short call spread.
type IronCondor struct {
	LongPutStrike   decimal.Decimal `json:"long_put_strike"`
	ShortPutStrike  decimal.Decimal `json:"short_put_strike"`
	ShortCallStrike decimal.Decimal `json:"short_call_strike"`
	LongCallStrike  decimal.Decimal `json:"long_call_strike"`
	LongPutPrice    decimal.Decimal `json:"long_put_price"`
	ShortPutPrice   decimal.Decimal `json:"short_put_price"`
	ShortCallPrice  decimal.Decimal `json:"short_call_price"`
	LongCallPrice   decimal.Decimal `json:"long_call_price"`
}

// Straddle describes a long call and long put at one strike.
type Straddle struct {
	Strike          decimal.Decimal `json:"strike"`
	CallPrice       decimal.Decimal `json:"call_price"`
	PutPrice        decimal.Decimal `json:"put_price"`
	UnderlyingPrice decimal.Decimal `json:"underlying_price"`
	DTE             int             `json:"dte"`
}

// SingleOption describes one long call or long put. Delta is optional.
type SingleOption struct {
	Strike          decimal.Decimal  `json:"strike"`
	Premium         decimal.Decimal  `json:"premium"`
	UnderlyingPrice decimal.Decimal  `json:"underlying_price"`
	Delta           *decimal.Decimal `json:"delta,omitempty"`
}

// Calendar describes a short front-month and long back-month option at one strike.
type Calendar struct {
	Strike     decimal.Decimal `json:"strike"`
	FrontPrice decimal.Decimal `json:"front_price"`
	BackPrice  decimal.Decimal `json:"back_price"`
	FrontDTE   int             `json:"front_dte"`
	BackDTE    int             `json:"back_dte"`
}

// BullCallSpread prices a long lower-strike call against a short higher-strike call.
func (c *Calculator) BullCallSpread(v Vertical) models.RiskMetrics {
	netDebit := v.LongPrice.Sub(v.ShortPrice)
	width := v.ShortStrike.Sub(v.LongStrike)
	m := models.RiskMetrics{
		Strategy:   models.StrategyBullCallSpread,
		MaxLoss:    models.Finite(netDebit),
		MaxProfit:  models.Finite(width.Sub(netDebit)),
		Breakeven:  models.Finite(v.LongStrike.Add(netDebit)),
		NetDebit:   models.Finite(netDebit),
		ProbProfit: c.h.DefaultProbProfit,
	}
	if v.ShortStrike.LessThan(v.LongStrike) {
		m.Warnings = append(m.Warnings, inverted("short call strike %s is below long call strike %s",
			v.ShortStrike, v.LongStrike))
	}
	return finish(m)
}

// BearPutSpread prices a long higher-strike put against a short lower-strike put.
func (c *Calculator) BearPutSpread(v Vertical) models.RiskMetrics {
	netDebit := v.LongPrice.Sub(v.ShortPrice)
	width := v.LongStrike.Sub(v.ShortStrike)
	m := models.RiskMetrics{
		Strategy:   models.StrategyBearPutSpread,
		MaxLoss:    models.Finite(netDebit),
		MaxProfit:  models.Finite(width.Sub(netDebit)),
		Breakeven:  models.Finite(v.LongStrike.Sub(netDebit)),
		NetDebit:   models.Finite(netDebit),
		ProbProfit: c.h.DefaultProbProfit,
	}
	if v.ShortStrike.GreaterThan(v.LongStrike) {
		m.Warnings = append(m.Warnings, inverted("short put strike %s is above long put strike %s",
			v.ShortStrike, v.LongStrike))
	}
	return finish(m)
}

// IronCondor prices a four-leg credit structure. Probability of profit is the share of the
// total wing span covered by the short strikes.
func (c *Calculator) IronCondor(ic IronCondor) models.RiskMetrics {
	netCredit := ic.ShortPutPrice.Add(ic.ShortCallPrice).Sub(ic.LongPutPrice.Add(ic.LongCallPrice))
	putWidth := ic.ShortPutStrike.Sub(ic.LongPutStrike)
	callWidth := ic.LongCallStrike.Sub(ic.ShortCallStrike)
	maxWing := decimal.Max(putWidth, callWidth)

	prob := c.h.DefaultProbProfit
	totalRange := ic.LongCallStrike.Sub(ic.LongPutStrike)
	if totalRange.IsPositive() {
		prob = ic.ShortCallStrike.Sub(ic.ShortPutStrike).Div(totalRange)
	}

	m := models.RiskMetrics{
		Strategy:       models.StrategyIronCondor,
		MaxLoss:        models.Finite(maxWing.Sub(netCredit)),
		MaxProfit:      models.Finite(netCredit),
		BreakevenLower: models.Finite(ic.ShortPutStrike.Sub(netCredit)),
		BreakevenUpper: models.Finite(ic.ShortCallStrike.Add(netCredit)),
		NetCredit:      models.Finite(netCredit),
		IsCredit:       netCredit.IsPositive(),
		ProbProfit:     prob,
	}
	if ic.LongPutStrike.GreaterThan(ic.ShortPutStrike) ||
		ic.ShortPutStrike.GreaterThan(ic.ShortCallStrike) ||
		ic.ShortCallStrike.GreaterThan(ic.LongCallStrike) {
		m.Warnings = append(m.Warnings, inverted("strikes %s/%s/%s/%s are not ascending",
			ic.LongPutStrike, ic.ShortPutStrike, ic.ShortCallStrike, ic.LongCallStrike))
	}
	return finish(m)
}

// Straddle prices a long straddle. Max profit is unlimited.
func (c *Calculator) Straddle(s Straddle) models.RiskMetrics {
	totalCost := s.CallPrice.Add(s.PutPrice)
	move := decimal.Zero
	if s.UnderlyingPrice.IsPositive() {
		move = totalCost.Div(s.UnderlyingPrice).Mul(decimal.NewFromInt(100))
	}
	return finish(models.RiskMetrics{
		Strategy:       models.StrategyStraddle,
		MaxLoss:        models.Finite(totalCost),
		MaxProfit:      models.Unlimited(),
		BreakevenLower: models.Finite(s.Strike.Sub(totalCost)),
		BreakevenUpper: models.Finite(s.Strike.Add(totalCost)),
		NetDebit:       models.Finite(totalCost),
		ImpliedMovePct: models.Finite(move),
		ProbProfit:     c.h.StraddleProbProfit,
		DTE:            s.DTE,
	})
}

// LongCall prices a single long call. Max profit is unlimited.
func (c *Calculator) LongCall(o SingleOption) models.RiskMetrics {
	m := models.RiskMetrics{
		Strategy:  models.StrategyLongCall,
		MaxLoss:   models.Finite(o.Premium),
		MaxProfit: models.Unlimited(),
		Breakeven: models.Finite(o.Strike.Add(o.Premium)),
		NetDebit:  models.Finite(o.Premium),
	}
	c.applyDelta(&m, o.Delta)
	return finish(m)
}

// LongPut prices a single long put. Max profit is reached with the underlying at zero.
func (c *Calculator) LongPut(o SingleOption) models.RiskMetrics {
	m := models.RiskMetrics{
		Strategy:  models.StrategyLongPut,
		MaxLoss:   models.Finite(o.Premium),
		MaxProfit: models.Finite(o.Strike.Sub(o.Premium)),
		Breakeven: models.Finite(o.Strike.Sub(o.Premium)),
		NetDebit:  models.Finite(o.Premium),
	}
	c.applyDelta(&m, o.Delta)
	return finish(m)
}

// applyDelta uses |delta| as the probability proxy; a missing or zero delta falls back to the default.
func (c *Calculator) applyDelta(m *models.RiskMetrics, delta *decimal.Decimal) {
	if delta == nil || delta.IsZero() {
		m.ProbProfit = c.h.DefaultProbProfit
		return
	}
	m.ProbProfit = delta.Abs()
	m.Delta = models.Finite(delta.Round(3))
}

// CalendarSpread prices a same-strike time spread. Max profit is a heuristic estimate
// from the front-month premium.
func (c *Calculator) CalendarSpread(cal Calendar) models.RiskMetrics {
	netDebit := cal.BackPrice.Sub(cal.FrontPrice)
	return finish(models.RiskMetrics{
		Strategy:        models.StrategyCalendarSpread,
		MaxLoss:         models.Finite(netDebit),
		MaxProfit:       models.Finite(cal.FrontPrice.Mul(c.h.CalendarProfitFactor)),
		NetDebit:        models.Finite(netDebit),
		ProbProfit:      c.h.CalendarProbProfit,
		FrontDTE:        cal.FrontDTE,
		BackDTE:         cal.BackDTE,
		OptimalScenario: fmt.Sprintf("Price stays near %s with declining IV", util.PriceString(cal.Strike)),
	})
}

// finish derives the risk/reward ratio from full-precision values and rounds every output.
func finish(m models.RiskMetrics) models.RiskMetrics {
	m.RiskRewardRatio = decimal.Zero
	profit, okProfit := m.MaxProfit.Value()
	loss, okLoss := m.MaxLoss.Value()
	if okProfit && okLoss && loss.IsPositive() {
		m.RiskRewardRatio = profit.Div(loss).Round(util.OutputPlaces)
	}

	m.MaxLoss = m.MaxLoss.Round(util.OutputPlaces)
	m.MaxProfit = m.MaxProfit.Round(util.OutputPlaces)
	m.Breakeven = m.Breakeven.Round(util.OutputPlaces)
	m.BreakevenLower = m.BreakevenLower.Round(util.OutputPlaces)
	m.BreakevenUpper = m.BreakevenUpper.Round(util.OutputPlaces)
	m.NetDebit = m.NetDebit.Round(util.OutputPlaces)
	m.NetCredit = m.NetCredit.Round(util.OutputPlaces)
	m.NetCreditDebit = m.NetCreditDebit.Round(util.OutputPlaces)
	m.ImpliedMovePct = m.ImpliedMovePct.Round(util.OutputPlaces)
	m.ProbProfit = m.ProbProfit.Round(util.OutputPlaces)
	return m
}

func inverted(format string, args ...any) models.Warning {
	return models.Warning{Code: models.WarnInvertedStrikes, Message: fmt.Sprintf(format, args...)}
}
