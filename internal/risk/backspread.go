package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/options_advisor/internal/models"
)

const (
	// DefaultShortQty is the short side of a 1x2 backspread.
	DefaultShortQty = 1
	// DefaultLongQty is the long side of a 1x2 backspread.
	DefaultLongQty = 2
)

// RatioBackspread describes a short near-the-money option against a larger number of
// further out-of-the-money options of the same type. Zero quantities take the 1x2 defaults.
type RatioBackspread struct {
	ShortStrike decimal.Decimal `json:"short_strike"`
	LongStrike  decimal.Decimal `json:"long_strike"`
	ShortPrice  decimal.Decimal `json:"short_price"`
	LongPrice   decimal.Decimal `json:"long_price"`
	ShortQty    int             `json:"short_qty"`
	LongQty     int             `json:"long_qty"`
}

func (r RatioBackspread) quantities() (short, long decimal.Decimal) {
	sq, lq := r.ShortQty, r.LongQty
	if sq == 0 {
		sq = DefaultShortQty
	}
	if lq == 0 {
		lq = DefaultLongQty
	}
	return decimal.NewFromInt(int64(sq)), decimal.NewFromInt(int64(lq))
}

// net returns short premium received minus long premium paid; positive is a credit.
func (r RatioBackspread) net(sq, lq decimal.Decimal) decimal.Decimal {
	return r.ShortPrice.Mul(sq).Sub(r.LongPrice.Mul(lq))
}

// CallRatioBackspread prices a call backspread. Max loss sits at the long strike and max
// profit is unlimited above the upper breakeven.
func (c *Calculator) CallRatioBackspread(r RatioBackspread) models.RiskMetrics {
	sq, lq := r.quantities()
	net := r.net(sq, lq)
	maxLoss := r.LongStrike.Sub(r.ShortStrike).Abs().Mul(sq).Sub(net)
	extra := lq.Sub(sq)

	m := models.RiskMetrics{
		Strategy:       models.StrategyCallRatioBackspread,
		MaxLoss:        models.Finite(maxLoss),
		MaxProfit:      models.Unlimited(),
		NetCreditDebit: models.Finite(net),
		IsCredit:       net.IsPositive(),
		ProbProfit:     c.h.BackspreadProbProfit,
	}
	if m.IsCredit {
		m.BreakevenLower = models.Finite(r.ShortStrike.Sub(net.Abs()))
		m.BreakevenUpper = divideOver(r.LongStrike, maxLoss, extra, true)
	} else {
		m.BreakevenUpper = divideOver(r.LongStrike, net.Abs(), extra, true)
	}
	if extra.IsZero() {
		m.Warnings = append(m.Warnings, degenerate(sq))
	}
	if r.LongStrike.LessThan(r.ShortStrike) {
		m.Warnings = append(m.Warnings, inverted("long call strike %s is below short call strike %s",
			r.LongStrike, r.ShortStrike))
	}
	return finish(m)
}

// PutRatioBackspread prices a put backspread. Max profit is reached with the underlying at zero.
func (c *Calculator) PutRatioBackspread(r RatioBackspread) models.RiskMetrics {
	sq, lq := r.quantities()
	net := r.net(sq, lq)
	maxLoss := r.ShortStrike.Sub(r.LongStrike).Abs().Mul(sq).Sub(net)
	extra := lq.Sub(sq)

	m := models.RiskMetrics{
		Strategy:       models.StrategyPutRatioBackspread,
		MaxLoss:        models.Finite(maxLoss),
		MaxProfit:      models.Finite(r.LongStrike.Mul(extra).Add(net)),
		NetCreditDebit: models.Finite(net),
		IsCredit:       net.IsPositive(),
		ProbProfit:     c.h.BackspreadProbProfit,
	}
	if m.IsCredit {
		m.BreakevenUpper = models.Finite(r.ShortStrike.Add(net.Abs()))
		m.BreakevenLower = divideOver(r.LongStrike, maxLoss, extra, false)
	} else {
		m.BreakevenLower = divideOver(r.LongStrike, net.Abs(), extra, false)
	}
	if extra.IsZero() {
		m.Warnings = append(m.Warnings, degenerate(sq))
	}
	if r.LongStrike.GreaterThan(r.ShortStrike) {
		m.Warnings = append(m.Warnings, inverted("long put strike %s is above short put strike %s",
			r.LongStrike, r.ShortStrike))
	}
	return finish(m)
}

// divideOver returns strike ± amount/extra, or Undefined when extra is zero.
func divideOver(strike, amount, extra decimal.Decimal, up bool) models.Amount {
	if extra.IsZero() {
		return models.Undefined()
	}
	offset := amount.Div(extra)
	if up {
		return models.Finite(strike.Add(offset))
	}
	return models.Finite(strike.Sub(offset))
}

func degenerate(qty decimal.Decimal) models.Warning {
	return models.Warning{
		Code:    models.WarnDegenerateRatio,
		Message: fmt.Sprintf("long and short quantities are both %s; ratio breakeven is undefined", qty),
	}
}
