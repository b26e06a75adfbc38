// Package marketdata defines the quote source the advisor reads from and the chain
// helpers shared by the scanner and the analyzer.
package marketdata

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/options_advisor/internal/models"
)

var (
	// ErrSymbolNotFound is returned when the source does not know the underlying.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrExpiryNotFound is returned when no chain exists for the requested expiry.
	ErrExpiryNotFound = errors.New("expiry not found")
)

// strikeTolerance is the maximum strike difference for two strikes to be the same contract.
var strikeTolerance = decimal.RequireFromString("0.01")

// Source defines the market data the advisor consumes.
type Source interface {
	GetUnderlyingPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	// GetDailyCloses returns up to days closing prices, oldest first.
	GetDailyCloses(ctx context.Context, symbol string, days int) ([]float64, error)
	GetExpirations(ctx context.Context, symbol string) ([]time.Time, error)
	GetOptionChain(ctx context.Context, symbol string, expiry time.Time) ([]OptionQuote, error)
}

// OptionQuote is one contract of a chain with its market and greeks.
type OptionQuote struct {
	Symbol     string            `json:"symbol"`
	Underlying string            `json:"underlying"`
	Strike     decimal.Decimal   `json:"strike"`
	Type       models.OptionType `json:"type"`
	Expiry     time.Time         `json:"expiry"`
	Bid        decimal.Decimal   `json:"bid"`
	Ask        decimal.Decimal   `json:"ask"`
	Last       decimal.Decimal   `json:"last"`
	Delta      float64           `json:"delta"`
	IV         float64           `json:"iv"`
	Volume     int64             `json:"volume"`
}

// Quote returns the bid/ask/last triple.
func (o OptionQuote) Quote() models.Quote {
	return models.Quote{Bid: o.Bid, Ask: o.Ask, Last: o.Last}
}

// FindOption finds an option with a specific strike and type.
func FindOption(chain []OptionQuote, strike decimal.Decimal, typ models.OptionType) *OptionQuote {
	for i := range chain {
		if chain[i].Type == typ && chain[i].Strike.Sub(strike).Abs().LessThanOrEqual(strikeTolerance) {
			return &chain[i]
		}
	}
	return nil
}

// QuotesForLegs returns the quote matching each leg in order; unmatched legs get nil.
func QuotesForLegs(chain []OptionQuote, legs []models.Leg) []*models.Quote {
	out := make([]*models.Quote, len(legs))
	for i, l := range legs {
		if opt := FindOption(chain, l.Strike, l.Type); opt != nil {
			q := opt.Quote()
			out[i] = &q
		}
	}
	return out
}

// FilterType returns the contracts of one type sorted by ascending strike.
func FilterType(chain []OptionQuote, typ models.OptionType) []OptionQuote {
	out := make([]OptionQuote, 0, len(chain)/2+1)
	for _, o := range chain {
		if o.Type == typ {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strike.LessThan(out[j].Strike) })
	return out
}

// NearestStrike returns the contract of the type whose strike is closest to price.
func NearestStrike(chain []OptionQuote, typ models.OptionType, price decimal.Decimal) *OptionQuote {
	var best *OptionQuote
	var bestDiff decimal.Decimal
	for i := range chain {
		if chain[i].Type != typ {
			continue
		}
		diff := chain[i].Strike.Sub(price).Abs()
		if best == nil || diff.LessThan(bestDiff) {
			best, bestDiff = &chain[i], diff
		}
	}
	return best
}

// ATMImpliedVol averages the call and put IV at the strike closest to the underlying.
func ATMImpliedVol(chain []OptionQuote, underlying decimal.Decimal) (float64, bool) {
	call := NearestStrike(chain, models.OptionCall, underlying)
	if call == nil {
		return 0, false
	}
	sum, n := 0.0, 0
	for _, o := range []*OptionQuote{call, FindOption(chain, call.Strike, models.OptionPut)} {
		if o != nil && o.IV > 0 && !math.IsNaN(o.IV) {
			sum += o.IV
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// DaysBetween calculates the number of calendar days between two dates
func DaysBetween(from, to time.Time) int {
	f := from.UTC().Truncate(24 * time.Hour)
	t := to.UTC().Truncate(24 * time.Hour)
	return int(t.Sub(f).Hours() / 24)
}

// NearestExpiration picks the future expiry whose DTE is closest to target. A positive
// tolerance rejects expiries further than tolerance days from target.
func NearestExpiration(expirations []time.Time, now time.Time, target, tolerance int) (time.Time, int, bool) {
	var best time.Time
	bestDTE, bestDiff := 0, math.MaxInt
	for _, exp := range expirations {
		dte := DaysBetween(now, exp)
		if dte < 0 {
			continue
		}
		diff := dte - target
		if diff < 0 {
			diff = -diff
		}
		if tolerance > 0 && diff > tolerance {
			continue
		}
		if diff < bestDiff || (diff == bestDiff && exp.Before(best)) {
			best, bestDTE, bestDiff = exp, dte, diff
		}
	}
	return best, bestDTE, bestDiff != math.MaxInt
}
