// Package mock provides a deterministic synthetic market for paper runs and tests.
package mock

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/options_advisor/internal/marketdata"
	"github.com/eddiefleurent/options_advisor/internal/models"
	"github.com/eddiefleurent/options_advisor/internal/util"
)

// Profile shapes the synthetic market of one underlying.
type Profile struct {
	Price float64 // spot
	IV    float64 // ATM implied volatility, e.g. 0.20
	Drift float64 // log return per 30 sessions, e.g. 0.06 for roughly +6% a month
}

// DefaultProfiles covers the default watchlist with one trend of each kind.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		"SPY":  {Price: 450, IV: 0.18, Drift: 0.06},
		"QQQ":  {Price: 380, IV: 0.24, Drift: -0.07},
		"IWM":  {Price: 200, IV: 0.26, Drift: 0.0},
		"AAPL": {Price: 175, IV: 0.30, Drift: 0.09},
	}
}

const (
	historyDays = 260
	strikeCount = 20 // per side of the money
	minPremium  = 0.05
)

var tick = decimal.RequireFromString("0.01")

// DataProvider is a marketdata.Source over synthetic chains.
type DataProvider struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	now      func() time.Time
}

// Ensure DataProvider implements marketdata.Source at compile time.
var _ marketdata.Source = (*DataProvider)(nil)

// NewDataProvider serves DefaultProfiles at wall-clock time.
func NewDataProvider() *DataProvider {
	return NewDataProviderWithProfiles(DefaultProfiles(), time.Now)
}

// NewDataProviderWithProfiles serves the given profiles; now fixes the clock.
func NewDataProviderWithProfiles(profiles map[string]Profile, now func() time.Time) *DataProvider {
	if now == nil {
		now = time.Now
	}
	p := make(map[string]Profile, len(profiles))
	for k, v := range profiles {
		p[strings.ToUpper(k)] = v
	}
	return &DataProvider{profiles: p, now: now}
}

// SetProfile adds or replaces a symbol.
func (m *DataProvider) SetProfile(symbol string, p Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[strings.ToUpper(symbol)] = p
}

func (m *DataProvider) profile(symbol string) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[strings.ToUpper(symbol)]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", marketdata.ErrSymbolNotFound, symbol)
	}
	return p, nil
}

// GetUnderlyingPrice implements marketdata.Source.
func (m *DataProvider) GetUnderlyingPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	p, err := m.profile(symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return util.FromFloat(p.Price), nil
}

// GetDailyCloses returns a drifting series ending at the spot price.
func (m *DataProvider) GetDailyCloses(ctx context.Context, symbol string, days int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := m.profile(symbol)
	if err != nil {
		return nil, err
	}
	if days <= 0 || days > historyDays {
		days = historyDays
	}
	closes := make([]float64, days)
	for i := range closes {
		back := float64(days - 1 - i) // 0 on the last day
		wiggle := 0.002 * math.Sin(float64(i)*0.7)
		closes[i] = math.Round(p.Price*math.Exp(-p.Drift*back/30)*(1+wiggle)*100) / 100
	}
	closes[days-1] = p.Price
	return closes, nil
}

// GetExpirations lists weekly Friday expiries out to about four months.
func (m *DataProvider) GetExpirations(ctx context.Context, symbol string) ([]time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := m.profile(symbol); err != nil {
		return nil, err
	}
	now := m.now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(time.Friday) - int(day.Weekday()) + 7) % 7
	if offset == 0 {
		offset = 7
	}
	first := day.AddDate(0, 0, offset)
	exps := make([]time.Time, 0, 18)
	for w := 0; w < 18; w++ {
		exps = append(exps, first.AddDate(0, 0, 7*w))
	}
	return exps, nil
}

// GetOptionChain builds strikes around spot. Delta decays exponentially with
// distance from the money; premium is intrinsic plus 0.4*S*sigma*sqrt(t) scaled by that decay.
func (m *DataProvider) GetOptionChain(ctx context.Context, symbol string, expiry time.Time) ([]marketdata.OptionQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := m.profile(symbol)
	if err != nil {
		return nil, err
	}
	exps, _ := m.GetExpirations(ctx, symbol)
	if !containsDate(exps, expiry) {
		return nil, fmt.Errorf("%w: %s %s", marketdata.ErrExpiryNotFound, symbol, expiry.Format("2006-01-02"))
	}
	dte := marketdata.DaysBetween(m.now(), expiry)
	if dte < 1 {
		dte = 1
	}
	t := float64(dte) / 365.0
	iv := m.ivFor(p, symbol)
	interval := StrikeInterval(p.Price)
	atm := math.Round(p.Price/interval) * interval
	exp := time.Date(expiry.Year(), expiry.Month(), expiry.Day(), 0, 0, 0, 0, time.UTC)

	chain := make([]marketdata.OptionQuote, 0, 2*(2*strikeCount+1))
	for i := -strikeCount; i <= strikeCount; i++ {
		strike := atm + float64(i)*interval
		if strike <= 0 {
			continue
		}
		moneyness := (strike - p.Price) / p.Price
		decay := math.Exp(-1.2 * math.Abs(moneyness) / math.Max(iv*math.Sqrt(t), 0.01))
		skewIV := iv * (1 + 0.5*math.Abs(moneyness))
		timeValue := 0.4 * p.Price * skewIV * math.Sqrt(t) * decay

		callDelta := 0.5 * decay
		if strike < p.Price {
			callDelta = 1 - 0.5*decay
		}
		putDelta := callDelta - 1

		volume := int64(5000*decay) + 5
		strikeDec := decimal.NewFromFloat(strike)
		for _, typ := range []models.OptionType{models.OptionCall, models.OptionPut} {
			intrinsic := math.Max(0, p.Price-strike)
			delta := callDelta
			if typ == models.OptionPut {
				intrinsic = math.Max(0, strike-p.Price)
				delta = putDelta
			}
			mid := math.Max(minPremium, intrinsic+timeValue)
			half := math.Max(0.02, mid*0.01)
			bid := math.Max(0.01, mid-half)
			chain = append(chain, marketdata.OptionQuote{
				Symbol:     marketdata.OCCSymbol(symbol, exp, typ, strikeDec),
				Underlying: symbol,
				Strike:     strikeDec,
				Type:       typ,
				Expiry:     exp,
				Bid:        util.RoundToTick(decimal.NewFromFloat(bid), tick),
				Ask:        util.RoundToTick(decimal.NewFromFloat(mid+half), tick),
				Last:       util.RoundToTick(decimal.NewFromFloat(mid), tick),
				Delta:      math.Round(delta*1000) / 1000,
				IV:         math.Round(skewIV*10000) / 10000,
				Volume:     volume,
			})
		}
	}
	return chain, nil
}

// ivFor varies the profile IV slowly by calendar day so stored readings form a range.
func (m *DataProvider) ivFor(p Profile, symbol string) float64 {
	day := float64(m.now().UTC().Unix()/86400) + float64(len(symbol))
	return p.IV * (1 + 0.15*math.Sin(day/5))
}

// StrikeInterval is the listed strike spacing for a spot price.
func StrikeInterval(price float64) float64 {
	switch {
	case price < 25:
		return 0.5
	case price < 100:
		return 1
	case price < 250:
		return 2.5
	default:
		return 5
	}
}

func containsDate(dates []time.Time, d time.Time) bool {
	key := d.UTC().Format("2006-01-02")
	i := sort.Search(len(dates), func(i int) bool { return dates[i].Format("2006-01-02") >= key })
	return i < len(dates) && dates[i].Format("2006-01-02") == key
}
