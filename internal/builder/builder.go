// Package builder turns a selected strategy into concrete legs picked from a live option chain.
package builder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/options_advisor/internal/marketdata"
	"github.com/eddiefleurent/options_advisor/internal/models"
	"github.com/eddiefleurent/options_advisor/internal/risk"
	"github.com/eddiefleurent/options_advisor/internal/tradedesc"
	"github.com/eddiefleurent/options_advisor/internal/util"
)

var (
	// ErrNoTrade is returned for hold_cash and strategies the builder has no construction for.
	ErrNoTrade = errors.New("no trade for strategy")
	// ErrNoCandidate is returned when the chain has no contracts satisfying the construction rules.
	ErrNoCandidate = errors.New("no suitable contracts")
)

// Config controls how legs are picked from a chain.
type Config struct {
	DeltaATM             float64 `yaml:"delta_atm"`
	DeltaShortLeg        float64 `yaml:"delta_short_leg"`
	DeltaLongOption      float64 `yaml:"delta_long_option"`
	SpreadStrikeWidth    int     `yaml:"spread_strike_width"` // in listed strikes
	RatioShortCount      int     `yaml:"ratio_short_count"`
	RatioLongCount       int     `yaml:"ratio_long_count"`
	TargetDTE            int     `yaml:"target_dte"`
	CalendarFrontDTE     int     `yaml:"calendar_front_dte"`
	CalendarBackDTE      int     `yaml:"calendar_back_dte"`
	CalendarDTETolerance int     `yaml:"calendar_dte_tolerance"`
	MinVolume            int     `yaml:"min_volume"`
	MaxSpreadPct         float64 `yaml:"max_spread_pct"`
}

// DefaultConfig mirrors the configuration defaults.
func DefaultConfig() Config {
	return Config{
		DeltaATM:             0.5,
		DeltaShortLeg:        0.3,
		DeltaLongOption:      0.5,
		SpreadStrikeWidth:    5,
		RatioShortCount:      1,
		RatioLongCount:       2,
		TargetDTE:            30,
		CalendarFrontDTE:     30,
		CalendarBackDTE:      60,
		CalendarDTETolerance: 7,
		MinVolume:            10,
		MaxSpreadPct:         0.30,
	}
}

// Recommendation is a fully specified trade with its risk profile.
type Recommendation struct {
	Symbol      string              `json:"symbol"`
	Strategy    models.StrategyType `json:"strategy"`
	Underlying  decimal.Decimal     `json:"underlying"`
	Expiry      time.Time           `json:"expiry"`
	BackExpiry  time.Time           `json:"back_expiry,omitempty"`
	DTE         int                 `json:"dte"`
	Legs        []models.Leg        `json:"legs"`
	Description string              `json:"description"`
	Risk        models.RiskMetrics  `json:"risk"`
}

// Trade converts the recommendation into a stored trade record.
func (r *Recommendation) Trade(id string, trend models.Trend, ivRank float64, quantity int) *models.TradeRecord {
	t := models.NewTradeRecord(id, r.Symbol, r.Strategy, r.Expiry, r.Legs, r.Description)
	t.BackExpiry = r.BackExpiry
	t.Trend = trend
	t.IVRank = ivRank
	t.Risk = r.Risk
	if quantity > 0 {
		t.Quantity = quantity
	}
	return t
}

// Builder picks strikes and prices them. It is safe for concurrent use.
type Builder struct {
	cfg    Config
	calc   *risk.Calculator
	now    func() time.Time
	logger logrus.FieldLogger
}

// Option customizes a Builder.
type Option func(*Builder)

// WithClock fixes the time used for DTE.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(b *Builder) { b.logger = logger }
}

// New creates a Builder. A nil calculator uses the default heuristics.
func New(cfg Config, calc *risk.Calculator, opts ...Option) *Builder {
	if calc == nil {
		calc = risk.NewCalculator(risk.DefaultHeuristics())
	}
	b := &Builder{cfg: cfg, calc: calc, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = util.LoggerOrDiscard(b.logger)
	return b
}

// Build constructs strategy for symbol from the source's chains.
func (b *Builder) Build(ctx context.Context, src marketdata.Source, symbol string, underlying decimal.Decimal,
	strategy models.StrategyType) (*Recommendation, error) {
	if strategy.ExpectedLegs() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoTrade, strategy)
	}
	if !underlying.IsPositive() {
		return nil, fmt.Errorf("%w: underlying price %s", ErrNoCandidate, underlying)
	}

	exps, err := src.GetExpirations(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("expirations for %s: %w", symbol, err)
	}

	log := b.logger.WithFields(logrus.Fields{"symbol": symbol, "strategy": strategy})
	now := b.now()

	if strategy == models.StrategyCalendarSpread {
		return b.buildCalendar(ctx, src, symbol, underlying, exps, now, log)
	}

	expiry, dte, ok := marketdata.NearestExpiration(exps, now, b.cfg.TargetDTE, 0)
	if !ok {
		return nil, fmt.Errorf("%w: no expiration near %d DTE", ErrNoCandidate, b.cfg.TargetDTE)
	}
	chain, err := src.GetOptionChain(ctx, symbol, expiry)
	if err != nil {
		return nil, fmt.Errorf("chain for %s %s: %w", symbol, expiry.Format("2006-01-02"), err)
	}
	pool := b.liquid(chain)
	log.WithFields(logrus.Fields{"expiry": expiry.Format("2006-01-02"), "dte": dte, "contracts": len(chain), "liquid": len(pool)}).
		Debug("building from chain")

	legs, delta, err := b.pickLegs(strategy, pool, underlying)
	if err != nil {
		return nil, err
	}

	metrics, err := b.calc.Evaluate(strategy, legs, risk.Market{UnderlyingPrice: underlying, Delta: delta, DTE: dte})
	if err != nil {
		return nil, err
	}
	return &Recommendation{
		Symbol:      symbol,
		Strategy:    strategy,
		Underlying:  underlying,
		Expiry:      expiry,
		DTE:         dte,
		Legs:        legs,
		Description: tradedesc.Format(strategy, legs),
		Risk:        metrics,
	}, nil
}

func (b *Builder) pickLegs(strategy models.StrategyType, pool []marketdata.OptionQuote,
	underlying decimal.Decimal) ([]models.Leg, *decimal.Decimal, error) {
	calls := marketdata.FilterType(pool, models.OptionCall)
	puts := marketdata.FilterType(pool, models.OptionPut)
	width := b.cfg.SpreadStrikeWidth

	switch strategy {
	case models.StrategyLongCall:
		i := findStrikeByDelta(calls, b.cfg.DeltaLongOption)
		if i < 0 {
			return nil, nil, noCandidate(strategy, "call")
		}
		d := decimal.NewFromFloat(calls[i].Delta)
		return []models.Leg{buy(calls[i], 1)}, &d, nil

	case models.StrategyLongPut:
		i := findStrikeByDelta(puts, -b.cfg.DeltaLongOption)
		if i < 0 {
			return nil, nil, noCandidate(strategy, "put")
		}
		d := decimal.NewFromFloat(puts[i].Delta)
		return []models.Leg{buy(puts[i], 1)}, &d, nil

	case models.StrategyBullCallSpread:
		i := findStrikeByDelta(calls, b.cfg.DeltaATM)
		if i < 0 || i+width >= len(calls) {
			return nil, nil, noCandidate(strategy, "call pair")
		}
		return []models.Leg{buy(calls[i], 1), sell(calls[i+width], 1)}, nil, nil

	case models.StrategyBearPutSpread:
		i := findStrikeByDelta(puts, -b.cfg.DeltaATM)
		if i < 0 || i-width < 0 {
			return nil, nil, noCandidate(strategy, "put pair")
		}
		return []models.Leg{buy(puts[i], 1), sell(puts[i-width], 1)}, nil, nil

	case models.StrategyIronCondor:
		sp := findStrikeByDelta(puts, -b.cfg.DeltaShortLeg)
		sc := findStrikeByDelta(calls, b.cfg.DeltaShortLeg)
		if sp < 0 || sc < 0 || sp-width < 0 || sc+width >= len(calls) {
			return nil, nil, noCandidate(strategy, "condor wings")
		}
		if !puts[sp].Strike.LessThan(calls[sc].Strike) {
			return nil, nil, noCandidate(strategy, "short strikes overlap")
		}
		return []models.Leg{
			buy(puts[sp-width], 1),
			sell(puts[sp], 1),
			sell(calls[sc], 1),
			buy(calls[sc+width], 1),
		}, nil, nil

	case models.StrategyStraddle:
		call := marketdata.NearestStrike(calls, models.OptionCall, underlying)
		if call == nil {
			return nil, nil, noCandidate(strategy, "call")
		}
		put := marketdata.FindOption(puts, call.Strike, models.OptionPut)
		if put == nil {
			return nil, nil, noCandidate(strategy, "put at "+call.Strike.String())
		}
		return []models.Leg{buy(*call, 1), buy(*put, 1)}, nil, nil

	case models.StrategyCallRatioBackspread:
		i := nearestIndex(calls, underlying)
		if i < 0 || i+width >= len(calls) {
			return nil, nil, noCandidate(strategy, "call pair")
		}
		return []models.Leg{sell(calls[i], b.cfg.RatioShortCount), buy(calls[i+width], b.cfg.RatioLongCount)}, nil, nil

	case models.StrategyPutRatioBackspread:
		i := nearestIndex(puts, underlying)
		if i < 0 || i-width < 0 {
			return nil, nil, noCandidate(strategy, "put pair")
		}
		return []models.Leg{sell(puts[i], b.cfg.RatioShortCount), buy(puts[i-width], b.cfg.RatioLongCount)}, nil, nil
	}

	return nil, nil, fmt.Errorf("%w: %s", ErrNoTrade, strategy)
}

func (b *Builder) buildCalendar(ctx context.Context, src marketdata.Source, symbol string, underlying decimal.Decimal,
	exps []time.Time, now time.Time, log logrus.FieldLogger) (*Recommendation, error) {
	tol := b.cfg.CalendarDTETolerance
	front, frontDTE, ok := marketdata.NearestExpiration(exps, now, b.cfg.CalendarFrontDTE, tol)
	if !ok {
		return nil, fmt.Errorf("%w: no front expiration near %d DTE", ErrNoCandidate, b.cfg.CalendarFrontDTE)
	}
	later := make([]time.Time, 0, len(exps))
	for _, e := range exps {
		if e.After(front) {
			later = append(later, e)
		}
	}
	back, backDTE, ok := marketdata.NearestExpiration(later, now, b.cfg.CalendarBackDTE, tol)
	if !ok {
		return nil, fmt.Errorf("%w: no back expiration near %d DTE", ErrNoCandidate, b.cfg.CalendarBackDTE)
	}

	frontChain, err := src.GetOptionChain(ctx, symbol, front)
	if err != nil {
		return nil, fmt.Errorf("front chain for %s: %w", symbol, err)
	}
	backChain, err := src.GetOptionChain(ctx, symbol, back)
	if err != nil {
		return nil, fmt.Errorf("back chain for %s: %w", symbol, err)
	}

	near := marketdata.NearestStrike(b.liquid(frontChain), models.OptionCall, underlying)
	if near == nil {
		return nil, noCandidate(models.StrategyCalendarSpread, "front call")
	}
	far := marketdata.FindOption(b.liquid(backChain), near.Strike, models.OptionCall)
	if far == nil {
		return nil, noCandidate(models.StrategyCalendarSpread, "back call at "+near.Strike.String())
	}
	log.WithFields(logrus.Fields{"front_dte": frontDTE, "back_dte": backDTE, "strike": near.Strike.String()}).
		Debug("calendar expiries chosen")

	legs := []models.Leg{sell(*near, 1), buy(*far, 1)}
	metrics, err := b.calc.Evaluate(models.StrategyCalendarSpread, legs,
		risk.Market{UnderlyingPrice: underlying, DTE: frontDTE, FrontDTE: frontDTE, BackDTE: backDTE})
	if err != nil {
		return nil, err
	}
	return &Recommendation{
		Symbol:      symbol,
		Strategy:    models.StrategyCalendarSpread,
		Underlying:  underlying,
		Expiry:      front,
		BackExpiry:  back,
		DTE:         frontDTE,
		Legs:        legs,
		Description: tradedesc.Format(models.StrategyCalendarSpread, legs),
		Risk:        metrics,
	}, nil
}

// liquid drops contracts with too little volume or too wide a market. One-sided markets
// stay in when they have a last trade to price from.
func (b *Builder) liquid(chain []marketdata.OptionQuote) []marketdata.OptionQuote {
	out := make([]marketdata.OptionQuote, 0, len(chain))
	maxSpread := decimal.NewFromFloat(b.cfg.MaxSpreadPct)
	for _, o := range chain {
		if o.Volume < int64(b.cfg.MinVolume) {
			continue
		}
		if o.Bid.IsPositive() && o.Ask.IsPositive() {
			mid := o.Bid.Add(o.Ask).Div(decimal.NewFromInt(2))
			if o.Ask.Sub(o.Bid).Div(mid).GreaterThan(maxSpread) {
				continue
			}
		} else if !o.Last.IsPositive() {
			continue
		}
		out = append(out, o)
	}
	return out
}

// findStrikeByDelta returns the index of the contract whose delta is closest to targetDelta.
func findStrikeByDelta(options []marketdata.OptionQuote, targetDelta float64) int {
	best := -1
	bestDiff := math.MaxFloat64
	for i, o := range options {
		diff := math.Abs(o.Delta - targetDelta)
		if diff < bestDiff {
			bestDiff = diff
			best = i
		}
	}
	return best
}

func nearestIndex(options []marketdata.OptionQuote, price decimal.Decimal) int {
	best := -1
	var bestDiff decimal.Decimal
	for i, o := range options {
		diff := o.Strike.Sub(price).Abs()
		if best < 0 || diff.LessThan(bestDiff) {
			best, bestDiff = i, diff
		}
	}
	return best
}

// buy prices at the ask, sell at the bid; either falls back to the last trade.
func buy(o marketdata.OptionQuote, qty int) models.Leg {
	return leg(o, models.ActionBuy, o.Ask, qty)
}

func sell(o marketdata.OptionQuote, qty int) models.Leg {
	return leg(o, models.ActionSell, o.Bid, qty)
}

func leg(o marketdata.OptionQuote, action models.Action, price decimal.Decimal, qty int) models.Leg {
	if !price.IsPositive() {
		price = o.Last
	}
	return models.Leg{Action: action, Strike: o.Strike, Type: o.Type, Price: price, Quantity: qty}
}

func noCandidate(strategy models.StrategyType, what string) error {
	return fmt.Errorf("%w: %s needs %s", ErrNoCandidate, strategy, what)
}
