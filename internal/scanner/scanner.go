// Package scanner runs the strategy-generation pipeline over a watchlist: trend and IV rank
// feed the selector, the builder prices the chosen structure, and recommended trades are
// stored and journaled.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eddiefleurent/options_advisor/internal/builder"
	"github.com/eddiefleurent/options_advisor/internal/journal"
	"github.com/eddiefleurent/options_advisor/internal/marketdata"
	"github.com/eddiefleurent/options_advisor/internal/models"
	"github.com/eddiefleurent/options_advisor/internal/selector"
	"github.com/eddiefleurent/options_advisor/internal/signals"
	"github.com/eddiefleurent/options_advisor/internal/storage"
	"github.com/eddiefleurent/options_advisor/internal/util"
)

// Config tunes the scan.
type Config struct {
	Trend          signals.TrendConfig
	Thresholds     selector.Thresholds
	IVLookbackDays int
	IVMinReadings  int
	IVTargetDTE    int // expiry whose ATM contracts are read for IV
	IVFallbackRank float64
	Quantity       int
	Concurrency    int
}

// DefaultConfig returns the scan defaults.
func DefaultConfig() Config {
	return Config{
		Trend:          signals.DefaultTrendConfig(),
		Thresholds:     selector.DefaultThresholds(),
		IVLookbackDays: 252,
		IVMinReadings:  5,
		IVTargetDTE:    30,
		IVFallbackRank: 0.55,
		Quantity:       1,
		Concurrency:    4,
	}
}

// Result is the outcome for one symbol. Trade is nil for hold_cash and for failed symbols.
type Result struct {
	Symbol         string
	Trend          models.Trend
	IV             float64
	IVRank         float64
	IVRankFallback bool
	Strategy       models.StrategyType
	Trade          *models.TradeRecord
	Err            error
}

// Scanner generates recommendations.
type Scanner struct {
	cfg     Config
	src     marketdata.Source
	store   storage.Interface
	builder *builder.Builder
	journal *journal.Journal
	logger  logrus.FieldLogger
	now     func() time.Time
	newID   func() string
}

// Option customizes a Scanner.
type Option func(*Scanner)

// WithJournal appends every recommendation to the journal's CSV.
func WithJournal(j *journal.Journal) Option {
	return func(s *Scanner) { s.journal = j }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Scanner) { s.logger = logger }
}

// WithClock fixes the time used for IV readings and trade timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// WithIDGenerator replaces the uuid trade ids.
func WithIDGenerator(newID func() string) Option {
	return func(s *Scanner) { s.newID = newID }
}

// New creates a Scanner.
func New(cfg Config, src marketdata.Source, store storage.Interface, b *builder.Builder, opts ...Option) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Quantity <= 0 {
		cfg.Quantity = 1
	}
	if cfg.IVTargetDTE <= 0 {
		cfg.IVTargetDTE = 30
	}
	s := &Scanner{
		cfg:     cfg,
		src:     src,
		store:   store,
		builder: b,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = util.LoggerOrDiscard(s.logger)
	return s
}

// Scan evaluates every symbol and returns one result per symbol in input order. Symbol
// failures are logged and reported in Result.Err; only cancellation fails the scan.
func (s *Scanner) Scan(ctx context.Context, symbols []string) ([]Result, error) {
	results := make([]Result, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := s.scanSymbol(gctx, symbol)
			if res.Err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan aborted: %w", err)
	}

	var rows []journal.RecommendationRow
	for i := range results {
		r := &results[i]
		if r.Trade == nil {
			continue
		}
		if err := s.store.AddTrade(r.Trade); err != nil {
			s.logger.WithError(err).WithField("symbol", r.Symbol).Error("Failed to store recommendation")
			r.Err = err
			r.Trade = nil
			continue
		}
		rows = append(rows, journal.RecommendationFromTrade(*r.Trade))
	}
	if err := s.store.Save(); err != nil {
		return results, fmt.Errorf("saving trades: %w", err)
	}
	if s.journal != nil && len(rows) > 0 {
		if err := s.journal.AppendRecommendations(rows); err != nil {
			return results, fmt.Errorf("journaling recommendations: %w", err)
		}
	}

	s.logger.WithField("recommendations", len(rows)).Infof("Scanned %d symbol(s)", len(symbols))
	return results, nil
}

func (s *Scanner) scanSymbol(ctx context.Context, symbol string) Result {
	res := Result{Symbol: symbol, Strategy: models.StrategyHoldCash}
	log := s.logger.WithField("symbol", symbol)

	fail := func(stage string, err error) Result {
		res.Err = fmt.Errorf("%s: %w", stage, err)
		if ctx.Err() == nil {
			log.WithError(err).Warnf("Skipping symbol: %s failed", stage)
		}
		return res
	}

	price, err := s.src.GetUnderlyingPrice(ctx, symbol)
	if err != nil {
		return fail("underlying price", err)
	}

	closes, err := s.src.GetDailyCloses(ctx, symbol, s.cfg.Trend.LookbackDays)
	if err != nil {
		return fail("daily closes", err)
	}
	res.Trend = signals.DetectTrend(closes, s.cfg.Trend)

	iv, err := s.currentIV(ctx, symbol, price)
	if err != nil {
		return fail("implied volatility", err)
	}
	res.IV = iv
	res.IVRank, res.IVRankFallback = s.ivRank(symbol, iv, log)

	res.Strategy = selector.Select(res.Trend, res.IVRank, s.cfg.Thresholds)
	log = log.WithFields(logrus.Fields{
		"trend":    res.Trend,
		"iv_rank":  fmt.Sprintf("%.2f", res.IVRank),
		"strategy": res.Strategy,
	})
	if res.Strategy == models.StrategyHoldCash {
		log.Info("No strategy for current conditions, holding cash")
		return res
	}

	rec, err := s.builder.Build(ctx, s.src, symbol, price, res.Strategy)
	if err != nil {
		if errors.Is(err, builder.ErrNoCandidate) {
			log.WithError(err).Info("No tradable structure in chain")
			res.Err = err
			return res
		}
		return fail("build", err)
	}

	trade := rec.Trade(s.newID(), res.Trend, res.IVRank, s.cfg.Quantity)
	trade.CreatedAt = s.now().UTC()
	res.Trade = trade
	log.WithField("trade_id", trade.ID).Infof("Recommended %s", rec.Description)
	return res
}

// currentIV reads the ATM implied volatility from the chain nearest IVTargetDTE.
func (s *Scanner) currentIV(ctx context.Context, symbol string, price decimal.Decimal) (float64, error) {
	exps, err := s.src.GetExpirations(ctx, symbol)
	if err != nil {
		return 0, err
	}
	expiry, _, ok := marketdata.NearestExpiration(exps, s.now(), s.cfg.IVTargetDTE, 0)
	if !ok {
		return 0, fmt.Errorf("%w: no future expiration for %s", marketdata.ErrExpiryNotFound, symbol)
	}
	chain, err := s.src.GetOptionChain(ctx, symbol, expiry)
	if err != nil {
		return 0, err
	}
	iv, ok := marketdata.ATMImpliedVol(chain, price)
	if !ok {
		return 0, fmt.Errorf("no at-the-money contracts for %s", symbol)
	}
	return iv, nil
}

// ivRank stores today's reading and ranks it against the lookback window.
func (s *Scanner) ivRank(symbol string, iv float64, log logrus.FieldLogger) (float64, bool) {
	now := s.now().UTC()
	if err := s.store.StoreIVReading(&models.IVReading{Symbol: symbol, Date: now, IV: iv, Timestamp: now}); err != nil {
		log.WithError(err).Warn("Failed to store IV reading")
	}
	start := now.AddDate(0, 0, -s.cfg.IVLookbackDays)
	readings, err := s.store.GetIVReadings(symbol, start, now)
	if err != nil {
		log.WithError(err).Warn("Failed to load IV history, using fallback rank")
		return s.cfg.IVFallbackRank, true
	}
	rank, ok := signals.IVRankFromReadings(iv, readings, s.cfg.IVMinReadings, s.cfg.IVFallbackRank)
	if !ok {
		log.WithField("readings", len(readings)).Debug("Not enough IV history, using fallback rank")
	}
	return rank, !ok
}
