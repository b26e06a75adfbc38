// Package analyzer marks recommended and simulated trades to market and books the ones
// that ran past expiry.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eddiefleurent/options_advisor/internal/journal"
	"github.com/eddiefleurent/options_advisor/internal/marketdata"
	"github.com/eddiefleurent/options_advisor/internal/models"
	"github.com/eddiefleurent/options_advisor/internal/pnl"
	"github.com/eddiefleurent/options_advisor/internal/storage"
	"github.com/eddiefleurent/options_advisor/internal/tradedesc"
	"github.com/eddiefleurent/options_advisor/internal/util"
)

var (
	// ErrUnparseable is returned when a trade description yields no legs.
	ErrUnparseable = errors.New("trade description has no legs")
	// ErrIncompletePricing is returned when a leg has no matching contract in the chain.
	ErrIncompletePricing = errors.New("incomplete pricing")
)

// Analyzer evaluates trades against a quote source.
type Analyzer struct {
	src         marketdata.Source
	store       storage.Interface
	journal     *journal.Journal
	logger      logrus.FieldLogger
	now         func() time.Time
	concurrency int
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithStore books expired trades and records the last analysis of active ones.
func WithStore(store storage.Interface) Option {
	return func(a *Analyzer) { a.store = store }
}

// WithJournal rewrites the analysis CSV after each batch.
func WithJournal(j *journal.Journal) Option {
	return func(a *Analyzer) { a.journal = j }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(a *Analyzer) { a.logger = logger }
}

// WithClock fixes the analysis time.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// WithConcurrency bounds how many trades are priced at once.
func WithConcurrency(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// New creates an Analyzer.
func New(src marketdata.Source, opts ...Option) *Analyzer {
	a := &Analyzer{src: src, now: time.Now, concurrency: 4}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = util.LoggerOrDiscard(a.logger)
	return a
}

// AnalyzeTrade evaluates one trade. A trade whose expiry date is before today is EXPIRED
// with its whole entry cost as P&L; otherwise the legs are marked against the current chain.
func (a *Analyzer) AnalyzeTrade(ctx context.Context, t models.TradeRecord) (models.AnalysisResult, error) {
	now := a.now()
	log := a.logger.WithFields(logrus.Fields{"symbol": t.Symbol, "strategy": t.Strategy, "trade_id": t.ID})
	res := models.AnalysisResult{
		TradeID:    t.ID,
		Symbol:     t.Symbol,
		Strategy:   t.Strategy,
		Expiry:     t.Expiry,
		EntryDate:  t.CreatedAt,
		AnalyzedAt: now.UTC(),
	}

	if t.Quantity <= 0 {
		log.WithField("quantity", t.Quantity).Warn("Trade quantity is not positive, pricing one unit")
	}
	legs := a.legs(t, log)

	if t.IsExpired(now) {
		if len(legs) == 0 {
			legs = t.Legs
		}
		res.Status = models.AnalysisExpired
		res.PnLResult = pnl.Expired(legs, t.Quantity)
		log.WithField("days_expired", marketdata.DaysBetween(t.Expiry, now)).Info("Trade expired, options worthless")
		return res, nil
	}

	if len(legs) == 0 {
		return res, fmt.Errorf("%w: %q", ErrUnparseable, t.Description)
	}

	quotes, err := a.quotes(ctx, t, legs)
	if err != nil {
		return res, err
	}
	result, ok := pnl.Calculate(legs, quotes, t.Quantity)
	if !ok {
		return res, fmt.Errorf("%w for %s %s", ErrIncompletePricing, t.Symbol, t.Description)
	}
	res.Status = models.AnalysisActive
	res.PnLResult = result
	log.WithFields(logrus.Fields{
		"entry_cost": result.EntryCost.StringFixed(2),
		"exit_value": result.ExitValue.StringFixed(2),
		"pnl_pct":    result.PnLPct.StringFixed(2),
	}).Infof("Net P&L $%s", result.PnL.StringFixed(2))
	return res, nil
}

// legs parses the stored description; skipped tokens are logged.
func (a *Analyzer) legs(t models.TradeRecord, log logrus.FieldLogger) []models.Leg {
	parsed := tradedesc.Parse(t.Description, t.Strategy)
	if len(parsed.Skipped) > 0 {
		log.WithField("skipped", parsed.Skipped).Warn("Ignored unparseable tokens in trade description")
	}
	if len(parsed.Legs) > 0 && !parsed.Complete() {
		log.WithField("legs", len(parsed.Legs)).Warnf("Expected %d legs for %s", t.Strategy.ExpectedLegs(), t.Strategy)
	}
	return parsed.Legs
}

// quotes matches each leg in the expiry chain. A calendar's bought leg lives in the back month.
func (a *Analyzer) quotes(ctx context.Context, t models.TradeRecord, legs []models.Leg) ([]*models.Quote, error) {
	front, err := a.src.GetOptionChain(ctx, t.Symbol, t.Expiry)
	if err != nil {
		return nil, fmt.Errorf("chain for %s %s: %w", t.Symbol, t.Expiry.Format(journal.DateLayout), err)
	}
	quotes := marketdata.QuotesForLegs(front, legs)

	if t.Strategy == models.StrategyCalendarSpread && !t.BackExpiry.IsZero() {
		back, err := a.src.GetOptionChain(ctx, t.Symbol, t.BackExpiry)
		if err != nil {
			return nil, fmt.Errorf("back chain for %s %s: %w", t.Symbol, t.BackExpiry.Format(journal.DateLayout), err)
		}
		backQuotes := marketdata.QuotesForLegs(back, legs)
		for i, l := range legs {
			if l.Action == models.ActionBuy {
				quotes[i] = backQuotes[i]
			}
		}
	}
	return quotes, nil
}

// AnalyzeTrades evaluates trades concurrently and returns the successful results in input
// order. Failing trades are logged and skipped; only cancellation fails the batch. With a
// store, expired trades are closed and active ones get their last analysis recorded.
func (a *Analyzer) AnalyzeTrades(ctx context.Context, trades []models.TradeRecord) ([]models.AnalysisResult, error) {
	results := make([]*models.AnalysisResult, len(trades))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, t := range trades {
		i, t := i, t
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := a.AnalyzeTrade(gctx, t)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				a.logger.WithError(err).WithFields(logrus.Fields{"symbol": t.Symbol, "trade_id": t.ID}).
					Warn("Skipping trade")
				return nil
			}
			results[i] = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis aborted: %w", err)
	}

	out := make([]models.AnalysisResult, 0, len(trades))
	for i, r := range results {
		if r == nil {
			continue
		}
		a.book(trades[i], *r)
		out = append(out, *r)
	}

	if a.journal != nil {
		rows := make([]journal.AnalysisRow, len(out))
		for i, r := range out {
			rows[i] = journal.AnalysisRowFrom(r)
		}
		if err := a.journal.WriteAnalysis(rows); err != nil {
			return out, fmt.Errorf("writing analysis: %w", err)
		}
	}
	return out, nil
}

// AnalyzeOpen evaluates every stored trade that is not yet terminal.
func (a *Analyzer) AnalyzeOpen(ctx context.Context) ([]models.AnalysisResult, error) {
	if a.store == nil {
		return nil, errors.New("analyzer has no trade store")
	}
	return a.AnalyzeTrades(ctx, a.store.GetTradesByState(models.StateRecommended, models.StateSimulated))
}

// AnalyzeJournalFile evaluates the rows of a recommendations CSV. Rows carry no trade ids,
// so nothing is booked in the store.
func (a *Analyzer) AnalyzeJournalFile(ctx context.Context, path string) ([]models.AnalysisResult, error) {
	rows, err := journal.ReadFile[journal.RecommendationRow](path)
	if err != nil {
		return nil, err
	}
	trades := make([]models.TradeRecord, 0, len(rows))
	for i, row := range rows {
		t, err := row.Trade()
		if err != nil {
			a.logger.WithError(err).WithField("row", i+1).Warn("Skipping malformed recommendation row")
			continue
		}
		trades = append(trades, t)
	}
	a.logger.Infof("Found %d trade(s) to analyze in %s", len(trades), path)
	return a.AnalyzeTrades(ctx, trades)
}

// book persists the outcome of one analysis when the trade is stored.
func (a *Analyzer) book(t models.TradeRecord, res models.AnalysisResult) {
	if a.store == nil || t.ID == "" {
		return
	}
	log := a.logger.WithFields(logrus.Fields{"symbol": t.Symbol, "trade_id": t.ID})

	stored, err := a.store.GetTrade(t.ID)
	if err != nil {
		if !errors.Is(err, storage.ErrTradeNotFound) {
			log.WithError(err).Warn("Failed to load trade")
		}
		return
	}
	if !stored.IsOpen() {
		return
	}

	if res.Status == models.AnalysisExpired {
		reason := "expiration"
		if stored.State == models.StateRecommended {
			reason = "expired_unexecuted"
		}
		if err := a.store.CloseTrade(t.ID, models.StateExpired, reason, res.PnL); err != nil {
			log.WithError(err).Error("Failed to close expired trade")
		}
		return
	}

	stored.LastAnalysis = &res
	if err := a.store.UpdateTrade(stored); err != nil {
		log.WithError(err).Warn("Failed to record analysis")
	}
}
