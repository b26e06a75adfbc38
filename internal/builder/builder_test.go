package builder

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/options_advisor/internal/marketdata"
	"github.com/eddiefleurent/options_advisor/internal/mock"
	"github.com/eddiefleurent/options_advisor/internal/models"
	"github.com/eddiefleurent/options_advisor/internal/tradedesc"
)

var fixedNow = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

// strike, call delta, call mid, put mid
var testStrikes = []struct {
	strike, delta, callMid, putMid float64
}{
	{430, 0.85, 21.0, 1.0},
	{435, 0.78, 16.6, 1.6},
	{440, 0.70, 12.5, 2.5},
	{445, 0.60, 8.9, 3.9},
	{450, 0.50, 5.8, 5.8},
	{455, 0.40, 3.5, 8.5},
	{460, 0.30, 1.9, 11.9},
	{465, 0.21, 0.9, 15.9},
	{470, 0.14, 0.4, 20.4},
}

func testChain(scale float64) []marketdata.ContractRecord {
	out := make([]marketdata.ContractRecord, 0, 2*len(testStrikes))
	for _, s := range testStrikes {
		cm, pm := s.callMid*scale, s.putMid*scale
		out = append(out,
			marketdata.ContractRecord{Strike: s.strike, Type: "C", Bid: cm - 0.1, Ask: cm + 0.1, Last: cm,
				Delta: s.delta, IV: 0.2, Volume: 100},
			marketdata.ContractRecord{Strike: s.strike, Type: "P", Bid: pm - 0.1, Ask: pm + 0.1, Last: pm,
				Delta: s.delta - 1, IV: 0.2, Volume: 100},
		)
	}
	return out
}

func testSource(t *testing.T) marketdata.Source {
	t.Helper()
	src, err := marketdata.NewSnapshotSource(marketdata.Snapshot{
		AsOf: "2025-03-10",
		Symbols: map[string]marketdata.SymbolSnapshot{
			"SPY": {
				Price: 450,
				Chains: map[string][]marketdata.ContractRecord{
					"2025-03-21": testChain(0.5),
					"2025-04-11": testChain(1),
					"2025-05-09": testChain(1.5),
				},
			},
		},
	})
	require.NoError(t, err)
	return src
}

func testBuilder(cfg Config) *Builder {
	return New(cfg, nil, WithClock(func() time.Time { return fixedNow }))
}

func narrowConfig() Config {
	cfg := DefaultConfig()
	cfg.SpreadStrikeWidth = 1
	return cfg
}

func build(t *testing.T, b *Builder, strategy models.StrategyType) *Recommendation {
	t.Helper()
	rec, err := b.Build(context.Background(), testSource(t), "SPY", decimal.NewFromInt(450), strategy)
	require.NoError(t, err)
	require.Len(t, rec.Legs, strategy.ExpectedLegs())
	return rec
}

func TestBuild_HoldCashIsNoTrade(t *testing.T) {
	b := testBuilder(DefaultConfig())
	for _, s := range []models.StrategyType{models.StrategyHoldCash, "covered_call"} {
		_, err := b.Build(context.Background(), testSource(t), "SPY", decimal.NewFromInt(450), s)
		assert.ErrorIs(t, err, ErrNoTrade, s)
	}
}

func TestBuild_BullCallSpread(t *testing.T) {
	rec := build(t, testBuilder(narrowConfig()), models.StrategyBullCallSpread)

	assert.Equal(t, "Buy 450.0C @5.9 / Sell 455.0C @3.4", rec.Description)
	assert.Equal(t, time.Date(2025, 4, 11, 0, 0, 0, 0, time.UTC), rec.Expiry)
	assert.Equal(t, 32, rec.DTE)
	assert.Equal(t, "2.50", rec.Risk.MaxLoss.String())
	assert.Equal(t, "2.50", rec.Risk.MaxProfit.String())
	assert.Equal(t, "452.50", rec.Risk.Breakeven.String())
}

func TestBuild_BearPutSpread(t *testing.T) {
	rec := build(t, testBuilder(narrowConfig()), models.StrategyBearPutSpread)

	assert.Equal(t, "Buy 450.0P @5.9 / Sell 445.0P @3.8", rec.Description)
	assert.Equal(t, "2.10", rec.Risk.NetDebit.String())
	assert.Equal(t, "2.90", rec.Risk.MaxProfit.String())
	assert.Equal(t, "447.90", rec.Risk.Breakeven.String())
}

func TestBuild_IronCondor(t *testing.T) {
	rec := build(t, testBuilder(narrowConfig()), models.StrategyIronCondor)

	assert.Equal(t, "Buy 435.0P @1.7 / Sell 440.0P @2.4 / Sell 460.0C @1.8 / Buy 465.0C @1.0", rec.Description)
	assert.Equal(t, "1.50", rec.Risk.NetCredit.String())
	assert.Equal(t, "3.50", rec.Risk.MaxLoss.String())
	assert.Equal(t, "438.50", rec.Risk.BreakevenLower.String())
	assert.Equal(t, "461.50", rec.Risk.BreakevenUpper.String())
	assert.True(t, rec.Risk.IsCredit)
	assert.Empty(t, rec.Risk.Warnings)
}

func TestBuild_Straddle(t *testing.T) {
	rec := build(t, testBuilder(DefaultConfig()), models.StrategyStraddle)

	assert.Equal(t, "Buy 450.0C @5.9 + 450.0P @5.9", rec.Description)
	assert.Equal(t, "11.80", rec.Risk.MaxLoss.String())
	assert.True(t, rec.Risk.MaxProfit.IsUnlimited())
	assert.Equal(t, "2.62", rec.Risk.ImpliedMovePct.String())
	assert.Equal(t, 32, rec.Risk.DTE)
}

func TestBuild_LongOptions(t *testing.T) {
	b := testBuilder(DefaultConfig())

	call := build(t, b, models.StrategyLongCall)
	assert.Equal(t, "Buy 450.0C @5.9", call.Description)
	assert.Equal(t, "455.90", call.Risk.Breakeven.String())
	assert.Equal(t, "0.5", call.Risk.ProbProfit.String())

	put := build(t, b, models.StrategyLongPut)
	assert.Equal(t, "Buy 450.0P @5.9", put.Description)
	assert.Equal(t, "444.10", put.Risk.Breakeven.String())
	assert.Equal(t, "-0.50", put.Risk.Delta.String())
}

func TestBuild_RatioBackspreads(t *testing.T) {
	b := testBuilder(narrowConfig())

	call := build(t, b, models.StrategyCallRatioBackspread)
	assert.Equal(t, "Sell 450.0C @5.7 / Buy 2x 455.0C @3.6", call.Description)
	assert.Equal(t, 1, call.Legs[0].Quantity)
	assert.Equal(t, 2, call.Legs[1].Quantity)
	assert.Equal(t, "-1.50", call.Risk.NetCreditDebit.String())
	assert.True(t, call.Risk.MaxProfit.IsUnlimited())
	assert.False(t, call.Risk.HasWarning(models.WarnDegenerateRatio))

	put := build(t, b, models.StrategyPutRatioBackspread)
	assert.Equal(t, "Sell 450.0P @5.7 / Buy 2x 445.0P @4.0", put.Description)
	assert.Equal(t, "-2.30", put.Risk.NetCreditDebit.String())
}

func TestBuild_CalendarUsesBackChain(t *testing.T) {
	rec := build(t, testBuilder(DefaultConfig()), models.StrategyCalendarSpread)

	assert.Equal(t, time.Date(2025, 4, 11, 0, 0, 0, 0, time.UTC), rec.Expiry)
	assert.Equal(t, time.Date(2025, 5, 9, 0, 0, 0, 0, time.UTC), rec.BackExpiry)
	assert.Equal(t, "Sell 450.0C @5.7 / Buy 450.0C @8.8", rec.Description)
	assert.Equal(t, "3.10", rec.Risk.NetDebit.String())
	assert.Equal(t, 32, rec.Risk.FrontDTE)
	assert.Equal(t, 60, rec.Risk.BackDTE)
	assert.NotEmpty(t, rec.Risk.OptimalScenario)

	trade := rec.Trade("t-1", models.TrendNeutral, 80, 0)
	assert.Equal(t, rec.BackExpiry, trade.BackExpiry)
	assert.Equal(t, 1, trade.Quantity)
	assert.Equal(t, models.StateRecommended, trade.State)
}

func TestBuild_CalendarOutsideTolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CalendarBackDTE = 120
	_, err := testBuilder(cfg).Build(context.Background(), testSource(t), "SPY", decimal.NewFromInt(450),
		models.StrategyCalendarSpread)
	assert.ErrorIs(t, err, ErrNoCandidate)
}

func TestBuild_NoCandidate(t *testing.T) {
	wide := DefaultConfig()
	wide.SpreadStrikeWidth = 10
	_, err := testBuilder(wide).Build(context.Background(), testSource(t), "SPY", decimal.NewFromInt(450),
		models.StrategyBullCallSpread)
	assert.ErrorIs(t, err, ErrNoCandidate)

	thin := DefaultConfig()
	thin.MinVolume = 1000
	_, err = testBuilder(thin).Build(context.Background(), testSource(t), "SPY", decimal.NewFromInt(450),
		models.StrategyLongCall)
	assert.ErrorIs(t, err, ErrNoCandidate)

	_, err = testBuilder(DefaultConfig()).Build(context.Background(), testSource(t), "SPY", decimal.Zero,
		models.StrategyLongCall)
	assert.ErrorIs(t, err, ErrNoCandidate)
}

func TestBuild_UnknownSymbol(t *testing.T) {
	_, err := testBuilder(DefaultConfig()).Build(context.Background(), testSource(t), "QQQ", decimal.NewFromInt(380),
		models.StrategyLongCall)
	assert.ErrorIs(t, err, marketdata.ErrSymbolNotFound)
}

func TestBuild_DescriptionRoundTrips(t *testing.T) {
	b := testBuilder(narrowConfig())
	for _, s := range []models.StrategyType{
		models.StrategyBullCallSpread, models.StrategyIronCondor, models.StrategyStraddle,
		models.StrategyCallRatioBackspread, models.StrategyCalendarSpread,
	} {
		rec := build(t, b, s)
		parsed := tradedesc.Parse(rec.Description, s)
		require.True(t, parsed.Complete(), s)
		for i, l := range parsed.Legs {
			assert.Equal(t, rec.Legs[i].Action, l.Action, s)
			assert.True(t, rec.Legs[i].Strike.Equal(l.Strike), s)
			assert.True(t, rec.Legs[i].Price.Equal(l.Price), s)
			assert.Equal(t, rec.Legs[i].Contracts(), l.Contracts(), s)
		}
	}
}

func TestLiquid(t *testing.T) {
	b := testBuilder(DefaultConfig())
	chain := []marketdata.OptionQuote{
		{Strike: decimal.NewFromInt(1), Bid: decimal.RequireFromString("1.00"), Ask: decimal.RequireFromString("1.10"), Volume: 50},
		{Strike: decimal.NewFromInt(2), Bid: decimal.RequireFromString("0.10"), Ask: decimal.RequireFromString("1.00"), Volume: 50},
		{Strike: decimal.NewFromInt(3), Bid: decimal.RequireFromString("1.00"), Ask: decimal.RequireFromString("1.10"), Volume: 2},
		{Strike: decimal.NewFromInt(4), Last: decimal.RequireFromString("0.75"), Volume: 50},
		{Strike: decimal.NewFromInt(5), Volume: 50},
	}
	got := b.liquid(chain)
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].Strike.String())
	assert.Equal(t, "4", got[1].Strike.String())

	l := buy(got[1], 1)
	assert.Equal(t, "0.75", l.Price.String())
}

func TestBuild_MockProviderCoversEveryStrategy(t *testing.T) {
	src := mock.NewDataProviderWithProfiles(mock.DefaultProfiles(), func() time.Time { return fixedNow })
	b := testBuilder(DefaultConfig())
	ctx := context.Background()

	for _, symbol := range []string{"SPY", "QQQ", "IWM", "AAPL"} {
		price, err := src.GetUnderlyingPrice(ctx, symbol)
		require.NoError(t, err)
		for _, s := range []models.StrategyType{
			models.StrategyBullCallSpread, models.StrategyBearPutSpread, models.StrategyIronCondor,
			models.StrategyStraddle, models.StrategyLongCall, models.StrategyLongPut,
			models.StrategyCallRatioBackspread, models.StrategyPutRatioBackspread, models.StrategyCalendarSpread,
		} {
			rec, err := b.Build(ctx, src, symbol, price, s)
			require.NoError(t, err, "%s %s", symbol, s)
			assert.Len(t, rec.Legs, s.ExpectedLegs(), "%s %s", symbol, s)
			assert.True(t, rec.Risk.MaxLoss.IsFinite(), "%s %s", symbol, s)
			assert.Empty(t, rec.Risk.Warnings, "%s %s", symbol, s)
		}
	}
}
