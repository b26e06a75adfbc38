package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/options_advisor/internal/models"
)

var hundred = decimal.NewFromInt(100)

// StrategySummary aggregates results of one strategy.
type StrategySummary struct {
	Strategy models.StrategyType `json:"strategy"`
	Count    int                 `json:"count"`
	Wins     int                 `json:"wins"`
	PnL      decimal.Decimal     `json:"pnl"`
	WinRate  decimal.Decimal     `json:"win_rate"` // percent
}

// Summary aggregates a batch of analysis results.
type Summary struct {
	TotalTrades int                    `json:"total_trades"`
	Winners     int                    `json:"winners"`
	Losers      int                    `json:"losers"`
	Breakeven   int                    `json:"breakeven"`
	WinRate     decimal.Decimal        `json:"win_rate"` // percent of all trades
	TotalPnL    decimal.Decimal        `json:"total_pnl"`
	AveragePnL  decimal.Decimal        `json:"average_pnl"`
	AverageWin  decimal.Decimal        `json:"average_win"`
	AverageLoss decimal.Decimal        `json:"average_loss"`
	Best        *models.AnalysisResult `json:"best,omitempty"`
	Worst       *models.AnalysisResult `json:"worst,omitempty"`
	ByStrategy  []StrategySummary      `json:"by_strategy"`
}

// Summarize computes totals, averages, best/worst and the per-strategy breakdown sorted by
// P&L descending. Ties keep first-seen order.
func Summarize(results []models.AnalysisResult) Summary {
	s := Summary{TotalTrades: len(results)}
	if len(results) == 0 {
		return s
	}

	var winSum, lossSum decimal.Decimal
	byStrategy := map[models.StrategyType]*StrategySummary{}
	var order []models.StrategyType

	for i := range results {
		r := &results[i]
		s.TotalPnL = s.TotalPnL.Add(r.PnL)
		switch {
		case r.IsWinner():
			s.Winners++
			winSum = winSum.Add(r.PnL)
		case r.IsLoser():
			s.Losers++
			lossSum = lossSum.Add(r.PnL)
		default:
			s.Breakeven++
		}
		if s.Best == nil || r.PnL.GreaterThan(s.Best.PnL) {
			s.Best = r
		}
		if s.Worst == nil || r.PnL.LessThan(s.Worst.PnL) {
			s.Worst = r
		}

		st, ok := byStrategy[r.Strategy]
		if !ok {
			st = &StrategySummary{Strategy: r.Strategy}
			byStrategy[r.Strategy] = st
			order = append(order, r.Strategy)
		}
		st.Count++
		st.PnL = st.PnL.Add(r.PnL)
		if r.IsWinner() {
			st.Wins++
		}
	}

	total := decimal.NewFromInt(int64(s.TotalTrades))
	s.WinRate = decimal.NewFromInt(int64(s.Winners)).Div(total).Mul(hundred)
	s.AveragePnL = s.TotalPnL.Div(total)
	if s.Winners > 0 {
		s.AverageWin = winSum.Div(decimal.NewFromInt(int64(s.Winners)))
	}
	if s.Losers > 0 {
		s.AverageLoss = lossSum.Div(decimal.NewFromInt(int64(s.Losers)))
	}

	for _, name := range order {
		st := byStrategy[name]
		st.WinRate = decimal.NewFromInt(int64(st.Wins)).Div(decimal.NewFromInt(int64(st.Count))).Mul(hundred)
		s.ByStrategy = append(s.ByStrategy, *st)
	}
	sort.SliceStable(s.ByStrategy, func(i, j int) bool {
		return s.ByStrategy[i].PnL.GreaterThan(s.ByStrategy[j].PnL)
	})
	return s
}

// Format renders the summary report.
func (s Summary) Format() string {
	if s.TotalTrades == 0 {
		return "No results to summarize\n"
	}
	var b strings.Builder
	pct := func(n int) string {
		return decimal.NewFromInt(int64(n)).Div(decimal.NewFromInt(int64(s.TotalTrades))).Mul(hundred).StringFixed(1)
	}

	fmt.Fprintf(&b, "Total Trades: %d\n", s.TotalTrades)
	fmt.Fprintf(&b, "Winners: %d (%s%%)\n", s.Winners, pct(s.Winners))
	fmt.Fprintf(&b, "Losers: %d (%s%%)\n", s.Losers, pct(s.Losers))
	fmt.Fprintf(&b, "Breakeven: %d\n", s.Breakeven)
	fmt.Fprintf(&b, "Win Rate: %s%%\n", s.WinRate.StringFixed(2))
	fmt.Fprintf(&b, "Total P&L: $%s\n", s.TotalPnL.StringFixed(2))
	fmt.Fprintf(&b, "Average P&L per trade: $%s\n", s.AveragePnL.StringFixed(2))
	if s.Winners > 0 {
		fmt.Fprintf(&b, "Average Win: $%s\n", s.AverageWin.StringFixed(2))
	}
	if s.Losers > 0 {
		fmt.Fprintf(&b, "Average Loss: $%s\n", s.AverageLoss.StringFixed(2))
	}
	fmt.Fprintf(&b, "Best Trade: %s %s $%s (%s%%)\n", s.Best.Symbol, s.Best.Strategy,
		s.Best.PnL.StringFixed(2), signed(s.Best.PnLPct))
	fmt.Fprintf(&b, "Worst Trade: %s %s $%s (%s%%)\n", s.Worst.Symbol, s.Worst.Strategy,
		s.Worst.PnL.StringFixed(2), signed(s.Worst.PnLPct))
	b.WriteString("By Strategy:\n")
	for _, st := range s.ByStrategy {
		fmt.Fprintf(&b, "  %s: %d trades, $%s P&L, %s%% win rate\n",
			st.Strategy, st.Count, st.PnL.StringFixed(2), st.WinRate.StringFixed(1))
	}
	return b.String()
}

func signed(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(2)
	}
	return "+" + d.StringFixed(2)
}
