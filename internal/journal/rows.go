package journal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/options_advisor/internal/models"
)

// Layouts of the timestamp and date columns.
const (
	TimestampLayout = "2006-01-02 15:04:05"
	DateLayout      = "2006-01-02"
)

// RecommendationRow is one line of the recommendations journal.
type RecommendationRow struct {
	Timestamp        string `csv:"timestamp"`
	Symbol           string `csv:"symbol"`
	Strategy         string `csv:"strategy"`
	Expiry           string `csv:"expiry"`
	DTE              int    `csv:"dte"`
	TradeDescription string `csv:"trade_description"`
	MaxLoss          string `csv:"max_loss"`
	MaxProfit        string `csv:"max_profit"`
	Breakeven        string `csv:"breakeven"`
	BreakevenLower   string `csv:"breakeven_lower"`
	BreakevenUpper   string `csv:"breakeven_upper"`
	RiskRewardRatio  string `csv:"risk_reward_ratio"`
	ProbProfit       string `csv:"prob_profit"`
	NetCostCredit    string `csv:"net_cost_credit"`
}

// AnalysisRow is one line of the analysis journal.
type AnalysisRow struct {
	Symbol    string `csv:"symbol"`
	Strategy  string `csv:"strategy"`
	Expiry    string `csv:"expiry"`
	EntryDate string `csv:"entry_date"`
	Status    string `csv:"status"`
	EntryCost string `csv:"entry_cost"`
	ExitValue string `csv:"exit_value"`
	PnL       string `csv:"pnl"`
	PnLPct    string `csv:"pnl_pct"`
}

// ExecutionRow is one line of the executions journal.
type ExecutionRow struct {
	Timestamp   string `csv:"timestamp"`
	Symbol      string `csv:"symbol"`
	Strategy    string `csv:"strategy"`
	OrderID     string `csv:"order_id"`
	Status      string `csv:"status"`
	Description string `csv:"description"`
}

// RecommendationFromTrade flattens a trade into its journal row.
func RecommendationFromTrade(t models.TradeRecord) RecommendationRow {
	r := t.Risk
	return RecommendationRow{
		Timestamp:        t.CreatedAt.Format(TimestampLayout),
		Symbol:           t.Symbol,
		Strategy:         string(t.Strategy),
		Expiry:           t.Expiry.Format(DateLayout),
		DTE:              t.CalculateDTE(t.CreatedAt),
		TradeDescription: t.Description,
		MaxLoss:          r.MaxLoss.String(),
		MaxProfit:        r.MaxProfit.String(),
		Breakeven:        r.Breakeven.String(),
		BreakevenLower:   r.BreakevenLower.String(),
		BreakevenUpper:   r.BreakevenUpper.String(),
		RiskRewardRatio:  r.RiskRewardRatio.StringFixed(2),
		ProbProfit:       r.ProbProfit.StringFixed(2),
		NetCostCredit:    r.NetCost().StringFixed(2),
	}
}

// Trade rebuilds the fields the analyzer needs from a journal row. The trade has no ID.
func (r RecommendationRow) Trade() (models.TradeRecord, error) {
	created, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(r.Timestamp), time.UTC)
	if err != nil {
		return models.TradeRecord{}, fmt.Errorf("row %s: timestamp: %w", r.Symbol, err)
	}
	expiry, err := time.ParseInLocation(DateLayout, strings.TrimSpace(r.Expiry), time.UTC)
	if err != nil {
		return models.TradeRecord{}, fmt.Errorf("row %s: expiry: %w", r.Symbol, err)
	}
	strategy := models.StrategyType(strings.TrimSpace(r.Strategy))

	t := models.TradeRecord{
		State:       models.StateRecommended,
		Symbol:      strings.TrimSpace(r.Symbol),
		Strategy:    strategy,
		Expiry:      expiry,
		Description: r.TradeDescription,
		Quantity:    1,
		CreatedAt:   created,
	}
	t.Risk.Strategy = strategy
	t.Risk.MaxLoss = parseAmount(r.MaxLoss)
	t.Risk.MaxProfit = parseAmount(r.MaxProfit)
	t.Risk.Breakeven = parseAmount(r.Breakeven)
	t.Risk.BreakevenLower = parseAmount(r.BreakevenLower)
	t.Risk.BreakevenUpper = parseAmount(r.BreakevenUpper)
	t.Risk.RiskRewardRatio = parseDecimal(r.RiskRewardRatio)
	t.Risk.ProbProfit = parseDecimal(r.ProbProfit)
	if net := parseAmount(r.NetCostCredit); net.IsFinite() {
		t.Risk.NetCreditDebit = net
	}
	return t, nil
}

// AnalysisRowFrom flattens an analysis result.
func AnalysisRowFrom(a models.AnalysisResult) AnalysisRow {
	return AnalysisRow{
		Symbol:    a.Symbol,
		Strategy:  string(a.Strategy),
		Expiry:    a.Expiry.Format(DateLayout),
		EntryDate: a.EntryDate.Format(TimestampLayout),
		Status:    string(a.Status),
		EntryCost: a.EntryCost.StringFixed(2),
		ExitValue: a.ExitValue.StringFixed(2),
		PnL:       a.PnL.StringFixed(2),
		PnLPct:    a.PnLPct.StringFixed(2),
	}
}

// NewExecutionRow builds an execution row stamped at ts.
func NewExecutionRow(ts time.Time, symbol string, strategy models.StrategyType, orderID, status, description string) ExecutionRow {
	return ExecutionRow{
		Timestamp:   ts.Format(TimestampLayout),
		Symbol:      symbol,
		Strategy:    string(strategy),
		OrderID:     orderID,
		Status:      status,
		Description: description,
	}
}

// parseAmount reads the text written by models.Amount.String.
func parseAmount(s string) models.Amount {
	var a models.Amount
	if err := a.UnmarshalJSON([]byte(strconv.Quote(strings.TrimSpace(s)))); err != nil {
		return models.Amount{}
	}
	return a
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
