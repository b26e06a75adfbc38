package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// IVReading represents a single implied volatility reading for a symbol on a specific date
type IVReading struct {
	Symbol    string    `json:"symbol"`
	Date      time.Time `json:"date"`
	IV        float64   `json:"iv"`        // Implied volatility as decimal (0.20 = 20%)
	Timestamp time.Time `json:"timestamp"` // When this reading was recorded
}

// PnLResult is the mark-to-market of a set of legs in dollars.
type PnLResult struct {
	EntryCost decimal.Decimal `json:"entry_cost"`
	ExitValue decimal.Decimal `json:"exit_value"`
	PnL       decimal.Decimal `json:"pnl"`
	PnLPct    decimal.Decimal `json:"pnl_pct"`
}

// AnalysisStatus is the outcome class of a trade analysis.
type AnalysisStatus string

const (
	AnalysisActive  AnalysisStatus = "ACTIVE"
	AnalysisExpired AnalysisStatus = "EXPIRED"
)

// AnalysisResult is one analyzed trade.
type AnalysisResult struct {
	TradeID   string         `json:"trade_id,omitempty"`
	Symbol    string         `json:"symbol"`
	Strategy  StrategyType   `json:"strategy"`
	Expiry    time.Time      `json:"expiry"`
	EntryDate time.Time      `json:"entry_date"`
	Status    AnalysisStatus `json:"status"`
	PnLResult
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// IsWinner reports a strictly positive P&L.
func (r AnalysisResult) IsWinner() bool { return r.PnL.IsPositive() }

// IsLoser reports a strictly negative P&L.
func (r AnalysisResult) IsLoser() bool { return r.PnL.IsNegative() }

// TradeRecord is a recommended trade and everything that happened to it afterwards.
type TradeRecord struct {
	StateMachine *StateMachine   `json:"-"`     // Runtime only, excluded from JSON
	State        TradeState      `json:"state"` // Canonical persisted state
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Strategy     StrategyType    `json:"strategy"`
	Trend        Trend           `json:"trend,omitempty"`
	IVRank       float64         `json:"iv_rank"`
	Expiry       time.Time       `json:"expiry"`
	BackExpiry   time.Time       `json:"back_expiry,omitempty"` // calendar long leg
	Description  string          `json:"description"`
	Legs         []Leg           `json:"legs"`
	Quantity     int             `json:"quantity"`
	Risk         RiskMetrics     `json:"risk"`
	CreatedAt    time.Time       `json:"created_at"`
	ExecutedAt   time.Time       `json:"executed_at,omitempty"`
	ClosedAt     time.Time       `json:"closed_at,omitempty"`
	OrderID      string          `json:"order_id,omitempty"`
	ExitReason   string          `json:"exit_reason,omitempty"`
	RealizedPnL  decimal.Decimal `json:"realized_pnl"`
	LastAnalysis *AnalysisResult `json:"last_analysis,omitempty"`
}

// NewTradeRecord creates a recommended trade with an initialized state machine.
func NewTradeRecord(id, symbol string, strategy StrategyType, expiry time.Time, legs []Leg, description string) *TradeRecord {
	return &TradeRecord{
		ID:           id,
		Symbol:       symbol,
		Strategy:     strategy,
		Expiry:       expiry,
		Legs:         legs,
		Description:  description,
		Quantity:     1,
		CreatedAt:    time.Now().UTC(),
		StateMachine: NewStateMachine(),
		State:        StateRecommended,
	}
}

// CalculateDTE calculates and returns the days to expiration relative to now.
func (t *TradeRecord) CalculateDTE(now time.Time) int {
	today := now.UTC().Truncate(24 * time.Hour)
	exp := t.Expiry.UTC().Truncate(24 * time.Hour)
	days := int(exp.Sub(today).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// IsExpired reports whether the trade's expiry date is strictly before the date of now.
func (t *TradeRecord) IsExpired(now time.Time) bool {
	today := now.UTC().Truncate(24 * time.Hour)
	return t.Expiry.UTC().Truncate(24 * time.Hour).Before(today)
}

// TransitionState moves the trade to a new state
func (t *TradeRecord) TransitionState(to TradeState, condition string) error {
	if err := t.ensureMachine().Transition(to, condition); err != nil {
		return fmt.Errorf("trade %s state transition failed: %w", t.ID, err)
	}
	t.State = to

	now := time.Now().UTC()
	if to == StateSimulated && t.ExecutedAt.IsZero() {
		t.ExecutedAt = now
	}
	if to.IsTerminal() && t.ClosedAt.IsZero() {
		t.ClosedAt = now
		t.ExitReason = condition
	}
	return nil
}

// IsOpen reports whether the trade can still change state.
func (t *TradeRecord) IsOpen() bool {
	return !t.State.IsTerminal()
}

// ensureMachine ensures the StateMachine is initialized from persisted state
func (t *TradeRecord) ensureMachine() *StateMachine {
	if t.StateMachine == nil {
		t.StateMachine = NewStateMachineFromState(t.State)
	}
	return t.StateMachine
}

// Clone returns a copy that shares no mutable state with t.
func (t *TradeRecord) Clone() *TradeRecord {
	if t == nil {
		return nil
	}
	c := *t
	c.StateMachine = nil
	c.Legs = append([]Leg(nil), t.Legs...)
	c.Risk.Warnings = append([]Warning(nil), t.Risk.Warnings...)
	if t.LastAnalysis != nil {
		a := *t.LastAnalysis
		c.LastAnalysis = &a
	}
	return &c
}
