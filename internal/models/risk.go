package models

import "github.com/shopspring/decimal"

// WarningCode classifies a condition the calculator noticed but did not fail on.
type WarningCode string

const (
	// WarnDegenerateRatio is set when long and short counts of a backspread are equal.
	WarnDegenerateRatio WarningCode = "degenerate_ratio"
	// WarnInvertedStrikes is set when strikes are not in the order the strategy expects.
	WarnInvertedStrikes WarningCode = "inverted_strikes"
)

// Warning is attached to RiskMetrics instead of failing the computation.
type Warning struct {
	Code    WarningCode `json:"code"`
	Message string      `json:"message"`
}

// RiskMetrics is the risk profile of one structure. Fields that do not apply to the
// strategy stay absent.
type RiskMetrics struct {
	Strategy        StrategyType    `json:"strategy"`
	MaxLoss         Amount          `json:"max_loss"`
	MaxProfit       Amount          `json:"max_profit"`
	Breakeven       Amount          `json:"breakeven"`
	BreakevenLower  Amount          `json:"breakeven_lower"`
	BreakevenUpper  Amount          `json:"breakeven_upper"`
	RiskRewardRatio decimal.Decimal `json:"risk_reward_ratio"`
	ProbProfit      decimal.Decimal `json:"prob_profit"`
	NetDebit        Amount          `json:"net_debit"`
	NetCredit       Amount          `json:"net_credit"`
	NetCreditDebit  Amount          `json:"net_credit_debit"`
	IsCredit        bool            `json:"is_credit,omitempty"`
	ImpliedMovePct  Amount          `json:"implied_move_pct"`
	Delta           Amount          `json:"delta"`
	DTE             int             `json:"dte,omitempty"`
	FrontDTE        int             `json:"front_dte,omitempty"`
	BackDTE         int             `json:"back_dte,omitempty"`
	OptimalScenario string          `json:"optimal_scenario,omitempty"`
	Warnings        []Warning       `json:"warnings,omitempty"`
}

// HasWarning reports whether a warning with the code is attached.
func (m RiskMetrics) HasWarning(code WarningCode) bool {
	for _, w := range m.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

// NetCost returns the signed cash flow of the trade per share: positive for a credit,
// negative for a debit. Zero when no net figure applies.
func (m RiskMetrics) NetCost() decimal.Decimal {
	if v, ok := m.NetCreditDebit.Value(); ok {
		return v
	}
	if v, ok := m.NetCredit.Value(); ok {
		return v
	}
	if v, ok := m.NetDebit.Value(); ok {
		return v.Neg()
	}
	return decimal.Zero
}
