package risk

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/options_advisor/internal/models"
)

// Format renders a metrics record as an indented, human-readable block.
func Format(m models.RiskMetrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "RISK ANALYSIS (%s)\n", strings.ToUpper(string(m.Strategy)))
	fmt.Fprintf(&b, "  Max Loss:    %s\n", dollars(m.MaxLoss))
	fmt.Fprintf(&b, "  Max Profit:  %s\n", dollars(m.MaxProfit))
	for _, be := range []struct {
		label string
		value models.Amount
	}{
		{"Breakeven:  ", m.Breakeven},
		{"BE Lower:   ", m.BreakevenLower},
		{"BE Upper:   ", m.BreakevenUpper},
	} {
		if !be.value.IsAbsent() {
			fmt.Fprintf(&b, "  %s %s\n", be.label, dollars(be.value))
		}
	}
	if !m.NetCreditDebit.IsAbsent() {
		kind := "debit"
		if m.IsCredit {
			kind = "credit"
		}
		fmt.Fprintf(&b, "  Net:         %s (%s)\n", dollars(m.NetCreditDebit), kind)
	}
	if v, ok := m.ImpliedMovePct.Value(); ok {
		fmt.Fprintf(&b, "  Implied Move: %s%%\n", v.StringFixed(2))
	}
	fmt.Fprintf(&b, "  Risk/Reward: %s\n", m.RiskRewardRatio.StringFixed(2))
	fmt.Fprintf(&b, "  Prob of Profit: ~%s%%\n", m.ProbProfit.Mul(decimal.NewFromInt(100)).Round(0).String())
	for _, w := range m.Warnings {
		fmt.Fprintf(&b, "  WARNING [%s]: %s\n", w.Code, w.Message)
	}
	return b.String()
}

func dollars(a models.Amount) string {
	if a.IsFinite() {
		return "$" + a.String()
	}
	if a.IsAbsent() {
		return "N/A"
	}
	return a.String()
}
