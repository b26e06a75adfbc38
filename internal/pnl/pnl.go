// Package pnl marks a list of legs to market.
package pnl

import (
	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/options_advisor/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Calculate prices every leg against the quote at the same index and returns dollar
// figures for quantity units of the position. A leg quantity multiplies on top of
// quantity. A quantity below one is treated as a single unit. If any quote is missing,
// including a quotes slice shorter than legs, the result is absent and ok is false.
func Calculate(legs []models.Leg, quotes []*models.Quote, quantity int) (models.PnLResult, bool) {
	if len(quotes) < len(legs) {
		return models.PnLResult{}, false
	}
	entry := decimal.Zero
	exit := decimal.Zero

	for i, leg := range legs {
		q := quotes[i]
		if q == nil {
			return models.PnLResult{}, false
		}
		units := contracts(leg, quantity)
		paid := leg.Price.Mul(units)
		mark := q.ExitPrice().Mul(units)

		if leg.Action == models.ActionBuy {
			entry = entry.Sub(paid)
			exit = exit.Add(mark)
		} else {
			entry = entry.Add(paid)
			exit = exit.Sub(mark)
		}
	}
	return result(entry, exit), true
}

// EntryCost returns the signed premium flow of opening the legs: negative for a net debit.
func EntryCost(legs []models.Leg, quantity int) decimal.Decimal {
	entry := decimal.Zero
	for _, leg := range legs {
		paid := leg.Price.Mul(contracts(leg, quantity))
		if leg.Action == models.ActionBuy {
			entry = entry.Sub(paid)
		} else {
			entry = entry.Add(paid)
		}
	}
	return entry
}

// Expired returns the result for a position that ran to expiry worthless: the whole
// entry cost is the P&L, so a debit loses 100% and a credit keeps 100%.
func Expired(legs []models.Leg, quantity int) models.PnLResult {
	return result(EntryCost(legs, quantity), decimal.Zero)
}

func result(entry, exit decimal.Decimal) models.PnLResult {
	pnl := exit.Add(entry)
	pct := decimal.Zero
	if !entry.IsZero() {
		pct = pnl.Div(entry.Abs()).Mul(hundred)
	}
	return models.PnLResult{EntryCost: entry, ExitValue: exit, PnL: pnl, PnLPct: pct}
}

func contracts(leg models.Leg, quantity int) decimal.Decimal {
	if quantity <= 0 {
		quantity = 1
	}
	return models.ContractMultiplier.Mul(decimal.NewFromInt(int64(quantity * leg.Contracts())))
}
