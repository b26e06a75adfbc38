package models

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/options_advisor/internal/util"
)

// ContractMultiplier is the number of shares controlled by one listed option contract.
var ContractMultiplier = decimal.NewFromInt(100)

// Action is the side of a leg.
type Action string

const (
	// ActionBuy opens a long leg
	ActionBuy Action = "Buy"
	// ActionSell opens a short leg
	ActionSell Action = "Sell"
)

// Valid returns true if the Action is one of the defined constants
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// OptionType is the right carried by a contract, encoded the way trade descriptions write it.
type OptionType string

const (
	// OptionCall is a call contract
	OptionCall OptionType = "C"
	// OptionPut is a put contract
	OptionPut OptionType = "P"
)

// Valid returns true if the OptionType is one of the defined constants
func (t OptionType) Valid() bool {
	return t == OptionCall || t == OptionPut
}

// Name returns the long form ("call" or "put").
func (t OptionType) Name() string {
	switch t {
	case OptionCall:
		return "call"
	case OptionPut:
		return "put"
	default:
		return string(t)
	}
}

// Leg is one option contract line of a trade.
type Leg struct {
	Action   Action          `json:"action"`
	Strike   decimal.Decimal `json:"strike"`
	Type     OptionType      `json:"type"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Contracts returns the leg quantity, treating an unset quantity as one contract.
func (l Leg) Contracts() int {
	if l.Quantity <= 0 {
		return 1
	}
	return l.Quantity
}

// String renders the leg in trade-description form, e.g. "Buy 2x 455.0C @3.6".
func (l Leg) String() string {
	qty := ""
	if l.Quantity > 1 {
		qty = fmt.Sprintf("%dx ", l.Quantity)
	}
	return fmt.Sprintf("%s %s%s%s @%s", l.Action, qty, util.PriceString(l.Strike), l.Type, util.PriceString(l.Price))
}

// Quote is the current market for one option contract.
type Quote struct {
	Bid  decimal.Decimal `json:"bid"`
	Ask  decimal.Decimal `json:"ask"`
	Last decimal.Decimal `json:"last"`
}

// ExitPrice returns the bid/ask midpoint when both sides are positive, otherwise the last trade.
func (q Quote) ExitPrice() decimal.Decimal {
	if q.Bid.IsPositive() && q.Ask.IsPositive() {
		return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
	}
	return q.Last
}
