// Package tradedesc converts between leg lists and the compact trade description text
// stored with each recommendation, e.g. "Buy 195.0C @4.25 / Sell 200.0C @2.09" or
// "Buy 500.0C @5.7 + 500.0P @4.65".
package tradedesc

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eddiefleurent/options_advisor/internal/models"
	"github.com/eddiefleurent/options_advisor/internal/util"
)

const (
	// SpreadSeparator joins independently priced legs.
	SpreadSeparator = " / "
	// CoEntrySeparator joins legs entered together under one action.
	CoEntrySeparator = " + "
)

var (
	legSplit   = regexp.MustCompile(`\s*/\s*|\s+\+\s+`)
	legPattern = regexp.MustCompile(`^(?:(Buy|Sell)\s+)?(?:(\d+)x\s+)?(\d+(?:\.\d+)?)(C|P)\s+@(\d+(?:\.\d+)?)`)
)

// Result is the outcome of parsing one description.
type Result struct {
	Legs []models.Leg
	// Skipped holds the tokens that did not match the leg grammar.
	Skipped []string
	Hint    models.StrategyType
}

// Complete reports whether the parsed leg count is what the hinted strategy needs.
// Without a usable hint any non-empty result is complete.
func (r Result) Complete() bool {
	if want := r.Hint.ExpectedLegs(); want > 0 {
		return len(r.Legs) == want
	}
	return len(r.Legs) > 0
}

// Parse reads legs in input order. A leg without an action inherits the action of the
// previous leg, starting from Buy. Tokens that do not parse are reported in Skipped and
// never abort the parse.
func Parse(text string, hint models.StrategyType) Result {
	res := Result{Hint: hint}
	lastAction := models.ActionBuy

	for _, token := range legSplit.Split(strings.TrimSpace(text), -1) {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		leg, ok := parseLeg(token, lastAction)
		if !ok {
			res.Skipped = append(res.Skipped, token)
			continue
		}
		lastAction = leg.Action
		res.Legs = append(res.Legs, leg)
	}
	return res
}

func parseLeg(token string, inherited models.Action) (models.Leg, bool) {
	m := legPattern.FindStringSubmatch(token)
	if m == nil {
		return models.Leg{}, false
	}
	action := inherited
	if m[1] != "" {
		action = models.Action(m[1])
	}
	qty := 1
	if m[2] != "" {
		n, err := strconv.Atoi(m[2])
		if err != nil || n <= 0 {
			return models.Leg{}, false
		}
		qty = n
	}
	strike, err := decimal.NewFromString(m[3])
	if err != nil {
		return models.Leg{}, false
	}
	price, err := decimal.NewFromString(m[5])
	if err != nil {
		return models.Leg{}, false
	}
	return models.Leg{
		Action:   action,
		Strike:   strike,
		Type:     models.OptionType(m[4]),
		Price:    price,
		Quantity: qty,
	}, true
}

// Format writes legs in the description grammar. Straddle legs are co-entered, so the
// second leg drops its repeated action; everything else is separated by " / ".
func Format(strategy models.StrategyType, legs []models.Leg) string {
	sep := SpreadSeparator
	if strategy == models.StrategyStraddle {
		sep = CoEntrySeparator
	}
	parts := make([]string, 0, len(legs))
	for i, l := range legs {
		var b strings.Builder
		coEntered := sep == CoEntrySeparator && i > 0 && legs[i-1].Action == l.Action
		if !coEntered {
			b.WriteString(string(l.Action))
			b.WriteByte(' ')
		}
		if l.Quantity > 1 {
			b.WriteString(strconv.Itoa(l.Quantity))
			b.WriteString("x ")
		}
		b.WriteString(util.PriceString(l.Strike))
		b.WriteString(string(l.Type))
		b.WriteString(" @")
		b.WriteString(util.PriceString(l.Price))
		parts = append(parts, b.String())
	}
	return strings.Join(parts, sep)
}
