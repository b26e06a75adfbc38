package tradedesc

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eddiefleurent/options_advisor/internal/models"
)

var d = decimal.RequireFromString

func leg(action models.Action, qty int, strike string, typ models.OptionType, price string) models.Leg {
	return models.Leg{Action: action, Strike: d(strike), Type: typ, Price: d(price), Quantity: qty}
}

func assertLegsEqual(t *testing.T, want, got []models.Leg) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Action, got[i].Action, "leg %d action", i)
		assert.Equal(t, want[i].Type, got[i].Type, "leg %d type", i)
		assert.Equal(t, want[i].Contracts(), got[i].Contracts(), "leg %d quantity", i)
		assert.True(t, want[i].Strike.Equal(got[i].Strike), "leg %d strike %s != %s", i, got[i].Strike, want[i].Strike)
		assert.True(t, want[i].Price.Equal(got[i].Price), "leg %d price %s != %s", i, got[i].Price, want[i].Price)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		want        []models.Leg
		wantSkipped []string
	}{
		{
			name: "vertical spread",
			text: "Buy 195.0C @4.25 / Sell 200.0C @2.09",
			want: []models.Leg{
				leg(models.ActionBuy, 1, "195", models.OptionCall, "4.25"),
				leg(models.ActionSell, 1, "200", models.OptionCall, "2.09"),
			},
		},
		{
			name: "straddle inherits action",
			text: "Buy 500.0C @5.7 + 500.0P @4.65",
			want: []models.Leg{
				leg(models.ActionBuy, 1, "500", models.OptionCall, "5.7"),
				leg(models.ActionBuy, 1, "500", models.OptionPut, "4.65"),
			},
		},
		{
			name: "inherits the most recent action",
			text: "Sell 450.0P @2.5 / 445.0P @1.5",
			want: []models.Leg{
				leg(models.ActionSell, 1, "450", models.OptionPut, "2.5"),
				leg(models.ActionSell, 1, "445", models.OptionPut, "1.5"),
			},
		},
		{
			name: "leading action-less leg defaults to buy",
			text: "447.5C @10.95",
			want: []models.Leg{leg(models.ActionBuy, 1, "447.5", models.OptionCall, "10.95")},
		},
		{
			name: "quantity multiplier",
			text: "Sell 245.0C @7.1 / Buy 2x 250.0C @5.6",
			want: []models.Leg{
				leg(models.ActionSell, 1, "245", models.OptionCall, "7.1"),
				leg(models.ActionBuy, 2, "250", models.OptionCall, "5.6"),
			},
		},
		{
			name: "integer strikes and tight separators",
			text: "Buy 195C @4/Sell 200C @2",
			want: []models.Leg{
				leg(models.ActionBuy, 1, "195", models.OptionCall, "4"),
				leg(models.ActionSell, 1, "200", models.OptionCall, "2"),
			},
		},
		{
			name: "unparseable token skipped",
			text: "Buy 195.0C @4.25 / garbage / Sell 200.0C @2.09",
			want: []models.Leg{
				leg(models.ActionBuy, 1, "195", models.OptionCall, "4.25"),
				leg(models.ActionSell, 1, "200", models.OptionCall, "2.09"),
			},
			wantSkipped: []string{"garbage"},
		},
		{
			name:        "lowercase action is not a leg",
			text:        "buy 195.0C @4.25",
			wantSkipped: []string{"buy 195.0C @4.25"},
		},
		{
			name:        "missing price",
			text:        "Buy 195.0C",
			wantSkipped: []string{"Buy 195.0C"},
		},
		{
			name: "empty",
			text: "",
		},
		{
			name: "whitespace only",
			text: "   ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.text, "")
			assertLegsEqual(t, tt.want, res.Legs)
			assert.Equal(t, tt.wantSkipped, res.Skipped)
		})
	}
}

func TestResult_Complete(t *testing.T) {
	ic := "Buy 445.0P @1.5 / Sell 450.0P @2.5 / Sell 460.0C @2.5 / Buy 465.0C @1.5"
	assert.True(t, Parse(ic, models.StrategyIronCondor).Complete())
	assert.False(t, Parse(ic, models.StrategyBullCallSpread).Complete())
	assert.True(t, Parse(ic, "").Complete())
	assert.False(t, Parse("nothing here", "").Complete())
}

// shapes returns one representative leg list per strategy, in the order Format writes them.
func shapes() map[models.StrategyType][]models.Leg {
	return map[models.StrategyType][]models.Leg{
		models.StrategyBullCallSpread: {
			leg(models.ActionBuy, 1, "195", models.OptionCall, "4.25"),
			leg(models.ActionSell, 1, "200", models.OptionCall, "2.09"),
		},
		models.StrategyBearPutSpread: {
			leg(models.ActionBuy, 1, "450", models.OptionPut, "5.10"),
			leg(models.ActionSell, 1, "445", models.OptionPut, "3.00"),
		},
		models.StrategyIronCondor: {
			leg(models.ActionBuy, 1, "445", models.OptionPut, "1.50"),
			leg(models.ActionSell, 1, "450", models.OptionPut, "2.50"),
			leg(models.ActionSell, 1, "460", models.OptionCall, "2.50"),
			leg(models.ActionBuy, 1, "465", models.OptionCall, "1.50"),
		},
		models.StrategyStraddle: {
			leg(models.ActionBuy, 1, "500", models.OptionCall, "5.70"),
			leg(models.ActionBuy, 1, "500", models.OptionPut, "4.65"),
		},
		models.StrategyLongCall: {
			leg(models.ActionBuy, 1, "447.5", models.OptionCall, "10.95"),
		},
		models.StrategyLongPut: {
			leg(models.ActionBuy, 1, "450", models.OptionPut, "5.10"),
		},
		models.StrategyCallRatioBackspread: {
			leg(models.ActionSell, 1, "245", models.OptionCall, "7.10"),
			leg(models.ActionBuy, 2, "250", models.OptionCall, "5.60"),
		},
		models.StrategyPutRatioBackspread: {
			leg(models.ActionSell, 1, "245", models.OptionPut, "6.20"),
			leg(models.ActionBuy, 2, "240", models.OptionPut, "4.10"),
		},
		models.StrategyCalendarSpread: {
			leg(models.ActionSell, 1, "450", models.OptionCall, "3.00"),
			leg(models.ActionBuy, 1, "450", models.OptionCall, "5.00"),
		},
	}
}

func TestFormat(t *testing.T) {
	s := shapes()
	assert.Equal(t, "Buy 195.0C @4.25 / Sell 200.0C @2.09", Format(models.StrategyBullCallSpread, s[models.StrategyBullCallSpread]))
	assert.Equal(t, "Buy 500.0C @5.7 + 500.0P @4.65", Format(models.StrategyStraddle, s[models.StrategyStraddle]))
	assert.Equal(t, "Sell 245.0C @7.1 / Buy 2x 250.0C @5.6", Format(models.StrategyCallRatioBackspread, s[models.StrategyCallRatioBackspread]))
	assert.Equal(t, "Buy 447.5C @10.95", Format(models.StrategyLongCall, s[models.StrategyLongCall]))
	assert.Equal(t, "", Format(models.StrategyLongCall, nil))
}

func TestFormatParse_RoundTripAllStrategies(t *testing.T) {
	s := shapes()
	require.Len(t, s, len(models.TradeStrategies))
	for _, strategy := range models.TradeStrategies {
		t.Run(string(strategy), func(t *testing.T) {
			legs := s[strategy]
			res := Parse(Format(strategy, legs), strategy)
			assert.Empty(t, res.Skipped)
			assert.True(t, res.Complete())
			assertLegsEqual(t, legs, res.Legs)
		})
	}
}

func TestFormatParse_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("format then parse reproduces every leg", prop.ForAll(
		func(strike, price float64, qty int, sell, put, straddle bool) bool {
			action := models.ActionBuy
			if sell {
				action = models.ActionSell
			}
			typ := models.OptionCall
			if put {
				typ = models.OptionPut
			}
			strategy := models.StrategyBullCallSpread
			if straddle {
				strategy = models.StrategyStraddle
			}
			legs := []models.Leg{
				{Action: action, Strike: decimal.NewFromFloat(strike).Round(1), Type: typ, Price: decimal.NewFromFloat(price).Round(2), Quantity: qty},
				{Action: action, Strike: decimal.NewFromFloat(strike).Round(1).Add(d("5")), Type: typ, Price: decimal.NewFromFloat(price).Round(2), Quantity: 1},
			}
			got := Parse(Format(strategy, legs), strategy).Legs
			if len(got) != len(legs) {
				return false
			}
			for i := range legs {
				if got[i].Action != legs[i].Action || got[i].Type != legs[i].Type ||
					got[i].Quantity != legs[i].Contracts() ||
					!got[i].Strike.Equal(legs[i].Strike) || !got[i].Price.Equal(legs[i].Price) {
					return false
				}
			}
			return true
		},
		gen.Float64Range(1, 2000),
		gen.Float64Range(0, 100),
		gen.IntRange(1, 9),
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
