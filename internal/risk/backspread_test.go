package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eddiefleurent/options_advisor/internal/models"
)

func TestCallRatioBackspread(t *testing.T) {
	tests := []struct {
		name          string
		in            RatioBackspread
		wantNet       string
		wantCredit    bool
		wantMaxLoss   string
		wantLower     string // empty means absent
		wantUpper     string
		wantUndefined bool
	}{
		{
			name:        "credit 1x2",
			in:          RatioBackspread{ShortStrike: d("450"), LongStrike: d("455"), ShortPrice: d("5.00"), LongPrice: d("2.00")},
			wantNet:     "1",
			wantCredit:  true,
			wantMaxLoss: "4",
			wantLower:   "449",
			wantUpper:   "459",
		},
		{
			name:        "debit 1x2",
			in:          RatioBackspread{ShortStrike: d("450"), LongStrike: d("455"), ShortPrice: d("4.00"), LongPrice: d("2.50")},
			wantNet:     "-1",
			wantMaxLoss: "6",
			wantUpper:   "456",
		},
		{
			name:        "credit 2x3",
			in:          RatioBackspread{ShortStrike: d("100"), LongStrike: d("105"), ShortPrice: d("3.00"), LongPrice: d("1.00"), ShortQty: 2, LongQty: 3},
			wantNet:     "3",
			wantCredit:  true,
			wantMaxLoss: "7",
			wantLower:   "97",
			wantUpper:   "112",
		},
		{
			name:          "equal counts credit",
			in:            RatioBackspread{ShortStrike: d("450"), LongStrike: d("455"), ShortPrice: d("5.00"), LongPrice: d("2.00"), ShortQty: 2, LongQty: 2},
			wantNet:       "6",
			wantCredit:    true,
			wantMaxLoss:   "4",
			wantLower:     "444",
			wantUndefined: true,
		},
		{
			name:          "equal counts debit",
			in:            RatioBackspread{ShortStrike: d("450"), LongStrike: d("455"), ShortPrice: d("2.00"), LongPrice: d("5.00"), ShortQty: 1, LongQty: 1},
			wantNet:       "-3",
			wantMaxLoss:   "8",
			wantUndefined: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newCalc().CallRatioBackspread(tt.in)

			assert.Equal(t, models.StrategyCallRatioBackspread, m.Strategy)
			assertAmount(t, tt.wantNet, m.NetCreditDebit, "net_credit_debit")
			assert.Equal(t, tt.wantCredit, m.IsCredit)
			assertAmount(t, tt.wantMaxLoss, m.MaxLoss, "max_loss")
			assert.True(t, m.MaxProfit.IsUnlimited())
			assertDecimal(t, "0.45", m.ProbProfit, "prob_profit")
			assertDecimal(t, "0", m.RiskRewardRatio, "risk_reward")

			if tt.wantLower == "" {
				assert.True(t, m.BreakevenLower.IsAbsent())
			} else {
				assertAmount(t, tt.wantLower, m.BreakevenLower, "breakeven_lower")
			}
			if tt.wantUndefined {
				assert.True(t, m.BreakevenUpper.IsUndefined())
				assert.True(t, m.HasWarning(models.WarnDegenerateRatio))
			} else {
				assertAmount(t, tt.wantUpper, m.BreakevenUpper, "breakeven_upper")
				assert.False(t, m.HasWarning(models.WarnDegenerateRatio))
			}
		})
	}
}

func TestPutRatioBackspread(t *testing.T) {
	tests := []struct {
		name          string
		in            RatioBackspread
		wantNet       string
		wantCredit    bool
		wantMaxLoss   string
		wantMaxProfit string
		wantLower     string
		wantUpper     string // empty means absent
		wantUndefined bool
	}{
		{
			name:          "credit 1x2",
			in:            RatioBackspread{ShortStrike: d("450"), LongStrike: d("445"), ShortPrice: d("5.00"), LongPrice: d("2.00")},
			wantNet:       "1",
			wantCredit:    true,
			wantMaxLoss:   "4",
			wantMaxProfit: "446",
			wantLower:     "441",
			wantUpper:     "451",
		},
		{
			name:          "debit 1x2",
			in:            RatioBackspread{ShortStrike: d("450"), LongStrike: d("445"), ShortPrice: d("4.00"), LongPrice: d("2.50")},
			wantNet:       "-1",
			wantMaxLoss:   "6",
			wantMaxProfit: "444",
			wantLower:     "444",
		},
		{
			name:          "equal counts",
			in:            RatioBackspread{ShortStrike: d("450"), LongStrike: d("445"), ShortPrice: d("5.00"), LongPrice: d("2.00"), ShortQty: 1, LongQty: 1},
			wantNet:       "3",
			wantCredit:    true,
			wantMaxLoss:   "2",
			wantMaxProfit: "3",
			wantUpper:     "453",
			wantUndefined: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newCalc().PutRatioBackspread(tt.in)

			assertAmount(t, tt.wantNet, m.NetCreditDebit, "net_credit_debit")
			assert.Equal(t, tt.wantCredit, m.IsCredit)
			assertAmount(t, tt.wantMaxLoss, m.MaxLoss, "max_loss")
			assertAmount(t, tt.wantMaxProfit, m.MaxProfit, "max_profit")

			if tt.wantUpper == "" {
				assert.True(t, m.BreakevenUpper.IsAbsent())
			} else {
				assertAmount(t, tt.wantUpper, m.BreakevenUpper, "breakeven_upper")
			}
			if tt.wantUndefined {
				assert.True(t, m.BreakevenLower.IsUndefined())
				assert.True(t, m.HasWarning(models.WarnDegenerateRatio))
			} else {
				assertAmount(t, tt.wantLower, m.BreakevenLower, "breakeven_lower")
			}
		})
	}
}

func TestRatioBackspread_InvertedStrikes(t *testing.T) {
	call := newCalc().CallRatioBackspread(RatioBackspread{ShortStrike: d("455"), LongStrike: d("450"), ShortPrice: d("2"), LongPrice: d("5")})
	assert.True(t, call.HasWarning(models.WarnInvertedStrikes))

	put := newCalc().PutRatioBackspread(RatioBackspread{ShortStrike: d("445"), LongStrike: d("450"), ShortPrice: d("2"), LongPrice: d("5")})
	assert.True(t, put.HasWarning(models.WarnInvertedStrikes))
}
