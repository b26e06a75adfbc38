package util

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundToTick(t *testing.T) {
	tests := []struct {
		name     string
		x        string
		tick     string
		expected string
	}{
		{
			name:     "basic rounding down",
			x:        "1.2345",
			tick:     "0.01",
			expected: "1.23",
		},
		{
			name:     "tie rounds away from zero",
			x:        "1.235",
			tick:     "0.01",
			expected: "1.24",
		},
		{
			name:     "negative tie rounds away from zero",
			x:        "-1.235",
			tick:     "0.01",
			expected: "-1.24",
		},
		{
			name:     "larger tick size",
			x:        "1.27",
			tick:     "0.05",
			expected: "1.25",
		},
		{
			name:     "exact multiple",
			x:        "1.25",
			tick:     "0.05",
			expected: "1.25",
		},
		{
			name:     "strike grid",
			x:        "447.3",
			tick:     "2.5",
			expected: "447.5",
		},
		{
			name:     "non-positive tick is identity",
			x:        "1.2345",
			tick:     "0",
			expected: "1.2345",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RoundToTick(decimal.RequireFromString(tt.x), decimal.RequireFromString(tt.tick))
			if !result.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("RoundToTick(%v, %v) = %v, expected %v", tt.x, tt.tick, result, tt.expected)
			}
		})
	}
}

func TestRound2(t *testing.T) {
	if got := Round2(decimal.RequireFromString("1.3809")).String(); got != "1.38" {
		t.Errorf("Round2 = %s, want 1.38", got)
	}
	if got := Round2(decimal.RequireFromString("-0.005")).String(); got != "-0.01" {
		t.Errorf("Round2 = %s, want -0.01", got)
	}
}

func TestFromFloat(t *testing.T) {
	if got := FromFloat(4.2500001).String(); got != "4.25" {
		t.Errorf("FromFloat = %s, want 4.25", got)
	}
}

func TestPriceString(t *testing.T) {
	tests := map[string]string{
		"195":    "195.0",
		"447.5":  "447.5",
		"5.70":   "5.7",
		"4.25":   "4.25",
		"0":      "0.0",
		"10.950": "10.95",
	}
	for in, want := range tests {
		if got := PriceString(decimal.RequireFromString(in)); got != want {
			t.Errorf("PriceString(%s) = %s, want %s", in, got, want)
		}
	}
}
