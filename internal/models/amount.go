package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// AmountKind distinguishes a finite value from the markers a metric can carry instead.
type AmountKind uint8

const (
	// AmountAbsent means the metric does not apply to the strategy.
	AmountAbsent AmountKind = iota
	// AmountFinite carries a number.
	AmountFinite
	// AmountUnlimited marks an unbounded profit or loss.
	AmountUnlimited
	// AmountUndefined marks a value that cannot be computed for the given inputs.
	AmountUndefined
)

const (
	unlimitedText = "unlimited"
	undefinedText = "undefined"
)

// Amount is a risk metric value. The zero value is absent.
type Amount struct {
	value decimal.Decimal
	kind  AmountKind
}

// Finite wraps a number.
func Finite(v decimal.Decimal) Amount {
	return Amount{kind: AmountFinite, value: v}
}

// Unlimited returns the unbounded marker.
func Unlimited() Amount {
	return Amount{kind: AmountUnlimited}
}

// Undefined returns the not-computable marker.
func Undefined() Amount {
	return Amount{kind: AmountUndefined}
}

// Kind reports which variant the amount holds.
func (a Amount) Kind() AmountKind { return a.kind }

// IsFinite reports whether the amount carries a number.
func (a Amount) IsFinite() bool { return a.kind == AmountFinite }

// IsUnlimited reports whether the amount is the unbounded marker.
func (a Amount) IsUnlimited() bool { return a.kind == AmountUnlimited }

// IsUndefined reports whether the amount is the not-computable marker.
func (a Amount) IsUndefined() bool { return a.kind == AmountUndefined }

// IsAbsent reports whether the metric is not present.
func (a Amount) IsAbsent() bool { return a.kind == AmountAbsent }

// Value returns the number and true for finite amounts.
func (a Amount) Value() (decimal.Decimal, bool) {
	if a.kind != AmountFinite {
		return decimal.Zero, false
	}
	return a.value, true
}

// Round rounds finite amounts half away from zero; markers pass through.
func (a Amount) Round(places int32) Amount {
	if a.kind != AmountFinite {
		return a
	}
	return Finite(a.value.Round(places))
}

// String renders finite amounts with two decimals.
func (a Amount) String() string {
	switch a.kind {
	case AmountFinite:
		return a.value.StringFixed(2)
	case AmountUnlimited:
		return unlimitedText
	case AmountUndefined:
		return undefinedText
	default:
		return ""
	}
}

// MarshalJSON encodes finite amounts as numbers, markers as strings and absent as null.
func (a Amount) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case AmountFinite:
		return []byte(a.value.String()), nil
	case AmountUnlimited:
		return json.Marshal(unlimitedText)
	case AmountUndefined:
		return json.Marshal(undefinedText)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts the forms produced by MarshalJSON as well as quoted numbers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	var text string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
	} else {
		text = string(data)
	}
	switch text {
	case unlimitedText:
		*a = Unlimited()
	case undefinedText:
		*a = Undefined()
	case "":
		*a = Amount{}
	default:
		v, err := decimal.NewFromString(text)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", text, err)
		}
		*a = Finite(v)
	}
	return nil
}
