// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing monetary amounts typed by users,
// coercing loosely-typed amounts from imported data, and formatting amounts
// as Brazilian reais.
package core

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts a user-typed decimal string to an amount rounded to cents.
//
// It accepts dot (12.34) and comma (12,34) decimal separators, pt-BR grouping
// (1.234,56) and an optional "R$" prefix. Rounding is half-up on the third
// decimal place. Zero is accepted; negative values are not.
//
// Examples:
//
//	ParseAmount("12.34")    -> 12.34
//	ParseAmount("12,345")   -> 12.35
//	ParseAmount("1.234,56") -> 1234.56
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimPrefix(s, "R$"))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrNegativeAmount
	}
	s = strings.TrimPrefix(s, "+")

	normalized, ok := normalizeSeparators(s)
	if !ok {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(2), nil
}

// normalizeSeparators rewrites s so that the only separator left is a single
// dot before the fractional part.
func normalizeSeparators(s string) (string, bool) {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return "", false
		}
	}
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Whichever comes last is the decimal separator.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return "", false
		}
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		// 1.234.567 is grouping only.
		groups := strings.Split(s, ".")
		for _, g := range groups[1:] {
			if len(g) != 3 {
				return "", false
			}
		}
		s = strings.Join(groups, "")
	}

	if strings.Count(s, ".") > 1 || s == "." {
		return "", false
	}
	if strings.HasPrefix(s, ".") {
		s = "0" + s
	}
	s = strings.TrimSuffix(s, ".")
	return s, s != ""
}

// CoerceAmount turns any loosely-typed amount into a non-negative decimal.
// Values that are absent, non-numeric, NaN, infinite or negative become zero.
func CoerceAmount(v any) decimal.Decimal {
	switch val := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return nonNegative(val)
	case float64:
		return coerceFloat(val)
	case float32:
		return coerceFloat(float64(val))
	case int:
		return nonNegative(decimal.NewFromInt(int64(val)))
	case int64:
		return nonNegative(decimal.NewFromInt(val))
	case int32:
		return nonNegative(decimal.NewFromInt(int64(val)))
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		if err != nil {
			return decimal.Zero
		}
		return nonNegative(d)
	case string:
		d, err := ParseAmount(val)
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func coerceFloat(f float64) decimal.Decimal {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	return nonNegative(decimal.NewFromFloat(f))
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// FormatBRL formats an amount as Brazilian reais, e.g. "R$ 1.234,56".
func FormatBRL(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := "R$ " + b.String() + "," + frac
	if neg {
		return "-" + out
	}
	return out
}
