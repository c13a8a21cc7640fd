// Package core provides the expense record domain and calendar aggregation.
//
// This file contains helpers for parsing and formatting whole-unit amounts.
// Amounts carry no fractional part; arithmetic stays in int64 throughout.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// FormatAmount renders an amount with a currency marker, e.g. "$120" or "$-12".
func FormatAmount(amount int64) string {
	return "$" + strconv.FormatInt(amount, 10)
}

// ParseAmount converts a string to a whole-unit amount.
//
// It accepts an optional leading "$" and an optional sign, then decimal
// digits only. Fractional values are rejected; amounts are whole units.
//
// Examples:
//
//	ParseAmount("120")  -> 120, nil
//	ParseAmount("$120") -> 120, nil
//	ParseAmount("-45")  -> -45, nil
//	ParseAmount("12.5") -> 0, ErrInvalidAmount
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	digits := s
	if digits[0] == '+' || digits[0] == '-' {
		digits = digits[1:]
	}
	if digits == "" {
		return 0, ErrInvalidAmount
	}
	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return v, nil
}
