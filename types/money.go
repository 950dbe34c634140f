// Package types provides common types used across Reconcile.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Money represents a monetary value in the smallest currency unit.
// All arithmetic is integer-only — no floating point.
//
// Examples:
//   - SYP(1500) = 1,500 Syrian pounds (no decimal)
//   - USD(4900) = $49.00 (4900 cents)
type Money struct {
	Amount   int64  `json:"amount"`   // Smallest unit (pounds, cents, etc)
	Currency string `json:"currency"` // ISO 4217 lowercase: "syp", "usd", "eur"
}

// Common currency constructors

// SYP creates a Money value in Syrian Pounds (no decimal).
func SYP(pounds int64) Money { return Money{Amount: pounds, Currency: "syp"} }

// USD creates a Money value in US Dollars (cents).
func USD(cents int64) Money { return Money{Amount: cents, Currency: "usd"} }

// EUR creates a Money value in Euros (cents).
func EUR(cents int64) Money { return Money{Amount: cents, Currency: "eur"} }

// Zero returns a zero Money value in the specified currency.
func Zero(currency string) Money { return Money{Amount: 0, Currency: strings.ToLower(currency)} }

// FromMajor creates a Money value from major currency units
// (1500 pounds → SYP 1500, 49 dollars → USD 4900 cents).
func FromMajor(major int64, currency string) Money {
	currency = strings.ToLower(currency)
	divisor := int64(1)
	for i := 0; i < currencyDecimals(currency); i++ {
		divisor *= 10
	}
	return Money{Amount: major * divisor, Currency: currency}
}

// ParseMoney parses a plain decimal string ("1500", "12.5") into a Money
// value in the given currency. The input must already be normalized: no
// grouping separators, '.' as the decimal point. Fractional digits beyond
// the currency's precision are truncated.
func ParseMoney(s, currency string) (Money, error) {
	currency = strings.ToLower(currency)
	if s == "" {
		return Zero(currency), fmt.Errorf("money: parse %q: empty string", s)
	}

	negative := false
	if s[0] == '-' {
		negative = true
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}

	var major int64
	for i := 0; i < len(whole); i++ {
		c := whole[i]
		if c < '0' || c > '9' {
			return Zero(currency), fmt.Errorf("money: parse %q: invalid character %q", s, c)
		}
		major = major*10 + int64(c-'0')
	}

	decimals := currencyDecimals(currency)
	amount := major
	for i := 0; i < decimals; i++ {
		amount *= 10
		if i < len(frac) {
			c := frac[i]
			if c < '0' || c > '9' {
				return Zero(currency), fmt.Errorf("money: parse %q: invalid character %q", s, c)
			}
			amount += int64(c - '0')
		}
	}
	for i := decimals; i < len(frac); i++ {
		if c := frac[i]; c < '0' || c > '9' {
			return Zero(currency), fmt.Errorf("money: parse %q: invalid character %q", s, c)
		}
	}

	if negative {
		amount = -amount
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// Arithmetic operations

// Add adds two Money values. Panics if currencies don't match.
func (m Money) Add(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

// Subtract subtracts another Money value. Panics if currencies don't match.
func (m Money) Subtract(other Money) Money {
	m.assertSameCurrency(other)
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}
}

// Multiply multiplies the Money by a quantity.
func (m Money) Multiply(qty int64) Money {
	return Money{Amount: m.Amount * qty, Currency: m.Currency}
}

// Negate returns the negative of the Money value.
func (m Money) Negate() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency}
}

// Abs returns the absolute value.
func (m Money) Abs() Money {
	if m.Amount < 0 {
		return Money{Amount: -m.Amount, Currency: m.Currency}
	}
	return m
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Amount < 0 }

// Equal returns true if both Money values are equal (same amount and currency).
func (m Money) Equal(other Money) bool {
	return m.Amount == other.Amount && m.Currency == other.Currency
}

// LessThan returns true if this Money is less than other. Panics if currencies don't match.
func (m Money) LessThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount < other.Amount
}

// GreaterThan returns true if this Money is greater than other. Panics if currencies don't match.
func (m Money) GreaterThan(other Money) bool {
	m.assertSameCurrency(other)
	return m.Amount > other.Amount
}

// Max returns the larger of two Money values. Panics if currencies don't match.
func (m Money) Max(other Money) Money {
	m.assertSameCurrency(other)
	if m.Amount > other.Amount {
		return m
	}
	return other
}

// Formatting methods

// FormatMajor returns the major unit string without currency symbol.
// For currencies with 2 decimal places: "49.00" for USD(4900).
// For currencies with 0 decimal places (SYP): "1500" for SYP(1500).
func (m Money) FormatMajor() string {
	decimals := currencyDecimals(m.Currency)
	if decimals == 0 {
		return fmt.Sprintf("%d", m.Amount)
	}

	divisor := int64(1)
	for i := 0; i < decimals; i++ {
		divisor *= 10
	}

	// Handle sign separately
	isNegative := m.Amount < 0
	absAmount := m.Amount
	if isNegative {
		absAmount = -absAmount
	}

	major := absAmount / divisor
	minor := absAmount % divisor

	format := fmt.Sprintf("%%d.%%0%dd", decimals)
	result := fmt.Sprintf(format, major, minor)

	if isNegative {
		return "-" + result
	}
	return result
}

// FormatGrouped returns the major unit string with thousands separators,
// as shown to end users in notification text: "1,500" for SYP(1500),
// "1,500.00" for USD(150000).
func (m Money) FormatGrouped() string {
	plain := m.FormatMajor()

	sign := ""
	if strings.HasPrefix(plain, "-") {
		sign = "-"
		plain = plain[1:]
	}

	whole, frac, hasFrac := strings.Cut(plain, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i := 0; i < len(whole); i++ {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteByte(whole[i])
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// String returns a human-readable string with currency symbol.
// Examples: "ل.س 1,500", "$49.00"
func (m Money) String() string {
	symbol := currencySymbol(m.Currency)
	return symbol + m.FormatGrouped()
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Display  string `json:"display"`
	}{
		Amount:   m.Amount,
		Currency: m.Currency,
		Display:  m.String(),
	})
}

// Helper functions

// assertSameCurrency panics if currencies don't match.
func (m Money) assertSameCurrency(other Money) {
	if m.Currency != other.Currency {
		panic(fmt.Sprintf("money: currency mismatch: %s != %s", m.Currency, other.Currency))
	}
}

// currencySymbol returns the symbol for a currency code.
func currencySymbol(currency string) string {
	symbols := map[string]string{
		"syp": "ل.س ",
		"usd": "$",
		"eur": "€",
		"gbp": "£",
		"jpy": "¥",
		"try": "₺",
		"aed": "د.إ ",
		"sar": "ر.س ",
	}
	if sym, ok := symbols[strings.ToLower(currency)]; ok {
		return sym
	}
	return strings.ToUpper(currency) + " "
}

// currencyDecimals returns the number of decimal places for a currency.
func currencyDecimals(currency string) int {
	// Currencies with 0 decimal places
	zeroDecimal := map[string]bool{
		"syp": true, // Syrian Pound
		"jpy": true, // Japanese Yen
		"krw": true, // Korean Won
		"iqd": true, // Iraqi Dinar (treated as whole units here)
		"lbp": true, // Lebanese Pound
	}
	if zeroDecimal[strings.ToLower(currency)] {
		return 0
	}
	// Most currencies have 2 decimal places
	return 2
}
