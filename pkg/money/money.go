// Package money provides currency-safe arithmetic for BoQ quantities, unit
// rates, and line totals using the Fowler Money pattern: amounts are held as
// integer minor units (cents) and every conversion from a decimal goes
// through shopspring/decimal to avoid float rounding drift.
package money

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a sheet carries no currency hint.
const DefaultCurrency = "USD"

// Money wraps go-money for safe arithmetic and shopspring/decimal for the
// precision the validator's mathematical checks need (unit_price * quantity
// == total_price within tolerance).
type Money struct {
	m *money.Money
}

// New creates a Money value from minor units (cents) and an ISO-4217 code.
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: money.New(amountCents, currencyCode)}
}

// NewFromDecimal creates Money from a decimal.Decimal, the safest path from
// a parsed cell value.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(DefaultCurrency)
	}
	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()
	return New(cents, currencyCode)
}

// NewFromString parses a cell's raw text into Money. It strips the
// recognized currency symbols ($, €, £, ¥, ₹) and, per europeanFormat,
// resolves "1.234,56" or "1,234.56" into a decimal before converting.
func NewFromString(amount, currencyCode string, europeanFormat bool) (*Money, error) {
	amount = strings.TrimSpace(amount)
	amount = strings.ReplaceAll(amount, " ", "")
	for _, sym := range []string{"$", "€", "£", "¥", "₹"} {
		amount = strings.ReplaceAll(amount, sym, "")
	}

	if europeanFormat {
		amount = strings.ReplaceAll(amount, ".", "")
		amount = strings.ReplaceAll(amount, ",", ".")
	} else {
		amount = strings.ReplaceAll(amount, ",", "")
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return NewFromDecimal(d, currencyCode), nil
}

// Zero returns a zero Money value for the given currency.
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// Amount returns the value in minor units.
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 code.
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// CurrencySymbol returns the currency's display grapheme (e.g. "$", "€").
func (m *Money) CurrencySymbol() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Grapheme
}

func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

func (m *Money) IsPositive() bool {
	return m != nil && m.m != nil && m.m.IsPositive()
}

func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

func (m *Money) Abs() *Money {
	if m == nil || m.m == nil {
		return Zero(DefaultCurrency)
	}
	return &Money{m: m.m.Absolute()}
}

func (m *Money) Negate() *Money {
	if m == nil || m.m == nil {
		return Zero(DefaultCurrency)
	}
	return &Money{m: m.m.Negative()}
}

// Add adds two Money values. Returns an error if currencies don't match.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		return other, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}
	result, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

func (m *Money) MustAdd(other *Money) *Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Subtract subtracts other from m. Used by the comparator to compute
// delta/unit_price_delta between a master and offer row.
func (m *Money) Subtract(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		if other == nil || other.m == nil {
			return Zero(DefaultCurrency), nil
		}
		return other.Negate(), nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}
	result, err := m.m.Subtract(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

func (m *Money) MustSubtract(other *Money) *Money {
	result, err := m.Subtract(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Multiply multiplies by an integer factor.
func (m *Money) Multiply(factor int64) *Money {
	if m == nil || m.m == nil {
		return Zero(DefaultCurrency)
	}
	return &Money{m: m.m.Multiply(factor)}
}

// MultiplyDecimal multiplies by a decimal quantity, the shape the
// validator needs for unit_price * quantity.
func (m *Money) MultiplyDecimal(factor decimal.Decimal) *Money {
	if m == nil || m.m == nil {
		return Zero(DefaultCurrency)
	}
	return NewFromDecimal(m.ToDecimal().Mul(factor), m.Currency())
}

func (m *Money) Equals(other *Money) bool {
	if m == nil || m.m == nil {
		return other == nil || other.m == nil || other.IsZero()
	}
	if other == nil || other.m == nil {
		return m.IsZero()
	}
	eq, _ := m.m.Equals(other.m)
	return eq
}

func (m *Money) LessThan(other *Money) bool {
	if m == nil || m.m == nil || other == nil || other.m == nil {
		return false
	}
	lt, _ := m.m.LessThan(other.m)
	return lt
}

func (m *Money) GreaterThan(other *Money) bool {
	if m == nil || m.m == nil || other == nil || other.m == nil {
		return false
	}
	gt, _ := m.m.GreaterThan(other.m)
	return gt
}

// Compare returns -1, 0, or 1 per m versus other.
func (m *Money) Compare(other *Money) int {
	if m == nil || m.m == nil {
		if other == nil || other.m == nil || other.IsZero() {
			return 0
		}
		if other.IsPositive() {
			return -1
		}
		return 1
	}
	cmp, _ := m.m.Compare(other.m)
	return cmp
}

// WithinTolerance reports whether m and other agree within relative pct or
// absolute abs tolerance, whichever is looser — the rule the validator's
// mathematical-consistency check applies to unit_price * quantity vs.
// total_price.
func (m *Money) WithinTolerance(other *Money, pct, abs float64) bool {
	if m == nil || other == nil {
		return false
	}
	diff := m.ToDecimal().Sub(other.ToDecimal()).Abs()
	if diff.LessThanOrEqual(decimal.NewFromFloat(abs)) {
		return true
	}
	base := other.ToDecimal().Abs()
	if base.IsZero() {
		return diff.IsZero()
	}
	relDiff := diff.Div(base)
	return relDiff.LessThanOrEqual(decimal.NewFromFloat(pct))
}

// Display returns a formatted string, e.g. "$1,234.56".
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.m.Display()
}

// String returns the amount as a bare decimal string, e.g. "1234.56".
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.ToDecimal().String()
}

// ToDecimal converts to decimal.Decimal for precise calculations.
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	currency := m.m.Currency()
	d := decimal.NewFromInt(m.m.Amount())
	divisor := decimal.New(1, int32(currency.Fraction))
	return d.Div(divisor)
}

func (m *Money) ToFloat64() float64 {
	return m.ToDecimal().InexactFloat64()
}

// PercentageOf returns what percentage m is of total, used by the
// comparator's delta_pct.
func (m *Money) PercentageOf(total *Money) decimal.Decimal {
	if m == nil || m.m == nil || total == nil || total.m == nil || total.IsZero() {
		return decimal.Zero
	}
	return m.ToDecimal().Div(total.ToDecimal()).Mul(decimal.NewFromInt(100))
}

func (m *Money) MarshalJSON() ([]byte, error) {
	if m == nil || m.m == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(map[string]any{
		"amount":   m.Amount(),
		"currency": m.Currency(),
		"display":  m.Display(),
	})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var v struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	m.m = money.New(v.Amount, v.Currency)
	return nil
}

// SameCurrency reports whether m and other share a currency code.
func (m *Money) SameCurrency(other *Money) bool {
	if m == nil || m.m == nil || other == nil || other.m == nil {
		return false
	}
	return m.m.SameCurrency(other.m)
}
