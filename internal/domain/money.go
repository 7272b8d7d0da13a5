/**
 * @description
 * Money is the exact fixed-point monetary value used throughout the ledger.
 * Amounts are decimals with at most 2 fractional digits, tagged with a supported
 * currency. All arithmetic requires identical currencies; mixing currencies is a
 * validation error, never a silent conversion.
 *
 * @dependencies
 * - github.com/shopspring/decimal: Exact decimal arithmetic for financial data.
 */

package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an immutable (amount, currency) value. The zero value is unusable;
// construct through NewMoney, NewMoneyFromString or ZeroMoney.
type Money struct {
	amount   decimal.Decimal
	currency Currency
}

// NewMoney builds a Money value, rejecting amounts with more than 2 fractional
// digits and unsupported currencies.
func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if _, ok := supportedCurrencies[currency]; !ok {
		return Money{}, detailf(ErrUnsupportedCurrency, "%q", string(currency))
	}
	if !amount.Equal(amount.Round(2)) {
		return Money{}, ErrTooManyFractionDigits
	}
	return Money{amount: amount, currency: currency}, nil
}

// NewMoneyFromString parses a decimal string such as "1050.00".
func NewMoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, NewValidationError("invalid amount %q: %v", amount, err)
	}
	return NewMoney(d, currency)
}

// MustMoney is NewMoneyFromString that panics on invalid input. For fixtures and
// wiring code with literal amounts only.
func MustMoney(amount string, currency Currency) Money {
	m, err := NewMoneyFromString(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// ZeroMoney returns 0.00 in the given currency.
func ZeroMoney(currency Currency) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

func (m Money) Amount() decimal.Decimal { return m.amount }
func (m Money) Currency() Currency     { return m.currency }

func (m Money) sameCurrency(o Money) error {
	if m.currency != o.currency {
		return detailf(ErrCurrencyMismatch, "%s vs %s", m.currency, o.currency)
	}
	return nil
}

// Add returns m + o. Fails with a currency-mismatch validation error when the
// currencies differ.
func (m Money) Add(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(o.amount), currency: m.currency}, nil
}

// Sub returns m - o.
func (m Money) Sub(o Money) (Money, error) {
	if err := m.sameCurrency(o); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Sub(o.amount), currency: m.currency}, nil
}

// MulScalar multiplies by a scalar quantity and quantizes the result to 2
// fractional digits (round half up).
func (m Money) MulScalar(q decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(q).Round(2), currency: m.currency}
}

// Cmp returns -1, 0 or +1 comparing m against o.
func (m Money) Cmp(o Money) (int, error) {
	if err := m.sameCurrency(o); err != nil {
		return 0, err
	}
	return m.amount.Cmp(o.amount), nil
}

// LessThan reports m < o.
func (m Money) LessThan(o Money) (bool, error) {
	c, err := m.Cmp(o)
	return c < 0, err
}

// LessThanOrEqual reports m <= o.
func (m Money) LessThanOrEqual(o Money) (bool, error) {
	c, err := m.Cmp(o)
	return c <= 0, err
}

// Equal reports value equality on (amount, currency). 1.5 and 1.50 are equal.
func (m Money) Equal(o Money) bool {
	return m.currency == o.currency && m.amount.Equal(o.amount)
}

func (m Money) IsZero() bool     { return m.amount.IsZero() }
func (m Money) IsNegative() bool { return m.amount.IsNegative() }
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

// Neg returns the negated amount in the same currency.
func (m Money) Neg() Money { return Money{amount: m.amount.Neg(), currency: m.currency} }

// Abs returns the absolute amount in the same currency.
func (m Money) Abs() Money { return Money{amount: m.amount.Abs(), currency: m.currency} }

// String renders the canonical 2-digit form, e.g. "1050.00 EUR".
func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.amount.StringFixed(2), m.currency)
}

// Key returns a stable map key for the (amount, currency) pair.
func (m Money) Key() string {
	return string(m.currency) + ":" + m.amount.StringFixed(2)
}
