package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in a single currency. Amounts are arbitrary-precision
// decimals; call Quantize before persisting or returning a value to a caller.
type Money struct {
	Amount   decimal.Decimal
	Currency string
}

// New builds a Money value from a decimal amount.
func New(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// MustParse builds a Money value from a decimal string. It panics on a
// malformed amount and is intended for literals in tests and fixtures.
func MustParse(amount, currency string) Money {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		panic(fmt.Sprintf("money: parse %q: %v", amount, err))
	}
	return Money{Amount: d, Currency: currency}
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// Add returns m + other. Mixing currencies is a programming error and panics.
func (m Money) Add(other Money) Money {
	assertSameCurrency(m.Currency, other.Currency)
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}
}

// Sub returns m - other. Mixing currencies is a programming error and panics.
func (m Money) Sub(other Money) Money {
	assertSameCurrency(m.Currency, other.Currency)
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}
}

// MulInt returns m multiplied by a whole quantity.
func (m Money) MulInt(q int) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(int64(q))), Currency: m.Currency}
}

// DivInt returns m divided by a whole quantity, e.g. a unit price derived
// from a line total. The result keeps full precision; quantize separately.
func (m Money) DivInt(q int) Money {
	return Money{Amount: m.Amount.Div(decimal.NewFromInt(int64(q))), Currency: m.Currency}
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// Equal reports whether both currency and amount match.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

// Quantize rounds the amount to the currency's minor-unit precision,
// half away from zero.
func (m Money) Quantize() Money {
	return Money{Amount: m.Amount.Round(CurrencyExponent(m.Currency)), Currency: m.Currency}
}

// String renders the amount with the currency's minor-unit digits, e.g.
// "12.50 USD" or "1200 JPY".
func (m Money) String() string {
	return m.Amount.StringFixed(CurrencyExponent(m.Currency)) + " " + m.Currency
}

func assertSameCurrency(a, b string) {
	if a != b {
		panic(fmt.Sprintf("money: currency mismatch: %s vs %s", a, b))
	}
}
