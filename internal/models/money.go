package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money represents a fixed-point monetary value with currency. Amounts are
// never held as float64.
type Money struct {
	Amount   decimal.Decimal `json:"amount" yaml:"amount"`
	Currency string          `json:"currency" yaml:"currency"`
}

// NewMoney creates a new Money instance with the given amount and currency
func NewMoney(amount decimal.Decimal, currency string) Money {
	return Money{
		Amount:   amount,
		Currency: currency,
	}
}

// NewMoneyFromString creates a new Money instance from a plain decimal string
func NewMoneyFromString(amount, currency string) (Money, error) {
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string '%s': %w", amount, err)
	}
	return Money{
		Amount:   dec,
		Currency: currency,
	}, nil
}

// MustMoney is NewMoneyFromString for literals known to be valid.
func MustMoney(amount, currency string) Money {
	m, err := NewMoneyFromString(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// ZeroMoney returns a Money instance with zero amount in the given currency
func ZeroMoney(currency string) Money {
	return Money{
		Amount:   decimal.Zero,
		Currency: currency,
	}
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

// IsNegative returns true if the amount is negative
func (m Money) IsNegative() bool {
	return m.Amount.IsNegative()
}

// Abs returns the absolute value of the money amount
func (m Money) Abs() Money {
	return Money{Amount: m.Amount.Abs(), Currency: m.Currency}
}

// Neg returns the negated money amount
func (m Money) Neg() Money {
	return Money{Amount: m.Amount.Neg(), Currency: m.Currency}
}

// Add adds another Money value to this one.
// An empty currency on either side adopts the other one; two different
// currencies are an error.
func (m Money) Add(other Money) (Money, error) {
	cur, err := m.unify(other, "add")
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: cur}, nil
}

// Sub subtracts another Money value from this one.
func (m Money) Sub(other Money) (Money, error) {
	cur, err := m.unify(other, "subtract")
	if err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: cur}, nil
}

func (m Money) unify(other Money, op string) (string, error) {
	switch {
	case m.Currency == other.Currency:
		return m.Currency, nil
	case m.Currency == "":
		return other.Currency, nil
	case other.Currency == "":
		return m.Currency, nil
	default:
		return "", fmt.Errorf("cannot %s different currencies: %s and %s", op, m.Currency, other.Currency)
	}
}

// String returns a string representation of the money value
func (m Money) String() string {
	if m.Currency == "" {
		return m.Amount.StringFixed(2)
	}
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}

// StringFixed returns the amount with fixed decimal places and no currency.
func (m Money) StringFixed(places int32) string {
	return m.Amount.StringFixed(places)
}

// Equal returns true if two Money values are equal (same amount and currency)
func (m Money) Equal(other Money) bool {
	return m.Amount.Equal(other.Amount) && m.Currency == other.Currency
}

// Compare compares two Money values
// Returns -1 if m < other, 0 if m == other, 1 if m > other
func (m Money) Compare(other Money) (int, error) {
	if _, err := m.unify(other, "compare"); err != nil {
		return 0, err
	}
	return m.Amount.Cmp(other.Amount), nil
}

// WithinTolerance reports whether |m - other| <= tol, ignoring currency.
func (m Money) WithinTolerance(other Money, tol decimal.Decimal) bool {
	return m.Amount.Sub(other.Amount).Abs().LessThanOrEqual(tol)
}
