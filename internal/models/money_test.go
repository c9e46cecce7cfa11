package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMoneyFromString(t *testing.T) {
	tests := []struct {
		name           string
		amount         string
		expectedAmount string
		expectError    bool
	}{
		{name: "ValidAmount", amount: "100.50", expectedAmount: "100.50"},
		{name: "NegativeAmount", amount: "-0.1", expectedAmount: "-0.10"},
		{name: "InvalidAmount", amount: "1,234.56", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			money, err := NewMoneyFromString(tt.amount, "GBP")
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedAmount, money.StringFixed(2))
			assert.Equal(t, "GBP", money.Currency)
		})
	}
}

func TestMoney_Arithmetic(t *testing.T) {
	a := MustMoney("10.10", "EUR")
	b := MustMoney("0.20", "EUR")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "10.30 EUR", sum.String())

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.True(t, diff.Amount.Equal(decimal.RequireFromString("9.9")))

	// floating point would give 0.30000000000000004
	tiny, err := MustMoney("0.1", "").Add(MustMoney("0.2", ""))
	require.NoError(t, err)
	assert.Equal(t, "0.3", tiny.Amount.String())
}

func TestMoney_CurrencyRules(t *testing.T) {
	_, err := MustMoney("1", "EUR").Add(MustMoney("1", "USD"))
	assert.EqualError(t, err, "cannot add different currencies: EUR and USD")

	adopted, err := MustMoney("1", "").Add(MustMoney("2", "INR"))
	require.NoError(t, err)
	assert.Equal(t, "INR", adopted.Currency)

	_, err = MustMoney("1", "EUR").Compare(MustMoney("1", "CHF"))
	assert.Error(t, err)

	cmp, err := MustMoney("1", "EUR").Compare(MustMoney("2", "EUR"))
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)
}

func TestMoney_SignHelpers(t *testing.T) {
	m := MustMoney("-50.00", "USD")
	assert.True(t, m.IsNegative())
	assert.Equal(t, "50.00", m.Abs().StringFixed(2))
	assert.Equal(t, "50.00", m.Neg().StringFixed(2))
	assert.True(t, ZeroMoney("USD").IsZero())
	assert.True(t, m.Equal(MustMoney("-50", "USD")))
	assert.False(t, m.Equal(MustMoney("-50", "EUR")))
}

func TestMoney_WithinTolerance(t *testing.T) {
	tol := decimal.RequireFromString("0.01")
	tests := []struct {
		a, b string
		want bool
	}{
		{"100.00", "100.01", true},
		{"100.00", "99.99", true},
		{"100.00", "100.02", false},
		{"-5", "-5", true},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, MustMoney(tt.a, "").WithinTolerance(MustMoney(tt.b, "X"), tol))
		})
	}
}
