package currencyutils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name      string
		amountStr string
		expected  string
		hasError  bool
	}{
		{"Simple decimal", "123.45", "123.45", false},
		{"Negative decimal", "-123.45", "-123.45", false},
		{"Integer", "100", "100", false},
		{"Comma decimal separator", "123,45", "123.45", false},
		{"Comma thousand separator", "1,234.56", "1234.56", false},
		{"Comma thousands only", "1,234,567", "1234567", false},
		{"Apostrophe thousand separator", "1'234.56", "1234.56", false},
		{"European format", "1.234,56", "1234.56", false},
		{"Currency symbol (EUR)", "€123.45", "123.45", false},
		{"Currency symbol (GBP)", "£1,500.00", "1500", false},
		{"Currency code", "CHF 123.45", "123.45", false},
		{"Rupee prefix", "Rs. 2,500.00", "2500", false},
		{"Parentheses", "(50.00)", "-50", false},
		{"Symbol inside parentheses", "(£50.00)", "-50", false},
		{"Symbol before sign", "$-12.00", "-12", false},
		{"Trailing minus", "75.10-", "-75.1", false},
		{"Debit suffix", "75.10 DR", "-75.1", false},
		{"Debit suffix glued", "75.10Dr", "-75.1", false},
		{"Credit suffix", "75.10 CR", "75.1", false},
		{"With spaces", "  123.45  ", "123.45", false},
		{"Empty string", "", "", true},
		{"Malformed decimal", "123.45.67", "", true},
		{"Non-numeric", "abc", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseAmount(tc.amountStr)
			if tc.hasError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, result.Equal(decimal.RequireFromString(tc.expected)),
				"expected %s, got %s", tc.expected, result)
		})
	}
}

func TestParseAmountWithFormat(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		format   AmountFormat
		expected string
	}{
		{"european locale", "1.234,56", AmountFormat{DecimalSeparator: ",", ThousandsSeparator: "."}, "1234.56"},
		{"european small", "12,5", AmountFormat{DecimalSeparator: ",", ThousandsSeparator: "."}, "12.5"},
		{"declared comma thousands", "1,234", AmountFormat{DecimalSeparator: ".", ThousandsSeparator: ","}, "1234"},
		{"swiss apostrophe", "1'234.50", AmountFormat{DecimalSeparator: ".", ThousandsSeparator: "'"}, "1234.5"},
		{"space thousands", "1 234,00", AmountFormat{DecimalSeparator: ",", ThousandsSeparator: " "}, "1234"},
		{"template symbol", "kr 99.00", AmountFormat{DecimalSeparator: ".", Symbol: "kr"}, "99"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseAmountWithFormat(tc.input, tc.format)
			require.NoError(t, err)
			assert.Equal(t, decimal.RequireFromString(tc.expected).String(), result.String())
		})
	}
}

func TestSplitSign(t *testing.T) {
	tests := []struct {
		input string
		body  string
		marks SignMarks
	}{
		{"(1,234.56)", "1,234.56", SignMarks{Parentheses: true}},
		{"12.00-", "12.00", SignMarks{Trailing: true}},
		{"-12.00", "12.00", SignMarks{Leading: true}},
		{"+12.00", "12.00", SignMarks{}},
		{"12.00 Cr", "12.00", SignMarks{Credit: true}},
		{"12.00 DR.", "12.00", SignMarks{Debit: true}},
		{"12.00", "12.00", SignMarks{}},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			body, marks := SplitSign(tc.input)
			assert.Equal(t, tc.body, body)
			assert.Equal(t, tc.marks, marks)
		})
	}
}

func TestLooksLikeAmount(t *testing.T) {
	for _, s := range []string{"1,234.56", "(50.00)", "£12.00", "75.10 DR", "-3", "1.234,56"} {
		assert.True(t, LooksLikeAmount(s), s)
	}
	for _, s := range []string{"", "TESCO STORES", "12/05/2024", "Ref 123 abc"} {
		assert.False(t, LooksLikeAmount(s), s)
	}
}

func TestDetectCurrency(t *testing.T) {
	assert.Equal(t, "GBP", DetectCurrency("£1,200.00"))
	assert.Equal(t, "INR", DetectCurrency("Rs. 500"))
	assert.Equal(t, "USD", DetectCurrency("US$ 12"))
	assert.Equal(t, "EUR", DetectCurrency("12,00 €"))
	assert.Equal(t, "", DetectCurrency("1200"))

	assert.Equal(t, "GBP", DominantCurrency([]string{"£1", "$2", "£3", "no symbol"}))
	assert.Equal(t, "", DominantCurrency([]string{"1", "2"}))
}
