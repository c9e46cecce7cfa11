package textutils_test

import (
	"regexp"
	"testing"

	"fjacquet/statement-ledger/internal/textutils"

	"github.com/stretchr/testify/assert"
)

func TestSplitOnGaps(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected []textutils.Span
	}{
		{
			name: "three columns",
			line: "01/05/2024  TESCO STORES   12.00",
			expected: []textutils.Span{
				{Text: "01/05/2024", Start: 0, End: 10},
				{Text: "TESCO STORES", Start: 12, End: 24},
				{Text: "12.00", Start: 27, End: 32},
			},
		},
		{
			name: "leading indent and trailing spaces",
			line: "    continued text   ",
			expected: []textutils.Span{
				{Text: "continued text", Start: 4, End: 18},
			},
		},
		{
			name:     "blank",
			line:     "   ",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, textutils.SplitOnGaps(tt.line, 2))
		})
	}
}

func TestDecodeUniEscapes(t *testing.T) {
	assert.Equal(t, "£12.00", textutils.DecodeUniEscapes("/uni00A312.00"))
	assert.Equal(t, "plain", textutils.DecodeUniEscapes("plain"))
	assert.Equal(t, "/uniZZZZ", textutils.DecodeUniEscapes("/uniZZZZ"))
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b  string
		match bool
	}{
		{"Withdrawal Amt.", "Withdrawal Amount", true},
		{"Money out", "MONEY OUT", true},
		{"Date", "Value Date", false},
		{"Debit", "Credit", false},
		{"Balance", "Balnce", true},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.match, textutils.FuzzyEqual(tt.a, tt.b, 0.8))
		})
	}

	assert.Equal(t, 1.0, textutils.Similarity("", ""))
	assert.False(t, textutils.FuzzyEqual("", "", 0.8))
}

func TestFoldKeyAndContains(t *testing.T) {
	assert.Equal(t, "withdrawalamt", textutils.FoldKey("Withdrawal  Amt."))
	assert.Equal(t, "a b", textutils.NormalizeSpace("  a \t b "))
	assert.True(t, textutils.ContainsFold("HDFC  BANK Ltd", "hdfc bank"))
	assert.False(t, textutils.ContainsFold("anything", "  "))
}

func TestFirstSubmatch(t *testing.T) {
	re := regexp.MustCompile(`Account No\s*:\s*(\S+)`)
	assert.Equal(t, "1234", textutils.FirstSubmatch(re, "Account No : 1234"))
	assert.Equal(t, "", textutils.FirstSubmatch(re, "nothing"))
	assert.Equal(t, "", textutils.FirstSubmatch(nil, "Account No : 1234"))
}

func TestMatchFraction(t *testing.T) {
	headers := []string{"Posting Date", "Description", "Amount", "Balance"}
	assert.Equal(t, 1.0, textutils.MatchFraction([]string{"Posting date", "Descripton", "AMOUNT", "Balance"}, headers, 0.8))
	assert.Equal(t, 0.5, textutils.MatchFraction([]string{"Posting Date", "Amount"}, headers, 0.8))
	assert.Equal(t, 0.0, textutils.MatchFraction(nil, headers, 0.8))
	assert.Equal(t, 0.0, textutils.MatchFraction([]string{"x"}, nil, 0.8))
}
