// Package currencyutils provides common currency and decimal operations used throughout the application.
package currencyutils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// SymbolCodes maps printed currency symbols to ISO codes. Longer symbols are
// matched first by DetectCurrency.
var SymbolCodes = map[string]string{
	"US$": "USD",
	"$":   "USD",
	"€":   "EUR",
	"£":   "GBP",
	"¥":   "JPY",
	"₹":   "INR",
	"Rs.": "INR",
	"INR": "INR",
	"CHF": "CHF",
	"EUR": "EUR",
	"USD": "USD",
	"GBP": "GBP",
}

var symbolOrder = []string{"US$", "Rs.", "INR", "CHF", "EUR", "USD", "GBP", "€", "£", "¥", "₹", "$"}

var symbolRe = regexp.MustCompile(`(?i)(US\$|Rs\.?|INR|CHF|EUR|USD|GBP|[€$£¥₣₤₧₹₺₽₩฿₫₲₴₸₼₪])`)

// AmountFormat declares the separators of a locale. Empty separators fall back
// to the heuristic of StandardizeAmount.
type AmountFormat struct {
	DecimalSeparator   string
	ThousandsSeparator string
	Symbol             string
}

// SignMarks describes the sign notation found on an amount string.
type SignMarks struct {
	Leading     bool // -12.00
	Trailing    bool // 12.00-
	Parentheses bool // (12.00)
	Credit      bool // 12.00 CR
	Debit       bool // 12.00 DR
}

// Negative reports whether any mark denotes a negative value.
func (m SignMarks) Negative() bool {
	return m.Leading || m.Trailing || m.Parentheses || m.Debit
}

var suffixRe = regexp.MustCompile(`(?i)[\d)\s](CR|DR)\.?\s*$`)

// SplitSign removes sign notation from s and reports which marks were present.
func SplitSign(s string) (string, SignMarks) {
	var marks SignMarks
	s = strings.TrimSpace(s)

	if loc := suffixRe.FindStringSubmatchIndex(s); loc != nil {
		if strings.EqualFold(s[loc[2]:loc[3]], "CR") {
			marks.Credit = true
		} else {
			marks.Debit = true
		}
		s = strings.TrimSpace(s[:loc[2]])
	}
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		marks.Parentheses = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasSuffix(s, "-") {
		marks.Trailing = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "-"))
	}
	if strings.HasPrefix(s, "+") {
		s = strings.TrimSpace(s[1:])
	}
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "−") {
		marks.Leading = true
		s = strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(s, "-"), "−"))
	}
	// symbol before the sign, as in "$-12.00" or "£(12.00)"
	if stripped := StripSymbols(s, ""); stripped != s {
		inner, more := SplitSign(stripped)
		marks.Leading = marks.Leading || more.Leading
		marks.Trailing = marks.Trailing || more.Trailing
		marks.Parentheses = marks.Parentheses || more.Parentheses
		marks.Credit = marks.Credit || more.Credit
		marks.Debit = marks.Debit || more.Debit
		s = inner
	}
	return s, marks
}

// StripSymbols removes currency symbols and codes, plus extra, from s.
func StripSymbols(s, extra string) string {
	if extra != "" {
		s = strings.ReplaceAll(s, extra, "")
	}
	return strings.TrimSpace(symbolRe.ReplaceAllString(s, ""))
}

// ParseAmount parses a string representation of an amount into a decimal value
// It handles various formats like "1,234.56", "1.234,56", "1234.56", "1234,56"
func ParseAmount(amountStr string) (decimal.Decimal, error) {
	return ParseAmountWithFormat(amountStr, AmountFormat{})
}

// ParseAmountWithFormat parses an amount using the declared separators. Sign
// notation (leading or trailing minus, parentheses, DR) makes the result negative.
func ParseAmountWithFormat(amountStr string, format AmountFormat) (decimal.Decimal, error) {
	body, marks := SplitSign(StripSymbols(amountStr, format.Symbol))
	if body == "" {
		return decimal.Zero, fmt.Errorf("failed to parse amount '%s': empty", amountStr)
	}

	var standardized string
	if format.DecimalSeparator != "" {
		standardized = applySeparators(body, format)
	} else {
		standardized = StandardizeAmount(body)
	}

	amount, err := decimal.NewFromString(standardized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	if marks.Negative() {
		amount = amount.Abs().Neg()
	}
	return amount, nil
}

func applySeparators(s string, format AmountFormat) string {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, "'", "")
	if format.ThousandsSeparator != "" {
		s = strings.ReplaceAll(s, format.ThousandsSeparator, "")
	}
	if format.DecimalSeparator != "." {
		s = strings.ReplaceAll(s, format.DecimalSeparator, ".")
	}
	return s
}

// StandardizeAmount converts various currency string formats to a standard format that can be parsed by decimal.NewFromString
// Handles patterns like "CHF 1'234.56", "€1.234,56", "$1,234.56", "1 234,56", etc.
func StandardizeAmount(amountStr string) string {
	amountStr = StripSymbols(amountStr, "")
	amountStr = strings.Join(strings.Fields(amountStr), "")
	amountStr = strings.ReplaceAll(amountStr, "\u00a0", "")

	// Handle European format (1.234,56) -> (1234.56)
	if strings.Contains(amountStr, ",") && strings.Contains(amountStr, ".") {
		if strings.LastIndex(amountStr, ".") < strings.LastIndex(amountStr, ",") {
			amountStr = strings.ReplaceAll(amountStr, ".", "")
			amountStr = strings.ReplaceAll(amountStr, ",", ".")
		} else {
			amountStr = strings.ReplaceAll(amountStr, ",", "")
		}
	} else if strings.Contains(amountStr, ",") {
		// Comma as decimal separator (1234,56) or thousand separator (1,234)
		parts := strings.Split(amountStr, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			amountStr = strings.ReplaceAll(amountStr, ",", ".")
		} else {
			amountStr = strings.ReplaceAll(amountStr, ",", "")
		}
	}

	// Remove apostrophes used as thousand separators (1'234.56)
	amountStr = strings.ReplaceAll(amountStr, "'", "")

	return amountStr
}

var amountRe = regexp.MustCompile(`(?i)^[(\-−+]?\s*(?:[€$£¥₹]|US\$|Rs\.?|INR|CHF|EUR|USD|GBP)?\s*[(\-−]?\d[\d.,' \x{00a0}]*\)?\s*(?:-|CR|DR|Cr\.?|Dr\.?)?$`)

// LooksLikeAmount reports whether s is shaped like a monetary amount.
func LooksLikeAmount(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || !strings.ContainsAny(s, "0123456789") {
		return false
	}
	return amountRe.MatchString(s)
}

// DetectCurrency returns the ISO code of the first currency symbol found in s.
func DetectCurrency(s string) string {
	best, bestPos := "", -1
	for _, sym := range symbolOrder {
		if pos := strings.Index(s, sym); pos >= 0 && (bestPos < 0 || pos < bestPos) {
			best, bestPos = SymbolCodes[sym], pos
		}
	}
	return best
}

// DominantCurrency returns the most frequent currency across samples, or "".
// Ties go to the code seen first.
func DominantCurrency(samples []string) string {
	counts := make(map[string]int)
	var order []string
	for _, s := range samples {
		code := DetectCurrency(s)
		if code == "" {
			continue
		}
		if counts[code] == 0 {
			order = append(order, code)
		}
		counts[code]++
	}
	best := ""
	for _, code := range order {
		if counts[code] > counts[best] {
			best = code
		}
	}
	return best
}
