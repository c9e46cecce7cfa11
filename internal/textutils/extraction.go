// Package textutils provides text extraction and manipulation utilities.
package textutils

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// Span is a run of text within a line, with its rune offsets.
type Span struct {
	Text  string
	Start int
	End   int
}

// SplitOnGaps splits a line into spans separated by at least minGap spaces.
// Single spaces stay inside a span.
func SplitOnGaps(line string, minGap int) []Span {
	if minGap < 1 {
		minGap = 2
	}
	runes := []rune(strings.ReplaceAll(line, "\t", "    "))
	var spans []Span
	start, spaces := -1, 0
	flush := func(end int) {
		if start >= 0 {
			spans = append(spans, Span{Text: string(runes[start:end]), Start: start, End: end})
		}
		start = -1
	}
	for i, r := range runes {
		if unicode.IsSpace(r) {
			spaces++
			if spaces >= minGap && start >= 0 {
				flush(i - spaces + 1)
			}
			continue
		}
		if start < 0 {
			start = i
		}
		spaces = 0
	}
	if start >= 0 {
		end := len(runes)
		for end > start && unicode.IsSpace(runes[end-1]) {
			end--
		}
		flush(end)
	}
	return spans
}

var uniEscapeRe = regexp.MustCompile(`/uni([0-9A-Fa-f]{4})`)

// DecodeUniEscapes replaces "/uniXXXX" glyph names left by some PDF
// producers with the rune they name.
func DecodeUniEscapes(s string) string {
	if !strings.Contains(s, "/uni") {
		return s
	}
	return uniEscapeRe.ReplaceAllStringFunc(s, func(m string) string {
		code, err := strconv.ParseUint(m[4:], 16, 32)
		if err != nil {
			return m
		}
		return string(rune(code))
	})
}

// NormalizeSpace trims s and collapses whitespace runs into single spaces.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FoldKey lower-cases s and keeps letters and digits only, so that
// "Withdrawal Amt." and "withdrawal amt" compare equal.
func FoldKey(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Similarity returns a ratio in [0, 1] from the Levenshtein distance of the
// folded strings: 1 - distance / (len(a) + len(b)).
func Similarity(a, b string) float64 {
	fa, fb := []rune(FoldKey(a)), []rune(FoldKey(b))
	total := len(fa) + len(fb)
	if total == 0 {
		return 1
	}
	distance := levenshtein.DistanceForStrings(fa, fb, levenshtein.DefaultOptions)
	return 1 - float64(distance)/float64(total)
}

// FuzzyEqual reports whether Similarity(a, b) reaches threshold.
func FuzzyEqual(a, b string, threshold float64) bool {
	if FoldKey(a) == "" || FoldKey(b) == "" {
		return false
	}
	return Similarity(a, b) >= threshold
}

// MatchFraction is the fraction of headers that fuzzy-match one of cells.
func MatchFraction(cells, headers []string, threshold float64) float64 {
	if len(headers) == 0 {
		return 0
	}
	matched := 0
	for _, h := range headers {
		for _, c := range cells {
			if FuzzyEqual(c, h, threshold) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(headers))
}

// ContainsFold reports whether substr occurs in s, ignoring case and
// collapsing whitespace.
func ContainsFold(s, substr string) bool {
	substr = NormalizeSpace(substr)
	if substr == "" {
		return false
	}
	return strings.Contains(strings.ToLower(NormalizeSpace(s)), strings.ToLower(substr))
}

// FirstSubmatch returns the first capture group of re in text, trimmed.
func FirstSubmatch(re *regexp.Regexp, text string) string {
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
