// Package dateutils provides locale-aware date parsing used throughout the application.
package dateutils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Common date layout constants used throughout the application
const (
	DateLayoutISO      = "2006-01-02"
	DateLayoutFull     = "2006-01-02 15:04:05"
	DateLayoutISOTime  = "2006-01-02T15:04:05"
	DateLayoutEuropean = "02.01.2006"
	DateLayoutUS       = "01/02/2006"
	DateLayoutUK       = "02/01/2006"
)

// unambiguous layouts are tried by both locales
var unambiguous = []string{
	DateLayoutISO,
	DateLayoutISOTime,
	DateLayoutFull,
	"2006/01/02",
	"2 Jan 2006",
	"2 Jan 06",
	"2-Jan-2006",
	"2-Jan-06",
	"2 January 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"2Jan2006",
	"2Jan06",
}

// DayFirstFormats is the ordered fallback list for day-first locales.
var DayFirstFormats = append([]string{
	"2/1/2006",
	"2/1/06",
	"2.1.2006",
	"2.1.06",
	"2-1-2006",
	"2-1-06",
}, unambiguous...)

// MonthFirstFormats is the ordered fallback list for month-first locales.
var MonthFirstFormats = append([]string{
	"1/2/2006",
	"1/2/06",
	"1-2-2006",
	"1-2-06",
	"1.2.2006",
	"1.2.06",
}, unambiguous...)

// FallbackFormats returns the fallback list for a locale. The lists are never mixed.
func FallbackFormats(dayFirst bool) []string {
	if dayFirst {
		return DayFirstFormats
	}
	return MonthFirstFormats
}

var spaceRe = regexp.MustCompile(`\s+`)

// CleanDateString trims the string and collapses inner whitespace.
func CleanDateString(dateStr string) string {
	return spaceRe.ReplaceAllString(strings.TrimSpace(dateStr), " ")
}

// ParseDate parses s with layout first (when set), then the locale fallbacks.
// The result is a calendar date in UTC.
func ParseDate(s, layout string, dayFirst bool) (time.Time, error) {
	clean := CleanDateString(s)
	if clean == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if layout != "" {
		if t, err := time.Parse(layout, clean); err == nil {
			return DateOnly(t), nil
		}
	}
	for _, format := range FallbackFormats(dayFirst) {
		if t, err := time.Parse(format, clean); err == nil {
			return DateOnly(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

// IsDate reports whether s parses as a date under the given conventions.
func IsDate(s, layout string, dayFirst bool) bool {
	if !strings.ContainsAny(s, "0123456789") || len(s) > 40 {
		return false
	}
	_, err := ParseDate(s, layout, dayFirst)
	return err == nil
}

var numericDateRe = regexp.MustCompile(`^(\d{1,4})[./-](\d{1,2})[./-](\d{1,4})$`)

// DetectDayFirst inspects numeric dates and resolves the day/month order once
// for a whole document. It reports day-first when a first component exceeds
// 12, month-first when a second component does, and day-first otherwise.
// decided is false when no sample settled the question.
func DetectDayFirst(samples []string) (dayFirst bool, decided bool) {
	for _, s := range samples {
		m := numericDateRe.FindStringSubmatch(CleanDateString(s))
		if m == nil || len(m[1]) == 4 {
			continue
		}
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		if a > 12 && b <= 12 {
			return true, true
		}
		if b > 12 && a <= 12 {
			return false, true
		}
	}
	return true, false
}

var patternTokens = []struct {
	token  string
	strict string
	loose  string
}{
	{"YYYY", "2006", "2006"},
	{"MMMM", "January", "January"},
	{"MMM", "Jan", "Jan"},
	{"YY", "06", "06"},
	{"MM", "01", "1"},
	{"DD", "02", "2"},
	{"M", "01", "1"},
	{"D", "02", "2"},
}

func layoutFromPattern(pattern string, loose bool) (string, error) {
	if strings.TrimSpace(pattern) == "" {
		return "", fmt.Errorf("empty date pattern")
	}
	var sb strings.Builder
	seen := false
	for i := 0; i < len(pattern); {
		matched := false
		for _, tok := range patternTokens {
			if strings.HasPrefix(pattern[i:], tok.token) {
				if loose {
					sb.WriteString(tok.loose)
				} else {
					sb.WriteString(tok.strict)
				}
				i += len(tok.token)
				matched, seen = true, true
				break
			}
		}
		if !matched {
			sb.WriteByte(pattern[i])
			i++
		}
	}
	if !seen {
		return "", fmt.Errorf("date pattern %q has no date tokens", pattern)
	}
	return sb.String(), nil
}

// LayoutFromPattern converts a token pattern such as "DD/MM/YYYY" to a
// zero-padded Go layout, for formatting.
func LayoutFromPattern(pattern string) (string, error) {
	return layoutFromPattern(pattern, false)
}

// ParseLayoutFromPattern converts a token pattern to a Go layout that also
// accepts unpadded days and months, for parsing.
func ParseLayoutFromPattern(pattern string) (string, error) {
	return layoutFromPattern(pattern, true)
}

// DateOnly strips the time of day and location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate formats a date according to layout, DateLayoutISO when empty.
func FormatDate(date time.Time, layout string) string {
	if date.IsZero() {
		return ""
	}
	if layout == "" {
		layout = DateLayoutISO
	}
	return date.Format(layout)
}

// ToISODate formats a time.Time value as an ISO date (YYYY-MM-DD)
func ToISODate(date time.Time) string {
	return FormatDate(date, DateLayoutISO)
}
