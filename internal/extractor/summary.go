package extractor

import (
	"regexp"
	"strings"

	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/textutils"
)

const datePattern = `(\d{1,4}[./-]\d{1,2}[./-]\d{1,4}|\d{1,2}[ -][A-Za-z]{3,9}\.?[ -]\d{2,4}|[A-Za-z]{3,9}\.? \d{1,2},? \d{4})`

const amountPattern = `(-?\(?\d(?:[\d.,']*\d)?\)?(?:\s*(?:CR|DR)\b)?-?)`

// Summary patterns used when a template does not declare its own.
var defaultSummary = map[string]*regexp.Regexp{
	models.SummaryOpening: regexp.MustCompile(`(?im)\b(?:opening|start(?:ing)?|previous)\s+balance\b[^\d\n(-]*` + amountPattern),
	models.SummaryClosing: regexp.MustCompile(`(?im)\b(?:closing|end(?:ing)?|new)\s+balance\b[^\d\n(-]*` + amountPattern),
	models.SummaryPeriod: regexp.MustCompile(`(?i)(?:period|from)\s*:?\s*(?:from\s*:?\s*)?` + datePattern +
		`\s*(?:to|-|until|through)\s*:?\s*` + datePattern),
	models.SummaryAccountNumber: regexp.MustCompile(`(?m)\b(?i:iban|account\s*(?:number|no\.?|#)?)\s*:?\s*([A-Z]{2}\d{2}(?:[A-Z0-9]| [A-Z0-9]){10,30}|\d[\d -]{4,}\d)`),
	models.SummaryAccountHolder: regexp.MustCompile(`(?im)\b(?:account\s+holder|account\s+name|customer\s+name)\s*:\s*(.+?)\s*$`),
}

var bankLineRe = regexp.MustCompile(`(?m)^Bank:\s*(.+?)\s*$`)

// ExtractSummary applies the template summary patterns, or the defaults, to
// the text of the whole document. tmpl may be nil.
func (e *Extractor) ExtractSummary(doc *models.Document, tmpl *models.Template) models.StatementSummary {
	if doc == nil {
		return models.StatementSummary{}
	}
	text := doc.Text(0)
	pattern := func(key string) *regexp.Regexp {
		if tmpl != nil {
			if re := tmpl.SummaryPattern(key); re != nil {
				return re
			}
		}
		return defaultSummary[key]
	}

	var s models.StatementSummary
	s.OpeningBalance = textutils.FirstSubmatch(pattern(models.SummaryOpening), text)
	s.ClosingBalance = lastSubmatch(pattern(models.SummaryClosing), text)
	if m := pattern(models.SummaryPeriod).FindStringSubmatch(text); len(m) >= 3 {
		s.PeriodFrom = strings.TrimSpace(m[1])
		s.PeriodTo = strings.TrimSpace(m[2])
	}
	s.AccountNumber = textutils.FirstSubmatch(pattern(models.SummaryAccountNumber), text)
	s.AccountHolder = textutils.FirstSubmatch(pattern(models.SummaryAccountHolder), text)
	return s
}

// BankName returns the bank named on a "Bank:" summary line, if any.
func BankName(doc *models.Document) string {
	if doc == nil {
		return ""
	}
	return textutils.FirstSubmatch(bankLineRe, doc.Text(1))
}

// lastSubmatch returns the first group of the last match of re in text.
func lastSubmatch(re *regexp.Regexp, text string) string {
	all := re.FindAllStringSubmatch(text, -1)
	if len(all) == 0 || len(all[len(all)-1]) < 2 {
		return ""
	}
	return strings.TrimSpace(all[len(all)-1][1])
}
