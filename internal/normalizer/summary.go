package normalizer

import (
	"strings"

	"fjacquet/statement-ledger/internal/models"
)

// NormalizeSummary parses the raw summary strings. Values that do not parse
// are left unset; the assembler derives them from the transactions instead.
func (n *Normalizer) NormalizeSummary(summary models.StatementSummary, tmpl *models.Template) models.StatementInfo {
	info := models.StatementInfo{
		AccountNumber: strings.TrimSpace(summary.AccountNumber),
		AccountHolder: strings.TrimSpace(summary.AccountHolder),
	}
	if tmpl == nil {
		tmpl = &models.Template{}
	}
	info.Bank = tmpl.Bank
	currency := strings.ToUpper(tmpl.Currency)

	if summary.PeriodFrom != "" && summary.PeriodTo != "" {
		from, errFrom := ParseDate(summary.PeriodFrom, tmpl)
		to, errTo := ParseDate(summary.PeriodTo, tmpl)
		if errFrom == nil && errTo == nil && !to.Before(from) {
			info.Period = models.Period{From: from, To: to, Declared: true}
		}
	}

	if summary.OpeningBalance != "" {
		if amount, err := ParseAmount(summary.OpeningBalance, tmpl); err == nil {
			m := models.NewMoney(amount, currency)
			info.OpeningBalance = &m
			info.OpeningDeclared = true
		}
	}
	if summary.ClosingBalance != "" {
		if amount, err := ParseAmount(summary.ClosingBalance, tmpl); err == nil {
			m := models.NewMoney(amount, currency)
			info.ClosingBalance = &m
			info.ClosingDeclared = true
		}
	}
	return info
}
