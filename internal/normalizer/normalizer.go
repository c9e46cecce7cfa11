// Package normalizer converts raw table rows into typed transactions using the
// date, number and sign conventions of a layout template.
package normalizer

import (
	"fmt"
	"strings"
	"time"

	"fjacquet/statement-ledger/internal/currencyutils"
	"fjacquet/statement-ledger/internal/dateutils"
	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/parsererror"
	"fjacquet/statement-ledger/internal/textutils"

	"github.com/shopspring/decimal"
)

// Field names reported in parse errors.
const (
	FieldDate    = "date"
	FieldAmount  = "amount"
	FieldBalance = "balance"
)

// RowNormalizer converts one raw row. The assembler depends on this
// interface to re-normalize rows repaired across page breaks.
type RowNormalizer interface {
	Normalize(row models.RawRow, tmpl *models.Template) models.RowResult
}

// Normalizer is the template-driven RowNormalizer. It is stateless and safe
// for concurrent use.
type Normalizer struct {
	logger logging.Logger
}

// New creates a Normalizer.
func New(logger logging.Logger) *Normalizer {
	return &Normalizer{logger: logging.For(logger, "normalizer")}
}

// Normalize parses the cells of row. Continuation rows come back as
// Fragment; a row whose date, amount or balance cannot be read comes back
// as Defective carrying a *parsererror.ParseError.
func (n *Normalizer) Normalize(row models.RawRow, tmpl *models.Template) models.RowResult {
	if row.Continuation {
		return models.Fragment(row)
	}

	tx, field, value, err := n.transaction(row, tmpl)
	if err != nil {
		perr := &parsererror.ParseError{Parser: tmpl.Name, Field: field, Value: value, Err: err}
		n.logger.Debug("Row could not be normalized",
			logging.F(logging.FieldPage, row.Source.Page),
			logging.F(logging.FieldLine, row.Source.Line),
			logging.F(logging.FieldReason, perr.Error()))
		return models.Defective(row, "invalid "+field, perr)
	}
	return models.Parsed(tx, row)
}

func (n *Normalizer) transaction(row models.RawRow, tmpl *models.Template) (models.Transaction, string, string, error) {
	tx := models.Transaction{Source: row.Source}

	raw := row.Cell(tmpl.ColumnIndex(models.RoleDate))
	date, err := ParseDate(raw, tmpl)
	if err != nil {
		return tx, FieldDate, raw, err
	}
	tx.Date = date

	// the value date is optional; an unreadable one is dropped
	if raw := row.Cell(tmpl.ColumnIndex(models.RoleValueDate)); raw != "" {
		if vd, err := ParseDate(raw, tmpl); err == nil {
			tx.ValueDate = &vd
		}
	}

	amount, field, raw, err := rowAmount(row, tmpl)
	if err != nil {
		return tx, field, raw, err
	}

	tx.Currency = rowCurrency(row, tmpl)
	tx.Amount = models.NewMoney(amount, tx.Currency)

	if raw := row.Cell(tmpl.ColumnIndex(models.RoleBalance)); raw != "" {
		bal, err := ParseAmount(raw, tmpl)
		if err != nil {
			return tx, FieldBalance, raw, err
		}
		m := models.NewMoney(bal, tx.Currency)
		tx.Balance = &m
	}

	var parts []string
	for _, i := range tmpl.ColumnIndexes(models.RoleDescription) {
		if c := row.Cell(i); c != "" {
			parts = append(parts, c)
		}
	}
	tx.Description = textutils.NormalizeSpace(strings.Join(parts, " "))
	tx.Reference = row.Cell(tmpl.ColumnIndex(models.RoleReference))
	return tx, "", "", nil
}

// rowAmount applies the sign convention of the template. It returns the
// failing field and value alongside any error.
func rowAmount(row models.RawRow, tmpl *models.Template) (decimal.Decimal, string, string, error) {
	amountCell := row.Cell(tmpl.ColumnIndex(models.RoleAmount))

	switch tmpl.Amount.Convention {
	case models.ConventionIndicator:
		amount, err := parseRequired(amountCell, tmpl)
		if err != nil {
			return decimal.Zero, FieldAmount, amountCell, err
		}
		indicator := row.Cell(tmpl.ColumnIndex(models.RoleIndicator))
		switch {
		case tmpl.IsDebitMarker(indicator):
			return amount.Abs().Neg(), "", "", nil
		case indicator != "":
			return amount.Abs(), "", "", nil
		}
		return amount, "", "", nil

	case models.ConventionDebitCredit:
		return debitCredit(row, tmpl)
	}

	if tmpl.ColumnIndex(models.RoleAmount) < 0 {
		return debitCredit(row, tmpl)
	}
	amount, err := parseRequired(amountCell, tmpl)
	if err != nil {
		return decimal.Zero, FieldAmount, amountCell, err
	}
	return amount, "", "", nil
}

// debitCredit nets the money-out and money-in columns. At least one must be
// filled.
func debitCredit(row models.RawRow, tmpl *models.Template) (decimal.Decimal, string, string, error) {
	debitCell := row.Cell(tmpl.ColumnIndex(models.RoleDebit))
	creditCell := row.Cell(tmpl.ColumnIndex(models.RoleCredit))
	if debitCell == "" && creditCell == "" {
		return decimal.Zero, FieldAmount, "", fmt.Errorf("neither debit nor credit is set")
	}

	total := decimal.Zero
	if debitCell != "" {
		d, err := ParseAmount(debitCell, tmpl)
		if err != nil {
			return decimal.Zero, FieldAmount, debitCell, err
		}
		total = total.Sub(d.Abs())
	}
	if creditCell != "" {
		c, err := ParseAmount(creditCell, tmpl)
		if err != nil {
			return decimal.Zero, FieldAmount, creditCell, err
		}
		total = total.Add(c.Abs())
	}
	return total, "", "", nil
}

func parseRequired(cell string, tmpl *models.Template) (decimal.Decimal, error) {
	if cell == "" {
		return decimal.Zero, fmt.Errorf("amount is empty")
	}
	return ParseAmount(cell, tmpl)
}

// rowCurrency reads the currency column, then the template currency, then
// any symbol printed on the amount cells.
func rowCurrency(row models.RawRow, tmpl *models.Template) string {
	if c := strings.ToUpper(row.Cell(tmpl.ColumnIndex(models.RoleCurrency))); len(c) == 3 {
		return c
	}
	if tmpl.Currency != "" {
		return strings.ToUpper(tmpl.Currency)
	}
	for _, role := range []models.ColumnRole{models.RoleAmount, models.RoleDebit, models.RoleCredit, models.RoleBalance} {
		if code := currencyutils.DetectCurrency(row.Cell(tmpl.ColumnIndex(role))); code != "" {
			return code
		}
	}
	return ""
}

// ParseDate reads a date with the template format first, then the fallback
// list of the template locale.
func ParseDate(s string, tmpl *models.Template) (time.Time, error) {
	return dateutils.ParseDate(s, tmpl.DateLayout(), tmpl.Locale.DayFirst)
}

// ParseAmount reads an amount with the template separators. When that fails
// the separator heuristic is tried. Parentheses, a trailing minus and a DR
// suffix make the value negative.
func ParseAmount(s string, tmpl *models.Template) (decimal.Decimal, error) {
	format := currencyutils.AmountFormat{
		DecimalSeparator:   tmpl.Locale.DecimalSeparator,
		ThousandsSeparator: tmpl.Locale.ThousandsSeparator,
		Symbol:             tmpl.CurrencySymbol,
	}
	amount, err := currencyutils.ParseAmountWithFormat(s, format)
	if err == nil {
		return amount, nil
	}
	format.DecimalSeparator, format.ThousandsSeparator = "", ""
	if amount, retryErr := currencyutils.ParseAmountWithFormat(s, format); retryErr == nil {
		return amount, nil
	}
	return decimal.Zero, err
}
