// Package validator reconciles an assembled ledger: running balances, the
// declared opening and closing figures, dates and likely duplicates.
package validator

import (
	"fmt"

	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"

	"github.com/shopspring/decimal"
)

// Defaults used for zero Options fields.
const (
	DefaultDateSlackDays      = 3
	DefaultDuplicateThreshold = 3
)

// DefaultTolerance is the largest balance difference that still reconciles.
var DefaultTolerance = decimal.RequireFromString("0.01")

// Options tunes the checks.
type Options struct {
	Tolerance          decimal.Decimal
	DateSlackDays      int
	DuplicateThreshold int
}

// DefaultOptions returns the stock tolerances.
func DefaultOptions() Options {
	return Options{
		Tolerance:          DefaultTolerance,
		DateSlackDays:      DefaultDateSlackDays,
		DuplicateThreshold: DefaultDuplicateThreshold,
	}
}

// Validator runs the checks. It never modifies the ledger it is given.
type Validator struct {
	opts   Options
	logger logging.Logger
}

// New creates a Validator. Negative values and a duplicate threshold below
// two take the defaults.
func New(opts Options, logger logging.Logger) *Validator {
	if opts.Tolerance.IsNegative() {
		opts.Tolerance = DefaultTolerance
	}
	if opts.DateSlackDays < 0 {
		opts.DateSlackDays = DefaultDateSlackDays
	}
	if opts.DuplicateThreshold < 2 {
		opts.DuplicateThreshold = DefaultDuplicateThreshold
	}
	return &Validator{opts: opts, logger: logging.For(logger, "validator")}
}

// Options returns the effective options.
func (v *Validator) Options() Options { return v.opts }

// Validate returns the report for ledger. Issues are listed check by check,
// in transaction order within a check.
func (v *Validator) Validate(ledger *models.Ledger) models.Report {
	report := models.Report{Status: models.StatusClean, Issues: []models.Issue{}}
	if ledger == nil {
		ledger = &models.Ledger{}
	}

	if ledger.Count() == 0 {
		report.Add(models.Issue{
			Kind:     models.IssueEmptyLedger,
			Severity: models.SeverityError,
			Message:  "no transactions were extracted",
			Index:    -1,
		})
	} else {
		report.Add(v.runningBalance(ledger)...)
		report.Add(v.declaredBalances(ledger)...)
		report.Add(v.dateRange(ledger)...)
		report.Add(v.dateOrder(ledger)...)
		report.Add(v.duplicates(ledger)...)
	}
	report.Add(defectiveRows(ledger)...)

	v.logger.Debug("Ledger validated",
		logging.F(logging.FieldStatus, string(report.Status)),
		logging.F(logging.FieldIssues, len(report.Issues)))
	return report
}

func warning(kind models.IssueKind, index int, tx *models.Transaction, format string, args ...interface{}) models.Issue {
	issue := models.Issue{
		Kind:     kind,
		Severity: models.SeverityWarning,
		Message:  fmt.Sprintf(format, args...),
		Index:    index,
	}
	if tx != nil {
		src := tx.Source
		issue.Source = &src
	}
	return issue
}

// runningBalance checks each adjacent pair: the later balance must equal the
// earlier balance plus the later amount. For descending statements the later
// transaction is the one printed first.
func (v *Validator) runningBalance(l *models.Ledger) []models.Issue {
	var issues []models.Issue
	txs := l.Transactions
	for i := 1; i < len(txs); i++ {
		earlier, later, at := txs[i-1], txs[i], i
		if l.Order == models.OrderDescending {
			earlier, later, at = txs[i], txs[i-1], i-1
		}
		if earlier.Balance == nil || later.Balance == nil {
			continue
		}
		expected, err := earlier.Balance.Add(later.Amount)
		if err != nil {
			continue
		}
		if later.Balance.WithinTolerance(expected, v.opts.Tolerance) {
			continue
		}
		delta := models.NewMoney(later.Balance.Amount.Sub(expected.Amount), expected.Currency)
		issue := warning(models.IssueBalanceMismatch, at, &txs[at],
			"running balance %s, expected %s", later.Balance.StringFixed(2), expected.StringFixed(2))
		issue.Delta = &delta
		issues = append(issues, issue)
	}
	return issues
}

// declaredBalances checks opening + sum of amounts against the closing
// balance when both were printed on the statement.
func (v *Validator) declaredBalances(l *models.Ledger) []models.Issue {
	info := l.Info
	if !info.OpeningDeclared || !info.ClosingDeclared || info.OpeningBalance == nil || info.ClosingBalance == nil {
		return nil
	}
	sum := decimal.Zero
	for _, tx := range l.Transactions {
		sum = sum.Add(tx.Amount.Amount)
	}
	expected := info.OpeningBalance.Amount.Add(sum)
	if info.ClosingBalance.Amount.Sub(expected).Abs().LessThanOrEqual(v.opts.Tolerance) {
		return nil
	}
	delta := models.NewMoney(info.ClosingBalance.Amount.Sub(expected), info.ClosingBalance.Currency)
	issue := warning(models.IssueBalanceMismatch, -1, nil,
		"closing balance %s, expected %s from opening %s and %d transactions",
		info.ClosingBalance.StringFixed(2), expected.StringFixed(2), info.OpeningBalance.StringFixed(2), len(l.Transactions))
	issue.Delta = &delta
	return []models.Issue{issue}
}

func (v *Validator) dateRange(l *models.Ledger) []models.Issue {
	period := l.Info.Period
	if !period.Declared || period.IsZero() {
		return nil
	}
	var issues []models.Issue
	for i := range l.Transactions {
		tx := &l.Transactions[i]
		if !period.Contains(tx.Date, v.opts.DateSlackDays) {
			issues = append(issues, warning(models.IssueDateOutOfRange, i, tx,
				"date %s outside statement period %s", tx.Date.Format("2006-01-02"), period))
		}
	}
	return issues
}

func (v *Validator) dateOrder(l *models.Ledger) []models.Issue {
	var issues []models.Issue
	txs := l.Transactions
	for i := 1; i < len(txs); i++ {
		prev, cur := txs[i-1].Date, txs[i].Date
		inverted := cur.Before(prev)
		if l.Order == models.OrderDescending {
			inverted = cur.After(prev)
		}
		if inverted {
			issues = append(issues, warning(models.IssueDateOrder, i, &txs[i],
				"date %s breaks %s order after %s", cur.Format("2006-01-02"), l.Order, prev.Format("2006-01-02")))
		}
	}
	return issues
}

func (v *Validator) duplicates(l *models.Ledger) []models.Issue {
	counts := make(map[string]int)
	first := make(map[string]int)
	var order []string
	for i, tx := range l.Transactions {
		k := tx.Key()
		if counts[k] == 0 {
			first[k] = i
			order = append(order, k)
		}
		counts[k]++
	}
	var issues []models.Issue
	for _, k := range order {
		if counts[k] < v.opts.DuplicateThreshold {
			continue
		}
		i := first[k]
		tx := &l.Transactions[i]
		issues = append(issues, warning(models.IssueDuplicateSuspect, i, tx,
			"%d identical transactions on %s for %s %q", counts[k], tx.Date.Format("2006-01-02"),
			tx.Amount.StringFixed(2), tx.Description))
	}
	return issues
}

func defectiveRows(l *models.Ledger) []models.Issue {
	issues := make([]models.Issue, 0, len(l.Defective))
	for _, d := range l.Defective {
		src := d.Row.Source
		msg := d.Reason
		if d.Error != "" {
			msg += ": " + d.Error
		}
		issues = append(issues, models.Issue{
			Kind:     models.IssueFieldParseError,
			Severity: models.SeverityWarning,
			Message:  msg,
			Source:   &src,
			Index:    -1,
		})
	}
	return issues
}
