// Package batch groups processed statements by account and consolidates them
// into one ledger per account.
package batch

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/pipeline"
)

// DateRange represents a date range with start and end dates
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether neither bound is known.
func (dr DateRange) IsZero() bool {
	return dr.Start.IsZero() && dr.End.IsZero()
}

// String returns the date range in the format "YYYY-MM-DD_YYYY-MM-DD"
func (dr DateRange) String() string {
	if dr.Start.IsZero() || dr.End.IsZero() {
		return ""
	}
	return fmt.Sprintf("%s_%s",
		dr.Start.Format("2006-01-02"),
		dr.End.Format("2006-01-02"))
}

// Merge combines this date range with another, returning the overall range
func (dr DateRange) Merge(other DateRange) DateRange {
	start := dr.Start
	end := dr.End

	if dr.Start.IsZero() {
		start = other.Start
	} else if !other.Start.IsZero() && other.Start.Before(start) {
		start = other.Start
	}

	if dr.End.IsZero() {
		end = other.End
	} else if !other.End.IsZero() && other.End.After(end) {
		end = other.End
	}

	return DateRange{Start: start, End: end}
}

// PeriodOf returns the statement period of ledger, falling back to the span
// of its transaction dates.
func PeriodOf(ledger *models.Ledger) DateRange {
	if p := ledger.Info.Period; !p.From.IsZero() && !p.To.IsZero() {
		return DateRange{Start: p.From, End: p.To}
	}
	var dr DateRange
	for _, tx := range ledger.Transactions {
		dr = dr.Merge(DateRange{Start: tx.Date, End: tx.Date})
	}
	return dr
}

// Group is the set of statements that belong to one account.
type Group struct {
	AccountID string
	Names     []string
	Ledgers   []*models.Ledger
	DateRange DateRange
}

// Aggregator groups batch results by account.
type Aggregator struct {
	logger logging.Logger
}

// NewAggregator creates a new Aggregator.
func NewAggregator(logger logging.Logger) *Aggregator {
	return &Aggregator{logger: logging.For(logger, "aggregator")}
}

// AccountID identifies the account of a processed statement: its account
// number, or the input name without extension when the statement has none.
func AccountID(r pipeline.Result) string {
	if r.Ledger != nil && strings.TrimSpace(r.Ledger.Info.AccountNumber) != "" {
		return SanitizeAccountID(r.Ledger.Info.AccountNumber)
	}
	base := filepath.Base(r.Name)
	return SanitizeAccountID(strings.TrimSuffix(base, filepath.Ext(base)))
}

// GroupByAccount groups the successful results by account. Failed results
// are logged and skipped. Groups are sorted by account id and the ledgers of
// a group by period start.
func (a *Aggregator) GroupByAccount(results []pipeline.Result) []Group {
	groups := make(map[string]*Group)

	for _, r := range results {
		if r.Err != nil || r.Ledger == nil {
			a.logger.WithError(r.Err).Warn("Skipping failed statement",
				logging.F(logging.FieldFile, r.Name))
			continue
		}

		id := AccountID(r)
		a.logger.Debug("Statement mapped to account",
			logging.F(logging.FieldFile, filepath.Base(r.Name)),
			logging.F(logging.FieldAccount, id))

		group, ok := groups[id]
		if !ok {
			group = &Group{AccountID: id}
			groups[id] = group
		}
		group.Names = append(group.Names, r.Name)
		group.Ledgers = append(group.Ledgers, r.Ledger)
		group.DateRange = group.DateRange.Merge(PeriodOf(r.Ledger))
	}

	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		sortByPeriod(g)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AccountID < out[j].AccountID
	})

	a.logger.Info("Grouped statements into accounts",
		logging.F(logging.FieldCount, len(results)),
		logging.F("account_groups", len(out)))
	return out
}

func sortByPeriod(g *Group) {
	idx := make([]int, len(g.Ledgers))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return PeriodOf(g.Ledgers[idx[i]]).Start.Before(PeriodOf(g.Ledgers[idx[j]]).Start)
	})
	names := make([]string, len(idx))
	ledgers := make([]*models.Ledger, len(idx))
	for to, from := range idx {
		names[to] = g.Names[from]
		ledgers[to] = g.Ledgers[from]
	}
	g.Names, g.Ledgers = names, ledgers
}

// Consolidate concatenates the ledgers of group into one ascending ledger.
// The opening balance comes from the first statement and the closing
// balance from the last; issues and defective rows are carried over.
func (a *Aggregator) Consolidate(group Group) *models.Ledger {
	out := &models.Ledger{
		Order:        models.OrderAscending,
		Transactions: []models.Transaction{},
		Defective:    []models.DefectiveRow{},
	}
	if len(group.Ledgers) == 0 {
		out.Report.Add(models.Issue{
			Kind:     models.IssueEmptyLedger,
			Severity: models.SeverityError,
			Message:  "no statements for account " + group.AccountID,
			Index:    -1,
		})
		return out
	}

	first, last := group.Ledgers[0], group.Ledgers[len(group.Ledgers)-1]
	out.Template = first.Template
	out.Detection = first.Detection
	out.Info = models.StatementInfo{
		Period: models.Period{
			From:     group.DateRange.Start,
			To:       group.DateRange.End,
			Declared: first.Info.Period.Declared && last.Info.Period.Declared,
		},
		OpeningBalance:  first.Info.OpeningBalance,
		OpeningDeclared: first.Info.OpeningDeclared,
		ClosingBalance:  last.Info.ClosingBalance,
		ClosingDeclared: last.Info.ClosingDeclared,
		AccountNumber:   first.Info.AccountNumber,
		AccountHolder:   first.Info.AccountHolder,
		Bank:            first.Info.Bank,
	}

	var issues []models.Issue
	for _, l := range group.Ledgers {
		if l.Template != out.Template {
			out.Template = "mixed"
		}
		offset := len(out.Transactions)
		out.Transactions = append(out.Transactions, ascending(l)...)
		out.Defective = append(out.Defective, l.Defective...)
		out.PagesProcessed += l.PagesProcessed
		for _, issue := range l.Report.Issues {
			if issue.Index >= 0 {
				issue.Index = offset + positionInAscending(l, issue.Index)
			}
			issues = append(issues, issue)
		}
	}
	out.Report.Add(issues...)

	a.logDuplicates(out.Transactions, group.AccountID)

	a.logger.Info("Consolidated account statements",
		logging.F(logging.FieldAccount, group.AccountID),
		logging.F(logging.FieldCount, len(out.Transactions)),
		logging.F("source_files", strings.Join(baseNames(group.Names), ", ")))
	return out
}

// ascending returns the transactions of l oldest first.
func ascending(l *models.Ledger) []models.Transaction {
	txs := append([]models.Transaction(nil), l.Transactions...)
	if l.Order == models.OrderDescending {
		for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
			txs[i], txs[j] = txs[j], txs[i]
		}
	}
	return txs
}

func positionInAscending(l *models.Ledger, i int) int {
	if l.Order == models.OrderDescending {
		return len(l.Transactions) - 1 - i
	}
	return i
}

// logDuplicates warns about entries that appear in more than one
// overlapping statement. Entries are kept.
func (a *Aggregator) logDuplicates(txs []models.Transaction, accountID string) {
	seen := make(map[string]int, len(txs))
	duplicates := 0
	for _, tx := range txs {
		key := tx.Key()
		seen[key]++
		if seen[key] == 2 {
			duplicates++
			a.logger.Warn("Potential duplicate transaction",
				logging.F(logging.FieldAccount, accountID),
				logging.F("date", tx.Date.Format("2006-01-02")),
				logging.F("amount", tx.Amount.String()))
		}
	}
	if duplicates > 0 {
		a.logger.Warn("Found potential duplicate transactions",
			logging.F(logging.FieldCount, duplicates),
			logging.F(logging.FieldAccount, accountID))
	}
}

// OutputFilename creates the file name of a consolidated export:
// {account_id}_{start_date}_{end_date}.{ext}, or {account_id}.{ext} when
// the period is unknown.
func OutputFilename(accountID string, dateRange DateRange, ext string) string {
	id := SanitizeAccountID(accountID)
	if s := dateRange.String(); s != "" {
		return fmt.Sprintf("%s_%s.%s", id, s, ext)
	}
	return fmt.Sprintf("%s.%s", id, ext)
}

// SourceHeader lists the source files as "#" comment lines.
func SourceHeader(names []string, generatedAt time.Time) string {
	if len(names) == 0 {
		return ""
	}
	var header strings.Builder
	header.WriteString("# Consolidated from source files:\n")
	for _, name := range baseNames(names) {
		fmt.Fprintf(&header, "# - %s\n", name)
	}
	header.WriteString("# Generated on: ")
	header.WriteString(generatedAt.Format("2006-01-02 15:04:05"))
	header.WriteString("\n")
	return header.String()
}

func baseNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Base(n)
	}
	return out
}

// SanitizeAccountID makes an account identifier safe to use in a file name.
// Path traversal sequences are removed.
func SanitizeAccountID(accountID string) string {
	sanitized := strings.ReplaceAll(strings.TrimSpace(accountID), " ", "_")

	var result strings.Builder
	for _, r := range sanitized {
		if (r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '_' || r == '-' || r == '.' {
			result.WriteRune(r)
		} else {
			result.WriteRune('_')
		}
	}
	sanitized = result.String()

	for strings.Contains(sanitized, "..") {
		sanitized = strings.ReplaceAll(sanitized, "..", "_")
	}
	for strings.Contains(sanitized, "__") {
		sanitized = strings.ReplaceAll(sanitized, "__", "_")
	}
	sanitized = strings.Trim(sanitized, "_.")

	if sanitized == "" {
		sanitized = "UNKNOWN"
	}
	return sanitized
}
