// Package assembler orders normalized rows into a ledger, repairs rows split
// across a page break and derives the statement figures that were not
// printed on the document.
package assembler

import (
	"sort"

	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/normalizer"
)

// ReasonOrphanContinuation marks a continuation line with no row to attach to.
const ReasonOrphanContinuation = "orphan continuation"

// Assembler builds ledgers. It is safe for concurrent use when its
// RowNormalizer is.
type Assembler struct {
	normalizer normalizer.RowNormalizer
	logger     logging.Logger
}

// New creates an Assembler that re-normalizes merged rows with n.
func New(n normalizer.RowNormalizer, logger logging.Logger) *Assembler {
	return &Assembler{normalizer: n, logger: logging.For(logger, "assembler")}
}

// Assemble sorts results into document order, merges page-split fragments
// into the row they continue and fills in the period and balances.
func (a *Assembler) Assemble(results []models.RowResult, tmpl *models.Template, info models.StatementInfo) *models.Ledger {
	ordered := append([]models.RowResult(nil), results...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Source().Before(ordered[j].Source())
	})

	merged := make([]models.RowResult, 0, len(ordered))
	for _, r := range ordered {
		if r.Kind != models.ResultFragment {
			merged = append(merged, r)
			continue
		}
		last := len(merged) - 1
		if last < 0 || merged[last].Source().Page >= r.Row.Source.Page {
			merged = append(merged, models.Defective(r.Row, ReasonOrphanContinuation, nil))
			continue
		}
		row := merged[last].Row.Merge(r.Row)
		merged[last] = a.normalizer.Normalize(row, tmpl)
		a.logger.Debug("Merged page-split row",
			logging.F(logging.FieldPage, r.Row.Source.Page),
			logging.F(logging.FieldLine, r.Row.Source.Line))
	}

	ledger := &models.Ledger{
		Transactions: make([]models.Transaction, 0, len(merged)),
		Defective:    []models.DefectiveRow{},
		Info:         info,
		Order:        models.OrderAscending,
	}
	if tmpl != nil {
		ledger.Template = tmpl.Name
		ledger.Order = tmpl.Order
	}
	for _, r := range merged {
		switch r.Kind {
		case models.ResultParsed:
			ledger.Transactions = append(ledger.Transactions, r.Transaction)
		default:
			ledger.Defective = append(ledger.Defective, models.NewDefectiveRow(r))
		}
	}

	a.derive(ledger)
	a.logger.Debug("Assembled ledger",
		logging.F(logging.FieldCount, ledger.Count()),
		logging.F(logging.FieldDefective, len(ledger.Defective)))
	return ledger
}

// derive fills the period and balances that the statement did not declare.
func (a *Assembler) derive(l *models.Ledger) {
	txs := l.Transactions
	currency := l.Currency()
	for _, m := range []*models.Money{l.Info.OpeningBalance, l.Info.ClosingBalance} {
		if m != nil && m.Currency == "" {
			m.Currency = currency
		}
	}
	if len(txs) == 0 {
		return
	}

	if !l.Info.Period.Declared {
		from, to := txs[0].Date, txs[0].Date
		for _, tx := range txs[1:] {
			if tx.Date.Before(from) {
				from = tx.Date
			}
			if tx.Date.After(to) {
				to = tx.Date
			}
		}
		l.Info.Period = models.Period{From: from, To: to}
	}

	// earliest and latest rows in statement order
	first, last := txs[0], txs[len(txs)-1]
	if l.Order == models.OrderDescending {
		first, last = last, first
	}

	if l.Info.OpeningBalance == nil && first.Balance != nil {
		if opening, err := first.Balance.Sub(first.Amount); err == nil {
			l.Info.OpeningBalance = &opening
		}
	}
	if l.Info.ClosingBalance == nil && last.Balance != nil {
		closing := *last.Balance
		l.Info.ClosingBalance = &closing
	}
}
