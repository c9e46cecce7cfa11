package models

import (
	"time"
)

// StatementSummary holds the raw summary strings found on a statement.
type StatementSummary struct {
	OpeningBalance string `json:"opening_balance,omitempty"`
	ClosingBalance string `json:"closing_balance,omitempty"`
	PeriodFrom     string `json:"period_from,omitempty"`
	PeriodTo       string `json:"period_to,omitempty"`
	AccountNumber  string `json:"account_number,omitempty"`
	AccountHolder  string `json:"account_holder,omitempty"`
}

// Period is a statement period. Declared is false when it was computed from
// the transaction dates.
type Period struct {
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Declared bool      `json:"declared"`
}

// IsZero reports whether no period is known.
func (p Period) IsZero() bool {
	return p.From.IsZero() && p.To.IsZero()
}

// Contains reports whether d lies within the period widened by slack days.
func (p Period) Contains(d time.Time, slackDays int) bool {
	if p.IsZero() {
		return true
	}
	slack := time.Duration(slackDays) * 24 * time.Hour
	if !p.From.IsZero() && d.Before(p.From.Add(-slack)) {
		return false
	}
	if !p.To.IsZero() && d.After(p.To.Add(slack)) {
		return false
	}
	return true
}

// String formats the period as "YYYY-MM-DD to YYYY-MM-DD".
func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	return p.From.Format("2006-01-02") + " to " + p.To.Format("2006-01-02")
}

// StatementInfo is the parsed statement summary.
type StatementInfo struct {
	Period          Period `json:"period"`
	OpeningBalance  *Money `json:"opening_balance,omitempty"`
	ClosingBalance  *Money `json:"closing_balance,omitempty"`
	OpeningDeclared bool   `json:"opening_declared"`
	ClosingDeclared bool   `json:"closing_declared"`
	AccountNumber   string `json:"account_number,omitempty"`
	AccountHolder   string `json:"account_holder,omitempty"`
	Bank            string `json:"bank,omitempty"`
}

// DetectionSource records how the template of a ledger was chosen.
type DetectionSource string

const (
	DetectionTemplate   DetectionSource = "template"
	DetectionClassifier DetectionSource = "classifier"
	DetectionHeuristic  DetectionSource = "heuristic"
	DetectionForced     DetectionSource = "forced"
)

// DetectionInfo summarises the layout detection of a ledger.
type DetectionInfo struct {
	Template   string          `json:"template"`
	Confidence float64         `json:"confidence"`
	Source     DetectionSource `json:"source"`
	Unknown    bool            `json:"unknown"`
}

// Ledger is the ordered, validated result of processing one document. A
// Ledger belongs to the request that produced it.
type Ledger struct {
	Transactions    []Transaction  `json:"transactions"`
	Defective       []DefectiveRow `json:"defective"`
	Template        string         `json:"template"`
	Order           Order          `json:"order"`
	Detection       DetectionInfo  `json:"detection"`
	Info            StatementInfo  `json:"info"`
	PagesProcessed  int            `json:"pages_processed"`
	DetectedHeaders []string       `json:"detected_headers,omitempty"`
	Report          Report         `json:"report"`
}

// Count returns the number of transactions.
func (l *Ledger) Count() int {
	return len(l.Transactions)
}

// Currency returns the currency of the first transaction, or "".
func (l *Ledger) Currency() string {
	for _, tx := range l.Transactions {
		if tx.Currency != "" {
			return tx.Currency
		}
	}
	return ""
}

// HasBalances reports whether every transaction carries a running balance.
func (l *Ledger) HasBalances() bool {
	if len(l.Transactions) == 0 {
		return false
	}
	for _, tx := range l.Transactions {
		if tx.Balance == nil {
			return false
		}
	}
	return true
}
