package writer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"fjacquet/statement-ledger/internal/dateutils"
	"fjacquet/statement-ledger/internal/models"
)

// Metadata describes how a ledger was produced.
type Metadata struct {
	Template          string    `json:"template"`
	Confidence        float64   `json:"confidence"`
	DetectionSource   string    `json:"detection_source"`
	PagesProcessed    int       `json:"pages_processed"`
	TotalTransactions int       `json:"total_transactions"`
	DetectedHeaders   []string  `json:"detected_headers"`
	Status            string    `json:"status"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// AccountInfo is the statement summary.
type AccountInfo struct {
	AccountHolder   string `json:"account_holder,omitempty"`
	AccountNumber   string `json:"account_number,omitempty"`
	Bank            string `json:"bank,omitempty"`
	Currency        string `json:"currency,omitempty"`
	PeriodFrom      string `json:"period_from,omitempty"`
	PeriodTo        string `json:"period_to,omitempty"`
	OpeningBalance  string `json:"opening_balance,omitempty"`
	ClosingBalance  string `json:"closing_balance,omitempty"`
	OpeningDeclared bool   `json:"opening_declared"`
	ClosingDeclared bool   `json:"closing_declared"`
}

// Transaction is the JSON form of a ledger entry.
type Transaction struct {
	Date        string `json:"date"`
	ValueDate   string `json:"value_date,omitempty"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Balance     string `json:"balance,omitempty"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference,omitempty"`
	Page        int    `json:"page"`
	Line        int    `json:"line"`
}

// Defective is a row that did not become a transaction.
type Defective struct {
	Page   int    `json:"page"`
	Line   int    `json:"line"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Document is the JSON export of a ledger. ID is set when the ledger was stored.
type Document struct {
	ID           string        `json:"id,omitempty"`
	Metadata     Metadata      `json:"metadata"`
	AccountInfo  AccountInfo   `json:"account_info"`
	Transactions []Transaction `json:"transactions"`
	Defective    []Defective   `json:"defective"`
	Report       models.Report `json:"report"`
}

// NewDocument builds the JSON export of ledger.
func NewDocument(ledger *models.Ledger, generatedAt time.Time) Document {
	info := ledger.Info
	doc := Document{
		Metadata: Metadata{
			Template:          ledger.Template,
			Confidence:        ledger.Detection.Confidence,
			DetectionSource:   string(ledger.Detection.Source),
			PagesProcessed:    ledger.PagesProcessed,
			TotalTransactions: ledger.Count(),
			DetectedHeaders:   ledger.DetectedHeaders,
			Status:            string(ledger.Report.Status),
			GeneratedAt:       generatedAt.UTC(),
		},
		AccountInfo: AccountInfo{
			AccountHolder:   info.AccountHolder,
			AccountNumber:   info.AccountNumber,
			Bank:            info.Bank,
			Currency:        ledger.Currency(),
			OpeningDeclared: info.OpeningDeclared,
			ClosingDeclared: info.ClosingDeclared,
		},
		Transactions: make([]Transaction, 0, ledger.Count()),
		Defective:    make([]Defective, 0, len(ledger.Defective)),
		Report:       ledger.Report,
	}
	if doc.Metadata.DetectedHeaders == nil {
		doc.Metadata.DetectedHeaders = []string{}
	}
	if !info.Period.IsZero() {
		doc.AccountInfo.PeriodFrom = dateutils.ToISODate(info.Period.From)
		doc.AccountInfo.PeriodTo = dateutils.ToISODate(info.Period.To)
	}
	if info.OpeningBalance != nil {
		doc.AccountInfo.OpeningBalance = info.OpeningBalance.StringFixed(2)
	}
	if info.ClosingBalance != nil {
		doc.AccountInfo.ClosingBalance = info.ClosingBalance.StringFixed(2)
	}

	for _, tx := range ledger.Transactions {
		out := Transaction{
			Date:        dateutils.ToISODate(tx.Date),
			Description: tx.Description,
			Amount:      tx.Amount.StringFixed(2),
			Currency:    tx.Currency,
			Reference:   tx.Reference,
			Page:        tx.Source.Page,
			Line:        tx.Source.Line,
		}
		if tx.ValueDate != nil {
			out.ValueDate = dateutils.ToISODate(*tx.ValueDate)
		}
		if tx.Balance != nil {
			out.Balance = tx.Balance.StringFixed(2)
		}
		doc.Transactions = append(doc.Transactions, out)
	}
	for _, d := range ledger.Defective {
		doc.Defective = append(doc.Defective, Defective{
			Page:   d.Row.Source.Page,
			Line:   d.Row.Source.Line,
			Reason: d.Reason,
			Error:  d.Error,
			Text:   rowText(d.Row),
		})
	}
	if doc.Report.Issues == nil {
		doc.Report.Issues = []models.Issue{}
	}
	return doc
}

func rowText(row models.RawRow) string {
	if row.Text != "" {
		return row.Text
	}
	return strings.Join(row.Cells, " | ")
}

// WriteJSON writes the indented JSON export of ledger.
func WriteJSON(w io.Writer, ledger *models.Ledger) error {
	if ledger == nil {
		return fmt.Errorf("cannot write nil ledger to JSON")
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(ledger, time.Now())); err != nil {
		return fmt.Errorf("failed to marshal JSON ledger: %w", err)
	}
	return nil
}
