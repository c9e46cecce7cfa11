package loader

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/parsererror"
	"fjacquet/statement-ledger/internal/xmlutils"

	"gopkg.in/xmlpath.v2"
)

// CamtHeader is the synthetic header row emitted ahead of camt.053 entries.
var CamtHeader = []string{"BookingDate", "ValueDate", "Amount", "Currency", "CreditDebit", "Description", "Reference"}

// loadXML reads a camt.053 export. Each Stmt becomes one page holding the
// summary as text lines, a header row and one cell block per Ntry.
func (l *Loader) loadXML(ctx context.Context, data []byte) ([]models.Page, error) {
	root, err := xmlutils.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &parsererror.CorruptFileError{Format: string(models.FormatXML), Reason: "malformed XML", Err: err}
	}

	paths := xmlutils.DefaultCamt053XPaths()
	statements, err := xmlutils.Nodes(root, paths.Statement.Root)
	if err != nil {
		return nil, fmt.Errorf("camt statement query: %w", err)
	}
	if len(statements) == 0 {
		return nil, &parsererror.UnsupportedFormatError{Declared: "application/xml without camt.053 statement"}
	}
	if err := l.checkPages(len(statements)); err != nil {
		return nil, err
	}

	pages := make([]models.Page, 0, len(statements))
	for i, stmt := range statements {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load xml statement %d: %w", i+1, err)
		}
		page, err := camtPage(stmt, paths, i+1)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func camtPage(stmt *xmlpath.Node, paths xmlutils.CAMT053, number int) (models.Page, error) {
	page := models.Page{Number: number}
	line := 0
	addText := func(text string) {
		page.Blocks = append(page.Blocks, models.Block{Text: text, Box: lineBox(line, len(text)), Line: line})
		line++
	}
	addCells := func(cells []string) {
		page.Blocks = append(page.Blocks, models.Block{Cells: cells, Box: lineBox(line, len(cells)), Line: line})
		line++
	}

	if bank := xmlutils.First(stmt, paths.Statement.Servicer); bank != "" {
		addText("Bank: " + bank)
	}
	account := xmlutils.First(stmt, paths.Statement.IBAN)
	if account == "" {
		account = xmlutils.First(stmt, paths.Statement.OtherID)
	}
	if account != "" {
		addText("Account: " + account)
	}
	if owner := xmlutils.First(stmt, paths.Statement.Owner); owner != "" {
		addText("Account Holder: " + owner)
	}
	from, to := isoDate(xmlutils.First(stmt, paths.Statement.FromDate)), isoDate(xmlutils.First(stmt, paths.Statement.ToDate))
	if from != "" && to != "" {
		addText("Statement Period: " + from + " to " + to)
	}

	balances, err := xmlutils.Nodes(stmt, paths.Statement.Balances)
	if err != nil {
		return page, fmt.Errorf("camt balance query: %w", err)
	}
	for _, bal := range balances {
		var label string
		switch xmlutils.First(bal, paths.Balance.Type) {
		case xmlutils.BalanceOpeningBooked:
			label = "Opening Balance"
		case xmlutils.BalanceClosingBooked:
			label = "Closing Balance"
		default:
			continue
		}
		amount := signedAmount(xmlutils.First(bal, paths.Balance.Amount), xmlutils.First(bal, paths.Balance.CreditDebitInd))
		addText(strings.TrimSpace(fmt.Sprintf("%s: %s %s", label, amount, xmlutils.First(bal, paths.Balance.Currency))))
	}

	entries, err := xmlutils.Nodes(stmt, paths.Statement.Entries)
	if err != nil {
		return page, fmt.Errorf("camt entry query: %w", err)
	}
	if len(entries) > 0 {
		addCells(append([]string(nil), CamtHeader...))
	}
	for _, entry := range entries {
		addCells(camtEntryCells(entry, paths))
	}
	return page, nil
}

func camtEntryCells(entry *xmlpath.Node, paths xmlutils.CAMT053) []string {
	indicator := xmlutils.First(entry, paths.Entry.CreditDebitInd)

	counterparty := xmlutils.First(entry, paths.Entry.DebtorName)
	if indicator == "DBIT" {
		counterparty = xmlutils.First(entry, paths.Entry.CreditorName)
	}
	info := firstNonEmpty(
		xmlutils.First(entry, paths.Entry.Remittance),
		xmlutils.First(entry, paths.Entry.AdditionalTx),
		xmlutils.First(entry, paths.Entry.AddEntryInfo),
	)
	var parts []string
	for _, p := range []string{counterparty, info} {
		if p != "" && !strings.Contains(strings.Join(parts, " "), p) {
			parts = append(parts, p)
		}
	}

	return []string{
		isoDate(xmlutils.First(entry, paths.Entry.BookingDate)),
		isoDate(xmlutils.First(entry, paths.Entry.ValueDate)),
		xmlutils.First(entry, paths.Entry.Amount),
		xmlutils.First(entry, paths.Entry.Currency),
		indicator,
		strings.Join(parts, " - "),
		firstNonEmpty(xmlutils.First(entry, paths.Entry.AccountSvcRef), xmlutils.First(entry, paths.Entry.EndToEndID)),
	}
}

func lineBox(line, width int) models.BBox {
	y := float64(line)
	return models.BBox{X0: 0, Y0: y, X1: float64(width), Y1: y}
}

// isoDate keeps the date part of an ISO date or date-time.
func isoDate(s string) string {
	if len(s) >= 10 && s[4] == '-' && s[7] == '-' {
		return s[:10]
	}
	return s
}

func signedAmount(amount, indicator string) string {
	if amount != "" && indicator == "DBIT" && !strings.HasPrefix(amount, "-") {
		return "-" + amount
	}
	return amount
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
