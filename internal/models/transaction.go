package models

import (
	"fmt"
	"strings"
	"time"
)

// SourceRef points back to the page and line a row was read from.
type SourceRef struct {
	Page int `json:"page"`
	Line int `json:"line"`
}

func (s SourceRef) String() string {
	return fmt.Sprintf("page %d line %d", s.Page, s.Line)
}

// Before orders references by page then line.
func (s SourceRef) Before(o SourceRef) bool {
	if s.Page != o.Page {
		return s.Page < o.Page
	}
	return s.Line < o.Line
}

// RawRow is one extracted table row, with cells aligned to the template columns.
type RawRow struct {
	Cells        []string  `json:"cells"`
	Source       SourceRef `json:"source"`
	Text         string    `json:"text,omitempty"`
	Continuation bool      `json:"continuation,omitempty"`
}

// Cell returns the trimmed cell at i, or "" when out of range.
func (r RawRow) Cell(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return strings.TrimSpace(r.Cells[i])
}

// Clone returns a copy that shares no memory with r.
func (r RawRow) Clone() RawRow {
	r.Cells = append([]string(nil), r.Cells...)
	return r
}

// Merge appends the non-empty cells of next to r, joining text with a space.
// The result keeps the source reference of r.
func (r RawRow) Merge(next RawRow) RawRow {
	out := r.Clone()
	for len(out.Cells) < len(next.Cells) {
		out.Cells = append(out.Cells, "")
	}
	for i, c := range next.Cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if strings.TrimSpace(out.Cells[i]) == "" {
			out.Cells[i] = c
		} else {
			out.Cells[i] = strings.TrimSpace(out.Cells[i]) + " " + c
		}
	}
	switch {
	case out.Text == "":
		out.Text = next.Text
	case next.Text != "":
		out.Text += " " + next.Text
	}
	out.Continuation = false
	return out
}

// Transaction is one normalized statement line. It is not modified after assembly.
type Transaction struct {
	Date        time.Time  `json:"date"`
	ValueDate   *time.Time `json:"value_date,omitempty"`
	Description string     `json:"description"`
	Amount      Money      `json:"amount"`
	Balance     *Money     `json:"balance,omitempty"`
	Currency    string     `json:"currency"`
	Reference   string     `json:"reference,omitempty"`
	Source      SourceRef  `json:"source"`
}

// Key identifies a transaction for duplicate detection.
func (t Transaction) Key() string {
	return fmt.Sprintf("%s|%s|%s", t.Date.Format("2006-01-02"), t.Amount.Amount.String(),
		strings.ToLower(strings.Join(strings.Fields(t.Description), " ")))
}

// ResultKind tags a RowResult.
type ResultKind int

const (
	ResultParsed ResultKind = iota
	ResultDefective
	ResultFragment
)

func (k ResultKind) String() string {
	switch k {
	case ResultParsed:
		return "parsed"
	case ResultDefective:
		return "defective"
	case ResultFragment:
		return "fragment"
	}
	return "unknown"
}

// RowResult is the outcome of normalizing one row. Parse failures are carried
// as Defective results rather than returned as errors.
type RowResult struct {
	Kind        ResultKind
	Transaction Transaction
	Row         RawRow
	Reason      string
	Err         error
}

// Parsed wraps a normalized transaction with the row it came from.
func Parsed(tx Transaction, row RawRow) RowResult {
	return RowResult{Kind: ResultParsed, Transaction: tx, Row: row}
}

// Defective marks a row whose required fields could not be parsed.
func Defective(row RawRow, reason string, err error) RowResult {
	return RowResult{Kind: ResultDefective, Row: row, Reason: reason, Err: err}
}

// Fragment marks a continuation line that belongs to a row on an earlier page.
func Fragment(row RawRow) RowResult {
	return RowResult{Kind: ResultFragment, Row: row}
}

// Source returns the row's source reference.
func (r RowResult) Source() SourceRef {
	if r.Kind == ResultParsed {
		return r.Transaction.Source
	}
	return r.Row.Source
}

// DefectiveRow is a retained row that failed normalization.
type DefectiveRow struct {
	Row    RawRow `json:"row"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

// NewDefectiveRow converts a Defective result.
func NewDefectiveRow(r RowResult) DefectiveRow {
	d := DefectiveRow{Row: r.Row, Reason: r.Reason}
	if r.Err != nil {
		d.Error = r.Err.Error()
	}
	return d
}
