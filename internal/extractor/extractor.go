// Package extractor turns the blocks of a loaded document into raw table rows
// aligned to the columns of a layout template. One data-driven algorithm
// serves every template; the template only supplies parameters.
package extractor

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"fjacquet/statement-ledger/internal/dateutils"
	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/textutils"
)

const (
	// HeaderSimilarity is the minimum similarity for a cell to match a column header.
	HeaderSimilarity = 0.8
	// headerFraction of the template headers must match for a line to be a header.
	headerFraction = 0.6
	// spanGap is the number of spaces that separates two columns of a text line.
	spanGap = 2
)

// Boilerplate lines dropped in addition to the template exclusions.
var defaultExclusions = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bpage\s+\d+(\s*(of|/)\s*\d+)?\s*$`),
	regexp.MustCompile(`(?i)^\s*page\s+\d+\b`),
	regexp.MustCompile(`(?i)\b(brought|carried)\s+forward\b`),
	regexp.MustCompile(`(?i)\bbalance\s+(b/f|c/f)\b`),
	regexp.MustCompile(`(?i)\b(opening|closing|start|end|starting|ending)\s+balance\b`),
	regexp.MustCompile(`(?i)^\s*(sub\s*)?totals?\b`),
}

// Table is the extraction result.
type Table struct {
	Rows []models.RawRow
	// Headers are the cell texts of the first header line found.
	Headers []string
}

// Extractor slices documents into raw rows.
type Extractor struct {
	logger logging.Logger
}

// New returns an Extractor.
func New(logger logging.Logger) *Extractor {
	return &Extractor{logger: logging.For(logger, "extractor")}
}

// Extract returns the raw rows of doc in document order. The only error is
// the cancellation of ctx.
func (e *Extractor) Extract(ctx context.Context, doc *models.Document, tmpl *models.Template) ([]models.RawRow, error) {
	table, err := e.ExtractTable(ctx, doc, tmpl)
	if err != nil {
		return nil, err
	}
	return table.Rows, nil
}

// ExtractTable is Extract that also reports the detected header cells.
func (e *Extractor) ExtractTable(ctx context.Context, doc *models.Document, tmpl *models.Template) (Table, error) {
	if doc == nil || tmpl == nil {
		return Table{}, nil
	}

	b := newBuilder(tmpl, doc.Format())
	pages := doc.Pages()
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return Table{}, fmt.Errorf("extract page %d: %w", page.Number, err)
		}
		b.startPage()
		if tmpl.Layout.Mode == models.LayoutPositional {
			b.positionalPage(page)
		} else {
			b.delimitedPage(page, i, pages)
		}
	}

	e.logger.Debug("Extracted table rows",
		logging.F(logging.FieldTemplate, tmpl.Name),
		logging.F(logging.FieldCount, len(b.rows)),
		logging.F(logging.FieldPage, len(pages)))
	return Table{Rows: b.rows, Headers: b.headers}, nil
}

// builder accumulates rows across pages.
type builder struct {
	tmpl       *models.Template
	format     models.Format
	exclusions []*regexp.Regexp
	dateIdx    int
	textCols   []int

	rows []models.RawRow
	// open is the row taking continuation lines, -1 at the top of a page.
	open    int
	headers []string

	// delimited mode
	mapping   []int
	headerSet bool

	// positional mode
	bounds []bound
}

func newBuilder(tmpl *models.Template, format models.Format) *builder {
	b := &builder{
		tmpl:       tmpl,
		format:     format,
		exclusions: append(append([]*regexp.Regexp(nil), defaultExclusions...), tmpl.ExclusionPatterns()...),
		dateIdx:    tmpl.ColumnIndex(models.RoleDate),
		open:       -1,
	}
	for i, c := range tmpl.Columns {
		switch c.Role {
		case models.RoleDescription, models.RoleReference:
			b.textCols = append(b.textCols, i)
		}
	}
	return b
}

func (b *builder) startPage() { b.open = -1 }

func (b *builder) excluded(text string) bool {
	for _, re := range b.exclusions {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (b *builder) isHeader(cells []string) bool {
	headers := b.tmpl.Headers()
	if len(headers) == 0 {
		return false
	}
	need := int(math.Ceil(headerFraction * float64(len(headers))))
	if need < 2 && len(headers) >= 2 {
		need = 2
	}
	matched := textutils.MatchFraction(cells, headers, HeaderSimilarity) * float64(len(headers))
	return int(math.Round(matched)) >= need
}

func (b *builder) recordHeader(cells []string) {
	if b.headers == nil {
		b.headers = append([]string(nil), cells...)
	}
}

// accept applies the row rules to one aligned line: a valid date starts a
// row, anything else continues the open row. Continuations at the top of a
// later page become fragments for the assembler.
func (b *builder) accept(cells []string, src models.SourceRef, text string) {
	if b.excluded(text) {
		return
	}
	row := models.RawRow{Cells: cells, Source: src, Text: text}
	if dateutils.IsDate(row.Cell(b.dateIdx), b.tmpl.DateLayout(), b.tmpl.Locale.DayFirst) {
		b.rows = append(b.rows, row)
		b.open = len(b.rows) - 1
		return
	}
	if !b.continues(row) {
		return
	}
	if b.open >= 0 {
		fragment := b.rows[b.open].Continuation
		merged := b.rows[b.open].Merge(row)
		merged.Continuation = fragment
		b.rows[b.open] = merged
		return
	}
	if len(b.rows) == 0 {
		// preamble before the first transaction
		return
	}
	row.Continuation = true
	b.rows = append(b.rows, row)
	b.open = len(b.rows) - 1
}

// continues reports whether a non-date line belongs to the row it would
// continue. A line with text always does. A line filling only numeric cells
// must land on cells that row left empty, which keeps a page-split amount and
// drops stray totals.
func (b *builder) continues(row models.RawRow) bool {
	for _, i := range b.textCols {
		if row.Cell(i) != "" {
			return true
		}
	}
	target := b.open
	if target < 0 {
		target = len(b.rows) - 1
	}
	filled := false
	for i := range row.Cells {
		if row.Cell(i) == "" {
			continue
		}
		if target < 0 || b.rows[target].Cell(i) != "" {
			return false
		}
		filled = true
	}
	return filled
}

// delimitedPage handles records that are already split into cells.
func (b *builder) delimitedPage(page models.Page, pageIdx int, pages []models.Page) {
	if pageIdx == 0 {
		b.resolveMapping(pages)
	}
	for _, line := range page.Lines() {
		cells, ok := b.delimitedCells(line)
		if !ok {
			continue
		}
		if b.isHeader(cells) {
			if !b.headerSet {
				b.mapping = b.mapHeader(cells)
				b.headerSet = true
				b.recordHeader(cells)
			}
			continue
		}
		if b.mapping == nil {
			// preamble before the header row
			continue
		}
		b.accept(b.align(cells), models.SourceRef{Page: page.Number, Line: line[0].Line}, models.LineText(line))
	}
}

// resolveMapping sets the column mapping up front when the document has no
// header row: declared indexes first, then column order.
func (b *builder) resolveMapping(pages []models.Page) {
	for _, page := range pages {
		for _, line := range page.Lines() {
			if cells, ok := b.delimitedCells(line); ok && b.isHeader(cells) {
				return
			}
		}
	}
	b.mapping = make([]int, len(b.tmpl.Columns))
	for i, c := range b.tmpl.Columns {
		b.mapping[i] = i
		if c.Index != nil {
			b.mapping[i] = *c.Index
		}
	}
}

func (b *builder) mapHeader(cells []string) []int {
	mapping := make([]int, len(b.tmpl.Columns))
	used := make(map[int]bool)
	for i, c := range b.tmpl.Columns {
		mapping[i] = -1
		if c.Index != nil {
			mapping[i] = *c.Index
			used[*c.Index] = true
		}
	}
	for i, c := range b.tmpl.Columns {
		if c.Index != nil || c.Header == "" {
			continue
		}
		if j := bestMatch(cells, c.Header, used); j >= 0 {
			mapping[i] = j
			used[j] = true
		}
	}
	return mapping
}

// bestMatch returns the index of the unused cell most similar to header, or -1.
func bestMatch(cells []string, header string, used map[int]bool) int {
	best, bestScore := -1, 0.0
	for j, cell := range cells {
		if used[j] || !textutils.FuzzyEqual(cell, header, HeaderSimilarity) {
			continue
		}
		if s := textutils.Similarity(cell, header); s > bestScore {
			best, bestScore = j, s
		}
	}
	return best
}

func (b *builder) align(cells []string) []string {
	out := make([]string, len(b.tmpl.Columns))
	for i, j := range b.mapping {
		if j >= 0 && j < len(cells) {
			out[i] = strings.TrimSpace(cells[j])
		}
	}
	return out
}

// delimitedCells returns the cells of a line: the loader's cells, or the
// line text split on the template delimiter.
func (b *builder) delimitedCells(line []models.Block) ([]string, bool) {
	if len(line) == 1 && line[0].Cells != nil {
		return line[0].Cells, true
	}
	d := b.tmpl.DelimiterRune()
	if d == 0 {
		return nil, false
	}
	r := csv.NewReader(strings.NewReader(models.LineText(line)))
	r.Comma = d
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	record, err := r.Read()
	if err != nil || len(record) < 2 {
		return nil, false
	}
	return record, true
}

// span is a positioned run of text within a line.
type span struct {
	text   string
	x0, x1 float64
}

func (s span) center() float64 { return (s.x0 + s.x1) / 2 }

// bound is the horizontal range [lo, hi) of one column.
type bound struct {
	lo, hi float64
	set    bool
}

func (b *builder) lineSpans(line []models.Block) []span {
	if len(line) == 1 && line[0].Cells != nil {
		out := make([]span, 0, len(line[0].Cells))
		for i, c := range line[0].Cells {
			out = append(out, span{text: c, x0: float64(i), x1: float64(i) + 1})
		}
		return out
	}
	if len(line) == 1 && b.format != models.FormatPDF {
		blk := line[0]
		var out []span
		for _, s := range textutils.SplitOnGaps(blk.Text, spanGap) {
			out = append(out, span{text: s.Text, x0: blk.Box.X0 + float64(s.Start), x1: blk.Box.X0 + float64(s.End)})
		}
		return out
	}
	out := make([]span, 0, len(line))
	for _, blk := range line {
		if c := strings.TrimSpace(blk.Content()); c != "" {
			out = append(out, span{text: c, x0: blk.Box.X0, x1: blk.Box.X1})
		}
	}
	return out
}

func spanTexts(spans []span) []string {
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.text
	}
	return out
}

// declaredBounds returns the start/end bounds of the template, or nil when a
// column lacks them.
func (b *builder) declaredBounds() []bound {
	out := make([]bound, len(b.tmpl.Columns))
	for i, c := range b.tmpl.Columns {
		if !c.HasBounds() {
			return nil
		}
		out[i] = bound{lo: c.Start, hi: c.End, set: true}
	}
	return out
}

// headerBounds derives column ranges from a header line: each matched header
// extends to the midpoints between it and its neighbours. Declared bounds
// win over derived ones.
func (b *builder) headerBounds(spans []span) []bound {
	out := make([]bound, len(b.tmpl.Columns))
	type extent struct {
		col int
		s   span
	}
	var matched []extent
	used := make(map[int]bool)
	texts := spanTexts(spans)
	for i, c := range b.tmpl.Columns {
		if c.HasBounds() {
			out[i] = bound{lo: c.Start, hi: c.End, set: true}
			continue
		}
		if c.Header == "" {
			continue
		}
		if j := bestMatch(texts, c.Header, used); j >= 0 {
			used[j] = true
			matched = append(matched, extent{col: i, s: spans[j]})
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].s.x0 < matched[j].s.x0 })

	for k, m := range matched {
		lo, hi := math.Inf(-1), math.Inf(1)
		if k > 0 {
			lo = (matched[k-1].s.x1 + m.s.x0) / 2
		}
		if k < len(matched)-1 {
			hi = (m.s.x1 + matched[k+1].s.x0) / 2
		}
		out[m.col] = bound{lo: lo, hi: hi, set: true}
	}
	return out
}

// positionalPage slices each line into columns by span centre. A header on
// the page (re)computes the column bounds; pages without one reuse the last
// bounds, which start out as the first page's header.
func (b *builder) positionalPage(page models.Page) {
	lines := page.Lines()
	spansByLine := make([][]span, len(lines))
	headerAt := -1
	for i, line := range lines {
		spansByLine[i] = b.lineSpans(line)
		if headerAt < 0 && b.isHeader(spanTexts(spansByLine[i])) {
			headerAt = i
		}
	}

	start := 0
	switch {
	case headerAt >= 0:
		b.bounds = b.headerBounds(spansByLine[headerAt])
		b.recordHeader(spanTexts(spansByLine[headerAt]))
		start = headerAt + 1
	case b.bounds == nil:
		b.bounds = b.declaredBounds()
		if b.bounds == nil {
			// no table has started yet
			return
		}
	}

	for i := start; i < len(lines); i++ {
		spans := spansByLine[i]
		if len(spans) == 0 || b.isHeader(spanTexts(spans)) {
			continue
		}
		cells := b.assign(spans)
		text := strings.Join(spanTexts(spans), " ")
		b.accept(cells, models.SourceRef{Page: page.Number, Line: lines[i][0].Line}, text)
	}
}

func (b *builder) assign(spans []span) []string {
	cells := make([]string, len(b.tmpl.Columns))
	for _, s := range spans {
		c := s.center()
		for j, bd := range b.bounds {
			if bd.set && c >= bd.lo && c < bd.hi {
				if cells[j] == "" {
					cells[j] = s.text
				} else {
					cells[j] += " " + s.text
				}
				break
			}
		}
	}
	return cells
}
