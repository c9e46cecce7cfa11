package extractor

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"fjacquet/statement-ledger/internal/currencyutils"
	"fjacquet/statement-ledger/internal/dateutils"
	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/parsererror"
)

// InferredTemplateName names templates built by InferTemplate.
const InferredTemplateName = "inferred"

// minTableRows is the number of date-leading lines needed to call something a table.
const minTableRows = 2

// headerKeywords map header words to roles, most specific first.
var headerKeywords = []struct {
	re   *regexp.Regexp
	role models.ColumnRole
}{
	{regexp.MustCompile(`(?i)\bvalue\s*(date|dt)\b|^valuedate$`), models.RoleValueDate},
	{regexp.MustCompile(`(?i)credit\s*/?\s*debit|debit\s*/?\s*credit|\bcr\s*/\s*dr\b|\bdr\s*/\s*cr\b`), models.RoleIndicator},
	{regexp.MustCompile(`(?i)date|\bdt\b`), models.RoleDate},
	{regexp.MustCompile(`(?i)balance`), models.RoleBalance},
	{regexp.MustCompile(`(?i)debit|withdrawal|money\s+out|paid\s+out`), models.RoleDebit},
	{regexp.MustCompile(`(?i)credit|deposit|money\s+in|paid\s+in`), models.RoleCredit},
	{regexp.MustCompile(`(?i)amount`), models.RoleAmount},
	{regexp.MustCompile(`(?i)currency|\bccy\b`), models.RoleCurrency},
	{regexp.MustCompile(`(?i)\bref|cheque|check|\bchq`), models.RoleReference},
	{regexp.MustCompile(`(?i)description|particulars|narration|details|transaction|memo|payee`), models.RoleDescription},
}

func keywordRole(cell string) (models.ColumnRole, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" || len(cell) > 40 {
		return "", false
	}
	for _, k := range headerKeywords {
		if k.re.MatchString(cell) {
			return k.role, true
		}
	}
	return "", false
}

// inferLine is one candidate table line with its cells and, for positional
// documents, their extents.
type inferLine struct {
	cells []string
	spans []span
}

// InferTemplate builds a generic template for a document no registered
// template describes. It returns a DataExtractionError (ErrNoTable) when
// nothing tabular is found.
func (e *Extractor) InferTemplate(doc *models.Document) (*models.Template, error) {
	if doc == nil || doc.IsEmpty() {
		return nil, &parsererror.DataExtractionError{Stage: "infer", Reason: "document is empty"}
	}

	delimited := false
	probe := newBuilder(&models.Template{}, doc.Format())
	var lines []inferLine
	for _, page := range doc.Pages() {
		for _, line := range page.Lines() {
			if len(line) == 1 && line[0].Cells != nil {
				delimited = true
			}
			spans := probe.lineSpans(line)
			if len(spans) == 0 {
				continue
			}
			lines = append(lines, inferLine{cells: spanTexts(spans), spans: spans})
		}
	}

	tmpl := &models.Template{
		Name:    InferredTemplateName,
		Generic: true,
		Formats: []models.Format{doc.Format()},
		Layout:  models.Layout{Mode: models.LayoutPositional},
	}
	if delimited {
		tmpl.Layout.Mode = models.LayoutDelimited
	}

	var dateSamples []string
	header, at := findKeywordHeader(lines)
	if header != nil {
		tmpl.Columns = columnsFromHeader(header, delimited)
		if !usableColumns(tmpl.Columns) {
			header = nil
		} else {
			dateSamples = columnSamples(lines[at+1:], header, tmpl.Columns, models.RoleDate, delimited)
		}
	}
	if header == nil {
		columns, samples, err := columnsFromContent(lines, delimited)
		if err != nil {
			return nil, err
		}
		tmpl.Columns = columns
		dateSamples = samples
	}

	dayFirst, _ := dateutils.DetectDayFirst(dateSamples)
	tmpl.Locale.DayFirst = dayFirst
	tmpl.Currency = currencyutils.DominantCurrency(strings.Split(doc.Text(0), "\n"))
	tmpl.Locale.DecimalSeparator, tmpl.Locale.ThousandsSeparator = detectSeparators(doc.Text(0))

	hasRole := func(r models.ColumnRole) bool {
		for _, c := range tmpl.Columns {
			if c.Role == r {
				return true
			}
		}
		return false
	}
	switch {
	case hasRole(models.RoleDebit) && hasRole(models.RoleCredit):
		tmpl.Amount.Convention = models.ConventionDebitCredit
	case hasRole(models.RoleIndicator) && hasRole(models.RoleAmount):
		tmpl.Amount.Convention = models.ConventionIndicator
	default:
		tmpl.Amount.Convention = models.ConventionSigned
	}
	tmpl.Order = inferOrder(dateSamples, dayFirst)

	if err := tmpl.Compile(); err != nil {
		return nil, &parsererror.DataExtractionError{Stage: "infer", Reason: err.Error()}
	}
	e.logger.Debug("Inferred generic template",
		logging.F(logging.FieldCount, len(tmpl.Columns)),
		logging.F(logging.FieldFormat, string(tmpl.Layout.Mode)),
		logging.F("header_found", header != nil))
	return tmpl, nil
}

// usableColumns reports whether the roles give a date and a way to read amounts.
func usableColumns(cols []models.Column) bool {
	roles := make(map[models.ColumnRole]bool)
	for _, c := range cols {
		roles[c.Role] = true
	}
	if !roles[models.RoleDate] {
		return false
	}
	return roles[models.RoleAmount] || (roles[models.RoleDebit] && roles[models.RoleCredit])
}

// findKeywordHeader returns the first line whose cells name a date column
// and an amount-like column.
func findKeywordHeader(lines []inferLine) (*inferLine, int) {
	for i := range lines {
		hasDate, hasAmount := false, false
		for _, c := range lines[i].cells {
			role, ok := keywordRole(c)
			if !ok {
				continue
			}
			switch role {
			case models.RoleDate:
				hasDate = true
			case models.RoleAmount, models.RoleDebit, models.RoleCredit, models.RoleBalance:
				hasAmount = true
			}
		}
		if hasDate && hasAmount {
			return &lines[i], i
		}
	}
	return nil, -1
}

// columnsFromHeader maps header cells to columns. Roles other than
// description are used once; an empty header cell extends a description.
func columnsFromHeader(header *inferLine, delimited bool) []models.Column {
	used := make(map[models.ColumnRole]bool)
	var cols []models.Column
	for i, cell := range header.cells {
		cell = strings.TrimSpace(cell)
		col := models.Column{Name: fmt.Sprintf("col%d", i+1), Role: models.RoleIgnore, Header: cell}
		if delimited {
			idx := i
			col.Index = &idx
		}

		role, ok := keywordRole(cell)
		switch {
		case cell == "" && len(cols) > 0 && cols[len(cols)-1].Role == models.RoleDescription:
			col.Role = models.RoleDescription
		case ok && (!used[role] || role == models.RoleDescription):
			col.Role = role
		case ok && role == models.RoleDate && !used[models.RoleValueDate]:
			col.Role = models.RoleValueDate
		}
		used[col.Role] = true
		if !delimited && col.Header == "" {
			continue
		}
		cols = append(cols, col)
	}
	return cols
}

// columnSamples returns the cells found under the column with role.
func columnSamples(lines []inferLine, header *inferLine, cols []models.Column, role models.ColumnRole, delimited bool) []string {
	target := -1
	for i, c := range cols {
		if c.Role == role {
			target = i
			break
		}
	}
	if target < 0 {
		return nil
	}
	var out []string
	if delimited {
		idx := *cols[target].Index
		for _, l := range lines {
			if idx < len(l.cells) {
				out = append(out, l.cells[idx])
			}
		}
		return out
	}
	// positional: the span whose centre is nearest the header span
	h := findSpan(header.spans, cols[target].Header)
	if h == nil {
		return nil
	}
	for _, l := range lines {
		best, dist := "", math.Inf(1)
		for _, s := range l.spans {
			if d := math.Abs(s.center() - h.center()); d < dist {
				best, dist = s.text, d
			}
		}
		if best != "" {
			out = append(out, best)
		}
	}
	return out
}

func findSpan(spans []span, text string) *span {
	for i := range spans {
		if spans[i].text == text {
			return &spans[i]
		}
	}
	return nil
}

// columnsFromContent assigns roles from the cells of date-leading lines:
// the column with the most dates is the date, the trailing numeric columns
// are the amount and balance, and the widest text column is the description.
func columnsFromContent(lines []inferLine, delimited bool) ([]models.Column, []string, error) {
	var rows []inferLine
	for _, l := range lines {
		for _, c := range l.cells {
			if dateutils.IsDate(c, "", true) || dateutils.IsDate(c, "", false) {
				rows = append(rows, l)
				break
			}
		}
	}
	if len(rows) < minTableRows {
		return nil, nil, &parsererror.DataExtractionError{Stage: "infer", Reason: "no transaction table found"}
	}

	// the widest date-bearing line fixes the column layout
	width, richest := 0, rows[0]
	for _, r := range rows {
		if len(r.cells) > width {
			width, richest = len(r.cells), r
		}
	}
	if width < 2 {
		return nil, nil, &parsererror.DataExtractionError{Stage: "infer", Reason: "rows have a single column"}
	}

	columnCells := func(r inferLine) []string {
		if delimited {
			return r.cells
		}
		return positionCells(richest.spans, r.spans)
	}

	type stats struct {
		dates, numbers, filled int
		textLen                int
	}
	st := make([]stats, width)
	for _, r := range rows {
		for i, c := range columnCells(r) {
			if i >= width {
				break
			}
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			st[i].filled++
			switch {
			case dateutils.IsDate(c, "", true) || dateutils.IsDate(c, "", false):
				st[i].dates++
			case currencyutils.LooksLikeAmount(c):
				st[i].numbers++
			default:
				st[i].textLen += len(c)
			}
		}
	}

	roles := make([]models.ColumnRole, width)
	for i := range roles {
		roles[i] = models.RoleIgnore
	}

	dateCol := 0
	for i := range st {
		if st[i].dates > st[dateCol].dates {
			dateCol = i
		}
	}
	roles[dateCol] = models.RoleDate

	var numeric []int
	for i := width - 1; i > dateCol; i-- {
		if st[i].filled == 0 || st[i].numbers*2 < st[i].filled {
			if len(numeric) > 0 {
				break
			}
			continue
		}
		numeric = append(numeric, i)
	}
	switch len(numeric) {
	case 0:
		return nil, nil, &parsererror.DataExtractionError{Stage: "infer", Reason: "no amount column"}
	case 1:
		roles[numeric[0]] = models.RoleAmount
	case 2:
		roles[numeric[0]] = models.RoleBalance
		roles[numeric[1]] = models.RoleAmount
	default:
		// sparse money out / money in pair ahead of the balance
		roles[numeric[0]] = models.RoleBalance
		roles[numeric[1]] = models.RoleCredit
		roles[numeric[2]] = models.RoleDebit
	}

	descCol := -1
	for i := range st {
		if roles[i] != models.RoleIgnore {
			continue
		}
		if descCol < 0 || st[i].textLen > st[descCol].textLen {
			descCol = i
		}
	}
	if descCol >= 0 && st[descCol].textLen > 0 {
		roles[descCol] = models.RoleDescription
	}

	cols := make([]models.Column, width)
	bounds := spanBounds(richest.spans)
	for i := range cols {
		cols[i] = models.Column{Name: fmt.Sprintf("col%d", i+1), Role: roles[i]}
		if delimited {
			idx := i
			cols[i].Index = &idx
		} else {
			cols[i].Start, cols[i].End = bounds[i].lo, bounds[i].hi
		}
	}

	var samples []string
	for _, r := range rows {
		if cells := columnCells(r); dateCol < len(cells) {
			samples = append(samples, cells[dateCol])
		}
	}
	return cols, samples, nil
}

// spanBounds turns the spans of a line into contiguous column ranges split
// at the midpoints between neighbours.
func spanBounds(spans []span) []bound {
	out := make([]bound, len(spans))
	for i, s := range spans {
		lo, hi := 0.0, math.MaxFloat32
		if i > 0 {
			lo = (spans[i-1].x1 + s.x0) / 2
		}
		if i < len(spans)-1 {
			hi = (s.x1 + spans[i+1].x0) / 2
		}
		out[i] = bound{lo: lo, hi: hi, set: true}
	}
	return out
}

// positionCells places the spans of a line into the columns laid out by ref.
func positionCells(ref, spans []span) []string {
	bounds := spanBounds(ref)
	cells := make([]string, len(bounds))
	for _, s := range spans {
		c := s.center()
		for i, b := range bounds {
			if c >= b.lo && c < b.hi {
				cells[i] = strings.TrimSpace(cells[i] + " " + s.text)
				break
			}
		}
	}
	return cells
}

var (
	commaDecimalRe = regexp.MustCompile(`\d[.' ]?\d*,\d{2}\b`)
	dotDecimalRe   = regexp.MustCompile(`\d,?\d*\.\d{2}\b`)
	dottedDateRe   = regexp.MustCompile(`\b\d{1,2}\.\d{1,2}\.\d{2,4}\b`)
)

// detectSeparators picks the decimal convention used by most amounts.
func detectSeparators(text string) (decimal, thousands string) {
	text = dottedDateRe.ReplaceAllString(text, " ")
	comma := len(commaDecimalRe.FindAllString(text, -1))
	dot := len(dotDecimalRe.FindAllString(text, -1))
	if comma > dot {
		if strings.Contains(text, "'") {
			return ",", "'"
		}
		return ",", "."
	}
	return ".", ","
}

// inferOrder reports descending when the first parseable date is after the last.
func inferOrder(samples []string, dayFirst bool) models.Order {
	var dates []int64
	for _, s := range samples {
		if d, err := dateutils.ParseDate(s, "", dayFirst); err == nil {
			dates = append(dates, d.Unix())
		}
	}
	if len(dates) >= 2 && dates[0] > dates[len(dates)-1] {
		return models.OrderDescending
	}
	return models.OrderAscending
}
