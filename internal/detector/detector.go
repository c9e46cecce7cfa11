// Package detector scores layout templates against a loaded document and
// picks the one that best describes it.
package detector

import (
	"math"
	"sort"

	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/textutils"
)

// Signal weights.
const (
	WeightBankName     = 0.30
	WeightHeaderPhrase = 0.20
	WeightColumns      = 0.35
	WeightColumnCount  = 0.10
	WeightSymbol       = 0.05
)

// HeaderSimilarity is the minimum similarity for a cell to match a column header.
const HeaderSimilarity = 0.8

// DefaultConfidenceFloor is used when New is given a non-positive floor.
const DefaultConfidenceFloor = 0.5

// scanPages is how many leading pages are searched for anchors and headers.
const scanPages = 2

// Signals holds the per-signal values in [0, 1]; nil means the signal did
// not apply to the template.
type Signals struct {
	BankName     *float64 `json:"bank_name,omitempty"`
	HeaderPhrase *float64 `json:"header_phrase,omitempty"`
	Columns      *float64 `json:"columns,omitempty"`
	ColumnCount  *float64 `json:"column_count,omitempty"`
	Symbol       *float64 `json:"symbol,omitempty"`
}

// Score is the confidence of one template.
type Score struct {
	Template   string  `json:"template"`
	Priority   int     `json:"priority"`
	Generic    bool    `json:"generic,omitempty"`
	Confidence float64 `json:"confidence"`
	Signals    Signals `json:"signals"`
	// FormatMismatch is set when the template does not accept the document format.
	FormatMismatch bool `json:"format_mismatch,omitempty"`
}

// Detection is the detector verdict. Template is nil when Unknown.
type Detection struct {
	Template   *models.Template `json:"-"`
	Confidence float64          `json:"confidence"`
	Unknown    bool             `json:"unknown"`
	Scores     []Score          `json:"scores"`
}

// Best returns the highest ranked score, if any.
func (d Detection) Best() (Score, bool) {
	if len(d.Scores) == 0 {
		return Score{}, false
	}
	return d.Scores[0], true
}

// Detector ranks templates. It holds no per-document state and is safe for
// concurrent use.
type Detector struct {
	floor  float64
	logger logging.Logger
}

// New returns a Detector with the given confidence floor.
func New(floor float64, logger logging.Logger) *Detector {
	if floor <= 0 {
		floor = DefaultConfidenceFloor
	}
	return &Detector{floor: floor, logger: logging.For(logger, "detector")}
}

// Floor returns the confidence floor.
func (d *Detector) Floor() float64 { return d.floor }

// Detect scores every template against doc. The result only depends on the
// document and the template set.
func (d *Detector) Detect(doc *models.Document, templates []*models.Template) Detection {
	view := newDocView(doc)

	scores := make([]Score, 0, len(templates))
	byName := make(map[string]*models.Template, len(templates))
	for _, t := range templates {
		byName[t.Name] = t
		scores = append(scores, scoreTemplate(view, doc.Format(), t))
	}

	sort.SliceStable(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Generic != b.Generic {
			return !a.Generic
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.Template < b.Template
	})

	det := Detection{Scores: scores, Unknown: true}
	if best, ok := det.Best(); ok {
		det.Confidence = best.Confidence
		if best.Confidence >= d.floor {
			det.Template = byName[best.Template]
			det.Unknown = false
		}
	}

	fields := []logging.Field{
		logging.F(logging.FieldConfidence, det.Confidence),
		logging.F(logging.FieldCount, len(templates)),
	}
	if det.Template != nil {
		fields = append(fields, logging.F(logging.FieldTemplate, det.Template.Name))
	}
	d.logger.Debug("Layout detection finished", fields...)
	return det
}

func scoreTemplate(view *docView, format models.Format, t *models.Template) Score {
	score := Score{Template: t.Name, Priority: t.Priority, Generic: t.Generic}
	if !t.Supports(format) {
		score.FormatMismatch = true
		return score
	}

	var sum, weights float64
	apply := func(weight float64, value float64) *float64 {
		sum += weight * value
		weights += weight
		return &value
	}

	if len(t.Anchors.BankNames) > 0 {
		found := 0.0
		for _, name := range t.Anchors.BankNames {
			if textutils.ContainsFold(view.text, name) {
				found = 1
				break
			}
		}
		score.Signals.BankName = apply(WeightBankName, found)
	}

	if len(t.Anchors.HeaderPhrases) > 0 {
		found := 0
		for _, phrase := range t.Anchors.HeaderPhrases {
			if textutils.ContainsFold(view.text, phrase) {
				found++
			}
		}
		score.Signals.HeaderPhrase = apply(WeightHeaderPhrase, float64(found)/float64(len(t.Anchors.HeaderPhrases)))
	}

	if headers := t.Headers(); len(headers) > 0 {
		score.Signals.Columns = apply(WeightColumns, view.bestHeaderMatch(headers))
	}

	if t.Layout.Mode == models.LayoutDelimited && view.cellWidth > 0 {
		same := 0.0
		if view.cellWidth == len(t.Columns) {
			same = 1
		}
		score.Signals.ColumnCount = apply(WeightColumnCount, same)
	}

	if re := t.SymbolPattern(); re != nil {
		seen := 0.0
		if re.MatchString(view.text) {
			seen = 1
		}
		score.Signals.Symbol = apply(WeightSymbol, seen)
	}

	if weights > 0 {
		score.Confidence = math.Round(sum/weights*10000) / 10000
	}
	return score
}

// docView caches what the signals read from the leading pages.
type docView struct {
	text  string
	lines [][]string
	// cellWidth is the most common cell count of pre-split rows, 0 when none.
	cellWidth int
}

func newDocView(doc *models.Document) *docView {
	v := &docView{text: doc.Text(scanPages)}
	widths := make(map[int]int)

	for i, page := range doc.Pages() {
		if i >= scanPages {
			break
		}
		for _, line := range page.Lines() {
			cells := models.LineCells(line)
			if len(cells) == 0 {
				continue
			}
			v.lines = append(v.lines, cells)
			if len(line) == 1 && line[0].Cells != nil {
				widths[len(line[0].Cells)]++
			}
		}
	}

	best := 0
	for w, n := range widths {
		if n > best || (n == best && w < v.cellWidth) {
			v.cellWidth, best = w, n
		}
	}
	return v
}

// bestHeaderMatch returns the largest fraction of headers matched by the
// cells of a single line.
func (v *docView) bestHeaderMatch(headers []string) float64 {
	best := 0.0
	for _, cells := range v.lines {
		if f := textutils.MatchFraction(cells, headers, HeaderSimilarity); f > best {
			best = f
			if best == 1 {
				break
			}
		}
	}
	return best
}
