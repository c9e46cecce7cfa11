package models

import (
	"crypto/sha256"
	"encoding/hex"
	"mime"
	"sort"
	"strings"

	"fjacquet/statement-ledger/internal/textutils"
)

// Format is the declared media type of an uploaded statement.
type Format string

const (
	FormatPDF  Format = "application/pdf"
	FormatCSV  Format = "text/csv"
	FormatText Format = "text/plain"
	FormatXML  Format = "application/xml"
)

// AllFormats lists the formats the loader understands.
var AllFormats = []Format{FormatPDF, FormatCSV, FormatText, FormatXML}

// ParseFormat maps a MIME type (parameters allowed) or a short alias to a Format.
// The second result holds the charset parameter when present.
func ParseFormat(declared string) (Format, string, bool) {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return "", "", false
	}
	mediaType, params, err := mime.ParseMediaType(declared)
	if err != nil {
		mediaType = strings.ToLower(declared)
	}
	charset := params["charset"]

	switch mediaType {
	case "application/pdf", "pdf":
		return FormatPDF, charset, true
	case "text/csv", "application/csv", "text/comma-separated-values", "csv":
		return FormatCSV, charset, true
	case "text/plain", "txt", "text":
		return FormatText, charset, true
	case "application/xml", "text/xml", "xml", "camt", "camt053", "camt.053":
		return FormatXML, charset, true
	}
	return "", charset, false
}

// BBox is the bounding geometry of a block. PDF spans are in points; text
// lines use character offsets for X and the line index for Y.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// CenterX returns the horizontal centre of the box.
func (b BBox) CenterX() float64 {
	return (b.X0 + b.X1) / 2
}

// Width returns X1 - X0.
func (b BBox) Width() float64 {
	return b.X1 - b.X0
}

// Block is one text span or line of a page. Cells is set when the source
// format is already split into fields (CSV records, XML entries).
type Block struct {
	Text  string   `json:"text"`
	Cells []string `json:"cells,omitempty"`
	Box   BBox     `json:"box"`
	Line  int      `json:"line"`
}

// Content returns the block text, joining cells when the block is pre-split.
func (b Block) Content() string {
	if b.Text != "" || len(b.Cells) == 0 {
		return b.Text
	}
	return strings.Join(b.Cells, " ")
}

func (b Block) clone() Block {
	if b.Cells != nil {
		b.Cells = append([]string(nil), b.Cells...)
	}
	return b
}

// Page is an ordered list of blocks, numbered from 1.
type Page struct {
	Number int     `json:"number"`
	Blocks []Block `json:"blocks"`
}

// Lines groups the page blocks by line index, in reading order. Blocks of one
// line are sorted by X.
func (p Page) Lines() [][]Block {
	if len(p.Blocks) == 0 {
		return nil
	}
	byLine := make(map[int][]Block)
	var order []int
	for _, b := range p.Blocks {
		if _, ok := byLine[b.Line]; !ok {
			order = append(order, b.Line)
		}
		byLine[b.Line] = append(byLine[b.Line], b)
	}
	sort.Ints(order)

	lines := make([][]Block, 0, len(order))
	for _, n := range order {
		blocks := byLine[n]
		sort.SliceStable(blocks, func(i, j int) bool { return blocks[i].Box.X0 < blocks[j].Box.X0 })
		lines = append(lines, blocks)
	}
	return lines
}

// Text returns the page as newline separated lines.
func (p Page) Text() string {
	var sb strings.Builder
	for i, line := range p.Lines() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(LineText(line))
	}
	return sb.String()
}

func (p Page) clone() Page {
	blocks := make([]Block, len(p.Blocks))
	for i, b := range p.Blocks {
		blocks[i] = b.clone()
	}
	return Page{Number: p.Number, Blocks: blocks}
}

// LineText joins the blocks of one line with single spaces.
func LineText(line []Block) string {
	parts := make([]string, 0, len(line))
	for _, b := range line {
		if c := strings.TrimSpace(b.Content()); c != "" {
			parts = append(parts, c)
		}
	}
	return strings.Join(parts, " ")
}

// LineCells splits a reading-order line into cell texts: pre-split cells
// when present, one cell per block for multi-block lines, else runs of a
// single text line separated by two or more spaces.
func LineCells(line []Block) []string {
	if len(line) == 1 {
		b := line[0]
		if b.Cells != nil {
			return b.Cells
		}
		var out []string
		for _, span := range textutils.SplitOnGaps(b.Text, 2) {
			out = append(out, span.Text)
		}
		return out
	}
	out := make([]string, 0, len(line))
	for _, b := range line {
		if c := strings.TrimSpace(b.Content()); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Document is a loaded statement. It is immutable: the accessors return copies.
type Document struct {
	digest string
	size   int
	format Format
	pages  []Page
}

// NewDocument builds a Document from the raw bytes it was decoded from and its pages.
func NewDocument(data []byte, format Format, pages []Page) *Document {
	sum := sha256.Sum256(data)
	cp := make([]Page, len(pages))
	for i, p := range pages {
		cp[i] = p.clone()
	}
	return &Document{
		digest: hex.EncodeToString(sum[:]),
		size:   len(data),
		format: format,
		pages:  cp,
	}
}

// Format returns the declared format.
func (d *Document) Format() Format { return d.format }

// Digest returns the hex SHA-256 of the raw bytes.
func (d *Document) Digest() string { return d.digest }

// Size returns the raw byte count.
func (d *Document) Size() int { return d.size }

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.pages) }

// Pages returns a deep copy of the pages.
func (d *Document) Pages() []Page {
	out := make([]Page, len(d.pages))
	for i, p := range d.pages {
		out[i] = p.clone()
	}
	return out
}

// Page returns a copy of the page at index i (0-based).
func (d *Document) Page(i int) (Page, bool) {
	if i < 0 || i >= len(d.pages) {
		return Page{}, false
	}
	return d.pages[i].clone(), true
}

// IsEmpty reports whether the document holds no non-blank block.
func (d *Document) IsEmpty() bool {
	for _, p := range d.pages {
		for _, b := range p.Blocks {
			if strings.TrimSpace(b.Content()) != "" {
				return false
			}
		}
	}
	return true
}

// Text returns the text of the first maxPages pages (all when maxPages <= 0).
func (d *Document) Text(maxPages int) string {
	var parts []string
	for i, p := range d.pages {
		if maxPages > 0 && i >= maxPages {
			break
		}
		parts = append(parts, p.Text())
	}
	return strings.Join(parts, "\n")
}
