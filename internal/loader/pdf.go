package loader

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/parsererror"
	"fjacquet/statement-ledger/internal/textutils"

	"github.com/ledongthuc/pdf"
)

const (
	defaultFontSize = 10.0
	// glyphs closer than this fraction of the font size are part of one word
	wordGapRatio = 0.15
)

// loadPDF reads text spans with their geometry. The pdf library panics on
// some malformed files; panics are reported as corrupt input.
func (l *Loader) loadPDF(ctx context.Context, data []byte) (pages []models.Page, err error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte("%PDF-")) {
		return nil, &parsererror.CorruptFileError{Format: string(models.FormatPDF), Reason: "missing %PDF header"}
	}

	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = &parsererror.CorruptFileError{Format: string(models.FormatPDF), Reason: "unreadable document", Err: fmt.Errorf("%v", r)}
		}
	}()

	reader, openErr := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if openErr != nil {
		return nil, &parsererror.CorruptFileError{Format: string(models.FormatPDF), Reason: "cannot open", Err: openErr}
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, &parsererror.CorruptFileError{Format: string(models.FormatPDF), Reason: "document has no pages"}
	}
	if err := l.checkPages(numPages); err != nil {
		return nil, err
	}

	pages = make([]models.Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load pdf page %d: %w", i, err)
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, models.Page{Number: i})
			continue
		}

		texts := page.Content().Text
		if len(texts) == 0 {
			texts = textsByRow(page)
			if len(texts) > 0 {
				l.logger.Debug("Using row extraction fallback", logging.F(logging.FieldPage, i))
			}
		}
		pages = append(pages, models.Page{Number: i, Blocks: buildBlocks(texts)})
	}
	return pages, nil
}

// textsByRow flattens GetTextByRow output, for pages whose content stream
// yields nothing through Content.
func textsByRow(page pdf.Page) []pdf.Text {
	rows, err := page.GetTextByRow()
	if err != nil {
		return nil
	}
	var texts []pdf.Text
	for _, row := range rows {
		for _, word := range row.Content {
			word.Y = float64(row.Position)
			texts = append(texts, word)
		}
	}
	return texts
}

type glyphRow struct {
	y     float64
	items []pdf.Text
}

// buildBlocks groups glyph runs into lines by rounded Y, top of page first,
// then merges horizontally adjacent runs into spans.
func buildBlocks(texts []pdf.Text) []models.Block {
	byY := make(map[int]*glyphRow)
	for _, t := range texts {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		key := int(math.Round(t.Y))
		row, ok := byY[key]
		if !ok {
			row = &glyphRow{y: float64(key)}
			byY[key] = row
		}
		row.items = append(row.items, t)
	}

	keys := make([]int, 0, len(byY))
	for k := range byY {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(keys)))

	var blocks []models.Block
	for line, key := range keys {
		row := byY[key]
		sort.SliceStable(row.items, func(a, b int) bool { return row.items[a].X < row.items[b].X })
		for _, span := range mergeSpans(row.items) {
			span.Line = line
			blocks = append(blocks, span)
		}
	}
	return blocks
}

func mergeSpans(items []pdf.Text) []models.Block {
	var spans []models.Block
	var sb strings.Builder
	var cur models.Block
	var lastEnd, size float64
	open := false

	flush := func() {
		if open {
			cur.Text = textutils.DecodeUniEscapes(strings.TrimSpace(sb.String()))
			if cur.Text != "" {
				spans = append(spans, cur)
			}
		}
		sb.Reset()
		open = false
	}

	for _, t := range items {
		fs := t.FontSize
		if fs <= 0 {
			fs = defaultFontSize
		}
		width := t.W
		if width <= 0 {
			width = fs * 0.5 * float64(len([]rune(t.S)))
		}

		if open {
			gap := t.X - lastEnd
			if gap < size {
				if gap > wordGapRatio*size {
					sb.WriteByte(' ')
				}
				sb.WriteString(t.S)
				lastEnd = math.Max(lastEnd, t.X+width)
				cur.Box.X1 = lastEnd
				continue
			}
			flush()
		}

		open = true
		size = fs
		sb.WriteString(t.S)
		lastEnd = t.X + width
		cur = models.Block{Box: models.BBox{X0: t.X, Y0: t.Y - fs, X1: lastEnd, Y1: t.Y}}
	}
	flush()
	return spans
}
