package loader

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/textutils"
)

// loadText splits a plain-text export into pages on form feeds. Each non-blank
// line becomes one block; the line keeps its leading spaces so that column
// offsets survive.
func (l *Loader) loadText(ctx context.Context, data []byte, label string) ([]models.Page, error) {
	text, err := decodeText(data, label)
	if err != nil {
		return nil, err
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	rawPages := strings.Split(text, "\f")
	if err := l.checkPages(len(rawPages)); err != nil {
		return nil, err
	}

	pages := make([]models.Page, 0, len(rawPages))
	for i, raw := range rawPages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load text page %d: %w", i+1, err)
		}
		page := models.Page{Number: i + 1}
		for n, line := range strings.Split(raw, "\n") {
			line = strings.TrimRight(textutils.DecodeUniEscapes(line), " \t")
			if strings.TrimSpace(line) == "" {
				continue
			}
			y := float64(n)
			page.Blocks = append(page.Blocks, models.Block{
				Text: line,
				Box:  models.BBox{X0: 0, Y0: y, X1: float64(utf8.RuneCountInString(line)), Y1: y},
				Line: n,
			})
		}
		pages = append(pages, page)
	}

	// a trailing form feed leaves an empty last page
	for len(pages) > 1 && len(pages[len(pages)-1].Blocks) == 0 {
		pages = pages[:len(pages)-1]
	}
	return pages, nil
}
