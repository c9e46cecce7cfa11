package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/parsererror"
)

// delimiterCandidates are tried in order; earlier ones win ties.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

const sniffLines = 10

// SniffDelimiter finds the delimiter that splits the first lines of sample
// into the same number of fields. Comment lines (#) and blank lines are ignored.
func SniffDelimiter(sample string) (rune, bool) {
	var lines []string
	for _, line := range strings.Split(sample, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		lines = append(lines, line)
		if len(lines) == sniffLines {
			break
		}
	}
	if len(lines) < 2 {
		return 0, false
	}

	best, bestScore := rune(0), 0
	for _, d := range delimiterCandidates {
		counts := make(map[int]int)
		for _, line := range lines {
			counts[countOutsideQuotes(line, d)]++
		}
		first := countOutsideQuotes(lines[0], d)
		if first == 0 {
			continue
		}
		// the header line sets the field count; most lines must agree
		agree := counts[first]
		if agree*5 < len(lines)*4 {
			continue
		}
		if score := agree * first; score > bestScore {
			best, bestScore = d, score
		}
	}
	return best, best != 0
}

func countOutsideQuotes(line string, d rune) int {
	n, inQuotes := 0, false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == d && !inQuotes:
			n++
		}
	}
	return n
}

// loadCSV reads the whole file as one page with one block per record.
func (l *Loader) loadCSV(ctx context.Context, data []byte, label string) ([]models.Page, error) {
	text, err := decodeText(data, label)
	if err != nil {
		return nil, err
	}

	sample := text
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	delimiter, ok := SniffDelimiter(sample)
	if !ok {
		delimiter = ','
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var blocks []models.Block
	for n := 0; ; n++ {
		if n%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("load csv: %w", err)
			}
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &parsererror.CorruptFileError{Format: string(models.FormatCSV), Reason: "malformed record", Err: err}
		}

		cells := make([]string, len(record))
		blank := true
		for i, c := range record {
			cells[i] = strings.TrimSpace(c)
			if cells[i] != "" {
				blank = false
			}
		}
		if blank {
			continue
		}

		line, _ := reader.FieldPos(0)
		y := float64(line - 1)
		blocks = append(blocks, models.Block{
			Cells: cells,
			Box:   models.BBox{X0: 0, Y0: y, X1: float64(len(cells)), Y1: y},
			Line:  line - 1,
		})
	}

	l.logger.Debug("Parsed CSV records",
		logging.F(logging.FieldDelimiter, string(delimiter)),
		logging.F(logging.FieldCount, len(blocks)))
	return []models.Page{{Number: 1, Blocks: blocks}}, nil
}
