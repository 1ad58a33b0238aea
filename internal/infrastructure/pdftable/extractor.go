// Package pdftable rebuilds two-column decision tables from PDF text runs.
package pdftable

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"VisaDecisions/internal/domain"
	"VisaDecisions/internal/extractor"
	"VisaDecisions/internal/ports"
)

const (
	// defaultGapFactor is the horizontal gap, in multiples of font size, that splits cells.
	defaultGapFactor = 1.5
	// wordGapFactor is the smaller gap that separates words inside a cell.
	wordGapFactor = 0.15
)

// Extractor reads table rows from PDF bulletins.
type Extractor struct {
	gapFactor float64
	logger    *slog.Logger
}

var _ ports.RecordExtractor = (*Extractor)(nil)

// NewExtractor builds a PDF extractor; logger may be nil.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{gapFactor: defaultGapFactor, logger: logger}
}

// Extract walks each page, splitting text rows into cells and keeping rows with
// at least two cells. Pages that fail to decode are skipped.
func (e *Extractor) Extract(ctx context.Context, content []byte) (rows []domain.RawRow, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows = nil
			err = fmt.Errorf("%w: malformed pdf: %v", extractor.ErrNoTable, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf: %v", extractor.ErrNoTable, err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		textRows, err := page.GetTextByRow()
		if err != nil {
			e.debug("skip page", "page", i, "error", err)
			continue
		}

		lines := make([][]pdf.Text, 0, len(textRows))
		for _, row := range textRows {
			lines = append(lines, row.Content)
		}

		pageRows := RowsFromText(lines, e.gapFactor)
		e.debug("page parsed", "page", i, "table_found", len(pageRows) > 0, "rows", len(pageRows))
		rows = append(rows, pageRows...)
	}

	if len(rows) == 0 {
		return nil, extractor.ErrNoTable
	}
	return rows, nil
}

// RowsFromText groups each line's text runs into cells and returns the first two
// cells of every line that has at least two.
func RowsFromText(lines [][]pdf.Text, gapFactor float64) []domain.RawRow {
	var out []domain.RawRow
	for _, line := range lines {
		cells := splitCells(line, gapFactor)
		if len(cells) < 2 {
			continue
		}
		out = append(out, domain.RawRow{ApplicationNumber: cells[0], Decision: cells[1]})
	}
	return out
}

func splitCells(line []pdf.Text, gapFactor float64) []string {
	texts := make([]pdf.Text, 0, len(line))
	for _, t := range line {
		if t.S != "" {
			texts = append(texts, t)
		}
	}
	sort.SliceStable(texts, func(i, j int) bool { return texts[i].X < texts[j].X })

	var (
		cells   []string
		current strings.Builder
		edge    float64
	)
	flush := func() {
		if cell := strings.TrimSpace(current.String()); cell != "" {
			cells = append(cells, cell)
		}
		current.Reset()
	}

	for i, t := range texts {
		size := t.FontSize
		if size <= 0 {
			size = 1
		}
		if i > 0 {
			gap := t.X - edge
			switch {
			case gap > size*gapFactor:
				flush()
			case gap > size*wordGapFactor && !strings.HasSuffix(current.String(), " ") && !strings.HasPrefix(t.S, " "):
				current.WriteByte(' ')
			}
		}
		current.WriteString(t.S)
		if end := t.X + t.W; end > edge || i == 0 {
			edge = end
		}
	}
	flush()

	return cells
}

func (e *Extractor) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
