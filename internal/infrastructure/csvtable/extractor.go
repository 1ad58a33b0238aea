// Package csvtable re-imports decision rows from CSV files, such as the raw
// records export, for backfills.
package csvtable

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"

	"VisaDecisions/internal/domain"
	"VisaDecisions/internal/extractor"
	"VisaDecisions/internal/ports"
)

type decisionRow struct {
	ApplicationNumber string `csv:"application_number"`
	Decision          string `csv:"decision"`
}

// Extractor reads application_number and decision columns from CSV content.
// Header names are matched case-insensitively with spaces treated as underscores.
type Extractor struct{}

var _ ports.RecordExtractor = Extractor{}

// NewExtractor returns a CSV extractor.
func NewExtractor() Extractor {
	return Extractor{}
}

func (Extractor) Extract(ctx context.Context, content []byte) ([]domain.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content = normalizeHeader(content)
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, extractor.ErrNoTable
	}

	var rows []decisionRow
	if err := gocsv.Unmarshal(bytes.NewReader(content), &rows); err != nil {
		return nil, fmt.Errorf("%w: parse csv: %v", extractor.ErrNoTable, err)
	}

	out := make([]domain.RawRow, 0, len(rows))
	for _, row := range rows {
		if row.ApplicationNumber == "" && row.Decision == "" {
			continue
		}
		out = append(out, domain.RawRow{ApplicationNumber: row.ApplicationNumber, Decision: row.Decision})
	}
	if len(out) == 0 {
		return nil, extractor.ErrNoTable
	}
	return out, nil
}

// normalizeHeader rewrites the first line so "Application Number" and
// "application_number" both bind to the same column.
func normalizeHeader(content []byte) []byte {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	header, rest, found := bytes.Cut(content, []byte("\n"))
	header = bytes.TrimSuffix(header, []byte("\r"))

	fields := strings.Split(string(header), ",")
	for i, f := range fields {
		f = strings.ToLower(strings.Trim(strings.TrimSpace(f), `"`))
		fields[i] = strings.Join(strings.Fields(f), "_")
	}

	var buf bytes.Buffer
	buf.WriteString(strings.Join(fields, ","))
	if found {
		buf.WriteByte('\n')
		buf.Write(rest)
	}
	return buf.Bytes()
}
