package pdftable

import (
	"context"
	"errors"
	"testing"

	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VisaDecisions/internal/domain"
	"VisaDecisions/internal/extractor"
)

func run(x, w float64, s string) pdf.Text {
	return pdf.Text{X: x, W: w, S: s, FontSize: 10}
}

func TestRowsFromTextSplitsOnWideGaps(t *testing.T) {
	t.Parallel()

	lines := [][]pdf.Text{
		{run(50, 50, "Application"), run(102, 40, "Number"), run(300, 40, "Decision")},
		{run(300, 45, "Approved"), run(50, 45, "81234567")},
		{run(50, 45, "81234568"), run(300, 40, "Refused"), run(500, 30, "note")},
		{run(50, 80, "Page 1 of 3")},
		{},
	}

	rows := RowsFromText(lines, defaultGapFactor)
	assert.Equal(t, []domain.RawRow{
		{ApplicationNumber: "Application Number", Decision: "Decision"},
		{ApplicationNumber: "81234567", Decision: "Approved"},
		{ApplicationNumber: "81234568", Decision: "Refused"},
	}, rows)
}

func TestRowsFromTextKeepsSpacedWords(t *testing.T) {
	t.Parallel()

	lines := [][]pdf.Text{
		{run(50, 30, "Not"), run(80, 5, " "), run(85, 40, "Applicable"), run(300, 40, "Refused")},
	}

	lines = append(lines, []pdf.Text{run(50, 5, "8"), run(55, 5, "1"), run(60, 5, "2"), run(300, 40, "Approved")})

	rows := RowsFromText(lines, defaultGapFactor)
	require.Len(t, rows, 2)
	assert.Equal(t, "Not Applicable", rows[0].ApplicationNumber)
	assert.Equal(t, "Refused", rows[0].Decision)
	assert.Equal(t, "812", rows[1].ApplicationNumber)
}

func TestExtractRejectsNonPDF(t *testing.T) {
	t.Parallel()

	_, err := NewExtractor(nil).Extract(context.Background(), []byte("plain text, not a pdf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, extractor.ErrNoTable))
}
