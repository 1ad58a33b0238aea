// Package export writes the record set and weekly summaries as CSV and XLSX files.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"VisaDecisions/internal/domain"
	"VisaDecisions/internal/ports"
)

// File names written into the export directory.
const (
	RecordsCSV  = "visa_decisions_full.csv"
	SummaryCSV  = "visa_summary.csv"
	SummaryXLSX = "visa_summary.xlsx"

	summarySheet = "Summary"
	dateLayout   = "2006-01-02"
)

type recordRow struct {
	ApplicationNumber string `csv:"application_number"`
	Decision          string `csv:"decision"`
	WeekLabel         string `csv:"week_label"`
	StartDate         string `csv:"start_date"`
	EndDate           string `csv:"end_date"`
	SourceFilename    string `csv:"source_filename"`
	IngestedAt        string `csv:"ingested_at"`
}

type summaryRow struct {
	WeekLabel   string `csv:"week_label"`
	StartDate   string `csv:"start_date"`
	EndDate     string `csv:"end_date"`
	Approved    int    `csv:"approved"`
	Refused     int    `csv:"refused"`
	Other       int    `csv:"other"`
	Total       int    `csv:"total"`
	RefusedPct  string `csv:"refused_pct"`
	RollingMean string `csv:"rolling_mean"`
	PctChange   string `csv:"pct_change"`
}

var summaryHeader = []interface{}{
	"Week", "Start", "End", "Approved", "Refused", "Other", "Total", "Refused %", "Rolling Mean", "% Change",
}

// Writer implements ports.Exporter into a single directory.
type Writer struct {
	dir    string
	logger *slog.Logger
}

var _ ports.Exporter = (*Writer)(nil)

// NewWriter creates dir when missing.
func NewWriter(dir string, logger *slog.Logger) (*Writer, error) {
	if dir == "" {
		return nil, fmt.Errorf("export directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// Export rewrites all export files from the full record set.
func (w *Writer) Export(ctx context.Context, records []domain.DecisionRecord, summaries []domain.WeeklySummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := w.writeCSV(RecordsCSV, recordRows(records)); err != nil {
		return err
	}

	rows := summaryRows(summaries)
	if err := w.writeCSV(SummaryCSV, rows); err != nil {
		return err
	}
	if err := w.writeXLSX(SummaryXLSX, rows); err != nil {
		return err
	}

	w.info("exports written", "dir", w.dir, "records", len(records), "weeks", len(summaries))
	return nil
}

func (w *Writer) writeCSV(name string, rows interface{}) error {
	return w.replace(name, func(f *os.File) error {
		if err := gocsv.MarshalFile(rows, f); err != nil {
			return fmt.Errorf("marshal %s: %w", name, err)
		}
		return nil
	})
}

func (w *Writer) writeXLSX(name string, rows []summaryRow) error {
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	header := summaryHeader
	if err := book.SetSheetRow(summarySheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			r.WeekLabel, r.StartDate, r.EndDate,
			r.Approved, r.Refused, r.Other, r.Total,
			number(r.RefusedPct), number(r.RollingMean), number(r.PctChange),
		}
		if err := book.SetSheetRow(summarySheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	return w.replace(name, func(f *os.File) error {
		if _, err := book.WriteTo(f); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		return nil
	})
}

// replace writes through a temp file so readers never see a partial export.
func (w *Writer) replace(name string, write func(*os.File) error) error {
	tmp, err := os.CreateTemp(w.dir, "."+name+"-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(w.dir, name)); err != nil {
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func recordRows(records []domain.DecisionRecord) []recordRow {
	rows := make([]recordRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, recordRow{
			ApplicationNumber: r.ApplicationNumber,
			Decision:          r.Decision,
			WeekLabel:         r.WeekLabel,
			StartDate:         r.StartDate.Format(dateLayout),
			EndDate:           r.EndDate.Format(dateLayout),
			SourceFilename:    r.SourceFilename,
			IngestedAt:        r.IngestedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return rows
}

func summaryRows(summaries []domain.WeeklySummary) []summaryRow {
	rows := make([]summaryRow, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, summaryRow{
			WeekLabel:   s.WeekLabel,
			StartDate:   s.StartDate.Format(dateLayout),
			EndDate:     s.EndDate.Format(dateLayout),
			Approved:    s.Approved,
			Refused:     s.Refused,
			Other:       s.Other,
			Total:       s.Total,
			RefusedPct:  fixed(s.RefusedPct),
			RollingMean: fixed(s.RollingMean),
			PctChange:   fixed(s.PctChange),
		})
	}
	return rows
}

func fixed(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func number(s string) interface{} {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	f, _ := d.Float64()
	return f
}

func (w *Writer) info(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Info(msg, args...)
	}
}
