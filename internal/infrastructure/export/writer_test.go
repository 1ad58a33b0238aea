package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"VisaDecisions/internal/domain"
	"VisaDecisions/internal/summary"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleRecords() []domain.DecisionRecord {
	ingested := time.Date(2025, time.April, 2, 6, 0, 0, 0, time.UTC)
	mk := func(app, decision string, start, end time.Time, label string) domain.DecisionRecord {
		return domain.DecisionRecord{
			ApplicationNumber: app,
			Decision:          decision,
			WeekLabel:         label,
			StartDate:         start,
			EndDate:           end,
			SourceFilename:    "SAVD-" + label + ".pdf",
			IngestedAt:        ingested,
		}
	}
	return []domain.DecisionRecord{
		mk("1", domain.DecisionApproved, day(time.March, 18), day(time.March, 24), "18 Mar to 24 Mar 2025"),
		mk("2", domain.DecisionRefused, day(time.March, 18), day(time.March, 24), "18 Mar to 24 Mar 2025"),
		mk("3", domain.DecisionRefused, day(time.March, 25), day(time.March, 31), "25 Mar to 31 Mar 2025"),
		mk("4", domain.DecisionRefused, day(time.March, 25), day(time.March, 31), "25 Mar to 31 Mar 2025"),
		mk("5", domain.DecisionApproved, day(time.March, 25), day(time.March, 31), "25 Mar to 31 Mar 2025"),
	}
}

func TestExportWritesAllFiles(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "exports")
	w, err := NewWriter(dir, nil)
	require.NoError(t, err)

	records := sampleRecords()
	require.NoError(t, w.Export(context.Background(), records, summary.Summarize(records)))

	raw, err := os.ReadFile(filepath.Join(dir, RecordsCSV))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "application_number,decision,week_label,start_date,end_date,source_filename,ingested_at", lines[0])
	assert.Equal(t, "1,Approved,18 Mar to 24 Mar 2025,2025-03-18,2025-03-24,SAVD-18 Mar to 24 Mar 2025.pdf,2025-04-02T06:00:00Z", lines[1])

	sum, err := os.ReadFile(filepath.Join(dir, SummaryCSV))
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(string(sum)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "week_label,start_date,end_date,approved,refused,other,total,refused_pct,rolling_mean,pct_change", lines[0])
	assert.Equal(t, "18 Mar to 24 Mar 2025,2025-03-18,2025-03-24,1,1,0,2,50.00,2.00,0.00", lines[1])
	assert.Equal(t, "25 Mar to 31 Mar 2025,2025-03-25,2025-03-31,1,2,0,3,66.67,2.50,50.00", lines[2])

	book, err := excelize.OpenFile(filepath.Join(dir, SummaryXLSX))
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows(summarySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Week", rows[0][0])
	assert.Equal(t, "25 Mar to 31 Mar 2025", rows[2][0])
	assert.Equal(t, "3", rows[2][6])
	assert.Equal(t, "66.67", rows[2][7])
}

func TestExportReplacesPreviousFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	w, err := NewWriter(dir, nil)
	require.NoError(t, err)

	records := sampleRecords()
	require.NoError(t, w.Export(context.Background(), records, summary.Summarize(records)))
	require.NoError(t, w.Export(context.Background(), nil, nil))

	raw, err := os.ReadFile(filepath.Join(dir, RecordsCSV))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(strings.TrimSpace(string(raw)), "\n")+1)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
