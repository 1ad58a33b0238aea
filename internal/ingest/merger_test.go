package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VisaDecisions/internal/domain"
)

type memoryStore struct {
	rows  map[string]domain.DecisionRecord
	calls int
	err   error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{rows: map[string]domain.DecisionRecord{}}
}

func (m *memoryStore) InsertIgnore(_ context.Context, records []domain.DecisionRecord) (int, error) {
	m.calls++
	if m.err != nil {
		return 0, m.err
	}
	staged := map[string]domain.DecisionRecord{}
	for _, r := range records {
		key := strings.ToLower(r.ApplicationNumber) + "|" + r.WeekLabel
		if _, ok := m.rows[key]; ok {
			continue
		}
		if _, ok := staged[key]; ok {
			continue
		}
		staged[key] = r
	}
	for k, r := range staged {
		m.rows[k] = r
	}
	return len(staged), nil
}

func (m *memoryStore) AllRecords(context.Context) ([]domain.DecisionRecord, error) {
	out := make([]domain.DecisionRecord, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryStore) Lookup(_ context.Context, app string) ([]domain.DecisionRecord, error) {
	var out []domain.DecisionRecord
	for _, r := range m.rows {
		if strings.EqualFold(r.ApplicationNumber, app) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryStore) CountRecords(context.Context) (int, error) {
	return len(m.rows), nil
}

var march = domain.WeekWindow{
	Start: time.Date(2025, time.March, 25, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC),
	Label: "25 Mar to 31 Mar 2025",
}

func sampleRows() []domain.RawRow {
	return []domain.RawRow{
		{ApplicationNumber: "Application Number", Decision: "Decision"},
		{ApplicationNumber: " 12345678 ", Decision: " approved "},
		{ApplicationNumber: "12345679", Decision: "REFUSED"},
		{ApplicationNumber: "12345680", Decision: "Withdrawn"},
		{ApplicationNumber: "", Decision: "Approved"},
		{ApplicationNumber: "12345681", Decision: "   "},
	}
}

func TestMerge_Idempotent(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	merger := NewMerger(store, nil)
	ctx := context.Background()

	first, err := merger.Merge(ctx, march, "SAVD-Decisions-25-March-to-31-March-2025.pdf", sampleRows())
	require.NoError(t, err)
	assert.Equal(t, 3, first)

	second, err := merger.Merge(ctx, march, "SAVD-Decisions-25-March-to-31-March-2025.pdf", sampleRows())
	require.NoError(t, err)
	assert.Equal(t, 0, second)

	count, _ := store.CountRecords(ctx)
	assert.Equal(t, 3, count)
}

func TestMerge_DedupAcrossSources(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	merger := NewMerger(store, nil)
	ctx := context.Background()
	rows := []domain.RawRow{{ApplicationNumber: "A1", Decision: "Approved"}}

	n, err := merger.Merge(ctx, march, "SAVD-Decisions-25-March-to-31-March-2025.pdf", rows)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = merger.Merge(ctx, march, "SAVD-Decisions-25-March-to-31-March.pdf", rows)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	found, _ := store.Lookup(ctx, "a1")
	require.Len(t, found, 1)
	assert.Equal(t, "SAVD-Decisions-25-March-to-31-March-2025.pdf", found[0].SourceFilename)
}

func TestMerge_EmptyInputSkipsStore(t *testing.T) {
	t.Parallel()

	store := newMemoryStore()
	merger := NewMerger(store, nil)

	n, err := merger.Merge(context.Background(), march, "empty.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = merger.Merge(context.Background(), march, "headers.pdf", []domain.RawRow{{ApplicationNumber: "Application Number", Decision: "Decision"}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Zero(t, store.calls)
}

func TestMerge_StoreFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk I/O error")
	store := newMemoryStore()
	store.err = cause
	merger := NewMerger(store, nil)

	n, err := merger.Merge(context.Background(), march, "broken.pdf", sampleRows())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, ErrStore)
	assert.ErrorIs(t, err, cause)

	var se *StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "broken.pdf", se.Source)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, time.April, 2, 9, 0, 0, 0, time.UTC)
	records := Normalize(march, "doc.pdf", sampleRows(), at)
	require.Len(t, records, 3)

	assert.Equal(t, "12345678", records[0].ApplicationNumber)
	assert.Equal(t, domain.DecisionApproved, records[0].Decision)
	assert.Equal(t, domain.DecisionRefused, records[1].Decision)
	assert.Equal(t, "Withdrawn", records[2].Decision)

	for _, r := range records {
		assert.Equal(t, march.Label, r.WeekLabel)
		assert.Equal(t, march.Start, r.StartDate)
		assert.Equal(t, march.End, r.EndDate)
		assert.Equal(t, "doc.pdf", r.SourceFilename)
		assert.Equal(t, at, r.IngestedAt)
	}
}

func TestIsHeader(t *testing.T) {
	t.Parallel()

	assert.True(t, IsHeader("Application Number", ""))
	assert.True(t, IsHeader("", "Decision"))
	assert.True(t, IsHeader("Visa Application Number", "x"))
	assert.False(t, IsHeader("12345678", "Approved"))
}
