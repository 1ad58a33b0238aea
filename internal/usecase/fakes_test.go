package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"VisaDecisions/internal/domain"
	"VisaDecisions/internal/extractor"
	"VisaDecisions/internal/ports"
)

// lineExtractor reads "application,decision" lines; empty content has no table.
type lineExtractor struct{}

func (lineExtractor) Extract(_ context.Context, content []byte) ([]domain.RawRow, error) {
	var rows []domain.RawRow
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		app, decision, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		rows = append(rows, domain.RawRow{ApplicationNumber: app, Decision: decision})
	}
	if len(rows) == 0 {
		return nil, extractor.ErrNoTable
	}
	return rows, nil
}

type memoryStore struct {
	mu        sync.Mutex
	records   map[string]domain.DecisionRecord
	documents map[string]domain.Document
	settings  map[string]*string
	insertErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records:   map[string]domain.DecisionRecord{},
		documents: map[string]domain.Document{},
		settings:  map[string]*string{},
	}
}

func (m *memoryStore) InsertIgnore(_ context.Context, records []domain.DecisionRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	n := 0
	for _, r := range records {
		key := strings.ToLower(r.ApplicationNumber) + "|" + r.WeekLabel
		if _, ok := m.records[key]; ok {
			continue
		}
		m.records[key] = r
		n++
	}
	return n, nil
}

func (m *memoryStore) AllRecords(context.Context) ([]domain.DecisionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.DecisionRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryStore) Lookup(_ context.Context, app string) ([]domain.DecisionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.DecisionRecord
	for _, r := range m.records {
		if strings.EqualFold(r.ApplicationNumber, strings.TrimSpace(app)) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryStore) CountRecords(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func (m *memoryStore) RecordDocument(_ context.Context, doc domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents[doc.Filename] = doc
	return nil
}

func (m *memoryStore) KnownDocuments(context.Context) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for name := range m.documents {
		out[name] = true
	}
	return out, nil
}

func (m *memoryStore) GetSetting(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[key]
	if !ok || v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (m *memoryStore) SetSetting(_ context.Context, key string, value *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *memoryStore) DeleteSetting(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.settings[key]
	delete(m.settings, key)
	return ok, nil
}

func (m *memoryStore) ListSettings(context.Context) (map[string]*string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*string, len(m.settings))
	for k, v := range m.settings {
		out[k] = v
	}
	return out, nil
}

func (m *memoryStore) ResetSettings(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = map[string]*string{}
	return nil
}

type fakeSource struct {
	links []ports.BulletinLink
	err   error
	files map[string]string
}

func (f *fakeSource) ListBulletins(context.Context) ([]ports.BulletinLink, error) {
	return f.links, f.err
}

func (f *fakeSource) Download(_ context.Context, link ports.BulletinLink) (io.ReadCloser, error) {
	content, ok := f.files[link.Filename]
	if !ok {
		return nil, errors.New("404 Not Found")
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

type captureExporter struct {
	records   []domain.DecisionRecord
	summaries []domain.WeeklySummary
	calls     int
}

func (c *captureExporter) Export(_ context.Context, records []domain.DecisionRecord, summaries []domain.WeeklySummary) error {
	c.calls++
	c.records = records
	c.summaries = summaries
	return nil
}

type captureNotifier struct {
	digests []string
}

func (c *captureNotifier) PublishDigest(_ context.Context, digest string) error {
	c.digests = append(c.digests, digest)
	return nil
}

type captureRecorder struct {
	reports []domain.RunReport
}

func (c *captureRecorder) ObserveRun(report domain.RunReport, _ time.Time) {
	c.reports = append(c.reports, report)
}
