package ports

import (
	"context"
	"io"
	"time"

	"VisaDecisions/internal/domain"
)

// BulletinLink is a document advertised by the upstream index page.
type BulletinLink struct {
	Filename string
	URL      string
}

// BulletinSource discovers bulletins published upstream.
type BulletinSource interface {
	ListBulletins(ctx context.Context) ([]BulletinLink, error)
}

// Downloader fetches a bulletin's bytes.
type Downloader interface {
	Download(ctx context.Context, link BulletinLink) (io.ReadCloser, error)
}

// RecordExtractor turns raw document bytes into table rows.
type RecordExtractor interface {
	Extract(ctx context.Context, content []byte) ([]domain.RawRow, error)
}

// DecisionStore persists decision records under the (application, week) uniqueness constraint.
type DecisionStore interface {
	// InsertIgnore applies records in one transaction and returns how many were new.
	InsertIgnore(ctx context.Context, records []domain.DecisionRecord) (int, error)
	AllRecords(ctx context.Context) ([]domain.DecisionRecord, error)
	Lookup(ctx context.Context, applicationNumber string) ([]domain.DecisionRecord, error)
	CountRecords(ctx context.Context) (int, error)
}

// DocumentLog remembers which bulletins were processed.
type DocumentLog interface {
	RecordDocument(ctx context.Context, doc domain.Document) error
	KnownDocuments(ctx context.Context) (map[string]bool, error)
}

// SettingsStore keeps named operational values such as last_run.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key string, value *string) error
	DeleteSetting(ctx context.Context, key string) (bool, error)
	ListSettings(ctx context.Context) (map[string]*string, error)
	ResetSettings(ctx context.Context) error
}

// Staging is the filesystem area documents move through.
type Staging interface {
	Pending() ([]string, error)
	Read(name string) ([]byte, error)
	Contains(name string) bool
	Save(name string, r io.Reader) error
	MarkProcessed(name string) error
	Hold(name string) error
}

// Exporter writes derived outputs of the record set.
type Exporter interface {
	Export(ctx context.Context, records []domain.DecisionRecord, summaries []domain.WeeklySummary) error
}

// Notifier publishes a run digest to an outbound channel.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// RunRecorder observes pipeline runs (metrics).
type RunRecorder interface {
	ObserveRun(report domain.RunReport, finishedAt time.Time)
}

// Scheduler controls when pipelines execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
