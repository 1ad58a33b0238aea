package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"VisaDecisions/internal/domain"
	"VisaDecisions/internal/extractor"
	"VisaDecisions/internal/ingest"
	"VisaDecisions/internal/ports"
	"VisaDecisions/internal/summary"
	"VisaDecisions/internal/week"
)

// Setting keys maintained by the pipeline.
const (
	SettingLastRun     = "last_run"
	SettingLastUpdated = "last_updated"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
// Source, Downloader, Exporter, Notifier and Recorder are optional.
type PipelineDeps struct {
	Source      ports.BulletinSource
	Downloader  ports.Downloader
	Staging     ports.Staging
	Extractors  *extractor.Registry
	Store       ports.DecisionStore
	Documents   ports.DocumentLog
	Settings    ports.SettingsStore
	Exporter    ports.Exporter
	Notifier    ports.Notifier
	Recorder    ports.RunRecorder
	Summary     summary.Engine
	MessageFile string
	Location    *time.Location
	Logger      *slog.Logger
	Now         func() time.Time
}

// RunOptions alter a single pipeline execution.
type RunOptions struct {
	// Force ignores the once-per-day guard.
	Force bool
	// SkipFetch processes only what is already staged.
	SkipFetch bool
}

// Pipeline implements the bulletin-ingestion workflow.
type Pipeline struct {
	source      ports.BulletinSource
	downloader  ports.Downloader
	staging     ports.Staging
	extractors  *extractor.Registry
	store       ports.DecisionStore
	documents   ports.DocumentLog
	settings    ports.SettingsStore
	exporter    ports.Exporter
	notifier    ports.Notifier
	recorder    ports.RunRecorder
	merger      *ingest.Merger
	engine      summary.Engine
	messageFile string
	location    *time.Location
	logger      *slog.Logger
	now         func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Pipeline{
		source:      deps.Source,
		downloader:  deps.Downloader,
		staging:     deps.Staging,
		extractors:  deps.Extractors,
		store:       deps.Store,
		documents:   deps.Documents,
		settings:    deps.Settings,
		exporter:    deps.Exporter,
		notifier:    deps.Notifier,
		recorder:    deps.Recorder,
		merger:      ingest.NewMerger(deps.Store, logger.With("component", "merger")),
		engine:      deps.Summary,
		messageFile: deps.MessageFile,
		location:    loc,
		logger:      logger,
		now:         now,
	}
}

// Run fetches new bulletins, merges every staged document and refreshes the
// derived outputs. Per-document failures are reported, not returned.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (domain.RunReport, error) {
	if p.staging == nil || p.store == nil || p.extractors == nil {
		return domain.RunReport{}, errors.New("pipeline is missing staging, store or extractors")
	}

	now := p.now().In(p.location)
	report := domain.RunReport{RunID: uuid.NewString(), StartedAt: now}
	logger := p.logger.With("run_id", report.RunID)

	if !opts.Force {
		ranToday, err := p.ranOn(ctx, now)
		if err != nil {
			return report, err
		}
		if ranToday {
			logger.Info("pipeline already ran today, skipping")
			report.Skipped = true
			p.observe(report)
			return report, nil
		}
	}

	links := map[string]string{}
	if !opts.SkipFetch && p.source != nil && p.downloader != nil {
		downloaded, err := p.fetch(ctx, logger, links)
		if err != nil {
			return report, err
		}
		report.Downloaded = downloaded
	}

	pending, err := p.staging.Pending()
	if err != nil {
		return report, fmt.Errorf("list staged documents: %w", err)
	}
	logger.Info("processing staged documents", "count", len(pending))

	var messages []string
	for _, name := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		result := p.processDocument(ctx, logger, report.RunID, now, name, links[name])
		report.Documents = append(report.Documents, result)
		if result.Outcome == domain.OutcomeMerged || result.Outcome == domain.OutcomeNoTable {
			messages = append(messages, fmt.Sprintf("Extracted %d rows from %s - Inserted %d new records.", result.Extracted, name, result.NewRecords))
		}
	}

	total := report.NewRecords()
	if total > 0 {
		messages = append(messages, fmt.Sprintf("Total new records inserted: %d", total))
	} else {
		messages = append(messages, "No new records inserted.")
	}
	p.writeMessages(logger, messages)

	if err := p.updateSettings(ctx, now, total); err != nil {
		logger.Warn("update settings", "error", err)
	}

	if total > 0 {
		p.publish(ctx, logger, report)
	}

	logger.Info("pipeline finished",
		"downloaded", report.Downloaded,
		"documents", len(report.Documents),
		"new_records", total,
		"held", report.Count(domain.OutcomeHeld),
		"store_failed", report.Count(domain.OutcomeStoreFailed),
	)
	p.observe(report)
	return report, nil
}

func (p *Pipeline) ranOn(ctx context.Context, now time.Time) (bool, error) {
	if p.settings == nil {
		return false, nil
	}
	value, ok, err := p.settings.GetSetting(ctx, SettingLastRun)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", SettingLastRun, err)
	}
	if !ok {
		return false, nil
	}
	last, err := time.Parse(time.RFC3339, value)
	if err != nil {
		p.logger.Warn("ignoring unparsable last_run", "value", value, "error", err)
		return false, nil
	}
	last = last.In(p.location)
	y1, m1, d1 := last.Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2, nil
}

// fetch downloads advertised bulletins that are neither staged nor recorded.
// A failing index aborts the run; a failing download only skips that link.
func (p *Pipeline) fetch(ctx context.Context, logger *slog.Logger, links map[string]string) (int, error) {
	available, err := p.source.ListBulletins(ctx)
	if err != nil {
		return 0, fmt.Errorf("list bulletins: %w", err)
	}
	logger.Info("bulletins found", "count", len(available))

	known := map[string]bool{}
	if p.documents != nil {
		if known, err = p.documents.KnownDocuments(ctx); err != nil {
			return 0, fmt.Errorf("load known documents: %w", err)
		}
	}

	downloaded := 0
	for _, link := range available {
		links[link.Filename] = link.URL
		if known[link.Filename] || p.staging.Contains(link.Filename) {
			continue
		}

		if err := p.download(ctx, link); err != nil {
			if ctx.Err() != nil {
				return downloaded, ctx.Err()
			}
			logger.Error("download bulletin", "file", link.Filename, "url", link.URL, "error", err)
			continue
		}
		logger.Debug("bulletin downloaded", "file", link.Filename)
		downloaded++
	}
	return downloaded, nil
}

func (p *Pipeline) download(ctx context.Context, link ports.BulletinLink) error {
	body, err := p.downloader.Download(ctx, link)
	if err != nil {
		return err
	}
	defer body.Close()
	return p.staging.Save(link.Filename, body)
}

func (p *Pipeline) processDocument(ctx context.Context, logger *slog.Logger, runID string, now time.Time, name, url string) domain.DocumentResult {
	result := domain.DocumentResult{Filename: name}
	logger = logger.With("file", name)

	ext, err := p.extractors.Resolve(name)
	if err != nil {
		result.Outcome = domain.OutcomeUnsupported
		result.Err = err
		logger.Warn("unsupported document, holding", "error", err)
		p.hold(logger, name)
		return result
	}

	window, err := week.Resolve(name, now)
	if err != nil {
		result.Outcome = domain.OutcomeHeld
		result.Err = err
		logger.Warn("cannot resolve week, holding", "error", err)
		p.hold(logger, name)
		return result
	}
	result.WeekLabel = window.Label

	content, err := p.staging.Read(name)
	if err != nil {
		result.Outcome = domain.OutcomeHeld
		result.Err = err
		logger.Error("read document, holding", "error", err)
		p.hold(logger, name)
		return result
	}

	rows, err := ext.Extract(ctx, content)
	result.Outcome = domain.OutcomeMerged
	if err != nil {
		if ctx.Err() != nil {
			result.Outcome = domain.OutcomeStoreFailed
			result.Err = ctx.Err()
			return result
		}
		if !errors.Is(err, extractor.ErrNoTable) {
			err = fmt.Errorf("%w: %v", extractor.ErrNoTable, err)
		}
		logger.Warn("no table extracted", "error", err)
		result.Outcome = domain.OutcomeNoTable
		result.Err = err
		rows = nil
	}
	result.Extracted = len(rows)

	inserted, err := p.merger.Merge(ctx, window, name, rows)
	if err != nil {
		result.Outcome = domain.OutcomeStoreFailed
		result.Err = err
		logger.Error("merge failed, leaving document staged", "error", err)
		return result
	}
	result.NewRecords = inserted

	if p.documents != nil {
		err := p.documents.RecordDocument(ctx, domain.Document{
			Filename:   name,
			URL:        url,
			RunID:      runID,
			WeekLabel:  window.Label,
			NewRecords: inserted,
			AddedAt:    now,
		})
		if err != nil {
			result.Outcome = domain.OutcomeStoreFailed
			result.Err = err
			logger.Error("record document, leaving document staged", "error", err)
			return result
		}
	}

	if err := p.staging.MarkProcessed(name); err != nil {
		result.Err = err
		logger.Error("move document to processed", "error", err)
	}

	logger.Info("document merged", "week", window.Label, "extracted", result.Extracted, "new_records", inserted)
	return result
}

func (p *Pipeline) hold(logger *slog.Logger, name string) {
	if err := p.staging.Hold(name); err != nil {
		logger.Error("move document to held", "error", err)
	}
}

func (p *Pipeline) writeMessages(logger *slog.Logger, lines []string) {
	if p.messageFile == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(p.messageFile), 0o755); err != nil {
		logger.Warn("create message directory", "error", err)
		return
	}
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(p.messageFile, []byte(content), 0o644); err != nil {
		logger.Warn("write message file", "path", p.messageFile, "error", err)
	}
}

func (p *Pipeline) updateSettings(ctx context.Context, now time.Time, inserted int) error {
	if p.settings == nil {
		return nil
	}
	stamp := now.UTC().Format(time.RFC3339)
	if err := p.settings.SetSetting(ctx, SettingLastRun, &stamp); err != nil {
		return err
	}
	if inserted > 0 {
		return p.settings.SetSetting(ctx, SettingLastUpdated, &stamp)
	}
	return nil
}

// publish refreshes exports and sends the digest; failures are logged only.
func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, report domain.RunReport) {
	var summaries []domain.WeeklySummary
	if p.exporter != nil || p.notifier != nil {
		records, err := p.store.AllRecords(ctx)
		if err != nil {
			logger.Error("load records for exports", "error", err)
			return
		}
		summaries = p.engine.Summarize(records)

		if p.exporter != nil {
			if err := p.exporter.Export(ctx, records, summaries); err != nil {
				logger.Error("write exports", "error", err)
			}
		}
	}

	if p.notifier != nil {
		if err := p.notifier.PublishDigest(ctx, BuildDigest(report, summaries)); err != nil {
			logger.Warn("publish digest", "error", err)
		}
	}
}

func (p *Pipeline) observe(report domain.RunReport) {
	if p.recorder != nil {
		p.recorder.ObserveRun(report, p.now())
	}
}

// BuildDigest renders a short plain-text run summary with the latest week.
func BuildDigest(report domain.RunReport, summaries []domain.WeeklySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Visa decisions updated: %d new records\n", report.NewRecords())
	for _, d := range report.Documents {
		if d.NewRecords > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", d.WeekLabel, d.NewRecords)
		}
	}
	if len(summaries) > 0 {
		last := summaries[len(summaries)-1]
		fmt.Fprintf(&b, "Latest week %s: %d approved, %d refused (%.2f%% refused)\n",
			last.WeekLabel, last.Approved, last.Refused, last.RefusedPct)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
