package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"VisaDecisions/internal/config"
	"VisaDecisions/internal/domain"
	"VisaDecisions/internal/extractor"
	"VisaDecisions/internal/infrastructure/csvtable"
	"VisaDecisions/internal/infrastructure/export"
	"VisaDecisions/internal/infrastructure/pdftable"
	"VisaDecisions/internal/infrastructure/scheduler"
	"VisaDecisions/internal/infrastructure/scraper"
	"VisaDecisions/internal/infrastructure/staging"
	"VisaDecisions/internal/infrastructure/storage"
	"VisaDecisions/internal/infrastructure/telegram"
	"VisaDecisions/internal/logging"
	"VisaDecisions/internal/metrics"
	"VisaDecisions/internal/summary"
	"VisaDecisions/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *storage.SQLStore
	exporter *export.Writer
	engine   summary.Engine
	pipeline *usecase.Pipeline
	settings *usecase.SettingsService
}

// New opens the store and builds every adapter named in cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	dir, err := staging.New(cfg.Paths.StagingDir, cfg.Paths.ProcessedDir, cfg.Paths.HeldDir)
	if err != nil {
		store.Close()
		return nil, err
	}

	exporter, err := export.NewWriter(cfg.Paths.ExportDir, baseLogger.With("component", "export"))
	if err != nil {
		store.Close()
		return nil, err
	}

	registry := extractor.NewRegistry()
	registry.Register(".pdf", pdftable.NewExtractor(baseLogger.With("component", "extractor.pdf")))
	registry.Register(".csv", csvtable.NewExtractor())

	engine := summary.Engine{Window: cfg.Summary.RollingWindow}

	deps := usecase.PipelineDeps{
		Staging:     dir,
		Extractors:  registry,
		Store:       store,
		Documents:   store,
		Settings:    store,
		Exporter:    exporter,
		Recorder:    metrics.NewRecorder(cfg.Metrics.TextfilePath, baseLogger.With("component", "metrics")),
		Summary:     engine,
		MessageFile: cfg.Paths.MessageFile,
		Location:    cfg.Scheduler.Location(),
		Logger:      baseLogger.With("component", "pipeline"),
	}

	if cfg.Source.Enabled {
		source := scraper.NewBulletinScanner(
			&http.Client{Timeout: cfg.Source.Timeout()},
			scraper.Options{
				IndexURL:   cfg.Source.IndexURL,
				Prefix:     cfg.Source.Prefix,
				UserAgent:  cfg.Source.UserAgent,
				MaxRetries: cfg.Source.MaxRetries,
			},
			baseLogger.With("component", "scraper"),
		)
		deps.Source = source
		deps.Downloader = source
	}

	if cfg.Notifications.Telegram.Enabled() {
		deps.Notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		store:    store,
		exporter: exporter,
		engine:   engine,
		pipeline: usecase.NewPipeline(deps),
		settings: usecase.NewSettingsService(store),
	}, nil
}

// Close releases the store.
func (a *Application) Close() error {
	return a.store.Close()
}

// RunOnce performs a single pipeline execution.
func (a *Application) RunOnce(ctx context.Context, opts usecase.RunOptions) (domain.RunReport, error) {
	return a.pipeline.Run(ctx, opts)
}

// Run executes once, or on the configured cron schedule until ctx is done.
func (a *Application) Run(ctx context.Context, opts usecase.RunOptions) error {
	if !a.cfg.Scheduler.Enabled {
		_, err := a.RunOnce(ctx, opts)
		return err
	}

	driver, err := scheduler.NewCronScheduler(scheduler.Options{
		Spec:       a.cfg.Scheduler.CronExpression,
		Timezone:   a.cfg.Scheduler.Timezone,
		RunOnStart: a.cfg.Scheduler.RunOnStart,
	}, a.logger.With("component", "scheduler"))
	if err != nil {
		return err
	}

	sched := usecase.NewScheduler(driver, a.pipeline, opts)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Settings exposes the administrative settings service.
func (a *Application) Settings() *usecase.SettingsService {
	return a.settings
}

// Lookup finds an application's decisions, case-insensitively.
func (a *Application) Lookup(ctx context.Context, applicationNumber string) ([]domain.DecisionRecord, error) {
	return a.store.Lookup(ctx, applicationNumber)
}

// Summaries computes the weekly summaries over the stored records.
func (a *Application) Summaries(ctx context.Context) ([]domain.WeeklySummary, error) {
	records, err := a.store.AllRecords(ctx)
	if err != nil {
		return nil, err
	}
	return a.engine.Summarize(records), nil
}

// Export rewrites the export files from the stored records.
func (a *Application) Export(ctx context.Context) error {
	records, err := a.store.AllRecords(ctx)
	if err != nil {
		return err
	}
	return a.exporter.Export(ctx, records, a.engine.Summarize(records))
}

// Documents lists processed bulletins, newest first.
func (a *Application) Documents(ctx context.Context) ([]domain.Document, error) {
	return a.store.Documents(ctx)
}
