// Package metrics exposes pipeline run statistics in Prometheus format.
package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"VisaDecisions/internal/domain"
	"VisaDecisions/internal/ports"
)

const namespace = "visa_decisions"

// Recorder implements ports.RunRecorder on its own registry. When a textfile
// path is set, every observed run rewrites it for the node exporter collector.
type Recorder struct {
	registry *prometheus.Registry
	textfile string
	logger   *slog.Logger

	runs        *prometheus.CounterVec
	documents   *prometheus.CounterVec
	records     prometheus.Counter
	lastRun     prometheus.Gauge
	runDuration prometheus.Histogram
}

var _ ports.RunRecorder = (*Recorder)(nil)

// NewRecorder registers the collectors; textfile may be empty.
func NewRecorder(textfile string, logger *slog.Logger) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		textfile: textfile,
		logger:   logger,
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Pipeline runs by status",
			},
			[]string{"status"},
		),
		documents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_total",
				Help:      "Staged documents handled, by outcome",
			},
			[]string{"outcome"},
		),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_inserted_total",
			Help:      "Decision records newly stored",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last pipeline run finished",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Pipeline run duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}),
	}

	r.registry.MustRegister(r.runs, r.documents, r.records, r.lastRun, r.runDuration)
	return r
}

// Registry exposes the underlying registry for gathering.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ObserveRun(report domain.RunReport, finishedAt time.Time) {
	status := "completed"
	if report.Skipped {
		status = "skipped"
	}
	r.runs.WithLabelValues(status).Inc()

	for _, doc := range report.Documents {
		r.documents.WithLabelValues(string(doc.Outcome)).Inc()
	}
	r.records.Add(float64(report.NewRecords()))
	r.lastRun.Set(float64(finishedAt.Unix()))
	if !report.StartedAt.IsZero() && finishedAt.After(report.StartedAt) {
		r.runDuration.Observe(finishedAt.Sub(report.StartedAt).Seconds())
	}

	if r.textfile == "" {
		return
	}
	if err := prometheus.WriteToTextfile(r.textfile, r.registry); err != nil && r.logger != nil {
		r.logger.Warn("write metrics textfile", "path", r.textfile, "error", err)
	}
}
