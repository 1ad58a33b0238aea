// Package ingest merges extracted bulletin rows into the decision store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"VisaDecisions/internal/domain"
	"VisaDecisions/internal/ports"
)

// Header markers emitted by the bulletin tables.
const (
	headerApplication = "Application Number"
	headerDecision    = "Decision"
)

// ErrStore is matched by every StoreError.
var ErrStore = errors.New("decision store failure")

// StoreError means nothing from the document was committed.
type StoreError struct {
	Source string
	Err    error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("merge %s: %v", e.Source, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStore, e.Err}
}

// Merger applies one document's rows to the store as a single unit.
type Merger struct {
	store  ports.DecisionStore
	now    func() time.Time
	logger *slog.Logger
}

// NewMerger wires the store; a nil logger disables debug output.
func NewMerger(store ports.DecisionStore, logger *slog.Logger) *Merger {
	return &Merger{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Merge inserts the eligible rows keyed on (application number, window label)
// and returns how many were new. Rows already present are ignored.
func (m *Merger) Merge(ctx context.Context, window domain.WeekWindow, sourceFilename string, rows []domain.RawRow) (int, error) {
	records := Normalize(window, sourceFilename, rows, m.now())
	if len(records) == 0 {
		return 0, nil
	}

	inserted, err := m.store.InsertIgnore(ctx, records)
	if err != nil {
		return 0, &StoreError{Source: sourceFilename, Err: err}
	}

	if m.logger != nil {
		m.logger.Debug("merged document",
			"source", sourceFilename,
			"week", window.Label,
			"eligible", len(records),
			"inserted", inserted,
		)
	}
	return inserted, nil
}

// Normalize trims rows, drops headers and blanks, and stamps them with the window.
func Normalize(window domain.WeekWindow, sourceFilename string, rows []domain.RawRow, ingestedAt time.Time) []domain.DecisionRecord {
	records := make([]domain.DecisionRecord, 0, len(rows))
	for _, row := range rows {
		app := strings.TrimSpace(row.ApplicationNumber)
		decision := strings.TrimSpace(row.Decision)

		if IsHeader(app, decision) {
			continue
		}
		if app == "" || decision == "" {
			continue
		}

		records = append(records, domain.DecisionRecord{
			ApplicationNumber: app,
			Decision:          NormalizeDecision(decision),
			WeekLabel:         window.Label,
			StartDate:         window.Start,
			EndDate:           window.End,
			SourceFilename:    sourceFilename,
			IngestedAt:        ingestedAt,
		})
	}
	return records
}

// IsHeader reports whether a row carries the table header markers.
func IsHeader(application, decision string) bool {
	return strings.Contains(application, headerApplication) || strings.Contains(decision, headerDecision)
}

// NormalizeDecision capitalizes approved/refused; other values are returned trimmed.
func NormalizeDecision(value string) string {
	value = strings.TrimSpace(value)
	switch {
	case strings.EqualFold(value, domain.DecisionApproved):
		return domain.DecisionApproved
	case strings.EqualFold(value, domain.DecisionRefused):
		return domain.DecisionRefused
	default:
		return value
	}
}
