package domain

import "time"

// DocumentOutcome enumerates what happened to a staged document.
type DocumentOutcome string

const (
	OutcomeMerged      DocumentOutcome = "merged"
	OutcomeNoTable     DocumentOutcome = "no_table"
	OutcomeHeld        DocumentOutcome = "held"
	OutcomeStoreFailed DocumentOutcome = "store_failed"
	OutcomeUnsupported DocumentOutcome = "unsupported"
)

// DocumentResult captures a single document's processing result.
type DocumentResult struct {
	Filename   string
	WeekLabel  string
	Extracted  int
	NewRecords int
	Outcome    DocumentOutcome
	Err        error
}

// RunReport summarises one pipeline execution.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	Skipped    bool
	Downloaded int
	Documents  []DocumentResult
}

// NewRecords sums newly inserted records across documents.
func (r RunReport) NewRecords() int {
	total := 0
	for _, d := range r.Documents {
		total += d.NewRecords
	}
	return total
}

// Count returns how many documents ended with the given outcome.
func (r RunReport) Count(outcome DocumentOutcome) int {
	n := 0
	for _, d := range r.Documents {
		if d.Outcome == outcome {
			n++
		}
	}
	return n
}
