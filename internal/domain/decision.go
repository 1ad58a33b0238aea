package domain

import "time"

// Canonical decision values. Anything else is kept verbatim as a residual category.
const (
	DecisionApproved = "Approved"
	DecisionRefused  = "Refused"
)

// WeekWindow is the resolved reporting period of one bulletin.
type WeekWindow struct {
	Start time.Time
	End   time.Time
	Label string
}

// RawRow is one extracted table row: application number and decision text.
type RawRow struct {
	ApplicationNumber string
	Decision          string
}

// DecisionRecord is one application's outcome for one week.
type DecisionRecord struct {
	ApplicationNumber string
	Decision          string
	WeekLabel         string
	StartDate         time.Time
	EndDate           time.Time
	SourceFilename    string
	IngestedAt        time.Time
}

// WeeklySummary is a projection over the records sharing an end date.
type WeeklySummary struct {
	WeekLabel   string
	StartDate   time.Time
	EndDate     time.Time
	Approved    int
	Refused     int
	Other       int
	Total       int
	RefusedPct  float64
	RollingMean float64
	PctChange   float64
}

// Document is a bulletin file recorded after processing.
type Document struct {
	Filename   string
	URL        string
	RunID      string
	WeekLabel  string
	NewRecords int
	AddedAt    time.Time
}
