// Package summary projects decision records into weekly statistics.
package summary

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"VisaDecisions/internal/domain"
)

// DefaultWindow is the trailing period count for the rolling mean.
const DefaultWindow = 3

// Engine computes weekly summaries. The zero value uses DefaultWindow.
type Engine struct {
	Window int
}

// Summarize uses the default rolling window.
func Summarize(records []domain.DecisionRecord) []domain.WeeklySummary {
	return Engine{}.Summarize(records)
}

// Summarize groups records by end date and returns one summary per week in
// chronological order.
func (e Engine) Summarize(records []domain.DecisionRecord) []domain.WeeklySummary {
	window := e.Window
	if window <= 0 {
		window = DefaultWindow
	}

	groups := map[time.Time]*domain.WeeklySummary{}
	for _, r := range records {
		key := dateKey(r.EndDate)
		s, ok := groups[key]
		if !ok {
			s = &domain.WeeklySummary{
				WeekLabel: r.WeekLabel,
				StartDate: dateKey(r.StartDate),
				EndDate:   key,
			}
			groups[key] = s
		}
		switch r.Decision {
		case domain.DecisionApproved:
			s.Approved++
		case domain.DecisionRefused:
			s.Refused++
		default:
			s.Other++
		}
	}

	summaries := make([]domain.WeeklySummary, 0, len(groups))
	for _, s := range groups {
		s.Total = s.Approved + s.Refused
		s.RefusedPct = refusedPct(s.Refused, s.Total)
		summaries = append(summaries, *s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].EndDate.Before(summaries[j].EndDate)
	})

	for i := range summaries {
		summaries[i].RollingMean = rollingMean(summaries, i, window)
		if i > 0 {
			summaries[i].PctChange = pctChange(summaries[i-1].Total, summaries[i].Total)
		}
	}

	return summaries
}

func refusedPct(refused, total int) float64 {
	if total == 0 {
		return 0
	}
	pct := decimal.NewFromInt(int64(refused)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		RoundBank(2)
	return pct.InexactFloat64()
}

func rollingMean(summaries []domain.WeeklySummary, i, window int) float64 {
	from := i - window + 1
	if from < 0 {
		from = 0
	}
	sum := 0
	for _, s := range summaries[from : i+1] {
		sum += s.Total
	}
	return float64(sum) / float64(i+1-from)
}

func pctChange(prev, cur int) float64 {
	if prev == 0 {
		return 0
	}
	return float64(cur-prev) / float64(prev) * 100
}

// dateKey strips clock and zone so equal calendar days group together.
func dateKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
