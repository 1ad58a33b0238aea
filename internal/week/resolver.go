// Package week turns bulletin filenames into canonical reporting weeks.
package week

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"VisaDecisions/internal/domain"
)

// Label layouts: the start omits the year, the end carries it.
const (
	startLayout = "02 Jan"
	endLayout   = "02 Jan 2006"
)

// rangeExpr requires a non-digit before the start day so "123-May" never matches
// as "23-May". Any digit run after the end month is captured as the year and
// must be four digits long.
var rangeExpr = regexp.MustCompile(`(?i)(?:^|[^0-9])(\d{1,2})-([a-z]+)-to-(\d{1,2})-([a-z]+)(?:-(\d+))?(?:[^0-9]|$)`)

var months = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// ErrUnrecognized is matched by every ParseError.
var ErrUnrecognized = errors.New("unrecognized week filename")

// ParseError reports a filename that cannot be mapped to a week.
type ParseError struct {
	Filename string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse week from %q: %s", e.Filename, e.Reason)
}

// Is lets callers use errors.Is(err, ErrUnrecognized).
func (e *ParseError) Is(target error) bool {
	return target == ErrUnrecognized
}

// Resolver maps filenames to week windows.
type Resolver struct{}

// NewResolver returns a stateless resolver.
func NewResolver() Resolver {
	return Resolver{}
}

// Resolve is a convenience wrapper around Resolver.Resolve.
func Resolve(filename string, reference time.Time) (domain.WeekWindow, error) {
	return Resolver{}.Resolve(filename, reference)
}

// Resolve parses "<d>-<month>-to-<d>-<month>[-<yyyy>]" out of filename. When the
// year is missing it is taken from reference, stepping back one year if the end
// date would otherwise lie after reference.
func (Resolver) Resolve(filename string, reference time.Time) (domain.WeekWindow, error) {
	base := filepath.Base(filename)
	m := rangeExpr.FindStringSubmatch(base)
	if m == nil {
		return domain.WeekWindow{}, &ParseError{Filename: filename, Reason: "no date range found"}
	}

	startDay, startMonth, err := dayMonth(m[1], m[2])
	if err != nil {
		return domain.WeekWindow{}, &ParseError{Filename: filename, Reason: err.Error()}
	}
	endDay, endMonth, err := dayMonth(m[3], m[4])
	if err != nil {
		return domain.WeekWindow{}, &ParseError{Filename: filename, Reason: err.Error()}
	}

	var year int
	if m[5] != "" {
		if len(m[5]) != 4 {
			return domain.WeekWindow{}, &ParseError{Filename: filename, Reason: fmt.Sprintf("year %q is not four digits", m[5])}
		}
		year, _ = strconv.Atoi(m[5])
	} else {
		year = inferYear(endDay, endMonth, civil(reference))
	}

	end, ok := date(year, endMonth, endDay)
	if !ok {
		return domain.WeekWindow{}, &ParseError{Filename: filename, Reason: fmt.Sprintf("invalid end date %d %s %d", endDay, endMonth, year)}
	}

	start, ok := date(year, startMonth, startDay)
	if ok && start.After(end) {
		start, ok = date(year-1, startMonth, startDay)
	}
	if !ok {
		return domain.WeekWindow{}, &ParseError{Filename: filename, Reason: fmt.Sprintf("invalid start date %d %s", startDay, startMonth)}
	}

	return domain.WeekWindow{
		Start: start,
		End:   end,
		Label: Label(start, end),
	}, nil
}

// Label renders the canonical week label, e.g. "25 Mar to 31 Mar 2025".
func Label(start, end time.Time) string {
	return start.Format(startLayout) + " to " + end.Format(endLayout)
}

// inferYear picks the reference year unless that would date the end in the future.
func inferYear(day int, month time.Month, ref time.Time) int {
	year := ref.Year()
	end, ok := date(year, month, day)
	if !ok || end.After(ref) {
		year--
	}
	return year
}

func dayMonth(dayText, monthText string) (int, time.Month, error) {
	day, err := strconv.Atoi(dayText)
	if err != nil || day < 1 || day > 31 {
		return 0, 0, fmt.Errorf("day %q out of range", dayText)
	}
	month, ok := months[strings.ToLower(monthText)]
	if !ok {
		return 0, 0, fmt.Errorf("unknown month %q", monthText)
	}
	return day, month, nil
}

// date builds a UTC calendar date and reports false when it does not exist.
func date(year int, month time.Month, day int) (time.Time, bool) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
