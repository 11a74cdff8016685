package models

import (
	"fmt"
	"time"
)

const (
	DateLayout    = "2006-01-02"
	CompactLayout = "20060102"
)

// DateRange is a closed interval of calendar days. Both ends are midnight UTC.
type DateRange struct {
	Begin time.Time
	End   time.Time
}

// Day truncates t to its calendar date in UTC, keeping the wall-clock date of t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYYMMDD or YYYY-MM-DD date.
func ParseDay(s string) (time.Time, error) {
	for _, layout := range []string{CompactLayout, DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYYMMDD", s)
}

func NewDateRange(begin, end time.Time) DateRange {
	return DateRange{Begin: Day(begin), End: Day(end)}
}

// Days is the number of calendar days covered, inclusive.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Begin).Hours()/24) + 1
}

func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(r.Begin) && !d.After(r.End)
}

// Params renders the begin and end dates in layout, each followed by its suffix
// (e.g. "0000" and "2359" for minute-resolution endpoints).
func (r DateRange) Params(layout, beginSuffix, endSuffix string) (string, string) {
	if layout == "" {
		layout = CompactLayout
	}
	return r.Begin.Format(layout) + beginSuffix, r.End.Format(layout) + endSuffix
}

func (r DateRange) String() string {
	return r.Begin.Format(CompactLayout) + "-" + r.End.Format(CompactLayout)
}
