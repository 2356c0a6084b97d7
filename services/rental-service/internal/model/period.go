package model

import (
	"slices"
	"time"
)

type PeriodKind string

const (
	PeriodBiWeek PeriodKind = "bi-week"
	PeriodCustom PeriodKind = "custom"
)

// EndOfDay is the inclusive end offset of a calendar day at millisecond precision.
const EndOfDay = 24*time.Hour - time.Millisecond

// Period is the canonical time span embedded in rentals and proposals.
// Start is 00:00:00.000 UTC of the first day and End is 23:59:59.999 UTC of
// the last day. BiWeekIDs is non-empty only for bi-week periods.
type Period struct {
	Kind      PeriodKind
	Start     time.Time
	End       time.Time
	BiWeekIDs []string
}

// Contains reports whether t falls within [Start, End].
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Overlaps treats both periods as closed intervals, so a period ending on the
// day another begins overlaps it.
func (p Period) Overlaps(start, end time.Time) bool {
	return !p.Start.After(end) && !start.After(p.End)
}

func (p Period) Equal(o Period) bool {
	return p.Kind == o.Kind &&
		p.Start.Equal(o.Start) &&
		p.End.Equal(o.End) &&
		slices.Equal(p.BiWeekIDs, o.BiWeekIDs)
}

// Days is the number of calendar days covered.
func (p Period) Days() int {
	return int(p.End.Add(time.Millisecond).Sub(p.Start) / (24 * time.Hour))
}

// StartOfDay truncates t to midnight UTC of its calendar day.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// LastInstantOfDay returns 23:59:59.999 UTC of t's calendar day.
func LastInstantOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(EndOfDay)
}
